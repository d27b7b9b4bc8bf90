package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"torpathsim/internal/config"
	"torpathsim/internal/experiment"
	"torpathsim/internal/model"
	"torpathsim/internal/pathsel"
	"torpathsim/internal/store"
)

// testConsensus has two Guard-only relays, two Fast+Guard relays and two
// Fast relays, each in its own /16.
const testConsensus = `network-status-version 3
r g1 AAoQ1DAR6kkoo19hBAX5K0QztNw d1 2024-05-01 04:21:12 10.1.0.1 9001 0
s Guard Running Valid
w Bandwidth=100
r g2 ABG9JIWtRdmE7EFZyI/AZuXjMA4 d2 2024-05-01 04:21:12 10.2.0.1 9001 0
s Guard Running Valid
w Bandwidth=200
r fg1 ACG9JIWtRdmE7EFZyI/AZuXjMA4 d3 2024-05-01 04:21:12 10.3.0.1 9001 0
s Fast Guard Running Valid
w Bandwidth=300
p accept 80,443
r fg2 ADG9JIWtRdmE7EFZyI/AZuXjMA4 d4 2024-05-01 04:21:12 10.4.0.1 9001 0
s Fast Guard Running Valid
w Bandwidth=400
p reject 1-65535
r f1 AEG9JIWtRdmE7EFZyI/AZuXjMA4 d5 2024-05-01 04:21:12 10.5.0.1 9001 0
s Exit Fast Running Valid
w Bandwidth=500
p accept 1-65535
r f2 AFG9JIWtRdmE7EFZyI/AZuXjMA4 d6 2024-05-01 04:21:12 10.6.0.1 9001 0
s Exit Fast Running Valid
w Bandwidth=600
directory-footer
`

// runApp runs the CLI with logging off, geoip disabled and an empty dotenv
// path so the host environment does not leak in.
func runApp(t *testing.T, dir string, args ...string) error {
	t.Helper()

	full := append([]string{
		"torpathsim",
		"--envfile", filepath.Join(dir, "missing.env"),
		"--loglevel", "off",
	}, args...)
	return newApp().Run(full)
}

func writeConsensus(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "consensus")
	require.NoError(t, os.WriteFile(path, []byte(testConsensus), 0o600))
	return path
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "torpathsim.yaml")
	cfg := "consensus:\n  snapshot: " + filepath.Join(dir, "relays.yaml") +
		"\ngeoip:\n  disabled: true\nexperiment:\n  circuits: 40\n" +
		"  seed: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestFetchThenSelect(t *testing.T) {
	dir := t.TempDir()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter,
		r *http.Request) {

		_, _ = w.Write([]byte(testConsensus))
	}))
	defer srv.Close()

	cfg := writeConfig(t, dir)
	out := filepath.Join(dir, "relays.yaml")
	require.NoError(t, runApp(t, dir, "--config", cfg, "fetch",
		"--url", srv.URL))

	snap, err := store.LoadSnapshot(out)
	require.NoError(t, err)
	require.Len(t, snap.Relays, 6)
	require.Equal(t, srv.URL, snap.Source)

	require.NoError(t, runApp(t, dir, "--config", cfg, "relays",
		"--flag", "Guard", "--by-bandwidth"))
	require.Error(t, runApp(t, dir, "--config", cfg, "relays",
		"--flag", "Bogus"))

	require.NoError(t, runApp(t, dir, "--config", cfg, "select",
		"--algorithm", "geo", "--seed", "9"))
}

func TestSimulateWritesCSVAndMetrics(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	consensusPath := writeConsensus(t, dir)
	csvPath := filepath.Join(dir, "countries.csv")
	promPath := filepath.Join(dir, "torpathsim.prom")

	require.NoError(t, runApp(t, dir, "--config", cfg,
		"--metrics-textfile", promPath, "simulate",
		"--consensus", consensusPath, "--circuits", "25",
		"--algorithm", "both", "--csv", csvPath))

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	csv := string(data)
	require.True(t, strings.HasPrefix(csv, "label,country,count,share\n"))
	require.Contains(t, csv, "baseline/all,XX,75,1.0000")
	require.Contains(t, csv, "geo/exit,XX,25,1.0000")

	prom, err := os.ReadFile(promPath)
	require.NoError(t, err)
	require.Contains(t, string(prom),
		`torpathsim_circuits_built_total{algorithm="baseline"} 25`)
	require.Contains(t, string(prom),
		`torpathsim_circuits_built_total{algorithm="geo"} 25`)
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	out := filepath.Join(dir, "conf", "written.yaml")

	require.NoError(t, runApp(t, dir, "--config", cfg, "config", "init",
		"--out", out))

	written, err := config.Load(out)
	require.NoError(t, err)
	require.True(t, written.GeoIP.Disabled)
	require.Equal(t, 40, written.Experiment.Circuits)
	require.EqualValues(t, 3, written.Experiment.Seed)
	require.Equal(t, config.DefaultConsensusURL, written.Consensus.URL)
	require.InDelta(t, config.DefaultGeoIPRateLimit,
		*written.GeoIP.RateLimit, 0)

	err = runApp(t, dir, "config", "init", "--out", out)
	require.ErrorContains(t, err, "--force")
	require.NoError(t, runApp(t, dir, "config", "init", "--out", out,
		"--force"))

	// The second write used no --config file, so defaults are back.
	written, err = config.Load(out)
	require.NoError(t, err)
	require.Equal(t, config.DefaultCircuits, written.Experiment.Circuits)
}

func TestInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, interrupted(ctx))

	cancel()
	err := interrupted(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorContains(t, err, "interrupted")
}

func TestSimulateRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	consensusPath := writeConsensus(t, dir)

	err := runApp(t, dir, "--config", cfg, "simulate",
		"--consensus", consensusPath, "--algorithm", "random")
	require.Error(t, err)

	// The default snapshot does not exist yet.
	err = runApp(t, dir, "--config", cfg, "simulate")
	require.ErrorContains(t, err, "run fetch first")

	err = runApp(t, dir, "--loglevel", "loud", "simulate")
	require.ErrorContains(t, err, "unknown log level")
}

func TestPrintCircuit(t *testing.T) {
	guard := &model.Relay{Nickname: "g", Address: "10.1.0.1",
		Bandwidth: 30, Flags: model.FlagGuard}
	guard.SetCountry("DE")
	middle := &model.Relay{Nickname: "m", Address: "10.2.0.1",
		Bandwidth: 10, Flags: model.FlagFast}
	exit := &model.Relay{Nickname: "e", Address: "10.3.0.1",
		Bandwidth: 20, Flags: model.FlagFast}

	var buf bytes.Buffer
	printCircuit(&buf, experiment.AlgorithmBaseline,
		model.NewCircuit(4, guard, middle, exit))

	out := buf.String()
	require.Contains(t, out, "circuit=4 algorithm=baseline min_bandwidth=10")
	require.Contains(t, out, "DE")
	require.Equal(t, 5, strings.Count(out, "\n"))
}

func TestPrintReport(t *testing.T) {
	sel := pathsel.NewSelector([]*model.Relay{
		{Fingerprint: "a", Nickname: "a", Address: "10.1.0.1",
			Bandwidth: 10, Flags: model.FlagGuard},
		{Fingerprint: "b", Nickname: "b", Address: "10.2.0.1",
			Bandwidth: 10, Flags: model.FlagFast},
		{Fingerprint: "c", Nickname: "c", Address: "10.3.0.1",
			Bandwidth: 10, Flags: model.FlagFast},
	}, pathsel.NewSeededRand(1))

	agg, err := experiment.Run(sel, func(string) string { return "SE" },
		experiment.Params{
			NumCircuits: 10,
			Algorithm:   experiment.AlgorithmGeo,
			Alpha:       0.5,
			Beta:        0.2,
		})
	require.NoError(t, err)

	var buf bytes.Buffer
	printReport(&buf, agg)
	out := buf.String()
	require.Contains(t, out, "== geo: 10 circuits (alpha=0.50 beta=0.20)")
	require.Contains(t, out, "entropy=0.0000 bits")
	require.Contains(t, out, "top countries: SE=100.0%")
}
