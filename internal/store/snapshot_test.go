package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"torpathsim/internal/model"
)

func TestLoadSnapshot_MissingFile_ReturnsEmpty(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "relays.yaml")
	snap, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap == nil {
		t.Fatalf("snapshot is nil")
	}
	if len(snap.Relays) != 0 {
		t.Fatalf("relays=%d", len(snap.Relays))
	}
}

func TestSaveSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "nested", "relays.yaml")

	published := time.Date(2024, 5, 1, 4, 21, 12, 0, time.UTC)
	guard := &model.Relay{
		Fingerprint: "AAAA",
		Nickname:    "g1",
		Address:     "10.1.0.1",
		ORPort:      9001,
		Bandwidth:   2150,
		Flags:       model.FlagFast | model.FlagGuard,
		ExitPolicy:  "reject 1-65535",
		Published:   published,
		Version:     "Tor 0.4.8.10",
	}
	guard.SetCountry("DE")
	exit := &model.Relay{
		Fingerprint: "BBBB",
		Nickname:    "e1",
		Address:     "10.2.0.1",
		Bandwidth:   51000,
		Flags:       model.FlagExit | model.FlagFast,
	}

	in := FromRelays("http://example/consensus", []*model.Relay{
		guard, nil, exit,
	})
	if err := SaveSnapshot(path, in); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode=%o", info.Mode().Perm())
	}

	out, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if out.UpdatedAt.IsZero() {
		t.Fatalf("updated_at not set")
	}
	if out.Source != "http://example/consensus" {
		t.Fatalf("source=%q", out.Source)
	}

	relays := out.ToRelays()
	if len(relays) != 2 {
		t.Fatalf("relays=%d", len(relays))
	}

	g := relays[0]
	if g.Nickname != "g1" || g.ORPort != 9001 || g.Bandwidth != 2150 {
		t.Fatalf("guard=%+v", g)
	}
	if g.Flags != guard.Flags {
		t.Fatalf("flags=%v want %v", g.Flags, guard.Flags)
	}
	if !g.Published.Equal(published) {
		t.Fatalf("published=%v", g.Published)
	}
	if !g.RejectsAllTraffic() {
		t.Fatalf("exit policy lost: %q", g.ExitPolicy)
	}
	if !g.CountryResolved() || g.Country() != "DE" {
		t.Fatalf("country=%q", g.Country())
	}

	e := relays[1]
	if e.CountryResolved() {
		t.Fatalf("unresolved country came back as %q", e.Country())
	}
	if !e.Flags.Has(model.FlagExit) {
		t.Fatalf("flags=%v", e.Flags)
	}
}
