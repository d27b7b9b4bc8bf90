package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli"

	"torpathsim/internal/experiment"
	"torpathsim/internal/metrics"
	"torpathsim/internal/model"
)

var simulateCommand = cli.Command{
	Name:  "simulate",
	Usage: "Build many circuits and report node and country diversity.",
	Flags: append([]cli.Flag{
		cli.IntFlag{
			Name:  "circuits",
			Usage: "circuits per algorithm (default from config)",
		},
		cli.Float64Flag{
			Name:  "alpha",
			Usage: "guard diversity bonus for geo (default from config)",
		},
		cli.Float64Flag{
			Name:  "beta",
			Usage: "middle diversity bonus for geo (default from config)",
		},
		cli.Int64Flag{
			Name:  "seed",
			Usage: "random seed; 0 seeds from the clock",
		},
		cli.StringFlag{
			Name:  "algorithm",
			Usage: "baseline, geo or both (default from config)",
		},
		cli.StringFlag{
			Name:  "csv",
			Usage: "write country frequency tables to this file",
		},
		cli.BoolFlag{
			Name:  "offline",
			Usage: "do not resolve countries; unresolved hops count as XX",
		},
	}, snapshotFlags...),
	Action: simulate,
}

func simulate(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	params := experiment.Params{
		NumCircuits: s.cfg.Experiment.Circuits,
	}
	if c.IsSet("circuits") {
		params.NumCircuits = c.Int("circuits")
	}
	params.Alpha, params.Beta = s.weights(c)

	mode := s.cfg.Experiment.Algorithm
	if v := c.String("algorithm"); v != "" {
		mode = v
	}

	relays, err := s.loadRelays(c)
	if err != nil {
		return err
	}
	sel := s.newSelector(c, relays)

	ctx, cancel := signalContext()
	defer cancel()

	var resolve experiment.Resolver
	if !c.Bool("offline") {
		res, err := s.geoResolver(ctx)
		if err != nil {
			return err
		}
		resolve = func(ip string) string {
			return res.LookupContext(ctx, ip)
		}
	}

	var aggs []*experiment.Aggregate
	if strings.EqualFold(strings.TrimSpace(mode), "both") {
		base, geo, err := experiment.Compare(sel, resolve, params)
		if err != nil {
			return err
		}
		aggs = append(aggs, base, geo)
	} else {
		algo, err := experiment.ParseAlgorithm(mode)
		if err != nil {
			return err
		}
		params.Algorithm = algo
		agg, err := experiment.Run(sel, resolve, params)
		if err != nil {
			return err
		}
		aggs = append(aggs, agg)
	}
	if err := interrupted(ctx); err != nil {
		return err
	}

	for i, agg := range aggs {
		s.record(agg)
		if i > 0 {
			fmt.Fprintln(os.Stdout)
		}
		printReport(os.Stdout, agg)
	}
	if len(aggs) == 2 {
		fmt.Fprintln(os.Stdout)
		printComparison(os.Stdout, aggs[0].Report(), aggs[1].Report())
	}

	if path := c.String("csv"); path != "" {
		if err := writeCSV(path, aggs); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "\nwrote country tables to %s\n", path)
	}

	return nil
}

func printReport(w io.Writer, agg *experiment.Aggregate) {
	rep := agg.Report()

	fmt.Fprintf(w, "== %s: %d circuits", rep.Algorithm, rep.NumCircuits)
	if rep.Algorithm == experiment.AlgorithmGeo {
		fmt.Fprintf(w, " (alpha=%.2f beta=%.2f)", agg.Alpha, agg.Beta)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "distinct nodes=%d countries=%d entropy=%.4f bits "+
		"(max %.4f)\n", rep.DistinctNodes, rep.Countries, rep.Entropy,
		metrics.MaxEntropy(rep.Countries))

	fmt.Fprintf(w, "%-6s  %6s  %9s  %8s\n", "ROLE", "NODES", "COUNTRIES",
		"ENTROPY")
	for _, rs := range rep.Roles {
		fmt.Fprintf(w, "%-6s  %6d  %9d  %8.4f\n", rs.Role,
			rs.DistinctNodes, rs.Countries, rs.Entropy)
	}

	bw := rep.Bandwidth
	if bw.Count > 0 {
		fmt.Fprintf(w, "min bandwidth avg=%.1f p50=%.1f p95=%.1f "+
			"min=%d max=%d\n", bw.Avg, bw.P50, bw.P95, bw.Min, bw.Max)
	}

	top := metrics.SortedShares(agg.AllCountries,
		len(model.Roles)*agg.NumCircuits)
	if len(top) > 5 {
		top = top[:5]
	}
	parts := make([]string, 0, len(top))
	for _, cs := range top {
		parts = append(parts, fmt.Sprintf("%s=%.1f%%", cs.Country,
			cs.Share*100))
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "top countries: %s\n", strings.Join(parts, " "))
	}
}

func printComparison(w io.Writer, base, geo experiment.Report) {
	fmt.Fprintf(w, "== geo vs baseline\n")
	fmt.Fprintf(w, "%-6s  %10s  %10s  %8s\n", "ROLE", "BASELINE", "GEO",
		"DELTA")
	fmt.Fprintf(w, "%-6s  %10.4f  %10.4f  %+8.4f\n", "all", base.Entropy,
		geo.Entropy, geo.Entropy-base.Entropy)
	for i := range base.Roles {
		b, g := base.Roles[i], geo.Roles[i]
		fmt.Fprintf(w, "%-6s  %10.4f  %10.4f  %+8.4f\n", b.Role,
			b.Entropy, g.Entropy, g.Entropy-b.Entropy)
	}
}

func writeCSV(path string, aggs []*experiment.Aggregate) error {
	var tables []metrics.CountryTable
	for _, agg := range aggs {
		tables = append(tables, agg.CountryTables()...)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := metrics.WriteCountryCSV(f, tables); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
