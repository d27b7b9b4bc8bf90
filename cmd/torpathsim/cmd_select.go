package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli"

	"torpathsim/internal/experiment"
	"torpathsim/internal/model"
)

var selectCommand = cli.Command{
	Name:  "select",
	Usage: "Build one circuit and print its hops.",
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:  "algorithm",
			Value: string(experiment.AlgorithmBaseline),
			Usage: "baseline or geo",
		},
		cli.IntFlag{
			Name:  "id",
			Value: 1,
			Usage: "circuit id",
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
		cli.BoolFlag{
			Name:  "offline",
			Usage: "do not resolve hop countries",
		},
	}, snapshotFlags...),
	Action: selectCircuit,
}

func selectCircuit(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	algo, err := experiment.ParseAlgorithm(c.String("algorithm"))
	if err != nil {
		return err
	}
	alpha, beta := s.weights(c)

	relays, err := s.loadRelays(c)
	if err != nil {
		return err
	}
	sel := s.newSelector(c, relays)
	logger.Debugf("Selecting from %d relays", len(sel.Relays()))

	var circuit *model.Circuit
	switch algo {
	case experiment.AlgorithmGeo:
		circuit, err = sel.SelectGeoAware(c.Int("id"), alpha, beta)
	default:
		circuit, err = sel.SelectBaseline(c.Int("id"))
	}
	if err != nil {
		return err
	}
	s.circuits.WithLabelValues(string(algo)).Inc()

	if !c.Bool("offline") {
		ctx, cancel := signalContext()
		defer cancel()

		res, err := s.geoResolver(ctx)
		if err != nil {
			return err
		}
		for _, r := range circuit.Hops {
			if !r.CountryResolved() {
				r.SetCountry(res.LookupContext(ctx, r.Address))
			}
		}
		if err := interrupted(ctx); err != nil {
			return err
		}
	}

	printCircuit(os.Stdout, algo, circuit)
	return nil
}

// weights returns alpha and beta from the flags, falling back to config.
func (s *session) weights(c *cli.Context) (float64, float64) {
	alpha := *s.cfg.Experiment.Alpha
	if c.IsSet("alpha") {
		alpha = c.Float64("alpha")
	}
	beta := *s.cfg.Experiment.Beta
	if c.IsSet("beta") {
		beta = c.Float64("beta")
	}
	return alpha, beta
}

func printCircuit(w io.Writer, algo experiment.Algorithm, c *model.Circuit) {
	fmt.Fprintf(w, "circuit=%d algorithm=%s min_bandwidth=%d\n", c.ID, algo,
		c.MinBandwidth)
	fmt.Fprintf(w, "%-6s  %-20s  %-15s  %10s  %-7s  %s\n", "ROLE",
		"NICKNAME", "ADDRESS", "BANDWIDTH", "COUNTRY", "FLAGS")
	for _, role := range model.Roles {
		r := c.Hop(role)
		fmt.Fprintf(w, "%-6s  %-20s  %-15s  %10d  %-7s  %s\n", role,
			r.Nickname, r.Address, r.Bandwidth, r.Country(), r.Flags)
	}
}
