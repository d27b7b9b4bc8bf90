package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"torpathsim/internal/vantage"
)

var whereamiCommand = cli.Command{
	Name:  "whereami",
	Usage: "Find this host's public address and country via STUN.",
	Flags: []cli.Flag{
		cli.StringSliceFlag{
			Name:  "stun",
			Usage: "STUN server host:port (repeatable, default from config)",
		},
	},
	Action: whereami,
}

func whereami(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := signalContext()
	defer cancel()

	servers := s.cfg.Vantage.STUNServers
	if v := c.StringSlice("stun"); len(v) > 0 {
		servers = v
	}

	res, err := vantage.Probe(ctx, servers, s.cfg.Vantage.Timeout)
	if err != nil {
		return err
	}

	resolver, err := s.geoResolver(ctx)
	if err != nil {
		return err
	}
	country := resolver.LookupContext(ctx, res.Host())

	fmt.Fprintf(os.Stdout, "public_addr=%s nat_type=%s country=%s\n",
		res.Addr, res.NATType, country)
	return nil
}
