package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"torpathsim/internal/consensus"
	"torpathsim/internal/store"
)

var fetchCommand = cli.Command{
	Name:  "fetch",
	Usage: "Download the current consensus and save a relay snapshot.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "url",
			Usage: "consensus URL (default from config)",
		},
		cli.StringFlag{
			Name:  "out",
			Usage: "snapshot path (default from config)",
		},
		cli.BoolFlag{
			Name:  "resolve",
			Usage: "geo-resolve every relay before saving",
		},
		cli.BoolFlag{
			Name: "allow-truncated",
			Usage: "keep the relays read so far if the download " +
				"breaks off",
		},
	},
	Action: fetch,
}

func fetch(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := signalContext()
	defer cancel()

	url := s.cfg.Consensus.URL
	if v := c.String("url"); v != "" {
		url = v
	}
	out := s.cfg.Consensus.Snapshot
	if v := c.String("out"); v != "" {
		out = v
	}

	fetcher := consensus.NewFetcher(url, s.cfg.Consensus.Timeout)
	relays, err := fetcher.Fetch(ctx)
	switch {
	case errors.Is(err, consensus.ErrTruncated) &&
		c.Bool("allow-truncated") && len(relays) > 0:

		logger.Warnf("Keeping %d relays from truncated consensus: %v",
			len(relays), err)

	case err != nil:
		return err
	}
	if len(relays) == 0 {
		return fmt.Errorf("consensus from %s lists no relays", url)
	}

	if c.Bool("resolve") {
		res, err := s.geoResolver(ctx)
		if err != nil {
			return err
		}
		for i, r := range relays {
			if err := interrupted(ctx); err != nil {
				return err
			}
			r.SetCountry(res.LookupContext(ctx, r.Address))
			if (i+1)%500 == 0 {
				logger.Infof("Resolved %d/%d relays", i+1,
					len(relays))
			}
		}
	}

	if err := store.SaveSnapshot(out, store.FromRelays(url, relays)); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "saved %d relays to %s\n", len(relays), out)
	return nil
}

// interrupted wraps ctx.Err once a signal has cancelled ctx. Commands check it
// before printing anything built from resolver answers.
func interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx, cancel
}
