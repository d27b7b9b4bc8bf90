package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/urfave/cli"

	"torpathsim/internal/model"
)

var relaysCommand = cli.Command{
	Name:  "relays",
	Usage: "List relays from a snapshot or consensus file.",
	Flags: append([]cli.Flag{
		cli.StringSliceFlag{
			Name:  "flag",
			Usage: "only relays carrying this flag (repeatable)",
		},
		cli.BoolFlag{
			Name:  "by-bandwidth",
			Usage: "sort by bandwidth, highest first",
		},
		cli.IntFlag{
			Name:  "limit",
			Usage: "print at most this many relays",
		},
	}, snapshotFlags...),
	Action: listRelays,
}

func listRelays(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	relays, err := s.loadRelays(c)
	if err != nil {
		return err
	}

	var want model.Flags
	for _, name := range c.StringSlice("flag") {
		f, ok := model.LookupFlag(name)
		if !ok {
			return fmt.Errorf("unknown relay flag %q", name)
		}
		want |= f
	}

	filtered := make([]*model.Relay, 0, len(relays))
	for _, r := range relays {
		if r.Flags.Has(want) {
			filtered = append(filtered, r)
		}
	}
	if c.Bool("by-bandwidth") {
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Bandwidth > filtered[j].Bandwidth
		})
	}
	if limit := c.Int("limit"); limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	printRelays(os.Stdout, filtered)
	return nil
}

func printRelays(w io.Writer, relays []*model.Relay) {
	if len(relays) == 0 {
		fmt.Fprintln(w, "no relays")
		return
	}

	fmt.Fprintf(w, "%-20s  %-16s  %-15s  %10s  %-7s  %s\n", "NICKNAME",
		"FINGERPRINT", "ADDRESS", "BANDWIDTH", "COUNTRY", "FLAGS")
	for _, r := range relays {
		fp := r.Fingerprint
		if len(fp) > 16 {
			fp = fp[:16]
		}
		fmt.Fprintf(w, "%-20s  %-16s  %-15s  %10d  %-7s  %s\n",
			r.Nickname, fp, r.Address, r.Bandwidth, r.Country(),
			r.Flags)
	}
}
