package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btclog/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"

	"torpathsim/internal/config"
	"torpathsim/internal/consensus"
	"torpathsim/internal/experiment"
	"torpathsim/internal/geoip"
	"torpathsim/internal/model"
	"torpathsim/internal/pathsel"
	"torpathsim/internal/store"
	"torpathsim/internal/vantage"
)

// session is the state shared by one command invocation.
type session struct {
	cfg      config.Config
	registry *prometheus.Registry
	circuits *prometheus.CounterVec
	entropy  *prometheus.GaugeVec

	metricsPath string
	disk        *geoip.DiskCache
	resolver    *geoip.Resolver
}

// newSession loads configuration in increasing order of precedence: config
// file, dotenv file and environment, command line.
func newSession(c *cli.Context) (*session, error) {
	if err := setupLogging(c.GlobalString("loglevel")); err != nil {
		return nil, err
	}

	if err := config.LoadDotEnv(c.GlobalString("envfile")); err != nil {
		return nil, fmt.Errorf("load %s: %w", c.GlobalString("envfile"),
			err)
	}

	var cfg config.Config
	if path := c.GlobalString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.ApplyDefaults(&cfg)
	if err := config.ApplyEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	s := &session{
		cfg:         cfg,
		registry:    prometheus.NewRegistry(),
		metricsPath: c.GlobalString("metrics-textfile"),
		circuits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "torpathsim",
			Name:      "circuits_built_total",
			Help:      "Circuits built, by selection algorithm.",
		}, []string{"algorithm"}),
		entropy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "torpathsim",
			Name:      "country_entropy_bits",
			Help:      "Shannon entropy of hop countries in the last run.",
		}, []string{"algorithm", "role"}),
	}
	s.registry.MustRegister(s.circuits, s.entropy)

	return s, nil
}

// close flushes metrics and releases the geoip cache.
func (s *session) close() {
	if s.disk != nil {
		if err := s.disk.Close(); err != nil {
			logger.Errorf("Closing geoip cache: %v", err)
		}
	}
	if s.metricsPath != "" {
		err := prometheus.WriteToTextfile(s.metricsPath, s.registry)
		if err != nil {
			logger.Errorf("Writing metrics to %s: %v", s.metricsPath,
				err)
		}
	}
}

// geoResolver builds the country resolver on first use. When geoip is
// disabled every address resolves from cache only, which for a fresh cache
// means XX.
func (s *session) geoResolver(ctx context.Context) (*geoip.Resolver, error) {
	if s.resolver != nil {
		return s.resolver, nil
	}

	gc := s.cfg.GeoIP
	if gc.CachePath != "" {
		disk, err := geoip.OpenDiskCache(ctx, gc.CachePath, gc.CacheTTL)
		if err != nil {
			return nil, err
		}
		if n, err := disk.Purge(ctx); err != nil {
			logger.Warnf("Purging geoip cache: %v", err)
		} else if n > 0 {
			logger.Debugf("Purged %d expired geoip entries", n)
		}
		s.disk = disk
	}

	var fetcher geoip.CountryFetcher
	if !gc.Disabled {
		fetcher = geoip.NewClient(gc.URL, gc.Token, gc.Timeout,
			*gc.RateLimit)
	}

	s.resolver = geoip.NewResolver(fetcher, s.disk, gc.Timeout)
	s.registry.MustRegister(s.resolver)

	return s.resolver, nil
}

// loadRelays reads relays from a raw consensus file when one is given, and
// from the snapshot otherwise.
func (s *session) loadRelays(c *cli.Context) ([]*model.Relay, error) {
	if path := c.String("consensus"); path != "" {
		relays, err := consensus.ParseFile(path)
		if err != nil {
			return nil, err
		}
		logger.Infof("Loaded %d relays from consensus %s", len(relays),
			path)
		return relays, nil
	}

	path := s.cfg.Consensus.Snapshot
	if p := c.String("snapshot"); p != "" {
		path = p
	}
	snap, err := store.LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	if len(snap.Relays) == 0 {
		return nil, fmt.Errorf("no relays in %s; run fetch first", path)
	}
	logger.Infof("Loaded %d relays from snapshot %s (updated %s)",
		len(snap.Relays), path, snap.UpdatedAt.Format("2006-01-02 15:04"))

	return snap.ToRelays(), nil
}

// newSelector seeds a selector from --seed, then the config, then the clock.
func (s *session) newSelector(c *cli.Context,
	relays []*model.Relay) *pathsel.Selector {

	seed := s.cfg.Experiment.Seed
	if c.IsSet("seed") {
		seed = c.Int64("seed")
	}
	if seed == 0 {
		return pathsel.NewSelector(relays, nil)
	}
	logger.Debugf("Using seed %d", seed)
	return pathsel.NewSelector(relays, pathsel.NewSeededRand(seed))
}

// record updates the metrics for a finished run.
func (s *session) record(agg *experiment.Aggregate) {
	rep := agg.Report()
	algo := string(rep.Algorithm)

	s.circuits.WithLabelValues(algo).Add(float64(rep.NumCircuits))
	s.entropy.WithLabelValues(algo, "all").Set(rep.Entropy)
	for _, role := range rep.Roles {
		s.entropy.WithLabelValues(algo, role.Role.String()).Set(
			role.Entropy,
		)
	}
}

// snapshotFlags are shared by every command that reads relays.
var snapshotFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "snapshot",
		Usage: "relay snapshot written by fetch (default from config)",
	},
	cli.StringFlag{
		Name:  "consensus",
		Usage: "read relays from a raw consensus file instead",
	},
}

var logger btclog.Logger = btclog.Disabled

// setupLogging points every package logger at one stderr handler.
func setupLogging(levelName string) error {
	level, ok := btclog.LevelFromString(strings.ToLower(levelName))
	if !ok {
		return fmt.Errorf("unknown log level %q", levelName)
	}

	root := btclog.NewSLogger(btclog.NewDefaultHandler(os.Stderr))
	root.SetLevel(level)
	sub := func(tag string) btclog.Logger {
		l := root.WithPrefix(tag)
		l.SetLevel(level)
		return l
	}

	logger = sub("TPSM")
	pathsel.UseLogger(sub(pathsel.Subsystem))
	experiment.UseLogger(sub(experiment.Subsystem))
	consensus.UseLogger(sub(consensus.Subsystem))
	geoip.UseLogger(sub(geoip.Subsystem))
	vantage.UseLogger(sub(vantage.Subsystem))

	return nil
}
