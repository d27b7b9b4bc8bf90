package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConsensusURL     = "http://128.31.0.34:9131/tor/status-vote/current/consensus"
	DefaultConsensusTimeout = 2 * time.Minute
	DefaultSnapshotPath     = "relays.yaml"
	DefaultGeoIPURL         = "https://ipinfo.io"
	DefaultGeoIPTimeout     = 2 * time.Second
	DefaultGeoIPCacheTTL    = 30 * 24 * time.Hour
	DefaultGeoIPRateLimit   = 10
	DefaultCircuits         = 20
	DefaultAlpha            = 0.5
	DefaultBeta             = 0.2
	DefaultAlgorithm        = "both"
	DefaultSTUNTimeout      = 3 * time.Second
)

// DefaultSTUNServers are asked when the config names none.
var DefaultSTUNServers = []string{
	"stun.l.google.com:19302",
	"stun1.l.google.com:19302",
}

// Environment variables that override the file.
const (
	EnvConsensusURL = "TORPATHSIM_CONSENSUS_URL"
	EnvGeoIPURL     = "TORPATHSIM_GEOIP_URL"
	EnvGeoIPToken   = "TORPATHSIM_GEOIP_TOKEN"
	EnvGeoIPCache   = "TORPATHSIM_GEOIP_CACHE"
	EnvSeed         = "TORPATHSIM_SEED"
)

// Config holds every setting of the simulator.
type Config struct {
	Consensus  ConsensusConfig  `yaml:"consensus"`
	GeoIP      GeoIPConfig      `yaml:"geoip"`
	Experiment ExperimentConfig `yaml:"experiment"`
	Vantage    VantageConfig    `yaml:"vantage"`
}

// ConsensusConfig says where relays come from.
type ConsensusConfig struct {
	URL      string        `yaml:"url"`
	Snapshot string        `yaml:"snapshot"`
	Timeout  time.Duration `yaml:"timeout"`
}

// GeoIPConfig configures country resolution. RateLimit is in requests per
// second; an explicit zero removes the limit.
type GeoIPConfig struct {
	Disabled  bool          `yaml:"disabled,omitempty"`
	URL       string        `yaml:"url"`
	Token     string        `yaml:"token,omitempty"`
	CachePath string        `yaml:"cache_path,omitempty"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit *float64      `yaml:"rate_limit"`
}

// ExperimentConfig holds the simulation defaults. Alpha and Beta are
// pointers because zero is a meaningful setting.
type ExperimentConfig struct {
	Circuits  int      `yaml:"circuits"`
	Alpha     *float64 `yaml:"alpha"`
	Beta      *float64 `yaml:"beta"`
	Seed      int64    `yaml:"seed,omitempty"`
	Algorithm string   `yaml:"algorithm"`
}

// VantageConfig lists the STUN servers used to find the client's address.
type VantageConfig struct {
	STUNServers []string      `yaml:"stun_servers"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks ranges and enumerations.
func Validate(cfg Config) error {
	if cfg.Consensus.URL == "" && cfg.Consensus.Snapshot == "" {
		return fmt.Errorf("consensus.url or consensus.snapshot is required")
	}
	if !cfg.GeoIP.Disabled && cfg.GeoIP.URL == "" {
		return fmt.Errorf("geoip.url is required unless geoip.disabled")
	}
	if v := cfg.GeoIP.RateLimit; v != nil && *v < 0 {
		return fmt.Errorf("geoip.rate_limit must not be negative")
	}
	if cfg.Experiment.Circuits < 0 {
		return fmt.Errorf("experiment.circuits must not be negative")
	}
	if v := cfg.Experiment.Alpha; v != nil && (*v < 0 || *v > 1) {
		return fmt.Errorf("experiment.alpha must be within [0, 1]")
	}
	if v := cfg.Experiment.Beta; v != nil && (*v < 0 || *v > 1) {
		return fmt.Errorf("experiment.beta must be within [0, 1]")
	}
	switch strings.ToLower(cfg.Experiment.Algorithm) {
	case "", "baseline", "geo", "both":
	default:
		return fmt.Errorf("experiment.algorithm must be baseline, geo "+
			"or both, got %q", cfg.Experiment.Algorithm)
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.Consensus.URL == "" {
		cfg.Consensus.URL = DefaultConsensusURL
	}
	if cfg.Consensus.Snapshot == "" {
		cfg.Consensus.Snapshot = DefaultSnapshotPath
	}
	if cfg.Consensus.Timeout == 0 {
		cfg.Consensus.Timeout = DefaultConsensusTimeout
	}

	if cfg.GeoIP.URL == "" {
		cfg.GeoIP.URL = DefaultGeoIPURL
	}
	if cfg.GeoIP.CacheTTL == 0 {
		cfg.GeoIP.CacheTTL = DefaultGeoIPCacheTTL
	}
	if cfg.GeoIP.Timeout == 0 {
		cfg.GeoIP.Timeout = DefaultGeoIPTimeout
	}
	if cfg.GeoIP.RateLimit == nil {
		rps := float64(DefaultGeoIPRateLimit)
		cfg.GeoIP.RateLimit = &rps
	}

	if cfg.Experiment.Circuits == 0 {
		cfg.Experiment.Circuits = DefaultCircuits
	}
	if cfg.Experiment.Alpha == nil {
		alpha := DefaultAlpha
		cfg.Experiment.Alpha = &alpha
	}
	if cfg.Experiment.Beta == nil {
		beta := DefaultBeta
		cfg.Experiment.Beta = &beta
	}
	if cfg.Experiment.Algorithm == "" {
		cfg.Experiment.Algorithm = DefaultAlgorithm
	}

	if len(cfg.Vantage.STUNServers) == 0 {
		cfg.Vantage.STUNServers = append([]string(nil),
			DefaultSTUNServers...)
	}
	if cfg.Vantage.Timeout == 0 {
		cfg.Vantage.Timeout = DefaultSTUNTimeout
	}
}

// LoadDotEnv loads path into the process environment if it exists.
// Variables already set are left alone.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err == nil {
		return godotenv.Load(path)
	}
	return nil
}

// ApplyEnv overrides cfg with the TORPATHSIM_* variables returned by
// getenv. Empty values are ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvConsensusURL); v != "" {
		cfg.Consensus.URL = v
	}
	if v := getenv(EnvGeoIPURL); v != "" {
		cfg.GeoIP.URL = v
	}
	if v := getenv(EnvGeoIPToken); v != "" {
		cfg.GeoIP.Token = v
	}
	if v := getenv(EnvGeoIPCache); v != "" {
		cfg.GeoIP.CachePath = v
	}
	if v := getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSeed, err)
		}
		cfg.Experiment.Seed = seed
	}
	return nil
}
