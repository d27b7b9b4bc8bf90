package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Consensus.URL != DefaultConsensusURL {
		t.Fatalf("consensus.url=%q", cfg.Consensus.URL)
	}
	if cfg.GeoIP.URL != DefaultGeoIPURL || cfg.GeoIP.Timeout != DefaultGeoIPTimeout {
		t.Fatalf("geoip defaults not set: %+v", cfg.GeoIP)
	}
	if cfg.Experiment.Circuits != DefaultCircuits {
		t.Fatalf("circuits=%d", cfg.Experiment.Circuits)
	}
	if *cfg.Experiment.Alpha != DefaultAlpha || *cfg.Experiment.Beta != DefaultBeta {
		t.Fatalf("alpha=%v beta=%v", *cfg.Experiment.Alpha, *cfg.Experiment.Beta)
	}
	if len(cfg.Vantage.STUNServers) == 0 {
		t.Fatalf("stun servers not set")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestApplyDefaults_KeepsExplicitZero(t *testing.T) {
	t.Parallel()

	zero := 0.0
	cfg := Config{Experiment: ExperimentConfig{Alpha: &zero}}
	ApplyDefaults(&cfg)

	if *cfg.Experiment.Alpha != 0 {
		t.Fatalf("alpha=%v", *cfg.Experiment.Alpha)
	}
	if *cfg.GeoIP.RateLimit != DefaultGeoIPRateLimit {
		t.Fatalf("rate_limit=%v", *cfg.GeoIP.RateLimit)
	}
}

func TestLoad_ZeroRateLimitIsUnlimited(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "torpathsim.yaml")
	if err := os.WriteFile(path, []byte("geoip:\n  rate_limit: 0\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GeoIP.RateLimit == nil || *cfg.GeoIP.RateLimit != 0 {
		t.Fatalf("rate_limit=%v, want explicit 0 kept", cfg.GeoIP.RateLimit)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("zero rate limit rejected: %v", err)
	}

	negative := -1.0
	cfg.GeoIP.RateLimit = &negative
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected rate_limit error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	var cfg Config
	ApplyDefaults(&cfg)

	bad := cfg
	alpha := 1.5
	bad.Experiment.Alpha = &alpha
	if err := Validate(bad); err == nil {
		t.Fatalf("expected alpha error")
	}

	bad = cfg
	bad.Experiment.Algorithm = "random"
	if err := Validate(bad); err == nil {
		t.Fatalf("expected algorithm error")
	}

	bad = cfg
	bad.GeoIP.URL = ""
	if err := Validate(bad); err == nil {
		t.Fatalf("expected geoip.url error")
	}
	bad.GeoIP.Disabled = true
	if err := Validate(bad); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "torpathsim.yaml")

	beta := 0.0
	cfg := Config{
		GeoIP:      GeoIPConfig{CacheTTL: time.Hour},
		Experiment: ExperimentConfig{Circuits: 500, Beta: &beta},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode=%o", info.Mode().Perm())
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Experiment.Circuits != 500 {
		t.Fatalf("circuits=%d", out.Experiment.Circuits)
	}
	if *out.Experiment.Beta != 0 {
		t.Fatalf("beta=%v", *out.Experiment.Beta)
	}
	if out.GeoIP.CacheTTL != time.Hour {
		t.Fatalf("cache_ttl=%v", out.GeoIP.CacheTTL)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvConsensusURL: "http://mirror/consensus",
		EnvGeoIPToken:   "tok",
		EnvGeoIPCache:   "/tmp/geo.db",
		EnvSeed:         "42",
	}

	var cfg Config
	ApplyDefaults(&cfg)
	if err := ApplyEnv(&cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Consensus.URL != "http://mirror/consensus" {
		t.Fatalf("consensus.url=%q", cfg.Consensus.URL)
	}
	if cfg.GeoIP.URL != DefaultGeoIPURL {
		t.Fatalf("geoip.url=%q", cfg.GeoIP.URL)
	}
	if cfg.GeoIP.Token != "tok" || cfg.GeoIP.CachePath != "/tmp/geo.db" {
		t.Fatalf("geoip=%+v", cfg.GeoIP)
	}
	if cfg.Experiment.Seed != 42 {
		t.Fatalf("seed=%d", cfg.Experiment.Seed)
	}

	env[EnvSeed] = "soon"
	if err := ApplyEnv(&cfg, func(k string) string { return env[k] }); err == nil {
		t.Fatalf("expected seed error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, ".env")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("missing file: %v", err)
	}

	t.Setenv(EnvGeoIPToken, "from-shell")
	data := EnvGeoIPToken + "=from-file\n" + EnvGeoIPURL + "=http://geo.test\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(EnvGeoIPURL, "")
	os.Unsetenv(EnvGeoIPURL)

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv(EnvGeoIPToken); got != "from-shell" {
		t.Fatalf("token=%q", got)
	}
	if got := os.Getenv(EnvGeoIPURL); got != "http://geo.test" {
		t.Fatalf("url=%q", got)
	}
}
