package geoip

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"torpathsim/internal/model"
)

// Lookup sources, used as the "source" label on the lookup counter.
const (
	SourceMemory = "memory"
	SourceDisk   = "disk"
	SourceRemote = "remote"
	SourceError  = "error"
)

// CountryFetcher resolves a single address remotely. *Client satisfies it.
type CountryFetcher interface {
	Country(ctx context.Context, ip string) (string, error)
}

// Resolver maps relay addresses to country codes. Answers are cached in
// memory for the life of the resolver and, when a DiskCache is attached, on
// disk across runs. Failed lookups yield model.UnknownCountry and are only
// cached in memory, so a later run retries them. A lookup that fails because
// the caller's context was cancelled is not cached at all.
//
// A Resolver is safe for concurrent use.
type Resolver struct {
	fetcher CountryFetcher
	disk    *DiskCache
	timeout time.Duration

	mu     sync.Mutex
	memory map[string]string

	lookups *prometheus.CounterVec
}

// NewResolver creates a resolver. fetcher may be nil for offline use, in
// which case anything not cached resolves to model.UnknownCountry. disk may
// be nil. timeout bounds each disk and remote lookup; zero means no bound.
func NewResolver(fetcher CountryFetcher, disk *DiskCache, timeout time.Duration) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		disk:    disk,
		timeout: timeout,
		memory:  make(map[string]string),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "torpathsim",
			Subsystem: "geoip",
			Name:      "lookups_total",
			Help:      "Country lookups by the cache level that answered.",
		}, []string{"source"}),
	}
}

// Lookup resolves ip without a caller deadline. Its signature matches
// experiment.Resolver.
func (r *Resolver) Lookup(ip string) string {
	return r.LookupContext(context.Background(), ip)
}

// LookupContext resolves ip, consulting memory, then disk, then the remote
// service.
func (r *Resolver) LookupContext(ctx context.Context, ip string) string {
	if ip == "" {
		return model.UnknownCountry
	}
	parent := ctx

	r.mu.Lock()
	country, ok := r.memory[ip]
	r.mu.Unlock()
	if ok {
		r.lookups.WithLabelValues(SourceMemory).Inc()
		return country
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if r.disk != nil {
		country, ok, err := r.disk.Get(ctx, ip)
		if err != nil {
			log.Warnf("GeoIP cache read for %s failed: %v", ip, err)
		}
		if ok {
			r.remember(ip, country)
			r.lookups.WithLabelValues(SourceDisk).Inc()
			return country
		}
	}

	if r.fetcher == nil {
		r.remember(ip, model.UnknownCountry)
		r.lookups.WithLabelValues(SourceError).Inc()
		return model.UnknownCountry
	}

	country, err := r.fetcher.Country(ctx, ip)
	if err != nil {
		r.lookups.WithLabelValues(SourceError).Inc()
		if parent.Err() != nil {
			log.Debugf("GeoIP lookup for %s abandoned: %v", ip, err)
			return model.UnknownCountry
		}
		log.Warnf("GeoIP lookup for %s failed: %v", ip, err)
		r.remember(ip, model.UnknownCountry)
		return model.UnknownCountry
	}

	log.Tracef("GeoIP %s -> %s", ip, country)
	r.remember(ip, country)
	r.lookups.WithLabelValues(SourceRemote).Inc()

	if r.disk != nil {
		if err := r.disk.Put(ctx, ip, country); err != nil {
			log.Warnf("GeoIP cache write for %s failed: %v", ip, err)
		}
	}

	return country
}

func (r *Resolver) remember(ip, country string) {
	r.mu.Lock()
	r.memory[ip] = country
	r.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (r *Resolver) Describe(ch chan<- *prometheus.Desc) {
	r.lookups.Describe(ch)
}

// Collect implements prometheus.Collector.
func (r *Resolver) Collect(ch chan<- prometheus.Metric) {
	r.lookups.Collect(ch)
}
