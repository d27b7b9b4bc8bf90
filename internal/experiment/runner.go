package experiment

import (
	"fmt"
	"strings"

	"torpathsim/internal/model"
)

// Algorithm names a path-selection algorithm.
type Algorithm string

const (
	AlgorithmBaseline Algorithm = "baseline"
	AlgorithmGeo      Algorithm = "geo"
)

// ParseAlgorithm accepts "baseline", "geo" and "geo-aware", case-insensitive.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "baseline":
		return AlgorithmBaseline, nil
	case "geo", "geo-aware", "geoaware":
		return AlgorithmGeo, nil
	default:
		return "", fmt.Errorf("unknown algorithm %q", s)
	}
}

// CircuitSelector is the part of a path selector the runner drives.
type CircuitSelector interface {
	SelectBaseline(circuitID int) (*model.Circuit, error)
	SelectGeoAware(circuitID int, alpha, beta float64) (*model.Circuit, error)
}

// Resolver maps an IP address to a two-letter country code, or "XX" when
// the lookup fails. Whatever it returns is treated as authoritative.
type Resolver func(ip string) string

// Params configures one experiment run.
type Params struct {
	NumCircuits int
	Algorithm   Algorithm
	Alpha       float64
	Beta        float64
}

// Run builds NumCircuits circuits with the chosen algorithm and aggregates
// which relays and countries were used per role. Circuit ids count up from
// 0. The first selection error aborts the run.
//
// Hops with no resolved country are looked up through resolve and the
// answer is written back onto the relay, so a relay is resolved at most once
// across runs sharing the same pool.
func Run(sel CircuitSelector, resolve Resolver,
	params Params) (*Aggregate, error) {

	if params.NumCircuits < 0 {
		return nil, fmt.Errorf("negative circuit count %d",
			params.NumCircuits)
	}

	agg := NewAggregate(params)
	for i := 0; i < params.NumCircuits; i++ {
		c, err := selectCircuit(sel, i, params)
		if err != nil {
			return nil, fmt.Errorf("circuit %d: %w", i, err)
		}

		for _, role := range model.Roles {
			hop := c.Hop(role)
			agg.Record(role, hop.Fingerprint, effectiveCountry(hop, resolve))
		}
		agg.Bandwidths = append(agg.Bandwidths, c.MinBandwidth)
	}

	log.Infof("Finished %s run: circuits=%d distinct_relays=%d "+
		"countries=%d", params.Algorithm, params.NumCircuits,
		len(agg.AllNodes), len(agg.AllCountries))

	return agg, nil
}

// Compare runs the baseline and the geo-aware algorithm back to back over
// the same selector, in that order.
func Compare(sel CircuitSelector, resolve Resolver,
	params Params) (*Aggregate, *Aggregate, error) {

	params.Algorithm = AlgorithmBaseline
	baseline, err := Run(sel, resolve, params)
	if err != nil {
		return nil, nil, fmt.Errorf("baseline: %w", err)
	}

	params.Algorithm = AlgorithmGeo
	geo, err := Run(sel, resolve, params)
	if err != nil {
		return nil, nil, fmt.Errorf("geo: %w", err)
	}

	return baseline, geo, nil
}

func selectCircuit(sel CircuitSelector, id int,
	params Params) (*model.Circuit, error) {

	switch params.Algorithm {
	case AlgorithmBaseline:
		return sel.SelectBaseline(id)
	case AlgorithmGeo:
		return sel.SelectGeoAware(id, params.Alpha, params.Beta)
	default:
		return nil, fmt.Errorf("unknown algorithm %q", params.Algorithm)
	}
}

// effectiveCountry returns the relay's country, resolving and caching it on
// the relay when it is still unknown.
func effectiveCountry(r *model.Relay, resolve Resolver) string {
	if r.CountryResolved() {
		return r.Country()
	}

	if r.Address == "" || resolve == nil {
		return model.UnknownCountry
	}

	cc := strings.TrimSpace(resolve(r.Address))
	r.SetCountry(cc)
	log.Tracef("Resolved %s (%s) to %q", r.Nickname, r.Address, cc)

	switch {
	case r.CountryResolved():
		return r.Country()

	// An empty answer is kept empty so it lands in the UNKNOWN bucket
	// rather than being folded into XX.
	case cc == "":
		return ""

	default:
		return model.UnknownCountry
	}
}
