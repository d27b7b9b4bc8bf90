package pathsel

import (
	"math"
	"time"

	"torpathsim/internal/addrutil"
	"torpathsim/internal/model"
)

// Selector builds three-hop circuits from a fixed relay pool.
//
// Every selection re-filters the whole pool; the selector keeps no state
// between calls other than its random source.
type Selector struct {
	relays []*model.Relay
	rng    Rand
}

// NewSelector creates a selector over relays. The slice order is the
// registry order used for every cumulative-weight walk. A nil rng is
// replaced by one seeded from the clock.
func NewSelector(relays []*model.Relay, rng Rand) *Selector {
	if rng == nil {
		rng = NewSeededRand(time.Now().UnixNano())
	}

	pool := make([]*model.Relay, 0, len(relays))
	for _, r := range relays {
		if r != nil {
			pool = append(pool, r)
		}
	}

	return &Selector{
		relays: pool,
		rng:    rng,
	}
}

// Relays returns the pool the selector draws from.
func (s *Selector) Relays() []*model.Relay {
	return s.relays
}

// SelectBaseline builds a circuit with bandwidth-weighted draws for every
// hop. The exit is picked first, then a guard outside the exit's address
// group, then a middle outside the guard's and exit's groups.
func (s *Selector) SelectBaseline(circuitID int) (*model.Circuit, error) {
	exit, err := s.selectExit()
	if err != nil {
		return nil, err
	}

	guards := s.guardCandidates(exit)
	if len(guards) == 0 {
		return nil, &NoSuitableCandidatesError{Role: model.RoleGuard}
	}
	guard, err := pickWeighted(s.rng, guards, bandwidthWeights(guards))
	if err != nil {
		return nil, err
	}

	middles := s.middleCandidates(guard, exit)
	if len(middles) == 0 {
		return nil, &NoSuitableCandidatesError{Role: model.RoleMiddle}
	}
	middle, err := pickWeighted(s.rng, middles, bandwidthWeights(middles))
	if err != nil {
		return nil, err
	}

	c := model.NewCircuit(circuitID, guard, middle, exit)
	log.Debugf("Baseline circuit %d: guard=%s middle=%s exit=%s "+
		"min_bw=%d", circuitID, guard.Nickname, middle.Nickname,
		exit.Nickname, c.MinBandwidth)

	return c, nil
}

// SelectGeoAware builds a circuit whose guard and middle draws favour
// relays in a different country from the hops already chosen. alpha scales
// the bonus for a guard outside the exit's country, beta the bonus for a
// middle that shares no country with guard or exit. Both are clamped to
// [0, 1].
func (s *Selector) SelectGeoAware(circuitID int, alpha,
	beta float64) (*model.Circuit, error) {

	alpha = clampUnit(alpha)
	beta = clampUnit(beta)

	exit, err := s.selectExit()
	if err != nil {
		return nil, err
	}

	guards := s.guardCandidates(exit)
	if len(guards) == 0 {
		return nil, &NoSuitableCandidatesError{Role: model.RoleGuard}
	}
	guard, err := pickWeighted(
		s.rng, guards, guardGeoWeights(guards, exit, alpha),
	)
	if err != nil {
		return nil, err
	}

	middles := s.middleCandidates(guard, exit)
	if len(middles) == 0 {
		return nil, &NoSuitableCandidatesError{Role: model.RoleMiddle}
	}
	middle, err := pickWeighted(
		s.rng, middles, middleGeoWeights(middles, guard, exit, beta),
	)
	if err != nil {
		return nil, err
	}

	c := model.NewCircuit(circuitID, guard, middle, exit)
	log.Debugf("Geo-aware circuit %d (alpha=%.2f beta=%.2f): "+
		"guard=%s/%s middle=%s/%s exit=%s/%s min_bw=%d", circuitID,
		alpha, beta, guard.Nickname, guard.Country(), middle.Nickname,
		middle.Country(), exit.Nickname, exit.Country(), c.MinBandwidth)

	return c, nil
}

func (s *Selector) selectExit() (*model.Relay, error) {
	exits := s.exitCandidates()
	if len(exits) == 0 {
		return nil, &NoSuitableCandidatesError{Role: model.RoleExit}
	}
	return pickWeighted(s.rng, exits, bandwidthWeights(exits))
}

// exitCandidates returns Fast relays whose exit policy does not reject
// everything.
func (s *Selector) exitCandidates() []*model.Relay {
	var out []*model.Relay
	for _, r := range s.relays {
		if !r.Flags.Has(model.FlagFast) || r.RejectsAllTraffic() {
			continue
		}
		out = append(out, r)
	}
	log.Tracef("Exit pool: %d of %d relays", len(out), len(s.relays))
	return out
}

// guardCandidates returns Guard relays outside the exit's address group.
func (s *Selector) guardCandidates(exit *model.Relay) []*model.Relay {
	var out []*model.Relay
	for _, r := range s.relays {
		if !r.Flags.Has(model.FlagGuard) {
			continue
		}
		if r == exit || addrutil.SameGroup(r.Address, exit.Address) {
			continue
		}
		out = append(out, r)
	}
	log.Tracef("Guard pool: %d of %d relays", len(out), len(s.relays))
	return out
}

// middleCandidates returns Fast relays outside both the guard's and the
// exit's address groups.
func (s *Selector) middleCandidates(guard,
	exit *model.Relay) []*model.Relay {

	var out []*model.Relay
	for _, r := range s.relays {
		if !r.Flags.Has(model.FlagFast) {
			continue
		}
		if r == guard || r == exit {
			continue
		}
		if addrutil.SameGroup(r.Address, exit.Address) ||
			addrutil.SameGroup(r.Address, guard.Address) {

			continue
		}
		out = append(out, r)
	}
	log.Tracef("Middle pool: %d of %d relays", len(out), len(s.relays))
	return out
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
