package experiment

import (
	"torpathsim/internal/metrics"
	"torpathsim/internal/model"
)

// Aggregate collects what one experiment run selected. It is filled in once
// per circuit while the run is in progress and is read-only afterwards.
type Aggregate struct {
	NumCircuits int
	Algorithm   Algorithm
	Alpha       float64
	Beta        float64

	// Nodes holds the distinct fingerprints seen per role.
	Nodes    map[model.Role]map[string]struct{}
	AllNodes map[string]struct{}

	// Countries counts hop countries per role. Empty countries are
	// recorded under model.UnknownCountryKey.
	Countries    map[model.Role]map[string]int
	AllCountries map[string]int

	// Bandwidths is the minimum bandwidth of every circuit, in order.
	Bandwidths []int64
}

// NewAggregate returns an empty aggregate for a run with the given params.
func NewAggregate(params Params) *Aggregate {
	a := &Aggregate{
		NumCircuits:  params.NumCircuits,
		Algorithm:    params.Algorithm,
		Alpha:        params.Alpha,
		Beta:         params.Beta,
		Nodes:        make(map[model.Role]map[string]struct{}),
		AllNodes:     make(map[string]struct{}),
		Countries:    make(map[model.Role]map[string]int),
		AllCountries: make(map[string]int),
		Bandwidths:   make([]int64, 0, params.NumCircuits),
	}
	for _, role := range model.Roles {
		a.Nodes[role] = make(map[string]struct{})
		a.Countries[role] = make(map[string]int)
	}
	return a
}

// Record notes that a relay with the given fingerprint and country was used
// in role.
func (a *Aggregate) Record(role model.Role, fingerprint, country string) {
	a.Nodes[role][fingerprint] = struct{}{}
	a.AllNodes[fingerprint] = struct{}{}

	if country == "" {
		country = model.UnknownCountryKey
	}
	a.Countries[role][country]++
	a.AllCountries[country]++
}

// RoleSummary is the per-role part of a Report.
type RoleSummary struct {
	Role          model.Role
	DistinctNodes int
	Countries     int
	Entropy       float64
}

// Report condenses an aggregate into the numbers an experiment prints.
type Report struct {
	Algorithm     Algorithm
	NumCircuits   int
	DistinctNodes int
	Countries     int

	// Entropy is over every hop selection (3 per circuit); the per-role
	// entropies are over NumCircuits selections each.
	Entropy   float64
	Roles     []RoleSummary
	Bandwidth metrics.BandwidthSummary
}

// Report computes distinct-node counts, country entropies and a bandwidth
// summary.
func (a *Aggregate) Report() Report {
	r := Report{
		Algorithm:     a.Algorithm,
		NumCircuits:   a.NumCircuits,
		DistinctNodes: len(a.AllNodes),
		Countries:     len(a.AllCountries),
		Entropy: metrics.Entropy(
			a.AllCountries, len(model.Roles)*a.NumCircuits,
		),
		Bandwidth: metrics.SummarizeBandwidth(a.Bandwidths),
	}

	for _, role := range model.Roles {
		r.Roles = append(r.Roles, RoleSummary{
			Role:          role,
			DistinctNodes: len(a.Nodes[role]),
			Countries:     len(a.Countries[role]),
			Entropy: metrics.Entropy(
				a.Countries[role], a.NumCircuits,
			),
		})
	}

	return r
}

// CountryTables returns the overall and per-role frequency tables, ready for
// metrics.WriteCountryCSV.
func (a *Aggregate) CountryTables() []metrics.CountryTable {
	tables := []metrics.CountryTable{{
		Label: string(a.Algorithm) + "/all",
		Freq:  a.AllCountries,
		Total: len(model.Roles) * a.NumCircuits,
	}}
	for _, role := range model.Roles {
		tables = append(tables, metrics.CountryTable{
			Label: string(a.Algorithm) + "/" + role.String(),
			Freq:  a.Countries[role],
			Total: a.NumCircuits,
		})
	}
	return tables
}
