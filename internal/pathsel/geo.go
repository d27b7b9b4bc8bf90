package pathsel

import "torpathsim/internal/model"

// guardGeoWeights weights each guard candidate by bandwidth, boosted by
// (1+alpha) when its country differs from the exit's. Countries compare by
// their rendered code, so two unresolved relays count as the same country.
func guardGeoWeights(pool []*model.Relay, exit *model.Relay,
	alpha float64) []float64 {

	exitCountry := exit.Country()
	weights := make([]float64, len(pool))
	for i, r := range pool {
		if r.Bandwidth <= 0 {
			continue
		}
		bw := float64(r.Bandwidth)
		if r.Country() == exitCountry {
			weights[i] = bw
			continue
		}
		weights[i] = bw * (1 + alpha)
	}
	return weights
}

// middleGeoWeights weights each middle candidate by bandwidth*(1+beta*c),
// where c is 3, 2 or 1 as the candidate shares its country with none, one or
// both of guard and exit.
func middleGeoWeights(pool []*model.Relay, guard, exit *model.Relay,
	beta float64) []float64 {

	guardCountry := guard.Country()
	exitCountry := exit.Country()
	weights := make([]float64, len(pool))
	for i, r := range pool {
		if r.Bandwidth <= 0 {
			continue
		}
		weights[i] = float64(r.Bandwidth) *
			(1 + beta*diversityFactor(r.Country(), guardCountry, exitCountry))
	}
	return weights
}

func diversityFactor(country, guardCountry, exitCountry string) float64 {
	shared := 0
	if country == guardCountry {
		shared++
	}
	if country == exitCountry {
		shared++
	}
	return float64(3 - shared)
}
