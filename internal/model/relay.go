package model

import (
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// UnknownCountry is how an unresolved country renders on a relay.
	UnknownCountry = "XX"

	// UnknownCountryKey is the bookkeeping key used by frequency tables
	// for a hop whose country came back empty.
	UnknownCountryKey = "UNKNOWN"
)

// Relay is a single relay descriptor taken from a consensus document.
//
// Everything except the country is fixed at ingestion. The country starts
// unresolved and is filled in lazily by whoever owns the geo lookup.
type Relay struct {
	Fingerprint string
	Nickname    string
	Address     string
	Bandwidth   int64
	Flags       Flags
	ExitPolicy  string
	ORPort      int
	DirPort     int
	Published   time.Time
	Version     string

	country fn.Option[string]
}

// Country returns the two-letter country code, or UnknownCountry when the
// relay has not been resolved yet.
func (r *Relay) Country() string {
	return r.country.UnwrapOr(UnknownCountry)
}

// CountryResolved reports whether a real country code is set.
func (r *Relay) CountryResolved() bool {
	return r.country.IsSome()
}

// SetCountry records the country for the relay as the resolver gave it,
// minus surrounding space. Empty values and the UnknownCountry sentinel (in
// any case) leave the relay unresolved.
func (r *Relay) SetCountry(code string) {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, UnknownCountry) {
		r.country = fn.None[string]()
		return
	}
	r.country = fn.Some(code)
}

// RejectsAllTraffic reports whether the exit policy summary refuses every
// destination. A missing policy accepts.
func (r *Relay) RejectsAllTraffic() bool {
	policy := strings.ToLower(strings.TrimSpace(r.ExitPolicy))
	if policy == "" {
		return false
	}
	return strings.HasPrefix(policy, "reject *:*") || policy == "reject 1-65535"
}
