package model

import "strings"

// Flags is the set of capability flags a directory authority assigned to a
// relay. Only the flags the simulator cares about are kept.
type Flags uint16

const (
	FlagAuthority Flags = 1 << iota
	FlagBadExit
	FlagExit
	FlagFast
	FlagGuard
	FlagHSDir
	FlagRunning
	FlagStable
	FlagV2Dir
	FlagValid
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagAuthority, "Authority"},
	{FlagBadExit, "BadExit"},
	{FlagExit, "Exit"},
	{FlagFast, "Fast"},
	{FlagGuard, "Guard"},
	{FlagHSDir, "HSDir"},
	{FlagRunning, "Running"},
	{FlagStable, "Stable"},
	{FlagV2Dir, "V2Dir"},
	{FlagValid, "Valid"},
}

// ParseFlags resolves a list of flag names. Unknown names are ignored.
func ParseFlags(names []string) Flags {
	var f Flags
	for _, n := range names {
		if flag, ok := LookupFlag(n); ok {
			f |= flag
		}
	}
	return f
}

// LookupFlag returns the flag with the given name (case-insensitive).
func LookupFlag(name string) (Flags, bool) {
	name = strings.TrimSpace(name)
	for _, entry := range flagNames {
		if strings.EqualFold(entry.name, name) {
			return entry.flag, true
		}
	}
	return 0, false
}

// Has reports whether every flag in want is set.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// Names lists the set flags in canonical order.
func (f Flags) Names() []string {
	out := make([]string, 0, len(flagNames))
	for _, entry := range flagNames {
		if f.Has(entry.flag) {
			out = append(out, entry.name)
		}
	}
	return out
}

func (f Flags) String() string {
	return strings.Join(f.Names(), " ")
}
