package addrutil

import "strings"

// SameGroup reports whether two relay addresses fall into the same
// "/16-equivalent" group: the first two dot-separated components must be
// textually equal. Addresses with fewer than two components (IPv6, empty,
// garbage) never match anything.
//
// This is deliberately a string comparison and not CIDR arithmetic, so
// "010.1.2.3" and "10.1.2.3" are in different groups.
func SameGroup(a, b string) bool {
	ka, ok := GroupKey(a)
	if !ok {
		return false
	}
	kb, ok := GroupKey(b)
	if !ok {
		return false
	}
	return ka == kb
}

// GroupKey returns the "a.b" prefix that identifies the address group.
func GroupKey(addr string) (string, bool) {
	parts := strings.Split(addr, ".")
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) < 2 {
		return "", false
	}
	return parts[0] + "." + parts[1], true
}

// Host strips an optional port from "host:port" or "[v6]:port" and returns
// the bare host.
func Host(addr string) string {
	a := strings.TrimSpace(addr)
	if a == "" {
		return ""
	}
	if strings.HasPrefix(a, "[") {
		if end := strings.IndexByte(a, ']'); end > 0 {
			return a[1:end]
		}
		return strings.Trim(a, "[]")
	}
	// A single colon is IPv4 host:port; more than one is a bare IPv6.
	if strings.Count(a, ":") == 1 {
		return a[:strings.IndexByte(a, ':')]
	}
	return a
}
