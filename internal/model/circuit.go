package model

// Role is the position a relay occupies in a circuit.
type Role string

const (
	RoleGuard  Role = "guard"
	RoleMiddle Role = "middle"
	RoleExit   Role = "exit"
)

// Roles lists the hop roles in circuit order.
var Roles = []Role{RoleGuard, RoleMiddle, RoleExit}

func (r Role) String() string { return string(r) }

// Circuit is a selected three-hop path. Hops are shared references into the
// relay pool, ordered guard, middle, exit.
type Circuit struct {
	ID           int
	Hops         [3]*Relay
	MinBandwidth int64
}

// NewCircuit builds a circuit and derives its minimum bandwidth.
func NewCircuit(id int, guard, middle, exit *Relay) *Circuit {
	c := &Circuit{
		ID:   id,
		Hops: [3]*Relay{guard, middle, exit},
	}
	c.MinBandwidth = c.ComputeMinBandwidth()
	return c
}

func (c *Circuit) Guard() *Relay  { return c.Hops[0] }
func (c *Circuit) Middle() *Relay { return c.Hops[1] }
func (c *Circuit) Exit() *Relay   { return c.Hops[2] }

// Hop returns the relay at the given role.
func (c *Circuit) Hop(role Role) *Relay {
	switch role {
	case RoleGuard:
		return c.Guard()
	case RoleMiddle:
		return c.Middle()
	case RoleExit:
		return c.Exit()
	}
	return nil
}

// Fingerprints returns the hop fingerprints in circuit order.
func (c *Circuit) Fingerprints() []string {
	out := make([]string, 0, len(c.Hops))
	for _, r := range c.Hops {
		if r != nil {
			out = append(out, r.Fingerprint)
		}
	}
	return out
}

// ComputeMinBandwidth returns the smallest hop bandwidth, or 0 when the
// circuit has no hops.
func (c *Circuit) ComputeMinBandwidth() int64 {
	var (
		lowest int64
		found  bool
	)
	for _, r := range c.Hops {
		if r == nil {
			continue
		}
		if !found || r.Bandwidth < lowest {
			lowest = r.Bandwidth
			found = true
		}
	}
	return lowest
}
