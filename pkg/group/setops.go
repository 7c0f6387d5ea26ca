package group

import "github.com/tetherhq/tether/pkg/tunnel"

// Union returns a new Group containing every tunnel present in either g or
// other, keeping g's tunnel instance when a host appears in both. Membership
// is decided by host name: two tunnels with the same Host are the same
// element.
func (g *Group) Union(other *Group) *Group {
	return g.setOp(other, func(a, b map[string]bool) map[string]bool {
		out := make(map[string]bool, len(a)+len(b))
		for h := range a {
			out[h] = true
		}
		for h := range b {
			out[h] = true
		}
		return out
	})
}

// Intersection returns a Group containing only hosts present in both g and
// other.
func (g *Group) Intersection(other *Group) *Group {
	return g.setOp(other, func(a, b map[string]bool) map[string]bool {
		out := make(map[string]bool)
		for h := range a {
			if b[h] {
				out[h] = true
			}
		}
		return out
	})
}

// Difference returns a Group containing hosts present in g but not in
// other.
func (g *Group) Difference(other *Group) *Group {
	return g.setOp(other, func(a, b map[string]bool) map[string]bool {
		out := make(map[string]bool)
		for h := range a {
			if !b[h] {
				out[h] = true
			}
		}
		return out
	})
}

// SymmetricDifference returns a Group containing hosts present in exactly
// one of g or other.
func (g *Group) SymmetricDifference(other *Group) *Group {
	return g.setOp(other, func(a, b map[string]bool) map[string]bool {
		out := make(map[string]bool)
		for h := range a {
			if !b[h] {
				out[h] = true
			}
		}
		for h := range b {
			if !a[h] {
				out[h] = true
			}
		}
		return out
	})
}

func (g *Group) setOp(other *Group, combine func(a, b map[string]bool) map[string]bool) *Group {
	g.mu.RLock()
	a := make(map[string]bool, len(g.tunnels))
	for h := range g.tunnels {
		a[h] = true
	}
	mine := g.tunnels
	g.mu.RUnlock()

	other.mu.RLock()
	b := make(map[string]bool, len(other.tunnels))
	for h := range other.tunnels {
		b[h] = true
	}
	theirs := other.tunnels
	other.mu.RUnlock()

	keep := combine(a, b)
	result := &Group{tunnels: make(map[string]*tunnel.Tunnel, len(keep))}
	for h := range keep {
		if t, ok := mine[h]; ok {
			result.tunnels[h] = t
		} else if t, ok := theirs[h]; ok {
			result.tunnels[h] = t
		}
	}
	return result
}
