// Package group implements parallel fan-out across several tunnels at
// once, plus the set-algebra operations used to combine host sets. It
// uses errgroup.WithContext(ctx) to run the same operation against N
// independently failing tunnels and collect every result, rather than
// stopping at the first error.
package group

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tetherhq/tether/internal/transport"
	"github.com/tetherhq/tether/pkg/codec"
	"github.com/tetherhq/tether/pkg/tunnel"
)

// Result is one tunnel's outcome from a Group operation: exactly one of
// Value or Err is set.
type Result struct {
	Host  string
	Value codec.Value
	Err   error
}

// GroupResult is the aggregate outcome of a Group.Call, split into
// successes and failures.
type GroupResult struct {
	results map[string]Result
	order   []string
}

// NewGroupResult builds a GroupResult from a completed batch of per-host
// results, for callers (such as pkg/queue's Group-target join operation)
// that fan a Group operation out through their own scheduling and need to
// assemble the same aggregate shape Group.Call and Group.Connect return.
func NewGroupResult(results []Result) *GroupResult {
	return newGroupResult(results)
}

func newGroupResult(results []Result) *GroupResult {
	gr := &GroupResult{results: make(map[string]Result, len(results)), order: make([]string, 0, len(results))}
	for _, r := range results {
		gr.results[r.Host] = r
		gr.order = append(gr.order, r.Host)
	}
	return gr
}

// Successful returns every host that completed without error, in the
// order the Group iterated them.
func (g *GroupResult) Successful() []Result {
	out := make([]Result, 0, len(g.order))
	for _, h := range g.order {
		if r := g.results[h]; r.Err == nil {
			out = append(out, r)
		}
	}
	return out
}

// Failures returns every host that errored.
func (g *GroupResult) Failures() []Result {
	out := make([]Result, 0, len(g.order))
	for _, h := range g.order {
		if r := g.results[h]; r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Get returns the result for a specific host.
func (g *GroupResult) Get(host string) (Result, bool) {
	r, ok := g.results[host]
	return r, ok
}

// RaiseFailures returns the first failure's error if any host failed, nil
// otherwise, for callers that want all-or-nothing semantics.
func (g *GroupResult) RaiseFailures() error {
	for _, h := range g.order {
		if r := g.results[h]; r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// Group is an unordered collection of tunnels operated on together: every
// Call fans out to all members concurrently and blocks until they have
// all replied or failed.
type Group struct {
	mu      sync.RWMutex
	tunnels map[string]*tunnel.Tunnel
}

// New builds a Group from already-constructed tunnels, keyed by host.
func New(tunnels ...*tunnel.Tunnel) *Group {
	g := &Group{tunnels: make(map[string]*tunnel.Tunnel, len(tunnels))}
	for _, t := range tunnels {
		g.tunnels[t.Host] = t
	}
	return g
}

// NewFromHosts builds a Group by constructing one Tunnel per host with
// launcher and cfg shared across all of them — the common case of "run
// this against every host in this list."
func NewFromHosts(hosts []string, launcher transport.Launcher, cfg tunnel.Config) *Group {
	tunnels := make([]*tunnel.Tunnel, len(hosts))
	for i, h := range hosts {
		tunnels[i] = tunnel.New(h, launcher, cfg)
	}
	return New(tunnels...)
}

// Hosts returns every member host, unordered.
func (g *Group) Hosts() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	hosts := make([]string, 0, len(g.tunnels))
	for h := range g.tunnels {
		hosts = append(hosts, h)
	}
	return hosts
}

// Tunnel returns the member tunnel for host, if any — used by callers
// (such as pkg/queue) that need to schedule each member's operation
// individually rather than through Group's own fan-out.
func (g *Group) Tunnel(host string) (*tunnel.Tunnel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.tunnels[host]
	return t, ok
}

// Connect dials every member tunnel concurrently and lets every dial
// attempt finish, returning a GroupResult with one entry per member so a
// caller can inspect partial connectivity.
func (g *Group) Connect(ctx context.Context) *GroupResult {
	g.mu.RLock()
	tunnels := make([]*tunnel.Tunnel, 0, len(g.tunnels))
	for _, t := range g.tunnels {
		tunnels = append(tunnels, t)
	}
	g.mu.RUnlock()

	results := make([]Result, len(tunnels))
	// Each child process lives as long as the context it was started with,
	// so the dials use ctx itself rather than an errgroup context that is
	// cancelled as soon as Wait returns.
	var eg errgroup.Group
	for i, t := range tunnels {
		i, t := i, t
		eg.Go(func() error {
			err := t.Connect(ctx)
			results[i] = Result{Host: t.Host, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return newGroupResult(results)
}

// Call invokes name on every member tunnel concurrently with the same
// args, blocking until every member has replied or failed before
// returning the combined result.
func (g *Group) Call(ctx context.Context, name string, args codec.Value) *GroupResult {
	g.mu.RLock()
	tunnels := make([]*tunnel.Tunnel, 0, len(g.tunnels))
	for _, t := range g.tunnels {
		tunnels = append(tunnels, t)
	}
	g.mu.RUnlock()

	results := make([]Result, len(tunnels))
	eg, ctx := errgroup.WithContext(ctx)
	for i, t := range tunnels {
		i, t := i, t
		eg.Go(func() error {
			val, err := t.Call(ctx, name, args)
			results[i] = Result{Host: t.Host, Value: val, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return newGroupResult(results)
}

// Close tears down every member tunnel concurrently, best-effort.
func (g *Group) Close() error {
	g.mu.RLock()
	tunnels := make([]*tunnel.Tunnel, 0, len(g.tunnels))
	for _, t := range g.tunnels {
		tunnels = append(tunnels, t)
	}
	g.mu.RUnlock()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for _, t := range tunnels {
		wg.Add(1)
		go func(t *tunnel.Tunnel) {
			defer wg.Done()
			if err := t.Close(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(t)
	}
	wg.Wait()
	return firstErr
}
