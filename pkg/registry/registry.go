// Package registry implements the compile-time callable table and asset
// resolver used to run a named operation remotely. Because the controller
// and the bubble are the same compiled binary (see the module-level doc
// comment in cmd/tether), a callable never needs to travel over the wire
// at all: only its registered name and its arguments do.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tetherhq/tether/pkg/codec"
)

// Func is a registered operation. Args is the pencoded argument tuple sent
// by CALL; the returned Value becomes the RET payload, and a non-nil error
// becomes EXC.
type Func func(ctx context.Context, args codec.Value) (codec.Value, error)

// Registry maps callable names to their implementations. A zero Registry
// is ready to use; the package-level Default registry is what
// internal/facts and user code register into unless a bubble is
// constructed with its own.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds fn under name, panicking on a duplicate name: a collision
// here is a programming error caught at init time, not a runtime
// condition to recover from.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs == nil {
		r.funcs = make(map[string]Func)
	}
	if _, exists := r.funcs[name]; exists {
		panic(fmt.Sprintf("registry: callable %q already registered", name))
	}
	r.funcs[name] = fn
}

// Lookup returns the callable registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns every registered callable name, sorted, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Default is the process-wide registry that internal/facts and any other
// package's init() registers its callables into.
var Default = New()

// Register is a convenience wrapper around Default.Register.
func Register(name string, fn Func) { Default.Register(name, fn) }
