package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	digest "github.com/opencontainers/go-digest"
)

// AssetResolver serves auxiliary data a registered Func declares it needs
// at call time, over the IMP opcode channel: arbitrary content addressed
// by digest, resolved with the same blocking/timeout semantics as a
// normal call.
type AssetResolver interface {
	// Resolve blocks until the asset named by key is available or ctx is
	// done, returning its content. A resolver that has nothing registered
	// under key must return an error rather than an empty byte slice, so
	// callers can distinguish "no such asset" from "empty asset".
	Resolve(ctx context.Context, key string) ([]byte, error)
}

// ImportTimeout is the default deadline a tunnel applies to an outstanding
// IMP request before giving up.
const ImportTimeout = 5 * time.Second

// DigestKey returns the content-addressed key an AssetStore indexes assets
// under.
func DigestKey(content []byte) string {
	return digest.FromBytes(content).String()
}

// AssetStore is an in-memory, content-addressed AssetResolver: assets are
// registered ahead of time (typically by a registered Func's init, or by
// the controller before a Call that needs them) and served to whichever
// side of the tunnel asks for them by digest key. Registration is also
// used under a human-readable alias, since a Func usually knows the name
// it needs ("model-weights.bin"), not the digest itself.
type AssetStore struct {
	mu      sync.RWMutex
	byKey   map[string][]byte
	waiters map[string][]chan struct{}
}

// NewAssetStore returns an empty AssetStore.
func NewAssetStore() *AssetStore {
	return &AssetStore{
		byKey:   make(map[string][]byte),
		waiters: make(map[string][]chan struct{}),
	}
}

// Put registers content under key, waking any goroutine blocked in
// Resolve(key). Re-registering the same key overwrites the previous
// content.
func (s *AssetStore) Put(key string, content []byte) {
	s.mu.Lock()
	s.byKey[key] = content
	waiters := s.waiters[key]
	delete(s.waiters, key)
	s.mu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}

// PutDigest registers content under its own digest, returning the key it
// was stored as — the common case for a Func that produces an asset other
// hosts will need on demand rather than shipping it eagerly.
func (s *AssetStore) PutDigest(content []byte) string {
	key := DigestKey(content)
	s.Put(key, content)
	return key
}

// Resolve implements AssetResolver, blocking up to ctx's deadline for key
// to be registered via Put.
func (s *AssetStore) Resolve(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	if content, ok := s.byKey[key]; ok {
		s.mu.RUnlock()
		return content, nil
	}
	ch := make(chan struct{})
	s.mu.RUnlock()

	s.mu.Lock()
	if content, ok := s.byKey[key]; ok {
		s.mu.Unlock()
		return content, nil
	}
	s.waiters[key] = append(s.waiters[key], ch)
	s.mu.Unlock()

	select {
	case <-ch:
		s.mu.RLock()
		defer s.mu.RUnlock()
		content, ok := s.byKey[key]
		if !ok {
			return nil, fmt.Errorf("registry: asset %q removed before it could be resolved", key)
		}
		return content, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("registry: asset %q not available: %w", key, ctx.Err())
	}
}
