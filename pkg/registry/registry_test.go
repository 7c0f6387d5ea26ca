package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetherhq/tether/pkg/codec"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	r.Register("echo", func(_ context.Context, args codec.Value) (codec.Value, error) {
		return args, nil
	})

	fn, ok := r.Lookup("echo")
	require.True(t, ok)

	out, err := fn(context.Background(), codec.String("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", out.AsString())
}

func TestLookupMissing(t *testing.T) {
	r := New()
	_, ok := r.Lookup("nope")
	assert.False(t, ok)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := New()
	r.Register("dup", func(context.Context, codec.Value) (codec.Value, error) { return codec.Null, nil })
	assert.Panics(t, func() {
		r.Register("dup", func(context.Context, codec.Value) (codec.Value, error) { return codec.Null, nil })
	})
}

func TestNamesSorted(t *testing.T) {
	r := New()
	r.Register("zeta", func(context.Context, codec.Value) (codec.Value, error) { return codec.Null, nil })
	r.Register("alpha", func(context.Context, codec.Value) (codec.Value, error) { return codec.Null, nil })
	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
}

func TestAssetStoreResolveImmediate(t *testing.T) {
	s := NewAssetStore()
	key := s.PutDigest([]byte("payload"))

	got, err := s.Resolve(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestAssetStoreResolveBlocksUntilPut(t *testing.T) {
	s := NewAssetStore()
	done := make(chan error, 1)
	go func() {
		_, err := s.Resolve(context.Background(), "later")
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	s.Put("later", []byte("arrived"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Resolve did not unblock after Put")
	}
}

func TestAssetStoreResolveTimesOut(t *testing.T) {
	s := NewAssetStore()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Resolve(ctx, "never-arrives")
	assert.Error(t, err)
}
