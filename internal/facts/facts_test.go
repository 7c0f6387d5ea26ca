package facts

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetherhq/tether/pkg/codec"
	"github.com/tetherhq/tether/pkg/registry"
)

func TestRegisterAddsAllCallables(t *testing.T) {
	reg := registry.New()
	Register(reg)

	for _, name := range []string{"facts.host", "facts.memory", "facts.gpu"} {
		_, ok := reg.Lookup(name)
		assert.Truef(t, ok, "expected %s to be registered", name)
	}
}

func TestHostFactsReturnsHostname(t *testing.T) {
	val, err := hostFacts(context.Background(), codec.Value{})
	require.NoError(t, err)
	assert.NotEmpty(t, val.GetString("hostname"))
}

func TestMemoryFactsReturnsPositiveTotal(t *testing.T) {
	val, err := memoryFacts(context.Background(), codec.Value{})
	require.NoError(t, err)
	total, ok := val.Get("total_bytes")
	require.True(t, ok)
	n, err := strconv.ParseInt(total.AsInt(), 10, 64)
	require.NoError(t, err)
	assert.Greater(t, n, int64(0))
}

func TestGPUFactsDoesNotPanic(t *testing.T) {
	_, err := gpuFacts(context.Background(), codec.Value{})
	// ghw.GPU() can legitimately fail in sandboxed/containerized test
	// environments lacking /sys/bus/pci access; only assert it doesn't
	// panic, which require.NoError alone can't express here, so no
	// assertion beyond reaching this point is required.
	_ = err
}
