package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tetherhq/tether/internal/transport"
	"github.com/tetherhq/tether/pkg/codec"
	"github.com/tetherhq/tether/pkg/tunnel"
)

func newTestGroup(hosts ...string) *Group {
	return NewFromHosts(hosts, &transport.LocalLauncher{}, tunnel.Config{})
}

func TestGroupResultSuccessfulAndFailures(t *testing.T) {
	gr := newGroupResult([]Result{
		{Host: "a", Value: codec.String("ok")},
		{Host: "b", Err: assertErr("boom")},
	})
	assert.Len(t, gr.Successful(), 1)
	assert.Len(t, gr.Failures(), 1)
	assert.Equal(t, "a", gr.Successful()[0].Host)
	assert.Equal(t, "b", gr.Failures()[0].Host)
}

func TestGroupResultRaiseFailures(t *testing.T) {
	gr := newGroupResult([]Result{{Host: "a", Err: assertErr("boom")}})
	assert.Error(t, gr.RaiseFailures())

	gr2 := newGroupResult([]Result{{Host: "a"}})
	assert.NoError(t, gr2.RaiseFailures())
}

func TestUnionIntersectionDifference(t *testing.T) {
	g1 := newTestGroup("a", "b", "c")
	g2 := newTestGroup("b", "c", "d")

	union := g1.Union(g2)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, union.Hosts())

	inter := g1.Intersection(g2)
	assert.ElementsMatch(t, []string{"b", "c"}, inter.Hosts())

	diff := g1.Difference(g2)
	assert.ElementsMatch(t, []string{"a"}, diff.Hosts())

	sym := g1.SymmetricDifference(g2)
	assert.ElementsMatch(t, []string{"a", "d"}, sym.Hosts())
}

func TestHostsReflectsMembership(t *testing.T) {
	g := newTestGroup("x", "y")
	assert.ElementsMatch(t, []string{"x", "y"}, g.Hosts())
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
