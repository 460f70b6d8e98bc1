package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/registry"
)

type stubNode struct{}

func (stubNode) Start() error { return nil }
func (stubNode) Step() error  { return nil }
func (stubNode) Stop() error  { return nil }

func newTestRegistry() *registry.Registry {
	r := registry.New()
	r.Register(registry.Descriptor{
		Name:     "src",
		Category: core.CategorySource,
		Outputs:  []registry.Slot{{Name: "out", Type: "int"}},
		Factory:  func(map[string]any) (registry.Node, error) { return stubNode{}, nil },
	})
	r.Register(registry.Descriptor{
		Name:     "conduit",
		Category: core.CategoryConduit,
		Inputs:   []registry.Slot{{Name: "in", Type: "int"}},
		Outputs:  []registry.Slot{{Name: "out", Type: "int"}},
		Factory:  func(map[string]any) (registry.Node, error) { return stubNode{}, nil },
	})
	r.Register(registry.Descriptor{
		Name:     "sink",
		Category: core.CategorySink,
		Inputs:   []registry.Slot{{Name: "in", Type: "string"}},
		Factory:  func(map[string]any) (registry.Node, error) { return stubNode{}, nil },
	})
	return r
}

func TestAddNodeGeneratesIDWhenOmitted(t *testing.T) {
	g := New(newTestRegistry())
	n, err := g.AddNode("", "src", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
}

func TestAddNodeDuplicateID(t *testing.T) {
	g := New(newTestRegistry())
	_, err := g.AddNode("a", "src", nil)
	require.NoError(t, err)
	_, err = g.AddNode("a", "src", nil)
	assert.ErrorIs(t, err, core.ErrDuplicateID)
}

func TestAddNodeUnknownComponent(t *testing.T) {
	g := New(newTestRegistry())
	_, err := g.AddNode("a", "nope", nil)
	assert.ErrorIs(t, err, core.ErrComponentNotFound)
}

func TestAddEdgeTypeMismatchRejected(t *testing.T) {
	g := New(newTestRegistry())
	_, err := g.AddNode("src1", "src", nil)
	require.NoError(t, err)
	_, err = g.AddNode("sink1", "sink", nil)
	require.NoError(t, err)

	_, err = g.AddEdge("", "src1", "out", "sink1", "in")
	assert.ErrorIs(t, err, core.ErrTypeMismatch)
}

func TestAddEdgeSuccessAndBoundInputCheckedBeforeCycle(t *testing.T) {
	g := New(newTestRegistry())
	_, err := g.AddNode("src1", "src", nil)
	require.NoError(t, err)
	_, err = g.AddNode("c1", "conduit", nil)
	require.NoError(t, err)

	_, err = g.AddEdge("", "src1", "out", "c1", "in")
	require.NoError(t, err)

	_, err = g.AddNode("c2", "conduit", nil)
	require.NoError(t, err)
	_, err = g.AddEdge("", "c1", "out", "c2", "in")
	require.NoError(t, err)

	// c2 -> c1 would close a cycle, but c1.in already has an edge from
	// src1, so AddEdge rejects it as a duplicate input before the cycle
	// check runs.
	_, err = g.AddEdge("", "c2", "out", "c1", "in")
	assert.ErrorIs(t, err, core.ErrDuplicateEdge)
}

func TestAddEdgeDuplicateInputRejected(t *testing.T) {
	g := New(newTestRegistry())
	_, err := g.AddNode("src1", "src", nil)
	require.NoError(t, err)
	_, err = g.AddNode("src2", "src", nil)
	require.NoError(t, err)
	_, err = g.AddNode("c1", "conduit", nil)
	require.NoError(t, err)

	_, err = g.AddEdge("", "src1", "out", "c1", "in")
	require.NoError(t, err)
	_, err = g.AddEdge("", "src2", "out", "c1", "in")
	assert.ErrorIs(t, err, core.ErrDuplicateEdge)
}

func TestRemoveNodeCascadesEdges(t *testing.T) {
	g := New(newTestRegistry())
	_, err := g.AddNode("src1", "src", nil)
	require.NoError(t, err)
	_, err = g.AddNode("c1", "conduit", nil)
	require.NoError(t, err)
	_, err = g.AddEdge("e1", "src1", "out", "c1", "in")
	require.NoError(t, err)

	require.NoError(t, g.RemoveNode("c1"))
	assert.Empty(t, g.ListEdges())
}

func TestDirectSelfCycleRejected(t *testing.T) {
	g := New(newTestRegistry())
	_, err := g.AddNode("c1", "conduit", nil)
	require.NoError(t, err)
	_, err = g.AddEdge("", "c1", "out", "c1", "in")
	assert.ErrorIs(t, err, core.ErrCycleDetected)
}
