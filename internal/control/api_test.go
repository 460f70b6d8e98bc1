package control

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/graph"
	"github.com/wireflow/wireflow/internal/registry"
	"github.com/wireflow/wireflow/internal/runtime"
)

type stubNode struct{}

func (stubNode) Start() error { return nil }
func (stubNode) Step() error  { time.Sleep(time.Millisecond); return nil }
func (stubNode) Stop() error  { return nil }

func newTestAPI(t *testing.T) *API {
	t.Helper()
	reg := registry.New()
	reg.Register(registry.Descriptor{
		Name:     "src",
		Category: core.CategorySource,
		Outputs:  []registry.Slot{{Name: "out", Type: "int"}},
		Factory:  func(map[string]any) (registry.Node, error) { return stubNode{}, nil },
	})
	reg.Register(registry.Descriptor{
		Name:     "sink",
		Category: core.CategorySink,
		Inputs:   []registry.Slot{{Name: "in", Type: "int"}},
		Factory:  func(map[string]any) (registry.Node, error) { return stubNode{}, nil },
	})
	g := graph.New(reg)
	rt := runtime.New(g)
	return New(reg, g, rt, time.Second)
}

func TestAddNodeAndListNodes(t *testing.T) {
	api := newTestAPI(t)
	n, err := api.AddNode(AddNodeParams{Type: "src"})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)

	nodes := api.ListNodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, n.ID, nodes[0].ID)
}

func TestAddEdgeAndDispatch(t *testing.T) {
	api := newTestAPI(t)
	src, err := api.AddNode(AddNodeParams{ID: "s", Type: "src"})
	require.NoError(t, err)
	sink, err := api.AddNode(AddNodeParams{ID: "k", Type: "sink"})
	require.NoError(t, err)

	params, _ := json.Marshal(AddEdgeParams{SourceNode: src.ID, SourceSlot: "out", TargetNode: sink.ID, TargetSlot: "in"})
	result, err := api.Dispatch(context.Background(), "graph.add_edge", params)
	require.NoError(t, err)
	edge, ok := result.(EdgeInfo)
	require.True(t, ok)
	assert.Equal(t, src.ID, edge.SourceNode)
	assert.Equal(t, sink.ID, edge.TargetNode)
}

func TestDispatchUnknownMethod(t *testing.T) {
	api := newTestAPI(t)
	_, err := api.Dispatch(context.Background(), "bogus.method", nil)
	assert.Error(t, err)
	assert.True(t, IsInvalidArgs(err))
}

func TestStartStopGraph(t *testing.T) {
	api := newTestAPI(t)
	_, err := api.AddNode(AddNodeParams{ID: "s", Type: "src"})
	require.NoError(t, err)

	require.NoError(t, api.StartGraph(context.Background()))
	status, _, err := api.NodeStatus("s")
	require.NoError(t, err)
	assert.Equal(t, core.StatusRunning, status)

	require.NoError(t, api.StopGraph())
}
