package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/graph"
	"github.com/wireflow/wireflow/internal/registry"
	"github.com/wireflow/wireflow/internal/runtime"
)

type tickingSource struct{}

func (tickingSource) Start() error { return nil }
func (tickingSource) Stop() error  { return nil }
func (tickingSource) Step() error  { time.Sleep(time.Millisecond); return nil }

func buildRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()
	r := registry.New()
	r.Register(registry.Descriptor{
		Name:     "src",
		Category: core.CategorySource,
		Outputs:  []registry.Slot{{Name: "out", Type: "int"}},
		Factory:  func(map[string]any) (registry.Node, error) { return tickingSource{}, nil },
	})
	r.Register(registry.Descriptor{
		Name:     "sink",
		Category: core.CategorySink,
		Inputs:   []registry.Slot{{Name: "in", Type: "int"}},
		Factory:  func(map[string]any) (registry.Node, error) { return tickingSource{}, nil },
	})

	g := graph.New(r)
	_, err := g.AddNode("s", "src", nil)
	require.NoError(t, err)
	_, err = g.AddNode("k", "sink", nil)
	require.NoError(t, err)
	_, err = g.AddEdge("", "s", "out", "k", "in")
	require.NoError(t, err)

	rt := runtime.New(g)
	require.NoError(t, rt.Start(context.Background()))
	t.Cleanup(func() { rt.Stop(time.Second) })
	return rt
}

func TestEngineSamplesChannelsAndNodes(t *testing.T) {
	rt := buildRuntime(t)
	ch, err := rt.Output("s", "out")
	require.NoError(t, err)
	ch.Publish(1)
	ch.Publish(2)

	eng := NewEngine(rt, 10*time.Millisecond)

	var mu sync.Mutex
	var last Snapshot
	got := make(chan struct{}, 1)
	eng.Subscribe(func(s Snapshot) {
		mu.Lock()
		last = s
		mu.Unlock()
		select {
		case got <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go eng.Run(ctx)

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("no snapshot observed")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, last.Channels)
	require.NotEmpty(t, last.Nodes)
	assert.Equal(t, "s.out", last.Channels[0].Name)
}

func TestSubscribeUnsubscribeStopsDelivery(t *testing.T) {
	rt := buildRuntime(t)
	eng := NewEngine(rt, 10*time.Millisecond)

	var count int
	var mu sync.Mutex
	unsub := eng.Subscribe(func(Snapshot) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	eng.sampleOnce()
	unsub()
	eng.sampleOnce()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}
