package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/graph"
	"github.com/wireflow/wireflow/internal/registry"
)

// countingSource passes incrementing ints to out.fn, one per Step,
// until stopped or, when limit > 0, until limit values have been
// produced, with a short sleep to keep the test loop from spinning hot.
type countingSource struct {
	out   *outSink
	n     int
	limit int
}

type outSink struct {
	mu  sync.Mutex
	fn  func(v int)
}

func (s *countingSource) Start() error { return nil }
func (s *countingSource) Stop() error  { return nil }
func (s *countingSource) Step() error {
	if s.limit > 0 && s.n >= s.limit {
		time.Sleep(time.Millisecond)
		return nil
	}
	s.n++
	s.out.mu.Lock()
	fn := s.out.fn
	s.out.mu.Unlock()
	if fn != nil {
		fn(s.n)
	}
	time.Sleep(time.Millisecond)
	return nil
}

// collectSink never reads its input: the runtime does not pump items
// into nodes (a node reads from the ports handed to BindInputs), so
// this sink's Step is invoked only to satisfy the lifecycle; actual
// delivery is asserted directly on a Subscriber.
type collectSink struct{}

func (collectSink) Start() error { return nil }
func (collectSink) Stop() error  { return nil }
func (collectSink) Step() error  { time.Sleep(time.Millisecond); return nil }

type failingNode struct{ calls int }

func (f *failingNode) Start() error { return nil }
func (f *failingNode) Stop() error  { return nil }
func (f *failingNode) Step() error {
	f.calls++
	return errors.New("boom")
}

func buildRegistry(src *countingSource, sink registry.Node, failing registry.Node) *registry.Registry {
	r := registry.New()
	r.Register(registry.Descriptor{
		Name:     "src",
		Category: core.CategorySource,
		Outputs:  []registry.Slot{{Name: "out", Type: "int"}},
		Factory:  func(map[string]any) (registry.Node, error) { return src, nil },
	})
	r.Register(registry.Descriptor{
		Name:     "sink",
		Category: core.CategorySink,
		Inputs:   []registry.Slot{{Name: "in", Type: "int"}},
		Factory:  func(map[string]any) (registry.Node, error) { return sink, nil },
	})
	if failing != nil {
		r.Register(registry.Descriptor{
			Name:     "failing",
			Category: core.CategorySink,
			Inputs:   []registry.Slot{{Name: "in", Type: "int"}},
			Factory:  func(map[string]any) (registry.Node, error) { return failing, nil },
		})
	}
	return r
}

func TestLinearPipelineDeliversValues(t *testing.T) {
	src := &countingSource{out: &outSink{}}
	sink := collectSink{}
	reg := buildRegistry(src, sink, nil)
	g := graph.New(reg)

	_, err := g.AddNode("s", "src", nil)
	require.NoError(t, err)
	_, err = g.AddNode("k", "sink", nil)
	require.NoError(t, err)
	_, err = g.AddEdge("", "s", "out", "k", "in")
	require.NoError(t, err)

	rt := New(g)
	var mu sync.Mutex
	var got []int
	// Subscribe an observer directly to the source's output to assert
	// delivery, since the stub sink doesn't itself Receive.
	require.NoError(t, rt.Start(context.Background()))
	ch, err := rt.Output("s", "out")
	require.NoError(t, err)
	obs, err := ch.Subscribe("test-observer")
	require.NoError(t, err)

	src.out.mu.Lock()
	src.out.fn = func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
		ch.Publish(v)
	}
	src.out.mu.Unlock()

	for i := 0; i < 5; i++ {
		v, ok := obs.Receive()
		require.True(t, ok)
		assert.IsType(t, 0, v)
	}

	require.NoError(t, rt.Stop(time.Second))
}

func TestNodeFailureDoesNotStopOthers(t *testing.T) {
	src := &countingSource{out: &outSink{}, limit: 3}
	sink := collectSink{}
	failing := &failingNode{}
	reg := buildRegistry(src, sink, failing)
	g := graph.New(reg)

	_, err := g.AddNode("s", "src", nil)
	require.NoError(t, err)
	_, err = g.AddNode("k", "sink", nil)
	require.NoError(t, err)
	_, err = g.AddNode("f", "failing", nil)
	require.NoError(t, err)
	_, err = g.AddEdge("", "s", "out", "k", "in")
	require.NoError(t, err)

	rt := New(g)
	require.NoError(t, rt.Start(context.Background()))

	require.Eventually(t, func() bool {
		status, _, err := rt.Status("f")
		return err == nil && status == core.StatusError
	}, time.Second, 5*time.Millisecond)

	status, _, err := rt.Status("s")
	require.NoError(t, err)
	assert.Equal(t, core.StatusRunning, status)

	err = rt.Stop(time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestStartTwiceRejected(t *testing.T) {
	src := &countingSource{out: &outSink{}, limit: 1}
	sink := collectSink{}
	reg := buildRegistry(src, sink, nil)
	g := graph.New(reg)
	_, err := g.AddNode("s", "src", nil)
	require.NoError(t, err)

	rt := New(g)
	require.NoError(t, rt.Start(context.Background()))
	err = rt.Start(context.Background())
	assert.ErrorIs(t, err, core.ErrAlreadyRunning)
	require.NoError(t, rt.Stop(time.Second))
}
