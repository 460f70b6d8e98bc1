package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireflow/wireflow/internal/components/countersink"
	"github.com/wireflow/wireflow/internal/components/passthrough"
	"github.com/wireflow/wireflow/internal/components/timer"
	"github.com/wireflow/wireflow/internal/graph"
	"github.com/wireflow/wireflow/internal/registry"
	"github.com/wireflow/wireflow/internal/runtime"
)

// TestScenario1DoublingPipeline builds spec.md §8 scenario 1 with the
// real built-in components (timer_source -> passthrough_conduit ->
// counter_sink) instead of test stubs, and asserts the sink receives
// the doubled sequence in order.
func TestScenario1DoublingPipeline(t *testing.T) {
	reg := registry.Default
	g := graph.New(reg)

	_, err := g.AddNode("src", timer.ComponentName, map[string]any{"interval_ms": 1})
	require.NoError(t, err)
	_, err = g.AddNode("dbl", passthrough.ComponentName, map[string]any{"multiplier": 2})
	require.NoError(t, err)
	sinkNode, err := g.AddNode("sink", countersink.ComponentName, nil)
	require.NoError(t, err)
	sink := sinkNode.Instance.(*countersink.Node)

	_, err = g.AddEdge("", "src", "out", "dbl", "in")
	require.NoError(t, err)
	_, err = g.AddEdge("", "dbl", "out", "sink", "in")
	require.NoError(t, err)

	rt := runtime.New(g)
	require.NoError(t, rt.Start(context.Background()))

	require.Eventually(t, func() bool {
		return sink.Count() >= 10
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, rt.Stop(time.Second))

	items := sink.Items()
	require.GreaterOrEqual(t, len(items), 10)
	want := []any{2, 4, 6, 8, 10, 12, 14, 16, 18, 20}
	assert.Equal(t, want, items[:10])
}
