// Package timer implements timer_source, a source that emits an
// incrementing counter on a fixed interval. No third-party scheduling
// library improves on stdlib time.Ticker for "emit every N" — this is
// the one built-in component that is inherently stdlib territory.
package timer

import (
	"time"

	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/registry"
	"github.com/wireflow/wireflow/internal/runtime"
)

// ComponentName identifies this component in the registry.
const ComponentName = "timer_source"

// Options configures a timer_source instance.
type Options struct {
	IntervalMS int `mapstructure:"interval_ms"`
}

// Node emits 1, 2, 3, ... on its "out" slot every IntervalMS.
type Node struct {
	opts   Options
	out    *runtime.OutputPort
	ticker *time.Ticker
	n      int
}

func newNode(rawArgs map[string]any) (registry.Node, error) {
	opts := Options{IntervalMS: 100}
	if err := registry.Decode(rawArgs, &opts); err != nil {
		return nil, err
	}
	return &Node{opts: opts}, nil
}

// BindOutputs implements runtime.OutputBinder.
func (n *Node) BindOutputs(ports []runtime.OutputPort) {
	for i := range ports {
		if ports[i].Slot == "out" {
			n.out = &ports[i]
		}
	}
}

func (n *Node) Start() error {
	n.ticker = time.NewTicker(time.Duration(n.opts.IntervalMS) * time.Millisecond)
	return nil
}

func (n *Node) Stop() error {
	if n.ticker != nil {
		n.ticker.Stop()
	}
	return nil
}

// Step blocks until the next tick, then publishes the next counter value.
func (n *Node) Step() error {
	<-n.ticker.C
	n.n++
	if n.out != nil {
		n.out.Ch.Publish(n.n)
	}
	return nil
}

func init() {
	registry.Default.Register(registry.Descriptor{
		Name:     ComponentName,
		Category: core.CategorySource,
		Outputs:  []registry.Slot{{Name: "out", Type: "int"}},
		Params: []registry.ParamSchema{
			{Name: "interval_ms", Type: "int", Required: false, Default: 100},
		},
		Factory: newNode,
	})
}
