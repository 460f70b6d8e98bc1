// Package countersink implements counter_sink, the sink used in
// spec.md §8's worked examples as "Sink": it stores every value it
// receives, in order, and exposes the running count.
package countersink

import (
	"sync"

	"github.com/wireflow/wireflow/internal/channel"
	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/registry"
	"github.com/wireflow/wireflow/internal/runtime"
)

// ComponentName identifies this component in the registry.
const ComponentName = "counter_sink"

// Options configures a counter_sink instance.
type Options struct {
	// Capacity bounds how many items are retained; 0 means unbounded.
	Capacity int `mapstructure:"capacity"`
}

// Node stores every value it receives on its "in" slot.
type Node struct {
	opts Options
	in   *channel.Subscriber

	mu    sync.Mutex
	items []any
	total int
}

func newNode(rawArgs map[string]any) (registry.Node, error) {
	var opts Options
	if err := registry.Decode(rawArgs, &opts); err != nil {
		return nil, err
	}
	return &Node{opts: opts}, nil
}

// BindInputs implements runtime.InputBinder.
func (n *Node) BindInputs(ports []runtime.InputPort) {
	for _, p := range ports {
		if p.Slot == "in" {
			n.in = p.Sub
		}
	}
}

func (n *Node) Start() error { return nil }
func (n *Node) Stop() error  { return nil }

// Step blocks for the next value and appends it.
func (n *Node) Step() error {
	if n.in == nil {
		return nil
	}
	v, ok := n.in.Receive()
	if !ok {
		return nil
	}
	n.mu.Lock()
	n.items = append(n.items, v)
	n.total++
	if n.opts.Capacity > 0 && len(n.items) > n.opts.Capacity {
		n.items = n.items[len(n.items)-n.opts.Capacity:]
	}
	n.mu.Unlock()
	return nil
}

// Items returns a snapshot of everything received so far, in order.
func (n *Node) Items() []any {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]any, len(n.items))
	copy(out, n.items)
	return out
}

// Count returns how many items have been received so far, independent
// of any Capacity truncation applied to Items.
func (n *Node) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.total
}

func init() {
	registry.Default.Register(registry.Descriptor{
		Name:     ComponentName,
		Category: core.CategorySink,
		Inputs:   []registry.Slot{{Name: "in", Type: "int"}},
		Params: []registry.ParamSchema{
			{Name: "capacity", Type: "int", Required: false, Default: 0},
		},
		Factory: newNode,
	})
}
