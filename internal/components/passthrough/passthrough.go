// Package passthrough implements the passthrough_conduit and the
// doubling conduit used in spec.md §8's worked examples: a single-input,
// single-output conduit whose Step applies a configurable integer
// multiplier to each received value.
package passthrough

import (
	"github.com/wireflow/wireflow/internal/channel"
	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/registry"
	"github.com/wireflow/wireflow/internal/runtime"
)

// ComponentName identifies this component in the registry.
const ComponentName = "passthrough_conduit"

// Options configures a passthrough_conduit instance.
type Options struct {
	Multiplier int `mapstructure:"multiplier"`
}

// Node multiplies each received int by Multiplier and republishes it.
// A Multiplier of 1 (the default) makes it a pure passthrough.
type Node struct {
	opts Options
	in   *channel.Subscriber
	out  *channel.Channel
}

func newNode(rawArgs map[string]any) (registry.Node, error) {
	opts := Options{Multiplier: 1}
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

// BindOutputs implements runtime.OutputBinder.
func (n *Node) BindOutputs(ports []runtime.OutputPort) {
	for _, p := range ports {
		if p.Slot == "out" {
			n.out = p.Ch
		}
	}
}

func (n *Node) Start() error { return nil }
func (n *Node) Stop() error  { return nil }

// Step blocks on the bound input and republishes the transformed
// value. Returning nil with no input bound (e.g. a dangling conduit
// with no upstream edge) would spin; callers are expected to wire
// every conduit's input before starting the graph.
func (n *Node) Step() error {
	if n.in == nil {
		return nil
	}
	v, ok := n.in.Receive()
	if !ok {
		return nil
	}
	iv, _ := v.(int)
	if n.out != nil {
		n.out.Publish(iv * n.opts.Multiplier)
	}
	return nil
}

func init() {
	registry.Default.Register(registry.Descriptor{
		Name:     ComponentName,
		Category: core.CategoryConduit,
		Inputs:   []registry.Slot{{Name: "in", Type: "int"}},
		Outputs:  []registry.Slot{{Name: "out", Type: "int"}},
		Params: []registry.ParamSchema{
			{Name: "multiplier", Type: "int", Required: false, Default: 1},
		},
		Factory: newNode,
	})
}
