// Package consolesink implements console_sink: a sink that logs every
// value it receives via the ambient structured logger.
package consolesink

import (
	"log/slog"

	"github.com/wireflow/wireflow/internal/channel"
	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/registry"
	"github.com/wireflow/wireflow/internal/runtime"
)

// ComponentName identifies this component in the registry.
const ComponentName = "console_sink"

// Options configures a console_sink instance.
type Options struct {
	Label string `mapstructure:"label"`
}

// Node logs each received value at info level.
type Node struct {
	opts Options
	in   *channel.Subscriber
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

func (n *Node) Step() error {
	if n.in == nil {
		return nil
	}
	v, ok := n.in.Receive()
	if !ok {
		return nil
	}
	slog.Info("console_sink received", "label", n.opts.Label, "value", v)
	return nil
}

func init() {
	registry.Default.Register(registry.Descriptor{
		Name:     ComponentName,
		Category: core.CategorySink,
		Inputs:   []registry.Slot{{Name: "in", Type: "any"}},
		Params: []registry.ParamSchema{
			{Name: "label", Type: "string", Required: false},
		},
		Factory: newNode,
	})
}
