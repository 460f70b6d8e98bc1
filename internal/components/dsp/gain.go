// Package dsp implements gain_conduit, a single-input, single-output
// conduit that scales a float32 sample stream by a configurable gain
// factor and clamps the result, standing in for a GStreamer
// audioamplify/AGC element graph since this runtime has no GStreamer
// dependency to shell out to.
package dsp

import (
	"github.com/wireflow/wireflow/internal/channel"
	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/registry"
	"github.com/wireflow/wireflow/internal/runtime"
)

// ComponentName identifies this component in the registry.
const ComponentName = "gain_conduit"

// Options configures a gain_conduit instance.
type Options struct {
	Gain         float64 `mapstructure:"gain"`
	ClipMax      float64 `mapstructure:"clip_max"`
}

// Node multiplies each received float32 sample by Gain, clamped to
// [-ClipMax, ClipMax].
type Node struct {
	opts Options
	in   *channel.Subscriber
	out  *channel.Channel
}

func newNode(rawArgs map[string]any) (registry.Node, error) {
	opts := Options{Gain: 1.0, ClipMax: 1.0}
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

// Step applies gain to the next sample and clamps it to [-ClipMax, ClipMax].
func (n *Node) Step() error {
	if n.in == nil {
		return nil
	}
	v, ok := n.in.Receive()
	if !ok {
		return nil
	}
	sample, _ := v.(float32)
	scaled := float64(sample) * n.opts.Gain
	if scaled > n.opts.ClipMax {
		scaled = n.opts.ClipMax
	} else if scaled < -n.opts.ClipMax {
		scaled = -n.opts.ClipMax
	}
	if n.out != nil {
		n.out.Publish(float32(scaled))
	}
	return nil
}

func init() {
	registry.Default.Register(registry.Descriptor{
		Name:     ComponentName,
		Category: core.CategoryConduit,
		Inputs:   []registry.Slot{{Name: "in", Type: "float32"}},
		Outputs:  []registry.Slot{{Name: "out", Type: "float32"}},
		Params: []registry.ParamSchema{
			{Name: "gain", Type: "float", Required: false, Default: 1.0},
			{Name: "clip_max", Type: "float", Required: false, Default: 1.0},
		},
		Factory: newNode,
	})
}
