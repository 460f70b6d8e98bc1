// Package videosink implements jpeg_frame_sink: a sink that
// JPEG-encodes every received frame and makes the latest-encoded
// bytes available for external streaming (the /video/ws/{node_id}
// WebSocket surface of spec.md §6).
package videosink

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/wireflow/wireflow/internal/channel"
	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/registry"
	"github.com/wireflow/wireflow/internal/runtime"
)

// ComponentName identifies this component in the registry.
const ComponentName = "jpeg_frame_sink"

// Options configures a jpeg_frame_sink instance.
type Options struct {
	Quality int `mapstructure:"quality"`
}

// Frame wraps JPEG-encoded bytes and implements channel.Sizer so the
// fan-out channel's byte counters count the encoded bytes. That channel
// belongs to the node, not the runtime, so the metrics engine does not
// sample it.
type Frame []byte

func (f Frame) Size() int { return len(f) }

// Node JPEG-encodes each received image.Image and republishes the
// encoded bytes on an internal fan-out channel that internal/control
// subscribes to per WebSocket client.
type Node struct {
	opts   Options
	in     *channel.Subscriber
	frames *channel.Channel
}

func newNode(rawArgs map[string]any) (registry.Node, error) {
	opts := Options{Quality: 80}
	if err := registry.Decode(rawArgs, &opts); err != nil {
		return nil, err
	}
	return &Node{
		opts:   opts,
		frames: channel.New("jpeg_frame_sink.frames", "bytes", 4),
	}, nil
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

func (n *Node) Stop() error {
	n.frames.Close()
	return nil
}

// Step encodes the next frame and publishes it to the frame fan-out.
func (n *Node) Step() error {
	if n.in == nil {
		return nil
	}
	v, ok := n.in.Receive()
	if !ok {
		return nil
	}
	img, ok := v.(image.Image)
	if !ok {
		return nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.opts.Quality}); err != nil {
		return err
	}
	n.frames.Publish(Frame(buf.Bytes()))
	return nil
}

// Frames returns the channel internal/control subscribes a WebSocket
// client connection to.
func (n *Node) Frames() *channel.Channel {
	return n.frames
}

func init() {
	registry.Default.Register(registry.Descriptor{
		Name:     ComponentName,
		Category: core.CategorySink,
		Inputs:   []registry.Slot{{Name: "in", Type: "image"}},
		Params: []registry.ParamSchema{
			{Name: "quality", Type: "int", Required: false, Default: 80},
		},
		Factory: newNode,
	})
}
