// Package netsource implements network_frame_source: a source that
// live-captures packets off a network interface via gopacket's
// AF_PACKET socket and republishes each packet's raw bytes and
// capture metadata.
package netsource

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"

	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/registry"
	"github.com/wireflow/wireflow/internal/runtime"
)

// ComponentName identifies this component in the registry.
const ComponentName = "network_frame_source"

// Options configures a network_frame_source instance.
type Options struct {
	Interface string `mapstructure:"interface"`
	FrameSize int    `mapstructure:"frame_size"`
	BlockSize int    `mapstructure:"block_size"`
	NumBlocks int    `mapstructure:"num_blocks"`
}

// Frame is one captured packet, published on the "out" slot.
type Frame struct {
	Data []byte
	Info gopacket.CaptureInfo
}

func (f Frame) Size() int { return len(f.Data) }

// Node wraps an AF_PACKET TPacket handle and republishes every
// captured packet.
type Node struct {
	opts    Options
	out     *runtime.OutputPort
	tpacket *afpacket.TPacket
}

func newNode(rawArgs map[string]any) (registry.Node, error) {
	opts := Options{FrameSize: 65536, BlockSize: 1 << 20, NumBlocks: 8}
	if err := registry.Decode(rawArgs, &opts); err != nil {
		return nil, err
	}
	if opts.Interface == "" {
		return nil, fmt.Errorf("%w: interface is required", core.ErrInvalidArgs)
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
	iface, err := net.InterfaceByName(n.opts.Interface)
	if err != nil {
		return fmt.Errorf("netsource: interface %q: %w", n.opts.Interface, err)
	}

	tpacket, err := afpacket.NewTPacket(
		afpacket.OptInterface(iface.Name),
		afpacket.OptFrameSize(n.opts.FrameSize),
		afpacket.OptBlockSize(n.opts.BlockSize),
		afpacket.OptNumBlocks(n.opts.NumBlocks),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return fmt.Errorf("netsource: open tpacket: %w", err)
	}
	n.tpacket = tpacket
	return nil
}

func (n *Node) Stop() error {
	if n.tpacket != nil {
		n.tpacket.Close()
	}
	return nil
}

// Step reads one packet and republishes it. A read error surfaces as
// a Step error, transitioning this node to core.StatusError per
// spec.md §4.4.
func (n *Node) Step() error {
	data, ci, err := n.tpacket.ReadPacketData()
	if err != nil {
		return fmt.Errorf("netsource: read packet: %w", err)
	}
	if n.out != nil {
		n.out.Ch.Publish(Frame{Data: data, Info: ci})
	}
	return nil
}

func init() {
	registry.Default.Register(registry.Descriptor{
		Name:     ComponentName,
		Category: core.CategorySource,
		Outputs:  []registry.Slot{{Name: "out", Type: "network_frame"}},
		Params: []registry.ParamSchema{
			{Name: "interface", Type: "string", Required: true},
			{Name: "frame_size", Type: "int", Required: false, Default: 65536},
			{Name: "block_size", Type: "int", Required: false, Default: 1048576},
			{Name: "num_blocks", Type: "int", Required: false, Default: 8},
		},
		Factory: newNode,
	})
}
