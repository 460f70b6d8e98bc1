// Package sipsource implements sip_signal_source: a source that
// listens on a UDP socket for SIP signaling datagrams and republishes
// each parsed sip.Message.
package sipsource

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/ghettovoice/gosip/sip"
	"github.com/ghettovoice/gosip/sip/parser"

	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/registry"
	"github.com/wireflow/wireflow/internal/runtime"
)

// ComponentName identifies this component in the registry.
const ComponentName = "sip_signal_source"

// Options configures a sip_signal_source instance.
type Options struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// sipParser wraps gosip's packet parser with the ambient logger,
// mirroring the teacher's SipParser/LoggerAdapter pairing.
type sipParser struct {
	delegate *parser.PacketParser
}

func newSipParser() *sipParser {
	return &sipParser{delegate: parser.NewPacketParser(newSlogAdapter(slog.Default()))}
}

func (p *sipParser) Parse(data []byte) (sip.Message, error) {
	msg, err := p.delegate.ParseMessage(data)
	if err != nil {
		slog.Debug("sip_signal_source: failed to parse message", "error", err)
		return nil, err
	}
	return msg, nil
}

// Node listens on a UDP socket and republishes every parsed SIP message.
type Node struct {
	opts   Options
	out    *runtime.OutputPort
	parser *sipParser
	conn   *net.UDPConn
	buf    [65535]byte
}

func newNode(rawArgs map[string]any) (registry.Node, error) {
	var opts Options
	if err := registry.Decode(rawArgs, &opts); err != nil {
		return nil, err
	}
	if opts.ListenAddr == "" {
		return nil, fmt.Errorf("%w: listen_addr is required", core.ErrInvalidArgs)
	}
	return &Node{opts: opts, parser: newSipParser()}, nil
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
	addr, err := net.ResolveUDPAddr("udp", n.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("sipsource: resolve %q: %w", n.opts.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("sipsource: listen %q: %w", n.opts.ListenAddr, err)
	}
	n.conn = conn
	return nil
}

func (n *Node) Stop() error {
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

// Step reads one datagram, parses it, and republishes it. A parse
// failure for one malformed datagram is logged and skipped, not a
// Step error, since SIP signaling over UDP routinely sees retransmits
// and garbage from misbehaving peers.
func (n *Node) Step() error {
	nBytes, _, err := n.conn.ReadFromUDP(n.buf[:])
	if err != nil {
		return fmt.Errorf("sipsource: read udp: %w", err)
	}
	msg, err := n.parser.Parse(n.buf[:nBytes])
	if err != nil {
		return nil
	}
	if n.out != nil {
		n.out.Ch.Publish(msg)
	}
	return nil
}

func init() {
	registry.Default.Register(registry.Descriptor{
		Name:     ComponentName,
		Category: core.CategorySource,
		Outputs:  []registry.Slot{{Name: "out", Type: "sip_message"}},
		Params: []registry.ParamSchema{
			{Name: "listen_addr", Type: "string", Required: true},
		},
		Factory: newNode,
	})
}
