// Package runtime implements the per-node task scheduler of spec.md
// §4.4: a startup -> running -> stopped|error state machine per node,
// cooperative cancellation, and panic/error isolation between nodes.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/wireflow/wireflow/internal/channel"
	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/graph"
)

// InputPort is a node's view of one bound input slot: the channel it
// reads from plus the subscriber handle this node registered.
type InputPort struct {
	Slot string
	Sub  *channel.Subscriber
}

// OutputPort is a node's view of one bound output slot.
type OutputPort struct {
	Slot string
	Ch   *channel.Channel
}

// InputBinder is implemented by node instances (conduits and sinks)
// that consume from one or more input slots. The runtime calls
// BindInputs once, after all edges are resolved and before Start, so
// the node's Step can call Sub.Receive directly.
type InputBinder interface {
	BindInputs(ports []InputPort)
}

// OutputBinder is implemented by node instances (sources and conduits)
// that publish to one or more output slots. The runtime calls
// BindOutputs once, before Start, so Step can call Ch.Publish.
type OutputBinder interface {
	BindOutputs(ports []OutputPort)
}

// taskState is the live runtime record for one graph node, separate
// from graph.Node so the graph package stays free of scheduling
// concerns.
type taskState struct {
	node   *graph.Node
	inputs []InputPort
	output []OutputPort

	mu     sync.Mutex
	status core.Status
	err    error
	cancel context.CancelFunc
}

// Runtime owns one running instance of a graph: it wires channels for
// every edge, runs one task loop per node, and tracks each node's
// lifecycle state independently so a failing node never stops its
// siblings (spec.md §4.4).
type Runtime struct {
	g *graph.Graph

	mu      sync.Mutex
	tasks   map[string]*taskState
	outputs map[string]map[string]*channel.Channel // nodeID -> slot -> channel
	running bool
	pool    *pool.ContextPool
	stop    context.CancelFunc
}

// New builds a Runtime over g. The runtime does not start any node
// until Start is called.
func New(g *graph.Graph) *Runtime {
	return &Runtime{
		g:       g,
		tasks:   make(map[string]*taskState),
		outputs: make(map[string]map[string]*channel.Channel),
	}
}

// defaultCapacity is used for every channel the runtime creates,
// matching spec.md §3's stated default. A future revision could plumb
// internal/config.ChannelConfig through here per-edge.
const defaultCapacity = 64

// Start instantiates one Channel per (node, output slot) that has at
// least one outgoing edge, subscribes every edge's destination node,
// calls Start() on every node instance, then launches one task loop
// per node under a panic-isolating goroutine group. Returns
// core.ErrAlreadyRunning if called twice.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return core.ErrAlreadyRunning
	}
	r.running = true

	runCtx, cancel := context.WithCancel(ctx)
	r.stop = cancel
	r.pool = pool.New().WithContext(runCtx).WithCancelOnError()

	nodes := r.g.ListNodes()
	edges := r.g.ListEdges()

	for _, n := range nodes {
		r.tasks[n.ID] = &taskState{node: n, status: core.StatusStartup}
		r.outputs[n.ID] = make(map[string]*channel.Channel)
	}

	for _, e := range edges {
		ch, ok := r.outputs[e.FromNode][e.FromSlot]
		if !ok {
			ch = channel.New(e.FromNode+"."+e.FromSlot, e.ElementType, defaultCapacity)
			r.outputs[e.FromNode][e.FromSlot] = ch
		}
		sub, err := ch.SubscribeWithCapacity(e.ToNode+"."+e.ToSlot, e.Capacity)
		if err != nil {
			r.mu.Unlock()
			return fmt.Errorf("edge %s: %w", e.ID, err)
		}
		dst := r.tasks[e.ToNode]
		dst.inputs = append(dst.inputs, InputPort{Slot: e.ToSlot, Sub: sub})
	}
	for nodeID, slots := range r.outputs {
		ts := r.tasks[nodeID]
		for slot, ch := range slots {
			ts.output = append(ts.output, OutputPort{Slot: slot, Ch: ch})
		}
	}

	for _, ts := range r.tasks {
		if binder, ok := ts.node.Instance.(InputBinder); ok {
			binder.BindInputs(ts.inputs)
		}
		if binder, ok := ts.node.Instance.(OutputBinder); ok {
			binder.BindOutputs(ts.output)
		}
	}

	for _, ts := range r.tasks {
		if err := ts.node.Instance.Start(); err != nil {
			ts.setStatus(core.StatusError, err)
			slog.Error("node start failed", "node_id", ts.node.ID, "error", err)
			continue
		}
		ts.setStatus(core.StatusRunning, nil)
	}

	for _, ts := range r.tasks {
		ts := ts
		taskCtx, taskCancel := context.WithCancel(runCtx)
		ts.cancel = taskCancel
		r.pool.Go(func(ctx context.Context) error {
			runTask(taskCtx, ts)
			return nil
		})
	}

	r.mu.Unlock()
	return nil
}

// runTask repeatedly calls the node's Step until ctx is cancelled or
// Step returns an error. A panic inside Step is recovered here and
// converted to an error status. A panic that escapes runTask (for
// example one raised by the node's Stop) is caught by the
// sourcegraph/conc pool and re-raised when Runtime.Stop waits on it.
func runTask(ctx context.Context, ts *taskState) {
	defer func() {
		if r := recover(); r != nil {
			ts.setStatus(core.StatusError, fmt.Errorf("panic: %v", r))
		}
		if err := ts.node.Instance.Stop(); err != nil {
			slog.Error("node stop failed", "node_id", ts.node.ID, "error", err)
		}
	}()

	if ts.currentStatus() == core.StatusError {
		return
	}

	for {
		select {
		case <-ctx.Done():
			ts.setStatus(core.StatusStopped, nil)
			return
		default:
		}

		if err := ts.node.Instance.Step(); err != nil {
			ts.setStatus(core.StatusError, err)
			slog.Error("node step failed", "node_id", ts.node.ID, "error", err)
			return
		}
	}
}

func (ts *taskState) setStatus(s core.Status, err error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.status = s
	ts.err = err
}

func (ts *taskState) currentStatus() core.Status {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.status
}

// Status returns the current status and last error (if any) for a node.
func (r *Runtime) Status(nodeID string) (core.Status, error, error) {
	r.mu.Lock()
	ts, ok := r.tasks[nodeID]
	r.mu.Unlock()
	if !ok {
		return "", nil, fmt.Errorf("node %q: %w", nodeID, core.ErrNodeNotFound)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.status, ts.err, nil
}

// ChannelInfo names one live channel for the metrics sampler.
type ChannelInfo struct {
	NodeID string
	Slot   string
	Ch     *channel.Channel
}

// Channels returns every channel currently wired in the runtime,
// used by internal/metrics to build periodic snapshots.
func (r *Runtime) Channels() []ChannelInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ChannelInfo
	for nodeID, slots := range r.outputs {
		for slot, ch := range slots {
			out = append(out, ChannelInfo{NodeID: nodeID, Slot: slot, Ch: ch})
		}
	}
	return out
}

// NodeStatuses returns every node's current status, used by
// internal/metrics to build periodic snapshots.
func (r *Runtime) NodeStatuses() map[string]core.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]core.Status, len(r.tasks))
	for id, ts := range r.tasks {
		out[id] = ts.currentStatus()
	}
	return out
}

// Output returns the Channel bound to a node's output slot, used by
// internal/control to attach SSE/WebSocket observers directly.
func (r *Runtime) Output(nodeID, slot string) (*channel.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slots, ok := r.outputs[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %q: %w", nodeID, core.ErrNodeNotFound)
	}
	ch, ok := slots[slot]
	if !ok {
		return nil, fmt.Errorf("slot %q: %w", slot, core.ErrUnknownSlot)
	}
	return ch, nil
}

// Stop cancels every node's task context, closes every channel to
// unblock downstream receivers, and waits up to timeout for all task
// goroutines to exit, aggregating each node's terminal error via
// multierr.
func (r *Runtime) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	stopFn := r.stop
	p := r.pool
	tasks := r.tasks
	outputs := r.outputs
	r.mu.Unlock()

	if stopFn != nil {
		stopFn()
	}

	for _, slots := range outputs {
		for _, ch := range slots {
			ch.Close()
		}
	}

	done := make(chan error, 1)
	go func() { done <- p.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			slog.Error("runtime stop: pool wait returned error", "error", err)
		}
	case <-time.After(timeout):
		slog.Warn("runtime stop: timed out waiting for node tasks")
	}

	var agg error
	for _, ts := range tasks {
		ts.mu.Lock()
		if ts.status == core.StatusError && ts.err != nil {
			agg = multierr.Append(agg, fmt.Errorf("node %s: %w", ts.node.ID, ts.err))
		}
		ts.mu.Unlock()
	}
	return agg
}

// ErrNotRunning names the not-running condition. No Runtime method
// returns it: Stop on a runtime that is not running returns nil.
var ErrNotRunning = errors.New("wireflow: runtime not running")
