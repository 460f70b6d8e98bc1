// Package metrics implements the periodic snapshot engine of
// spec.md §4.5: every sample_interval, every channel and node in a
// running graph is sampled into a Snapshot and fanned out to
// observers (the HTTP control surface's SSE /metrics stream).
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/wireflow/wireflow/internal/core"
	"github.com/wireflow/wireflow/internal/runtime"
	"github.com/wireflow/wireflow/internal/telemetry"
)

// ChannelSnapshot is one channel's state at sample time.
type ChannelSnapshot struct {
	Name        string               `json:"name"`
	ElementType string               `json:"element_type"`
	MsgCount    uint64               `json:"msg_count"`
	MsgDelta    uint64               `json:"msg_delta"`
	ByteCount   uint64               `json:"byte_count"`
	ByteDelta   uint64               `json:"byte_delta"`
	BufferDepth int                  `json:"buffer_depth"`
	LastSend    time.Time            `json:"last_send"`
	Subscribers []SubscriberSnapshot `json:"subscribers"`
}

// SubscriberSnapshot is one subscriber's counters at sample time.
type SubscriberSnapshot struct {
	ID          string `json:"id"`
	MsgCount    uint64 `json:"msg_count"`
	ByteCount   uint64 `json:"byte_count"`
	Lag         uint64 `json:"lag"`
	BufferDepth int    `json:"buffer_depth"`
}

// NodeSnapshot is one node's status at sample time.
type NodeSnapshot struct {
	ID     string      `json:"id"`
	Status core.Status `json:"status"`
}

// Snapshot is a full point-in-time sample of the running graph.
type Snapshot struct {
	Timestamp time.Time         `json:"timestamp"`
	Channels  []ChannelSnapshot `json:"channels"`
	Nodes     []NodeSnapshot    `json:"nodes"`
}

// Observer receives every snapshot the engine produces. Implementations
// must not block; internal/control's SSE handler uses a buffered
// per-client channel and drops samples a slow client has no room for
// rather than stalling the engine.
type Observer func(Snapshot)

// Engine periodically samples a Runtime and fans the result out to
// observers, also mirroring cumulative counters into the
// internal/telemetry Prometheus collectors.
type Engine struct {
	rt       *runtime.Runtime
	interval time.Duration

	mu        sync.Mutex
	observers map[int]Observer
	nextID    int
	prevMsg   map[string]uint64
	prevByte  map[string]uint64
}

// NewEngine builds a sampling engine over rt. interval <= 0 uses the
// spec's 500ms default.
func NewEngine(rt *runtime.Runtime, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Engine{
		rt:        rt,
		interval:  interval,
		observers: make(map[int]Observer),
		prevMsg:   make(map[string]uint64),
		prevByte:  make(map[string]uint64),
	}
}

// Subscribe registers an observer and returns an unsubscribe func.
func (e *Engine) Subscribe(obs Observer) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.observers[id] = obs
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.observers, id)
		e.mu.Unlock()
	}
}

// Run samples on a ticker until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sampleOnce()
		}
	}
}

func (e *Engine) sampleOnce() {
	snap := Snapshot{Timestamp: time.Now()}

	for _, ci := range e.rt.Channels() {
		msgCount, byteCount, lastSend := ci.Ch.Counts()
		key := ci.Ch.Name

		e.mu.Lock()
		msgDelta := msgCount - e.prevMsg[key]
		byteDelta := byteCount - e.prevByte[key]
		e.prevMsg[key] = msgCount
		e.prevByte[key] = byteCount
		e.mu.Unlock()

		cs := ChannelSnapshot{
			Name:        ci.Ch.Name,
			ElementType: ci.Ch.ElementType,
			MsgCount:    msgCount,
			MsgDelta:    msgDelta,
			ByteCount:   byteCount,
			ByteDelta:   byteDelta,
			BufferDepth: ci.Ch.BufferDepth(),
			LastSend:    lastSend,
		}
		for _, sub := range ci.Ch.Subscribers() {
			subMsg, subByte, lag := sub.Counts()
			cs.Subscribers = append(cs.Subscribers, SubscriberSnapshot{
				ID:          sub.ID(),
				MsgCount:    subMsg,
				ByteCount:   subByte,
				Lag:         lag,
				BufferDepth: sub.BufferDepth(),
			})
			telemetry.ChannelSubscriberLag.WithLabelValues(ci.Ch.Name, sub.ID()).Set(float64(lag))
		}
		snap.Channels = append(snap.Channels, cs)

		telemetry.ChannelMessagesTotal.WithLabelValues(ci.Ch.Name).Add(float64(msgDelta))
		telemetry.ChannelBytesTotal.WithLabelValues(ci.Ch.Name).Add(float64(byteDelta))
		telemetry.ChannelBufferDepth.WithLabelValues(ci.Ch.Name).Set(float64(cs.BufferDepth))
	}

	for nodeID, status := range e.rt.NodeStatuses() {
		snap.Nodes = append(snap.Nodes, NodeSnapshot{ID: nodeID, Status: status})
		telemetry.NodeStatus.WithLabelValues(nodeID, string(status)).Set(telemetry.StatusValue(string(status)))
	}

	e.mu.Lock()
	observers := make([]Observer, 0, len(e.observers))
	for _, obs := range e.observers {
		observers = append(observers, obs)
	}
	e.mu.Unlock()

	for _, obs := range observers {
		obs(snap)
	}
}
