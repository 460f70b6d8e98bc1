// Package channel implements the typed one-to-many publish/subscribe
// primitive of spec.md §4.1: bounded per-subscriber buffers,
// drop-oldest-on-full backpressure, and per-subscriber counters.
package channel

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/wireflow/wireflow/internal/core"
)

// Sizer lets a published item report its own byte size for the
// byte_count counters. Types with no natural size contribute 0
// (spec.md §4.1).
type Sizer interface {
	Size() int
}

// item couples a payload with its pre-computed byte size so publish
// doesn't call Size() once per subscriber.
type item struct {
	value any
	size  int
}

// Subscriber is a single downstream consumer attached to a Channel.
type Subscriber struct {
	id       string
	capacity int

	mu   sync.Mutex
	cond *sync.Cond
	buf  []item
	// closed mirrors the owning Channel's closed flag so Receive can
	// wake a blocked caller without touching the Channel's own lock.
	closed bool

	msgCount atomic.Uint64
	byteCount atomic.Uint64
	lag       atomic.Uint64
}

// ID is the subscribing node's id.
func (s *Subscriber) ID() string { return s.id }

// Counts returns the cumulative message/byte counters and the current
// lag: the cumulative number of drops, which nothing resets.
func (s *Subscriber) Counts() (msgCount, byteCount, lag uint64) {
	return s.msgCount.Load(), s.byteCount.Load(), s.lag.Load()
}

// BufferDepth returns the current number of buffered-but-undelivered items.
func (s *Subscriber) BufferDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Receive blocks until an item is available or the channel closes, in
// which case it returns (nil, false). This is the sole suspension
// point a node task's input loop parks on (spec.md §5).
func (s *Subscriber) Receive() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.buf) == 0 {
		return nil, false
	}
	it := s.buf[0]
	s.buf = s.buf[1:]
	return it.value, true
}

func (s *Subscriber) push(it item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if len(s.buf) >= s.capacity {
		// drop-oldest: discard buf[0], account the drop as lag, then enqueue.
		s.buf = s.buf[1:]
		s.lag.Add(1)
	}
	s.buf = append(s.buf, it)
	s.msgCount.Add(1)
	s.byteCount.Add(uint64(it.size))
	s.cond.Signal()
}

func (s *Subscriber) drainAndClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
	s.closed = true
	s.cond.Broadcast()
}

// Channel is the typed pub/sub primitive attached to one output slot of
// one node. Name is "<node_id>.<output_slot>" per spec.md §3.
type Channel struct {
	Name        string
	ElementType string
	Capacity    int

	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool

	msgCount  atomic.Uint64
	byteCount atomic.Uint64
	lastSend  atomic.Int64 // unix nanos; 0 = never sent
}

// New creates a Channel. capacity <= 0 is replaced with the spec's
// default of 64.
func New(name, elementType string, capacity int) *Channel {
	if capacity <= 0 {
		capacity = 64
	}
	return &Channel{
		Name:        name,
		ElementType: elementType,
		Capacity:    capacity,
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe attaches subscriberID with the channel's default capacity.
// Fails with core.ErrAlreadySubscribed if subscriberID is already
// attached.
func (c *Channel) Subscribe(subscriberID string) (*Subscriber, error) {
	return c.SubscribeWithCapacity(subscriberID, 0)
}

// SubscribeWithCapacity attaches subscriberID with its own buffer
// capacity, overriding the channel's default. capacity <= 0 falls
// back to the channel's Capacity. Per-subscriber capacity lets two
// consumers of the same channel apply different backpressure
// thresholds (spec.md §8 scenario 3: a "Slow" and a "Fast" subscriber
// on one channel).
func (c *Channel) SubscribeWithCapacity(subscriberID string, capacity int) (*Subscriber, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscribers[subscriberID]; ok {
		return nil, core.ErrAlreadySubscribed
	}
	if capacity <= 0 {
		capacity = c.Capacity
	}
	sub := &Subscriber{id: subscriberID, capacity: capacity}
	sub.cond = sync.NewCond(&sub.mu)
	if c.closed {
		sub.closed = true
	}
	c.subscribers[subscriberID] = sub
	return sub, nil
}

// Unsubscribe detaches subscriberID, draining and discarding its
// buffer. A no-op if the subscriber is already detached.
func (c *Channel) Unsubscribe(subscriberID string) {
	c.mu.Lock()
	sub, ok := c.subscribers[subscriberID]
	if ok {
		delete(c.subscribers, subscriberID)
	}
	c.mu.Unlock()
	if ok {
		sub.drainAndClose()
	}
}

// Subscribers returns a stable snapshot of currently-attached subscribers.
func (c *Channel) Subscribers() []*Subscriber {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Subscriber, 0, len(c.subscribers))
	for _, s := range c.subscribers {
		out = append(out, s)
	}
	return out
}

// Publish pushes value to every subscriber's buffer, dropping the
// oldest buffered item for any subscriber that is full. Publishing
// with zero subscribers is a no-op except for channel-level counters
// and last-send time (spec.md §4.1). Publish never blocks.
func (c *Channel) Publish(value any) {
	size := 0
	if sz, ok := value.(Sizer); ok {
		size = sz.Size()
	}
	it := item{value: value, size: size}

	c.mu.RLock()
	closed := c.closed
	subs := make([]*Subscriber, 0, len(c.subscribers))
	for _, s := range c.subscribers {
		subs = append(subs, s)
	}
	c.mu.RUnlock()

	if closed {
		return
	}

	c.msgCount.Add(1)
	c.byteCount.Add(uint64(size))
	c.lastSend.Store(time.Now().UnixNano())

	for _, s := range subs {
		s.push(it)
	}
}

// Close wakes all receivers; subsequent Publish calls are no-ops.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := make([]*Subscriber, 0, len(c.subscribers))
	for _, s := range c.subscribers {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.drainAndClose()
	}
}

// Counts returns the channel-level cumulative counters and the last
// publish time (zero time if nothing has ever been published).
func (c *Channel) Counts() (msgCount, byteCount uint64, lastSend time.Time) {
	ns := c.lastSend.Load()
	var t time.Time
	if ns != 0 {
		t = time.Unix(0, ns)
	}
	return c.msgCount.Load(), c.byteCount.Load(), t
}

// BufferDepth returns the max buffer depth across all subscribers
// (spec.md §3), and 0 for a channel with no subscribers.
func (c *Channel) BufferDepth() int {
	max := 0
	for _, s := range c.Subscribers() {
		if d := s.BufferDepth(); d > max {
			max = d
		}
	}
	return max
}
