package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireflow/wireflow/internal/core"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	ch := New("src.out", "int", 4)
	a, err := ch.Subscribe("a")
	require.NoError(t, err)
	b, err := ch.Subscribe("b")
	require.NoError(t, err)

	ch.Publish(1)

	va, ok := a.Receive()
	require.True(t, ok)
	assert.Equal(t, 1, va)

	vb, ok := b.Receive()
	require.True(t, ok)
	assert.Equal(t, 1, vb)
}

func TestSubscribeDuplicateRejected(t *testing.T) {
	ch := New("src.out", "int", 4)
	_, err := ch.Subscribe("a")
	require.NoError(t, err)

	_, err = ch.Subscribe("a")
	assert.ErrorIs(t, err, core.ErrAlreadySubscribed)
}

func TestDropOldestOnFull(t *testing.T) {
	ch := New("src.out", "int", 2)
	sub, err := ch.Subscribe("slow")
	require.NoError(t, err)

	ch.Publish(1)
	ch.Publish(2)
	ch.Publish(3) // drops 1

	v, ok := sub.Receive()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = sub.Receive()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, _, lag := sub.Counts()
	assert.Equal(t, uint64(1), lag)
}

func TestUnsubscribeWakesReceiver(t *testing.T) {
	ch := New("src.out", "int", 4)
	sub, err := ch.Subscribe("a")
	require.NoError(t, err)

	done := make(chan bool, 1)
	go func() {
		_, ok := sub.Receive()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	ch.Unsubscribe("a")

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Receive did not unblock after Unsubscribe")
	}
}

func TestCloseWakesAllReceivers(t *testing.T) {
	ch := New("src.out", "int", 4)
	a, _ := ch.Subscribe("a")
	b, _ := ch.Subscribe("b")

	results := make(chan bool, 2)
	go func() { _, ok := a.Receive(); results <- ok }()
	go func() { _, ok := b.Receive(); results <- ok }()

	time.Sleep(10 * time.Millisecond)
	ch.Close()

	for i := 0; i < 2; i++ {
		select {
		case ok := <-results:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("Receive did not unblock after Close")
		}
	}
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	ch := New("src.out", "int", 4)
	ch.Publish(1)
	msgCount, _, lastSend := ch.Counts()
	assert.Equal(t, uint64(1), msgCount)
	assert.False(t, lastSend.IsZero())
}

func TestBufferDepthReflectsMaxAcrossSubscribers(t *testing.T) {
	ch := New("src.out", "int", 4)
	fast, _ := ch.Subscribe("fast")
	slow, _ := ch.Subscribe("slow")

	ch.Publish(1)
	ch.Publish(2)

	_, _ = fast.Receive()

	assert.Equal(t, 2, ch.BufferDepth())
	_, _ = slow.Receive()
	_, _ = slow.Receive()
	_, _ = fast.Receive()
}
