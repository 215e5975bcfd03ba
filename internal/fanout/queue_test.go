package fanout

import (
	"context"
	"sync"
	"testing"
	"time"

	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

type recordingConsumer struct {
	mu       sync.Mutex
	received []sig.Message
}

func (c *recordingConsumer) Consume(m sig.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, m)
}

func (c *recordingConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func TestQueueDispatchesToAllConsumers(t *testing.T) {
	q := New(8, 50*time.Millisecond)
	a := &recordingConsumer{}
	b := &recordingConsumer{}
	q.Register(a)
	q.Register(b)

	q.Publish(sig.Signal{Frequency: 150000000})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Drain(ctx, 20*time.Millisecond)

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("expected both consumers to see the message, got a=%d b=%d", a.count(), b.count())
	}
}

func TestQueueNeverDropsStateMessages(t *testing.T) {
	q := New(2, 5*time.Millisecond)
	consumer := &recordingConsumer{}
	q.Register(consumer)

	// fill the queue beyond capacity with state messages only.
	for i := 0; i < 5; i++ {
		q.Publish(sig.StateMessage{Device: sig.IndexDeviceID(0), State: sig.StateRunning})
	}

	if q.Len() != 5 {
		t.Fatalf("expected all 5 state messages to be retained, got queue length %d", q.Len())
	}
}

func TestQueueDropsOldestNonStateUnderBackPressure(t *testing.T) {
	q := New(2, 5*time.Millisecond)
	consumer := &recordingConsumer{}
	q.Register(consumer)

	q.Publish(sig.Signal{Frequency: 1})
	q.Publish(sig.Signal{Frequency: 2})
	// queue is now full; this third publish must wait out pushTimeout and
	// then drop the oldest non-state entry to make room.
	q.Publish(sig.Signal{Frequency: 3})

	if q.Len() != 2 {
		t.Fatalf("expected queue length to stay at capacity 2, got %d", q.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Drain(ctx, 20*time.Millisecond)

	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	for _, m := range consumer.received {
		if s, ok := m.(sig.Signal); ok && s.Frequency == 1 {
			t.Fatal("expected the oldest signal to have been dropped under back-pressure")
		}
	}
}

func TestQueueDrainStopsAfterIdleWindow(t *testing.T) {
	q := New(8, 5*time.Millisecond)
	start := time.Now()
	ctx := context.Background()
	q.Drain(ctx, 30*time.Millisecond)
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected Drain to wait out the idle window, returned after %v", elapsed)
	}
}
