// Package fanout implements the many-producer, many-consumer
// broadcast pipeline of spec.md §4.5: any number of device workers
// publish Signal/MatchedSignal/StateMessage values, and every
// registered consumer sees every one of them.
package fanout

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

// Consumer receives every message broadcast through the Queue.
// Consumers registered directly with Register run inline, in turn, on
// the goroutine that calls Drain (the supervisor's dispatch thread) —
// per spec.md §5 this is reserved for cheap consumers (CSV, the
// matcher). A consumer that can block for real (a network publisher,
// a UI buffer) must instead be wrapped with NewAsync, which gives it
// its own buffered channel and goroutine so it can never stall dispatch.
type Consumer interface {
	Consume(sig.Message)
}

// ConsumerFunc adapts a plain function to Consumer.
type ConsumerFunc func(sig.Message)

func (f ConsumerFunc) Consume(m sig.Message) { f(m) }

var dropsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "radiotracking",
	Subsystem: "fanout",
	Name:      "drops_total",
	Help:      "Non-state messages dropped from the fan-out queue under back-pressure.",
})

// Queue is the bounded, thread-safe broadcast pipeline. Producers call
// Publish; consumers are registered up front with Register and driven by
// Drain.
type Queue struct {
	capacity    int
	pushTimeout time.Duration

	mu        sync.Mutex
	buf       []sig.Message
	consumers []Consumer

	notEmpty chan struct{}

	logger *log.Logger
}

// New builds a Queue with the given capacity and a bounded push timeout
// for back-pressure, per spec.md §4.5/§5.
func New(capacity int, pushTimeout time.Duration) *Queue {
	return &Queue{
		capacity:    capacity,
		pushTimeout: pushTimeout,
		buf:         make([]sig.Message, 0, capacity),
		notEmpty:    make(chan struct{}, 1),
		logger:      log.New(log.Writer(), "[fanout] ", log.LstdFlags),
	}
}

// Register adds a consumer. Registration must happen before any
// producer calls Publish, matching spec.md §4.7's "consumers registered
// at startup".
func (q *Queue) Register(c Consumer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.consumers = append(q.consumers, c)
}

// Publish is the producer-facing entry point (also satisfies
// worker.Sink). It never drops a StateMessage; non-state messages may be
// dropped under sustained back-pressure after waiting up to
// pushTimeout, per spec.md §4.5.
func (q *Queue) Publish(m sig.Message) {
	isState := func() bool { _, ok := m.(sig.StateMessage); return ok }()

	deadline := time.Now().Add(q.pushTimeout)
	for {
		q.mu.Lock()
		if len(q.buf) < q.capacity {
			q.buf = append(q.buf, m)
			q.mu.Unlock()
			q.signalNotEmpty()
			return
		}
		if isState || time.Now().After(deadline) {
			if !isState {
				// drop the oldest non-state message to make room.
				dropped := q.dropOldestNonState()
				if dropped {
					q.buf = append(q.buf, m)
					q.mu.Unlock()
					q.signalNotEmpty()
					return
				}
				// queue is entirely state messages; append anyway rather
				// than stall forever, since state messages are never
				// dropped.
			}
			q.buf = append(q.buf, m)
			q.mu.Unlock()
			q.signalNotEmpty()
			return
		}
		q.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
}

// dropOldestNonState removes the oldest non-StateMessage entry, if any,
// counting it toward the drops_total metric. Caller must hold q.mu.
func (q *Queue) dropOldestNonState() bool {
	for i, m := range q.buf {
		if _, ok := m.(sig.StateMessage); ok {
			continue
		}
		q.buf = append(q.buf[:i], q.buf[i+1:]...)
		dropsTotal.Inc()
		q.logger.Printf("dropped oldest message under back-pressure")
		return true
	}
	return false
}

func (q *Queue) signalNotEmpty() {
	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
}

// pop removes and returns the oldest message, or ok=false if the queue
// was empty.
func (q *Queue) pop() (sig.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return nil, false
	}
	m := q.buf[0]
	q.buf = q.buf[1:]
	return m, true
}

// Drain pops and dispatches messages to every registered consumer until
// ctx is done, or until the queue is empty and idle has passed since
// Drain was called (the window is not reset by arriving messages),
// matching the supervisor's ~1s drain budget of spec.md §4.7.
func (q *Queue) Drain(ctx context.Context, idle time.Duration) {
	deadline := time.Now().Add(idle)
	for {
		if m, ok := q.pop(); ok {
			q.dispatch(m)
			continue
		}
		if time.Now().After(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-q.notEmpty:
		case <-time.After(time.Until(deadline)):
			return
		}
	}
}

func (q *Queue) dispatch(m sig.Message) {
	q.mu.Lock()
	consumers := append([]Consumer(nil), q.consumers...)
	q.mu.Unlock()
	for _, c := range consumers {
		c.Consume(m)
	}
}

// Len reports the current queue depth, for health/metrics reporting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}
