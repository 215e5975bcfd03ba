package fanout

import (
	"sync"
	"testing"
	"time"

	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

type blockingRecorder struct {
	mu  sync.Mutex
	got []sig.Message
	// block, if non-nil, is closed to release the first Consume call —
	// used to prove AsyncConsumer.Consume itself never blocks.
	block chan struct{}
}

func (r *blockingRecorder) Consume(m sig.Message) {
	if r.block != nil {
		<-r.block
		r.block = nil
	}
	r.mu.Lock()
	r.got = append(r.got, m)
	r.mu.Unlock()
}

func (r *blockingRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestAsyncConsumerDeliversOffCaller(t *testing.T) {
	rec := &blockingRecorder{}
	a := NewAsync("test", rec, 8)
	defer a.Close()

	a.Consume(sig.StateMessage{Device: sig.IndexDeviceID(0)})
	a.Consume(sig.StateMessage{Device: sig.IndexDeviceID(1)})

	deadline := time.Now().Add(time.Second)
	for rec.len() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := rec.len(); got != 2 {
		t.Fatalf("expected 2 delivered messages, got %d", got)
	}
}

func TestAsyncConsumerConsumeNeverBlocksOnSlowNext(t *testing.T) {
	rec := &blockingRecorder{block: make(chan struct{})}
	a := NewAsync("test", rec, 2)
	defer func() {
		close(rec.block)
		a.Close()
	}()

	done := make(chan struct{})
	go func() {
		// the first message wedges the background goroutine inside
		// rec.Consume; Consume itself must still return immediately
		// for every call, even once the buffer is full.
		for i := 0; i < 4; i++ {
			a.Consume(sig.StateMessage{Device: sig.IndexDeviceID(uint32(i))})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Consume blocked on a stalled downstream consumer")
	}
}
