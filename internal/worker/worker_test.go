package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nature40/radiotracking-go/internal/sdr"
	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

type captureSink struct {
	mu       sync.Mutex
	messages []sig.Message
}

func (c *captureSink) Publish(m sig.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

func (c *captureSink) states() []sig.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sig.State
	for _, m := range c.messages {
		if sm, ok := m.(sig.StateMessage); ok {
			out = append(out, sm.State)
		}
	}
	return out
}

// blockingDevice never returns from ReadBlock until its context is done,
// simulating a dead or disconnected SDR for the watchdog test.
type blockingDevice struct{}

func (blockingDevice) Open(ctx context.Context) error        { return nil }
func (blockingDevice) SetSampleRate(hz float64) error         { return nil }
func (blockingDevice) SetCenterFreq(hz float64) error         { return nil }
func (blockingDevice) SetGain(gain float64) error             { return nil }
func (blockingDevice) Cancel()                                {}
func (blockingDevice) Close() error                            { return nil }
func (blockingDevice) ReadBlock(ctx context.Context, blockLen int) ([]complex128, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWorkerWatchdogTerminatesOnNoData(t *testing.T) {
	cfg := Config{
		Device:             sig.IndexDeviceID(0),
		SampleRate:         1000,
		BlockLen:           100,
		SDRTimeout:         30 * time.Millisecond,
		StateUpdateEvery:   time.Millisecond,
		FFTNperseg:         16,
		FFTWindow:          "hann",
		SignalMinDuration:  0,
		SignalMaxDuration:  time.Second,
		SignalThresholdDBW: 0,
		SNRThresholdDB:     0,
	}
	sink := &captureSink{}
	w := New(cfg, blockingDevice{}, sink)

	start := time.Now()
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < cfg.SDRTimeout {
		t.Fatalf("expected Run to wait out the watchdog timeout, returned after %v", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("expected Run to return promptly after the watchdog fires, took %v", elapsed)
	}
	if got := w.Health().StateValue(); got != sig.StateStopped {
		t.Fatalf("expected terminal state STOPPED, got %s", got)
	}
}

func TestWorkerRunPublishesStartedState(t *testing.T) {
	device := sdr.NewSimulator(1000, 1e-6, nil, 1)
	cfg := Config{
		Device:             sig.IndexDeviceID(0),
		SampleRate:         1000,
		BlockLen:           100,
		SDRTimeout:         200 * time.Millisecond,
		StateUpdateEvery:   10 * time.Millisecond,
		FFTNperseg:         20,
		FFTWindow:          "hann",
		SignalMinDuration:  0,
		SignalMaxDuration:  time.Second,
		SignalThresholdDBW: 40, // unreachable threshold, keeps this test signal-agnostic
		SNRThresholdDB:     40,
	}
	sink := &captureSink{}
	w := New(cfg, device, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	states := sink.states()
	if len(states) == 0 {
		t.Fatal("expected at least one state message to have been published")
	}
	if states[0] != sig.StateStarted {
		t.Fatalf("expected the first published state to be STARTED, got %s", states[0])
	}
	if got := w.Health().StateValue(); got != sig.StateStopped {
		t.Fatalf("expected terminal state STOPPED after Run returns, got %s", got)
	}
}
