package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/nature40/radiotracking-go/internal/fanout"
	"github.com/nature40/radiotracking-go/internal/sdr"
	"github.com/nature40/radiotracking-go/internal/worker"
	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

// TestCheckAndRespawnSkipsScheduledOffWorkers guards against a regression
// where checkAndRespawn mistook a worker StopAll had deliberately stopped
// (e.g. for a scheduled "off" interval) for a dead one, and burned through
// its restart budget respawning it every tick until onFatal fired.
func TestCheckAndRespawnSkipsScheduledOffWorkers(t *testing.T) {
	queue := fanout.New(16, 10*time.Millisecond)
	fatalCalled := false
	sup := New(queue, 10*time.Millisecond, func(error) { fatalCalled = true })

	cfg := worker.Config{
		Device:            sig.IndexDeviceID(0),
		SampleRate:        1000,
		BlockLen:          50,
		SDRTimeout:        50 * time.Millisecond,
		FFTNperseg:        16,
		FFTWindow:         "hann",
		SignalMaxDuration: time.Second,
	}
	sup.AddWorker(cfg, 2, func(id sig.DeviceID) (sdr.Device, error) {
		return sdr.NewSimulator(1000, 1e-6, nil, 1), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.StartAll(ctx)
	time.Sleep(20 * time.Millisecond) // let the worker goroutine actually start

	sup.StopAll() // the applySchedule "entering off interval" path
	time.Sleep(100 * time.Millisecond) // let the worker goroutine observe cancellation

	// simulate several supervision ticks during the scheduled-off interval
	for i := 0; i < 5; i++ {
		sup.checkAndRespawn(ctx)
	}

	sup.mu.Lock()
	mw := sup.workers[0]
	restartLeft := mw.restartLeft
	running := mw.running
	sup.mu.Unlock()

	if restartLeft != 2 {
		t.Fatalf("expected restart budget to be untouched while scheduled off, got %d", restartLeft)
	}
	if running {
		t.Fatal("expected the worker to remain stopped through the scheduled-off interval")
	}
	if fatalCalled {
		t.Fatal("expected onFatal to never fire for a deliberately stopped worker")
	}
}

// TestCheckAndRespawnStillRespawnsDeadWorkers confirms the scheduledOff
// skip does not also suppress respawning a worker that actually died
// (stale health, never deliberately stopped).
func TestCheckAndRespawnStillRespawnsDeadWorkers(t *testing.T) {
	queue := fanout.New(16, 10*time.Millisecond)
	sup := New(queue, 10*time.Millisecond, nil)

	cfg := worker.Config{
		Device:            sig.IndexDeviceID(0),
		SampleRate:        1000,
		BlockLen:          50,
		SDRTimeout:        20 * time.Millisecond,
		FFTNperseg:        16,
		FFTWindow:         "hann",
		SignalMaxDuration: time.Second,
	}
	sup.AddWorker(cfg, 2, func(id sig.DeviceID) (sdr.Device, error) {
		return sdr.NewSimulator(1000, 1e-6, nil, 1), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.StartAll(ctx)
	time.Sleep(20 * time.Millisecond)

	// force the worker to look dead without going through StopAll, by
	// simulating a stale health snapshot directly.
	sup.mu.Lock()
	mw := sup.workers[0]
	mw.health.LastDataTS.Store(time.Now().Add(-time.Hour).UnixNano())
	sup.mu.Unlock()

	sup.checkAndRespawn(ctx)

	sup.mu.Lock()
	restartLeft := mw.restartLeft
	scheduledOff := mw.scheduledOff
	sup.mu.Unlock()

	if restartLeft != 1 {
		t.Fatalf("expected a genuinely dead worker to consume one restart, got restartLeft=%d", restartLeft)
	}
	if scheduledOff {
		t.Fatal("a respawn of a dead worker must not be mistaken for a scheduled stop")
	}
}
