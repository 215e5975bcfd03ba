package dashboard

import (
	"testing"
	"time"

	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

func TestBufferBoundsSignalHistory(t *testing.T) {
	b := New(3)
	for i := 0; i < 10; i++ {
		b.Consume(sig.Signal{Frequency: float64(i)})
	}

	snap := b.Snapshot()
	if len(snap.Signals) != 3 {
		t.Fatalf("expected buffer to be bounded to capacity 3, got %d", len(snap.Signals))
	}
	// the most recent 3 entries (frequencies 7, 8, 9) must survive.
	if snap.Signals[len(snap.Signals)-1].Frequency != 9 {
		t.Fatalf("expected the most recent signal to be retained, got %+v", snap.Signals)
	}
}

func TestBufferKeepsLatestStatePerDevice(t *testing.T) {
	b := New(10)
	dev := sig.IndexDeviceID(0)

	b.Consume(sig.StateMessage{Device: dev, TS: time.Unix(1, 0), State: sig.StateStarted})
	b.Consume(sig.StateMessage{Device: dev, TS: time.Unix(2, 0), State: sig.StateRunning})

	snap := b.Snapshot()
	got, ok := snap.States[dev.String()]
	if !ok {
		t.Fatal("expected a state entry for the device")
	}
	if got.State != sig.StateRunning {
		t.Fatalf("expected the latest state to be RUNNING, got %s", got.State)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	b := New(5)
	b.Consume(sig.Signal{Frequency: 1})

	snap := b.Snapshot()
	snap.Signals[0].Frequency = 999

	fresh := b.Snapshot()
	if fresh.Signals[0].Frequency == 999 {
		t.Fatal("expected Snapshot to return an independent copy, mutation leaked into the buffer")
	}
}
