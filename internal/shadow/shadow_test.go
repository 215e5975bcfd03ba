package shadow

import (
	"testing"
	"time"

	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

func TestFilterDropsOverlappingQuieterSignal(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	loud := sig.Signal{Frequency: 150000000, TS: base, Duration: 100 * time.Millisecond, MaxDBW: -20}
	quiet := sig.Signal{Frequency: 150050000, TS: base.Add(10 * time.Millisecond), Duration: 100 * time.Millisecond, MaxDBW: -40}

	out := Filter([]sig.Signal{loud, quiet})

	if len(out) != 1 {
		t.Fatalf("expected exactly one survivor, got %d", len(out))
	}
	if out[0].MaxDBW != loud.MaxDBW {
		t.Fatalf("expected the louder signal to survive, got MaxDBW=%v", out[0].MaxDBW)
	}
}

func TestFilterKeepsNonOverlappingSignals(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := sig.Signal{Frequency: 150000000, TS: base, Duration: 50 * time.Millisecond, MaxDBW: -20}
	b := sig.Signal{Frequency: 150050000, TS: base.Add(time.Second), Duration: 50 * time.Millisecond, MaxDBW: -40}

	out := Filter([]sig.Signal{a, b})
	if len(out) != 2 {
		t.Fatalf("expected both non-overlapping signals to survive, got %d", len(out))
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	signals := []sig.Signal{
		{Frequency: 150000000, TS: base, Duration: 100 * time.Millisecond, MaxDBW: -15},
		{Frequency: 150050000, TS: base.Add(10 * time.Millisecond), Duration: 100 * time.Millisecond, MaxDBW: -30},
		{Frequency: 150100000, TS: base.Add(20 * time.Millisecond), Duration: 100 * time.Millisecond, MaxDBW: -45},
	}

	once := Filter(signals)
	twice := Filter(once)

	if len(once) != len(twice) {
		t.Fatalf("Filter was not idempotent: once=%d twice=%d", len(once), len(twice))
	}
}
