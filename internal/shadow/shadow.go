// Package shadow implements the intra-block shadow-signal filter of
// spec.md §4.3: a weaker, time-overlapping detection in a different bin
// is dropped in favor of the louder one.
package shadow

import (
	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

// isShadowOf reports whether s is dominated by some other signal in
// signals: an overlapping detection with a strictly greater MaxDBW.
func isShadowOf(s sig.Signal, signals []sig.Signal) bool {
	for _, other := range signals {
		if !s.Overlaps(other) {
			continue
		}
		if other.MaxDBW > s.MaxDBW {
			return true
		}
	}
	return false
}

// Filter drops every signal in signals that is a shadow of another
// signal in the same list, preserving the relative order of survivors.
// It is O(K^2) in len(signals), which spec.md §4.3 notes is acceptable
// since per-block counts are small (tens).
//
// Filter is idempotent: applying it to its own output returns the same
// slice, since no survivor can be dominated by another survivor (if it
// were, it would have been dropped in the first pass too).
func Filter(signals []sig.Signal) []sig.Signal {
	out := make([]sig.Signal, 0, len(signals))
	for _, s := range signals {
		if !isShadowOf(s, signals) {
			out = append(out, s)
		}
	}
	return out
}
