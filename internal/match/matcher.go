// Package match implements the streaming cross-device signal matcher of
// spec.md §4.6: it groups concurrent per-device Signal detections into
// MatchedSignal groups, expiring and emitting groups once no newer
// signal could still join them.
package match

import (
	"time"

	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

// Tolerances are the matching windows of spec.md §4.6. DurationDiff is
// optional: a zero value disables the duration check.
type Tolerances struct {
	Time         time.Duration
	Bandwidth    float64 // Hz
	DurationDiff time.Duration
	Timeout      time.Duration // expiry window
}

// Sink receives emitted MatchedSignal groups. The fan-out queue
// implements it via its Publish method, adapted by Matcher.emit.
type Sink interface {
	Publish(sig.Message)
}

type group struct {
	m *sig.MatchedSignal
}

// Matcher holds the in-flight groups and the configured device set.
// It is not safe for concurrent use from multiple goroutines; spec.md
// §4.6/§5 treats the matcher as a single inline consumer.
type Matcher struct {
	devices []sig.DeviceID
	tol     Tolerances
	sink    Sink

	groups []*group
}

// New builds a Matcher for the given device set.
func New(devices []sig.DeviceID, tol Tolerances, sink Sink) *Matcher {
	return &Matcher{devices: devices, tol: tol, sink: sink}
}

// Consume implements fanout.Consumer: it is wired to observe every
// message on the fan-out queue, but only Signal values drive the state
// machine (MatchedSignal and StateMessage pass through untouched, and a
// matcher must never re-consume its own emitted MatchedSignal, per
// spec.md §2).
func (mr *Matcher) Consume(msg sig.Message) {
	s, ok := msg.(sig.Signal)
	if !ok {
		return
	}
	mr.Add(s)
}

// Add processes one incoming Signal per the three-step algorithm of
// spec.md §4.6: expire, attach, or create.
func (mr *Matcher) Add(s sig.Signal) {
	mr.expire(s.TS)

	for _, g := range mr.groups {
		if mr.hasMember(g.m, s) {
			g.m.AddMember(s.Device, s)
			return
		}
	}

	mr.groups = append(mr.groups, &group{m: sig.NewMatchedSignal(mr.devices, s.Device, s)})
}

// expire removes and emits every in-flight group whose TS is older than
// now-Timeout, per spec.md §4.6/§9 (keyed on TS, the group's first-
// insertion time, never ts_mid).
func (mr *Matcher) expire(now time.Time) {
	cutoff := now.Add(-mr.tol.Timeout)
	kept := mr.groups[:0]
	for _, g := range mr.groups {
		if g.m.TS.Before(cutoff) {
			mr.emit(g.m)
			continue
		}
		kept = append(kept, g)
	}
	mr.groups = kept
}

// Flush force-expires every remaining in-flight group, for clean
// shutdown (no retroactive re-matching is possible after this, per
// spec.md §1's Non-goals).
func (mr *Matcher) Flush() {
	for _, g := range mr.groups {
		mr.emit(g.m)
	}
	mr.groups = nil
}

func (mr *Matcher) emit(m *sig.MatchedSignal) {
	mr.sink.Publish(*m)
}

// hasMember implements the has_member test of spec.md §4.6.
func (mr *Matcher) hasMember(m *sig.MatchedSignal, s sig.Signal) bool {
	df := s.Frequency - m.Frequency
	if df < 0 {
		df = -df
	}
	if df > mr.tol.Bandwidth/2 {
		return false
	}

	groupEnd := m.TS.Add(m.Duration)
	sEnd := s.TS.Add(s.Duration)
	if s.TS.Add(-mr.tol.Time).After(groupEnd) {
		return false
	}
	if sEnd.Add(mr.tol.Time).Before(m.TS) {
		return false
	}

	if mr.tol.DurationDiff > 0 {
		dd := s.Duration - m.Duration
		if dd < 0 {
			dd = -dd
		}
		if dd > mr.tol.DurationDiff/2 {
			return false
		}
	}

	return true
}
