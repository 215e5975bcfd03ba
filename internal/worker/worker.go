// Package worker drives one SDR end-to-end: acquisition, spectrogram,
// pulse extraction, shadow filtering, and emission onto the fan-out
// queue, while enforcing the real-time budget and watchdogs of
// spec.md §4.4.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/nature40/radiotracking-go/internal/dsp"
	"github.com/nature40/radiotracking-go/internal/extract"
	"github.com/nature40/radiotracking-go/internal/sdr"
	"github.com/nature40/radiotracking-go/internal/shadow"
	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

// Sink receives everything a worker emits: signals and lifecycle state
// messages. The fan-out queue implements it.
type Sink interface {
	Publish(sig.Message)
}

// Config holds the per-device tunables of spec.md §6.
type Config struct {
	Device             sig.DeviceID
	CalibrationDB      float64
	SampleRate         float64
	CenterFreq         float64
	Gain               float64
	FFTNperseg         int
	FFTWindow          string
	SignalMinDuration  time.Duration
	SignalMaxDuration  time.Duration
	SignalThresholdDBW float64
	SNRThresholdDB     float64
	SDRTimeout         time.Duration
	StateUpdateEvery   time.Duration
	BlockLen           int // samples per acquisition callback
}

// Health is the read-only snapshot a supervisor or /healthz handler
// consumes; LastDataTS is updated by the worker goroutine only and read
// by any number of others, per spec.md §5's single-writer/many-reader
// requirement.
type Health struct {
	LastDataTS atomic.Int64 // unix nanoseconds, 0 before first block
	State      atomic.Int32 // sig.State
}

func (h *Health) snapshot() (time.Time, sig.State) {
	ns := h.LastDataTS.Load()
	var ts time.Time
	if ns != 0 {
		ts = time.Unix(0, ns)
	}
	return ts, sig.State(h.State.Load())
}

// LastDataTSValue returns the last time a block was successfully received,
// the zero time if none has arrived yet.
func (h *Health) LastDataTSValue() time.Time {
	ts, _ := h.snapshot()
	return ts
}

// StateValue returns the worker's last published lifecycle state.
func (h *Health) StateValue() sig.State {
	_, st := h.snapshot()
	return st
}

// Worker owns one SDR for its entire lifetime; once it transitions to
// STOPPED it is done, per the state machine of spec.md §4.4 — a
// supervisor must construct a fresh Worker to retry.
type Worker struct {
	cfg    Config
	device sdr.Device
	sink   Sink
	health Health
	logger *log.Logger

	lastState     sig.State
	lastStateTS   time.Time
	haveLastState bool

	selfTS      time.Time
	haveSelfTS  bool

	extractor *extract.Extractor
}

// New builds a Worker around device, publishing to sink.
func New(cfg Config, device sdr.Device, sink Sink) *Worker {
	th := extract.NewThresholds(cfg.SignalThresholdDBW, cfg.SNRThresholdDB)
	return &Worker{
		cfg:    cfg,
		device: device,
		sink:   sink,
		logger: log.New(log.Writer(), fmt.Sprintf("[worker %s] ", cfg.Device), log.LstdFlags|log.Lmicroseconds),
		extractor: extract.NewExtractor(
			cfg.Device, cfg.CenterFreq, cfg.CalibrationDB,
			cfg.SignalMinDuration, cfg.SignalMaxDuration, th,
		),
	}
}

// Health returns the worker's live health snapshot.
func (w *Worker) Health() *Health { return &w.health }

// Run drives the acquisition loop until ctx is canceled, a watchdog
// fires, or the SDR reports an unrecoverable error. It always returns
// with the worker in STOPPED state (spec.md §4.4's terminal state) and
// never restarts itself — that is the supervisor's job.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.device.Open(ctx); err != nil {
		w.updateState(time.Now(), sig.StateStopped)
		return fmt.Errorf("worker %s: open: %w", w.cfg.Device, err)
	}
	defer w.device.Close()

	if err := w.device.SetSampleRate(w.cfg.SampleRate); err != nil {
		w.updateState(time.Now(), sig.StateStopped)
		return fmt.Errorf("worker %s: set sample rate: %w", w.cfg.Device, err)
	}
	if err := w.device.SetCenterFreq(w.cfg.CenterFreq); err != nil {
		w.updateState(time.Now(), sig.StateStopped)
		return fmt.Errorf("worker %s: set center freq: %w", w.cfg.Device, err)
	}
	if err := w.device.SetGain(w.cfg.Gain); err != nil {
		w.updateState(time.Now(), sig.StateStopped)
		return fmt.Errorf("worker %s: set gain: %w", w.cfg.Device, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for {
		deadline := time.Now().Add(w.cfg.SDRTimeout)
		blockCtx, blockCancel := context.WithDeadline(runCtx, deadline)
		block, err := w.device.ReadBlock(blockCtx, w.cfg.BlockLen)
		blockCancel()

		if err != nil {
			if blockCtx.Err() != nil && runCtx.Err() == nil {
				w.logger.Printf("watchdog fired, no data within %s", w.cfg.SDRTimeout)
			} else if runCtx.Err() != nil {
				w.logger.Printf("terminating: %v", runCtx.Err())
			} else {
				w.logger.Printf("read error: %v", err)
			}
			w.updateState(time.Now(), sig.StateStopped)
			return nil
		}

		if w.processBlock(block) {
			w.device.Cancel()
			w.updateState(time.Now(), sig.StateStopped)
			return nil
		}
	}
}

// processBlock advances the worker's clock, computes the spectrogram,
// extracts and filters signals, and publishes them. It returns true if
// the worker must terminate (clock drift exceeded spec.md §4.4's bound).
func (w *Worker) processBlock(block []complex128) bool {
	tsRecv := time.Now()
	blockLenS := float64(len(block)) / w.cfg.SampleRate
	blockLen := time.Duration(blockLenS * float64(time.Second))

	w.health.LastDataTS.Store(tsRecv.UnixNano())
	if !w.haveSelfTS {
		w.selfTS = tsRecv
		w.haveSelfTS = true
		w.updateState(tsRecv, sig.StateStarted)
	} else {
		w.selfTS = w.selfTS.Add(blockLen)
		w.updateState(tsRecv, sig.StateRunning)
	}

	clockDrift := tsRecv.Sub(w.selfTS)
	if clockDrift < 0 {
		clockDrift = -clockDrift
	}
	if clockDrift > 2*blockLen {
		w.logger.Printf("clock drift %s exceeds two blocks (%s), terminating", clockDrift, 2*blockLen)
		w.extractor = extract.NewExtractor(
			w.cfg.Device, w.cfg.CenterFreq, w.cfg.CalibrationDB,
			w.cfg.SignalMinDuration, w.cfg.SignalMaxDuration,
			extract.NewThresholds(w.cfg.SignalThresholdDBW, w.cfg.SNRThresholdDB),
		)
		return true
	}

	tsStart := w.selfTS.Add(-blockLen)

	benchStart := time.Now()
	spectro, err := dsp.Spectrogram(block, w.cfg.SampleRate, w.cfg.FFTWindow, w.cfg.FFTNperseg)
	if err != nil {
		w.logger.Printf("spectrogram error: %v", err)
		return false
	}
	benchSpectrogram := time.Now()

	signals := w.extractor.Extract(spectro, tsStart)
	benchExtract := time.Now()

	filtered := shadow.Filter(signals)
	benchFilter := time.Now()

	for _, s := range filtered {
		w.sink.Publish(s)
	}
	benchConsume := time.Now()

	w.logger.Printf(
		"recv %d samples, clock drift %.2fms, filtered %d/%d signals, block len %.1fms, compute %.1fms",
		len(block), clockDrift.Seconds()*1000, len(filtered), len(signals),
		blockLen.Seconds()*1000, benchConsume.Sub(benchStart).Seconds()*1000,
	)
	w.logger.Printf(
		"timings - spectrogram %.1fms, extract %.1fms, filter %.1fms, consume %.1fms",
		benchSpectrogram.Sub(benchStart).Seconds()*1000,
		benchExtract.Sub(benchSpectrogram).Seconds()*1000,
		benchFilter.Sub(benchExtract).Seconds()*1000,
		benchConsume.Sub(benchFilter).Seconds()*1000,
	)

	return false
}

// updateState publishes a StateMessage, rate-limited to once per
// StateUpdateEvery when the state is unchanged, per spec.md §3/§4.4.
func (w *Worker) updateState(ts time.Time, state sig.State) {
	if w.haveLastState && w.lastState == state {
		if ts.Sub(w.lastStateTS) < w.cfg.StateUpdateEvery {
			return
		}
	}
	w.lastState = state
	w.lastStateTS = ts
	w.haveLastState = true
	w.health.State.Store(int32(state))
	w.sink.Publish(sig.StateMessage{Device: w.cfg.Device, TS: ts.UTC(), State: state})
}
