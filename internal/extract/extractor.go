// Package extract implements the per-frequency-bin plateau detector of
// spec.md §4.2: it walks each bin's time axis, applies the absolute and
// SNR power gates, stitches candidates across a block boundary using the
// previous block's tail, and emits Signal values.
package extract

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/nature40/radiotracking-go/internal/dsp"
	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

// Thresholds converts the configured dBW/dB thresholds to linear power
// ratios once, per spec.md §4.2.
type Thresholds struct {
	SignalLinear float64 // 10^(signal_threshold_dbw/10)
	SNRLinear    float64 // 10^(snr_threshold_db/10)
}

// NewThresholds builds Thresholds from the configured dB values.
func NewThresholds(signalThresholdDBW, snrThresholdDB float64) Thresholds {
	return Thresholds{
		SignalLinear: fromDB(signalThresholdDBW),
		SNRLinear:    fromDB(snrThresholdDB),
	}
}

func fromDB(db float64) float64  { return math.Pow(10, db/10) }
func toDB(lin float64) float64   { return 10 * math.Log10(lin) }

// Extractor holds the cross-block state (the previous block, kept for
// exactly one additional step per spec.md §3's Lifecycles) needed to
// stitch a pulse that starts near a block boundary.
type Extractor struct {
	Device             sig.DeviceID
	CenterFreq         float64
	CalibrationDB      float64
	MinDuration        time.Duration
	MaxDuration        time.Duration
	Thresholds         Thresholds

	prev *dsp.Block // previous block, or nil before the first block
}

// NewExtractor builds an Extractor for one device.
func NewExtractor(device sig.DeviceID, centerFreq, calibrationDB float64, minDuration, maxDuration time.Duration, th Thresholds) *Extractor {
	return &Extractor{
		Device:        device,
		CenterFreq:    centerFreq,
		CalibrationDB: calibrationDB,
		MinDuration:   minDuration,
		MaxDuration:   maxDuration,
		Thresholds:    th,
	}
}

// Extract walks block, emitting Signals whose onset is blockStart plus
// the time offset of the pulse's first sample. On return, block becomes the extractor's new "previous
// block" for the next call, per the one-block stitching lifecycle of
// spec.md §3; the block handed in on the prior call is discarded.
func (e *Extractor) Extract(block dsp.Block, blockStart time.Time) []sig.Signal {
	var out []sig.Signal

	if len(block.Times) == 0 {
		e.prev = nil
		return out
	}

	minDurS := e.MinDuration.Seconds()
	step := int(math.Floor(minDurS / block.Dt))
	if step < 1 {
		step = 1
	}

	T := len(block.Times)

	for fi, fft := range block.Power {
		var freqAvg float64
		haveFreqAvg := false
		freq := block.Freqs[fi] + e.CenterFreq
		tiSkip := 0

		for ti := 0; ti < T; ti += step {
			if ti < tiSkip {
				continue
			}
			if fft[ti] < e.Thresholds.SignalLinear {
				continue
			}
			if !haveFreqAvg {
				freqAvg = stat.Mean(fft, nil)
				haveFreqAvg = true
			}
			if fft[ti]/freqAvg < e.Thresholds.SNRLinear {
				continue
			}

			startMin := 0
			var prevRow []float64
			var prevTimes []float64
			if e.prev != nil {
				prevRow = e.prev.Power[fi]
				prevTimes = e.prev.Times
				startMin = -len(prevTimes) + 1
			}

			start := ti
			for start > startMin {
				var power float64
				if start < 0 {
					power = prevRow[len(prevRow)+start]
				} else {
					power = fft[start]
				}
				if power < e.Thresholds.SignalLinear {
					break
				}
				if power/freqAvg < e.Thresholds.SNRLinear {
					break
				}
				start--
			}

			end := ti
			for end < T {
				if fft[end] < e.Thresholds.SignalLinear {
					tiSkip = end
					break
				}
				if fft[end]/freqAvg < e.Thresholds.SNRLinear {
					tiSkip = end
					break
				}
				end++
			}

			if end == T {
				// laps into the next block; it will be re-detected once
				// that block arrives and this one becomes "prev".
				continue
			}

			var startDt float64
			if start < 0 {
				startDt = -prevTimes[-start]
			} else {
				startDt = block.Times[start]
			}
			endDt := block.Times[end]
			durationS := endDt - startDt
			if durationS < minDurS {
				continue
			}
			if durationS > e.MaxDuration.Seconds() {
				continue
			}

			var data []float64
			if start < 0 {
				data = append(append([]float64(nil), prevRow[len(prevRow)+start:]...), fft[:end]...)
			} else {
				data = append([]float64(nil), fft[start:end]...)
			}

			maxLin := maxOf(data)
			avgLin := stat.Mean(data, nil)
			dBData := make([]float64, len(data))
			for i, v := range data {
				dBData[i] = toDB(v)
			}
			stdDB := stat.StdDev(dBData, nil)

			ts := blockStart.Add(time.Duration(startDt * float64(time.Second)))

			s := sig.Signal{
				Device:    e.Device,
				TS:        ts,
				Frequency: freq,
				Duration:  time.Duration(durationS * float64(time.Second)),
				MaxDBW:    toDB(maxLin) - e.CalibrationDB,
				AvgDBW:    toDB(avgLin) - e.CalibrationDB,
				StdDB:     stdDB,
				NoiseDBW:  toDB(freqAvg),
				SNRdB:     toDB(avgLin / freqAvg),
			}
			out = append(out, s)
		}
	}

	e.prev = &block
	return out
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

