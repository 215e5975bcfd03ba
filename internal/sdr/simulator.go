package sdr

import (
	"context"
	"math"
	"math/rand"
)

// Simulator is a deterministic synthetic-tone SDR backing the boundary
// scenarios of spec.md §8 (S1-S3): it emits a noise floor with optional
// tone bursts at configured sample offsets, instead of talking to real
// hardware. It is not registered under any build tag, since it has no
// cgo dependency — only the real hardware driver does.
type Simulator struct {
	SampleRate float64
	NoiseFloor float64 // linear power
	Tones      []Tone

	rng    *rand.Rand
	cursor int // absolute sample index already emitted
	cancel chan struct{}
}

// Tone is a synthetic carrier present for [StartSample, StartSample+Length).
type Tone struct {
	StartSample int
	Length      int
	PowerLinear float64
	FreqOffset  float64 // Hz relative to center
}

// NewSimulator builds a Simulator seeded for reproducible test runs.
func NewSimulator(sampleRate, noiseFloor float64, tones []Tone, seed int64) *Simulator {
	return &Simulator{
		SampleRate: sampleRate,
		NoiseFloor: noiseFloor,
		Tones:      tones,
		rng:        rand.New(rand.NewSource(seed)),
		cancel:     make(chan struct{}, 1),
	}
}

func (s *Simulator) Open(ctx context.Context) error             { return nil }
func (s *Simulator) SetSampleRate(hz float64) error              { s.SampleRate = hz; return nil }
func (s *Simulator) SetCenterFreq(hz float64) error              { return nil }
func (s *Simulator) SetGain(gain float64) error                  { return nil }
func (s *Simulator) Close() error                                { return nil }

// Cancel causes the next ReadBlock call to return early with
// context.Canceled, the same contract a real cancel-read would give.
func (s *Simulator) Cancel() {
	select {
	case s.cancel <- struct{}{}:
	default:
	}
}

// ReadBlock synthesizes blockLen complex samples: a white-noise floor,
// plus any configured tones whose [StartSample, StartSample+Length)
// window intersects the block being emitted.
func (s *Simulator) ReadBlock(ctx context.Context, blockLen int) ([]complex128, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.cancel:
		return nil, context.Canceled
	default:
	}

	out := make([]complex128, blockLen)
	noiseAmp := math.Sqrt(s.NoiseFloor / 2)
	for i := range out {
		out[i] = complex(s.rng.NormFloat64()*noiseAmp, s.rng.NormFloat64()*noiseAmp)
	}

	absStart := s.cursor
	for _, t := range s.Tones {
		toneAmp := math.Sqrt(t.PowerLinear)
		for i := 0; i < blockLen; i++ {
			sampleIdx := absStart + i
			if sampleIdx < t.StartSample || sampleIdx >= t.StartSample+t.Length {
				continue
			}
			phase := 2 * math.Pi * t.FreqOffset * float64(sampleIdx) / s.SampleRate
			out[i] += complex(toneAmp*math.Cos(phase), toneAmp*math.Sin(phase))
		}
	}

	s.cursor += blockLen
	return out, nil
}
