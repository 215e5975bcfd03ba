// Package dsp computes windowed, two-sided power spectrograms of a
// fixed-size complex I/Q sample block, per spec.md §4.1.
package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Window names accepted by Spectrogram, extending the window-function
// enum grounded on the rtl-sdr config style in the retrieval pack.
const (
	WindowRectangular = "rectangular"
	WindowHann        = "hann"
	WindowHamming     = "hamming"
	WindowBlackman    = "blackman"
)

// Block is the ephemeral, per-step spectrogram output of spec.md §3:
// a two-sided, signed frequency axis, within-block sample times with
// constant stride, and linear (not dB) power, strictly positive.
type Block struct {
	Freqs []float64   // bin offsets from DC, Hz, may be negative
	Times []float64   // within-block sample times, seconds
	Power [][]float64 // Power[f][t], linear, > 0
	Dt    float64     // times[1]-times[0]
}

// Spectrogram computes a zero-overlap, nperseg-segmented, two-sided
// power spectral density of samples sampled at fs, after applying the
// named window to each segment.
//
// T = N / nperseg segments are produced; when N < nperseg the result is
// empty (T=0), matching the "empty times" edge case of spec.md §4.2.
func Spectrogram(samples []complex128, fs float64, windowName string, nperseg int) (Block, error) {
	if nperseg <= 0 {
		return Block{}, fmt.Errorf("dsp: nperseg must be positive, got %d", nperseg)
	}

	win, err := windowCoefficients(windowName, nperseg)
	if err != nil {
		return Block{}, err
	}

	n := len(samples)
	segCount := n / nperseg
	if segCount == 0 {
		return Block{}, nil
	}

	fft := fourier.NewCmplxFFT(nperseg)
	freqs := binFreqs(fft, nperseg, fs)

	// normalize by window power for a power spectral density, matching
	// scipy.signal.spectrogram's default 'density' scaling.
	winPower := 0.0
	for _, w := range win {
		winPower += w * w
	}
	scale := 1.0 / (fs * winPower)

	power := make([][]float64, nperseg)
	for i := range power {
		power[i] = make([]float64, segCount)
	}

	segment := make([]complex128, nperseg)
	dt := float64(nperseg) / fs
	times := make([]float64, segCount)

	for seg := 0; seg < segCount; seg++ {
		base := seg * nperseg
		for i := 0; i < nperseg; i++ {
			segment[i] = samples[base+i] * complex(win[i], 0)
		}
		coeffs := fft.Coefficients(nil, segment)
		for f := 0; f < nperseg; f++ {
			mag := coeffs[f]
			p := (real(mag)*real(mag) + imag(mag)*imag(mag)) * scale
			if p <= 0 {
				// strictly positive per spec.md §3; clamp numerical zero
				p = math.SmallestNonzeroFloat64
			}
			power[f][seg] = p
		}
		times[seg] = (float64(seg) + 0.5) * dt
	}

	return Block{Freqs: freqs, Times: times, Power: power, Dt: dt}, nil
}

// binFreqs returns the two-sided (signed) frequency offsets for an
// nperseg-point complex FFT sampled at fs, ordered to match the bin
// ordering fft.Coefficients produces (DC, positive freqs, then negative
// freqs wrapping around) — rearranged so Freqs[i] corresponds directly
// to Power[i], i.e. not fftshift'd, matching scipy's return_onesided=False
// raw bin order.
func binFreqs(fft *fourier.CmplxFFT, nperseg int, fs float64) []float64 {
	freqs := make([]float64, nperseg)
	for i := 0; i < nperseg; i++ {
		freqs[i] = fft.Freq(i) * fs
	}
	return freqs
}

func windowCoefficients(name string, n int) ([]float64, error) {
	w := make([]float64, n)
	switch name {
	case "", WindowRectangular:
		for i := range w {
			w[i] = 1
		}
	case WindowHann:
		for i := range w {
			w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		}
	case WindowHamming:
		for i := range w {
			w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		}
	case WindowBlackman:
		for i := range w {
			x := 2 * math.Pi * float64(i) / float64(n-1)
			w[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
		}
	default:
		return nil, fmt.Errorf("dsp: unknown window %q", name)
	}
	return w, nil
}
