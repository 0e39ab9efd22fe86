package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
)

// PowerSpectrum returns the magnitude of the first half of the spectrum of
// series after removing its mean and zero-padding to a power of two.
func PowerSpectrum(series []float64) []float64 {
	if len(series) < 2 {
		return nil
	}

	n := 1
	for n < len(series) {
		n *= 2
	}
	padded := make([]float64, n)
	copy(padded, series)
	mean := floats.Sum(series) / float64(len(series))
	for i := range series {
		padded[i] -= mean
	}

	spec := fft.FFTReal(padded)
	ps := make([]float64, n/2)
	for i := range ps {
		ps[i] = cmplx.Abs(spec[i])
	}
	return ps
}

// DominantFrequency returns the frequency, in inverse time units, of the
// strongest non-constant component of a series sampled every dt.
func DominantFrequency(series []float64, dt float64) (freq, power float64) {
	ps := PowerSpectrum(series)
	if len(ps) < 2 || dt <= 0 {
		return 0, 0
	}

	idx := floats.MaxIdx(ps[1:]) + 1
	n := 2 * len(ps)
	return float64(idx) / (float64(n) * dt), ps[idx]
}
