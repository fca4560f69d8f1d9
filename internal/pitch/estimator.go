// SPDX-License-Identifier: MIT
/*
Package pitch estimates the fundamental frequency of a mono audio buffer
and maps frequencies onto equal-tempered note names with a cents offset.

The estimator works in the time domain:

 1. Buffers whose RMS is below the silence threshold are unvoiced.
 2. The unnormalized autocorrelation is computed for lags [0, N/2).
 3. Starting at lag 1 the curve is walked down to its first dip, then up
    to the first peak after it. The peak lag approximates the period.
 4. Peaks at the search boundary, or weaker than a fraction of corr[0],
    are rejected as not tonal enough.
 5. The peak lag is refined with a parabola through its two neighbours.

Walking dip-then-peak keeps the search off the trivial lag-0 maximum and
off the spurious short-lag peaks that noise produces near lag 0.

Thread Safety:
An Estimator owns its workspace and must only be used from one goroutine.
*/
package pitch

import (
	"fmt"
	"math"

	"tuner/pkg/bitint"

	"gonum.org/v1/gonum/floats"
)

const (
	DefaultBufferSize   = 4096 // Samples per estimate (N)
	DefaultSilenceRMS   = 0.03 // Below this RMS the buffer is noise floor
	DefaultPeakFraction = 0.4  // Minimum corr[peak]/corr[0] to accept a period

	minBufferSize = 4
)

// EstimatorConfig holds the fixed estimator constants.
type EstimatorConfig struct {
	BufferSize   int     // Buffer length N, a power of two
	SilenceRMS   float64 // RMS silence threshold, full scale = 1.0
	PeakFraction float64 // Weak-peak rejection fraction in (0, 1]
}

// DefaultEstimatorConfig returns the constants used by the live tuner.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		BufferSize:   DefaultBufferSize,
		SilenceRMS:   DefaultSilenceRMS,
		PeakFraction: DefaultPeakFraction,
	}
}

// Estimator is an autocorrelation pitch estimator with pre-allocated
// buffers. Estimate does not allocate.
type Estimator struct {
	size         int
	silenceRMS   float64
	peakFraction float64

	samples []float64 // float64 copy of the input
	corr    []float64 // autocorrelation for lags [0, size/2)
}

// NewEstimator validates cfg and allocates the workspace.
func NewEstimator(cfg EstimatorConfig) (*Estimator, error) {
	if !bitint.IsPowerOfTwo(cfg.BufferSize) || cfg.BufferSize < minBufferSize {
		return nil, fmt.Errorf("buffer size must be a power of 2 >= %d, got %d", minBufferSize, cfg.BufferSize)
	}
	if cfg.SilenceRMS < 0 || math.IsNaN(cfg.SilenceRMS) {
		return nil, fmt.Errorf("silence RMS must be non-negative, got %f", cfg.SilenceRMS)
	}
	if !(cfg.PeakFraction > 0 && cfg.PeakFraction <= 1) {
		return nil, fmt.Errorf("peak fraction must be in (0, 1], got %f", cfg.PeakFraction)
	}

	return &Estimator{
		size:         cfg.BufferSize,
		silenceRMS:   cfg.SilenceRMS,
		peakFraction: cfg.PeakFraction,
		samples:      make([]float64, cfg.BufferSize),
		corr:         make([]float64, cfg.BufferSize/2),
	}, nil
}

// BufferSize returns the configured buffer length N.
func (e *Estimator) BufferSize() int {
	return e.size
}

// Estimate returns the fundamental frequency of samples in Hz, or false
// when the buffer is silent, not periodic enough, or its period does not
// fit in the lag search range. Only the first BufferSize samples are used;
// shorter buffers shrink the lag range accordingly.
func (e *Estimator) Estimate(samples []float32, sampleRate float64) (float64, bool) {
	n := min(len(samples), e.size)
	if n < minBufferSize || sampleRate <= 0 {
		return 0, false
	}

	x := e.samples[:n]
	for i := range x {
		x[i] = float64(samples[i])
	}

	// --- 1. Silence gate ---
	rms := floats.Norm(x, 2) / math.Sqrt(float64(n))
	if !(rms >= e.silenceRMS) {
		return 0, false
	}

	// --- 2. Autocorrelation ---
	maxShift := n / 2
	corr := e.corr[:maxShift]
	for lag := range corr {
		corr[lag] = floats.Dot(x[:n-lag], x[lag:])
	}

	// --- 3. First dip after lag 0 ---
	dip := 1
	for dip < maxShift-1 && corr[dip] > corr[dip+1] {
		dip++
	}

	// --- 4. First peak after the dip ---
	peak := dip
	for peak < maxShift-1 && corr[peak] < corr[peak+1] {
		peak++
	}

	// --- 5. Boundary and weak-peak rejection ---
	if peak == maxShift-1 || corr[peak] < e.peakFraction*corr[0] {
		return 0, false
	}

	// --- 6. Parabolic refinement ---
	lag := float64(peak) + parabolicOffset(corr[peak-1], corr[peak], corr[peak+1])

	if lag <= 0 {
		return 0, false
	}
	return sampleRate / lag, true
}

// parabolicOffset returns the vertex offset of the parabola through
// (-1, p1), (0, p2), (1, p3), or 0 when it is not finite.
func parabolicOffset(p1, p2, p3 float64) float64 {
	offset := (p3 - p1) / (2 * (2*p2 - p3 - p1))
	if math.IsNaN(offset) || math.IsInf(offset, 0) {
		return 0
	}
	return offset
}
