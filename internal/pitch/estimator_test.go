// SPDX-License-Identifier: MIT
package pitch

import (
	"fmt"
	"math"
	"testing"

	"tuner/pkg/utils"
)

const (
	testSampleRate = 44100
	testBufferSize = 4096
)

func newTestEstimator(t testing.TB) *Estimator {
	t.Helper()
	est, err := NewEstimator(DefaultEstimatorConfig())
	if err != nil {
		t.Fatalf("NewEstimator() error = %v", err)
	}
	return est
}

func TestNewEstimatorValidation(t *testing.T) {
	tests := []struct {
		desc    string
		cfg     EstimatorConfig
		wantErr bool
	}{
		{"Defaults", DefaultEstimatorConfig(), false},
		{"Small power of two", EstimatorConfig{BufferSize: 256, SilenceRMS: 0.03, PeakFraction: 0.4}, false},
		{"Not power of two", EstimatorConfig{BufferSize: 1000, SilenceRMS: 0.03, PeakFraction: 0.4}, true},
		{"Too small", EstimatorConfig{BufferSize: 2, SilenceRMS: 0.03, PeakFraction: 0.4}, true},
		{"Negative silence", EstimatorConfig{BufferSize: 1024, SilenceRMS: -1, PeakFraction: 0.4}, true},
		{"Zero fraction", EstimatorConfig{BufferSize: 1024, SilenceRMS: 0.03, PeakFraction: 0}, true},
		{"Fraction above one", EstimatorConfig{BufferSize: 1024, SilenceRMS: 0.03, PeakFraction: 1.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			_, err := NewEstimator(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEstimator(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			}
		})
	}
}

func TestEstimateSine(t *testing.T) {
	est := newTestEstimator(t)

	for _, freq := range []float64{440, 466.16, 523.25, 659.26, 880, 1046.5} {
		t.Run(fmt.Sprintf("%.2fHz", freq), func(t *testing.T) {
			buf := utils.GenerateSineWave(testBufferSize, testSampleRate, freq, 0.5)

			got, ok := est.Estimate(buf, testSampleRate)
			if !ok {
				t.Fatalf("Estimate() returned no pitch for %.2f Hz", freq)
			}
			if math.Abs(got-freq) > 0.5 {
				t.Errorf("Estimate() = %.3f Hz, want %.2f ±0.5 Hz", got, freq)
			}
		})
	}
}

func TestEstimateHarmonicTone(t *testing.T) {
	est := newTestEstimator(t)
	buf := utils.GenerateComplexWave(testBufferSize, testSampleRate, 440)

	got, ok := est.Estimate(buf, testSampleRate)
	if !ok {
		t.Fatal("Estimate() returned no pitch for harmonic tone")
	}
	if math.Abs(got-440) > 1 {
		t.Errorf("Estimate() = %.3f Hz, want fundamental 440 ±1 Hz", got)
	}
}

func TestEstimateNoPitch(t *testing.T) {
	est := newTestEstimator(t)

	tests := []struct {
		desc string
		buf  []float32
	}{
		{"All zero", utils.Silence(testBufferSize)},
		{"Below silence threshold", utils.GenerateSineWave(testBufferSize, testSampleRate, 440, 0.01)},
		{"White noise", utils.GenerateNoise(testBufferSize, 0.5, 42)},
		{"Period beyond search range", utils.GenerateSineWave(testBufferSize, testSampleRate, 20, 0.5)},
		{"Too short", []float32{0.5, -0.5}},
		{"Empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got, ok := est.Estimate(tt.buf, testSampleRate); ok {
				t.Errorf("Estimate() = %.3f Hz, want no pitch", got)
			}
		})
	}
}

func TestEstimateInvalidSampleRate(t *testing.T) {
	est := newTestEstimator(t)
	buf := utils.GenerateSineWave(testBufferSize, testSampleRate, 440, 0.5)

	if _, ok := est.Estimate(buf, 0); ok {
		t.Error("Estimate() with zero sample rate should report no pitch")
	}
}

func TestEstimateShortBuffer(t *testing.T) {
	est := newTestEstimator(t)
	buf := utils.GenerateSineWave(2048, testSampleRate, 880, 0.5)

	got, ok := est.Estimate(buf, testSampleRate)
	if !ok {
		t.Fatal("Estimate() returned no pitch for half-length buffer")
	}
	if math.Abs(got-880) > 1 {
		t.Errorf("Estimate() = %.3f Hz, want 880 ±1 Hz", got)
	}
}

func TestEstimateDoesNotRetainInput(t *testing.T) {
	est := newTestEstimator(t)
	buf := utils.GenerateSineWave(testBufferSize, testSampleRate, 440, 0.5)

	first, _ := est.Estimate(buf, testSampleRate)
	for i := range buf {
		buf[i] = 0
	}
	if _, ok := est.Estimate(buf, testSampleRate); ok {
		t.Error("zeroed buffer should not produce a pitch")
	}

	buf = utils.GenerateSineWave(testBufferSize, testSampleRate, 440, 0.5)
	if again, _ := est.Estimate(buf, testSampleRate); again != first {
		t.Errorf("repeat estimate = %f, want %f", again, first)
	}
}

func TestParabolicOffset(t *testing.T) {
	tests := []struct {
		desc       string
		p1, p2, p3 float64
		want       float64
	}{
		{"Symmetric", 1, 2, 1, 0},
		{"Right leaning", 1, 2, 1.5, 1.0 / 6},
		{"Left leaning", 1.5, 2, 1, -1.0 / 6},
		{"Flat is not finite", 1, 1, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := parabolicOffset(tt.p1, tt.p2, tt.p3); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("parabolicOffset(%v, %v, %v) = %v, want %v", tt.p1, tt.p2, tt.p3, got, tt.want)
			}
		})
	}
}

func TestEstimateHotPathNoAllocs(t *testing.T) {
	est := newTestEstimator(t)
	buf := utils.GenerateSineWave(testBufferSize, testSampleRate, 440, 0.5)

	est.Estimate(buf, testSampleRate)
	allocs := testing.AllocsPerRun(20, func() {
		est.Estimate(buf, testSampleRate)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in Estimate hot path, got %.1f", allocs)
	}
}

func BenchmarkEstimate(b *testing.B) {
	est := newTestEstimator(b)
	buf := utils.GenerateComplexWave(testBufferSize, testSampleRate, 440)

	b.ReportAllocs()
	for b.Loop() {
		est.Estimate(buf, testSampleRate)
	}
}
