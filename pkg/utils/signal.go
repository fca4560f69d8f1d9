// Package utils holds fixtures shared by the package tests: synthetic
// signals in the capture stream's float32 format and a recording transport.
package utils

import (
	"math"
	"math/rand"
	"sync"
)

// MockTransport records every value sent through it. It satisfies the
// transport.Transport and session.FrameSink interfaces.
type MockTransport struct {
	mu     sync.Mutex
	sent   []any
	closed bool
}

// Send stores the value for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.sent))
	copy(out, m.sent)
	return out
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateSineWave returns size samples of a sinusoid at frequency Hz with
// the given peak amplitude (1.0 = full scale).
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// GenerateComplexWave returns a fundamental plus its 2nd and 3rd harmonics
// at decreasing level, peaking below full scale.
func GenerateComplexWave(size int, sampleRate, fundamental float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*fundamental*t)*0.5 +
			math.Sin(2*math.Pi*2*fundamental*t)*0.3 +
			math.Sin(2*math.Pi*3*fundamental*t)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateNoise returns uniformly distributed noise in [-amplitude, amplitude]
// from a fixed seed so tests stay deterministic.
func GenerateNoise(size int, amplitude float64, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	buffer := make([]float32, size)
	for i := range buffer {
		buffer[i] = float32(amplitude * (2*rng.Float64() - 1))
	}
	return buffer
}

// Silence returns size zero samples.
func Silence(size int) []float32 {
	return make([]float32, size)
}

// FrequencyForSemitones returns the frequency the given number of equal
// tempered semitones away from base.
func FrequencyForSemitones(base, semitones float64) float64 {
	return base * math.Pow(2, semitones/12)
}

// FrequencyForCents returns the frequency detuned from base by cents.
func FrequencyForCents(base, cents float64) float64 {
	return base * math.Pow(2, cents/1200)
}
