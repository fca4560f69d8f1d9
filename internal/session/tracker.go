// SPDX-License-Identifier: MIT
/*
Package session turns a stream of audio buffers into per-note tuning
statistics for a practice session.

Per buffer the pipeline is:

	Estimator -> NoteFromFrequency -> Gate -> Aggregator

A Tracker runs the pipeline. A Controller owns a Tracker on behalf of the
capture loop, applies start and stop requests made from other goroutines,
and publishes a Frame snapshot per buffer. On stop the running map is
finalized into a Report.

Thread Safety:
Tracker is single-goroutine. Controller.Step and Controller.Flush must be
called from the capture goroutine only; Start, Stop, Active and Latest are
safe from any goroutine.
*/
package session

import (
	"fmt"

	"tuner/internal/pitch"
)

// Config holds the core constants.
type Config struct {
	Estimator           pitch.EstimatorConfig
	StabilityThreshold  int
	MinSamplesForExport int
}

func DefaultConfig() Config {
	return Config{
		Estimator:           pitch.DefaultEstimatorConfig(),
		StabilityThreshold:  DefaultStabilityThreshold,
		MinSamplesForExport: DefaultMinSamplesForExport,
	}
}

// Tracker runs the estimate, map, gate and aggregate pipeline and keeps the
// last voiced note for display.
type Tracker struct {
	estimator  *pitch.Estimator
	gate       *Gate
	aggregator *Aggregator

	lastNote      pitch.Note
	lastFrequency float64
	hasLast       bool
}

func NewTracker(cfg Config) (*Tracker, error) {
	estimator, err := pitch.NewEstimator(cfg.Estimator)
	if err != nil {
		return nil, fmt.Errorf("invalid estimator config: %w", err)
	}
	if cfg.StabilityThreshold < 1 {
		return nil, fmt.Errorf("stability threshold must be >= 1, got %d", cfg.StabilityThreshold)
	}

	return &Tracker{
		estimator:  estimator,
		gate:       NewGate(cfg.StabilityThreshold),
		aggregator: NewAggregator(),
	}, nil
}

// Process runs one buffer through the pipeline. The returned frame carries
// no sequence number, time or session flag; the Controller fills those.
func (t *Tracker) Process(samples []float32, sampleRate float64) Frame {
	frequency, ok := t.estimator.Estimate(samples, sampleRate)

	var frame Frame
	if ok {
		note := pitch.NoteFromFrequency(frequency)
		frame.Voiced = true
		frame.Frequency = frequency
		frame.Note = note

		t.lastNote = note
		t.lastFrequency = frequency
		t.hasLast = true

		if t.gate.Observe(note.Name, true) {
			t.aggregator.Accumulate(note.Name, note.Cents)
			frame.Gated = true
		}
	} else {
		t.gate.Observe("", false)
	}

	frame.Type = FrameType
	frame.Stable = t.gate.Count()
	frame.HasLast = t.hasLast
	frame.LastNote = t.lastNote
	frame.LastFrequency = t.lastFrequency
	frame.Samples = t.aggregator.Total()
	frame.Notes = t.aggregator.Len()
	return frame
}

// Reset clears the gate, the aggregator and the display state.
func (t *Tracker) Reset() {
	t.gate.Reset()
	t.aggregator.Reset()
	t.lastNote = pitch.Note{}
	t.lastFrequency = 0
	t.hasLast = false
}

func (t *Tracker) Gate() *Gate {
	return t.gate
}

func (t *Tracker) Aggregator() *Aggregator {
	return t.aggregator
}

// BufferSize returns the estimator buffer length.
func (t *Tracker) BufferSize() int {
	return t.estimator.BufferSize()
}
