// SPDX-License-Identifier: MIT
package session

import (
	"time"

	"tuner/internal/pitch"
)

// FrameType tags Frame values on shared transports.
const FrameType = "frame"

// Frame is a read-only snapshot of the pipeline after one buffer.
type Frame struct {
	Type          string     `json:"type"`
	Seq           uint64     `json:"seq"`
	Time          time.Time  `json:"time"`
	Voiced        bool       `json:"voiced"`
	Frequency     float64    `json:"frequency,omitempty"`
	Note          pitch.Note `json:"note"`
	HasLast       bool       `json:"hasLast"`
	LastNote      pitch.Note `json:"lastNote"`
	LastFrequency float64    `json:"lastFrequency,omitempty"`
	Stable        int        `json:"stable"`  // Consecutive detections of the current note
	Gated         bool       `json:"gated"`   // Frame was added to the aggregate
	Samples       int        `json:"samples"` // Gated samples in the session, 0 while idle
	Notes         int        `json:"notes"`   // Distinct notes in the session, 0 while idle
	Active        bool       `json:"active"`
}

// Meta describes what a session is recording.
type Meta struct {
	Instrument   string `json:"instrument" yaml:"instrument"`
	InstrumentID int    `json:"instrumentId" yaml:"instrument_id"`
}

// Report is the finalized result of a stopped session.
type Report struct {
	SessionID    int64          `json:"sessionId" yaml:"session_id"`
	Instrument   string         `json:"instrument" yaml:"instrument"`
	InstrumentID int            `json:"instrumentId" yaml:"instrument_id"`
	Notes        []NoteAnalysis `json:"noteStrings" yaml:"notes"`
	StartedAt    time.Time      `json:"startedAt" yaml:"started_at"`
	StoppedAt    time.Time      `json:"stoppedAt" yaml:"stopped_at"`
}

// NewReport finalizes a snapshot. The session ID is the stop time in Unix
// milliseconds.
func NewReport(meta Meta, notes map[string]Running, minSamples int, startedAt, stoppedAt time.Time) Report {
	return Report{
		SessionID:    stoppedAt.UnixMilli(),
		Instrument:   meta.Instrument,
		InstrumentID: meta.InstrumentID,
		Notes:        Finalize(notes, minSamples),
		StartedAt:    startedAt,
		StoppedAt:    stoppedAt,
	}
}

// Empty reports whether no note qualified for export.
func (r Report) Empty() bool {
	return len(r.Notes) == 0
}

// Samples returns the total count across the finalized notes.
func (r Report) Samples() int {
	total := 0
	for _, n := range r.Notes {
		total += n.Count
	}
	return total
}

// Duration returns how long the session ran.
func (r Report) Duration() time.Duration {
	return r.StoppedAt.Sub(r.StartedAt)
}
