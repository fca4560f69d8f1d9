// SPDX-License-Identifier: MIT
/*
Package export delivers finalized session reports to their destinations
and answers per-instrument tendency queries.

A Dispatcher receives reports from the capture goroutine without blocking
it, skips reports with no qualifying notes, and runs every Exporter on a
background goroutine with a timeout. Failures are logged and reported as
events; nothing is retried.
*/
package export

import (
	"context"
	"errors"
	"time"

	"tuner/internal/session"
)

// ErrStatus is returned for non-2xx responses from the session API.
var ErrStatus = errors.New("unexpected HTTP status")

// Exporter delivers one report.
type Exporter interface {
	Name() string
	Export(ctx context.Context, report session.Report) error
}

// TendencySource answers per-instrument tendency queries.
type TendencySource interface {
	Tendencies(ctx context.Context, instrumentID int) ([]Tendency, error)
}

// Tendency is the aggregated tuning tendency of one note over all stored
// sessions of an instrument.
type Tendency struct {
	Note         string  `json:"noteString" yaml:"note"`
	InstrumentID int     `json:"instrumentId" yaml:"instrument_id"`
	MeanCents    float64 `json:"meanCents" yaml:"mean_cents"`
	TotalSamples int     `json:"totalSamples" yaml:"total_samples"`
}

// Event types.
const (
	EventExported = "exported"
	EventFailed   = "export_failed"
	EventSkipped  = "skipped"
)

// Event reports the outcome of one report on one exporter. Skipped events
// have no exporter.
type Event struct {
	Type      string    `json:"type"`
	SessionID int64     `json:"sessionId"`
	Exporter  string    `json:"exporter,omitempty"`
	Notes     int       `json:"notes"`
	Samples   int       `json:"samples"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// EventSink receives events. transport.Transport satisfies it.
type EventSink interface {
	Send(data any) error
}
