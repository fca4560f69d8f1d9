// SPDX-License-Identifier: MIT
package session

import (
	"fmt"
	"sync/atomic"
	"time"

	applog "tuner/internal/log"
)

// FrameSink receives a Frame after every processed buffer. Send is called
// from the capture goroutine and must not block.
type FrameSink interface {
	Send(data any) error
}

// ReportHandler receives the report of every stopped session, including
// empty ones. It runs on the capture goroutine and must not block.
type ReportHandler func(Report)

type commandKind uint8

const (
	commandStart commandKind = iota + 1
	commandStop
)

type command struct {
	kind commandKind
	meta Meta
	// A Start that replaced an unapplied Stop finishes the running
	// session before it resets.
	stopFirst bool
}

// Controller owns the session state on behalf of the capture loop.
//
// Start and Stop only record a request in a single pending slot; Step
// applies it before processing its buffer, so the tracker is never touched
// outside the capture goroutine. A request made before the previous one was
// applied replaces it.
type Controller struct {
	tracker    *Tracker
	minSamples int
	onReport   ReportHandler
	sinks      []FrameSink
	now        func() time.Time

	pending atomic.Pointer[command]
	active  atomic.Bool
	latest  atomic.Pointer[Frame]

	// Owned by the capture goroutine.
	meta      Meta
	startedAt time.Time
	seq       uint64
}

// NewController builds a controller with an idle session. onReport may be
// nil.
func NewController(cfg Config, onReport ReportHandler, sinks ...FrameSink) (*Controller, error) {
	tracker, err := NewTracker(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.MinSamplesForExport < 0 {
		return nil, fmt.Errorf("min samples for export must be >= 0, got %d", cfg.MinSamplesForExport)
	}

	return &Controller{
		tracker:    tracker,
		minSamples: cfg.MinSamplesForExport,
		onReport:   onReport,
		sinks:      sinks,
		now:        time.Now,
	}, nil
}

// Start requests a new session. The running statistics are cleared when
// the request is applied. A Stop still pending is honoured first, so the
// stopped session is reported.
func (c *Controller) Start(meta Meta) {
	for {
		prev := c.pending.Load()
		cmd := &command{
			kind:      commandStart,
			meta:      meta,
			stopFirst: prev != nil && (prev.kind == commandStop || prev.stopFirst),
		}
		if c.pending.CompareAndSwap(prev, cmd) {
			return
		}
	}
}

// Stop requests the end of the current session.
func (c *Controller) Stop() {
	c.pending.Store(&command{kind: commandStop})
}

// Active reports whether a session is running, as of the last applied
// request.
func (c *Controller) Active() bool {
	return c.active.Load()
}

// Latest returns the most recent frame, or false before the first buffer.
func (c *Controller) Latest() (Frame, bool) {
	f := c.latest.Load()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

// BufferSize returns the number of samples the estimator consumes per step.
func (c *Controller) BufferSize() int {
	return c.tracker.BufferSize()
}

// Step applies any pending request, processes one buffer and publishes the
// resulting frame. samples is not retained.
func (c *Controller) Step(samples []float32, sampleRate float64) Frame {
	c.Flush()

	frame := c.tracker.Process(samples, sampleRate)
	c.seq++
	frame.Seq = c.seq
	frame.Time = c.now()
	frame.Active = c.active.Load()
	if !frame.Active {
		frame.Samples, frame.Notes = 0, 0
	}

	c.latest.Store(&frame)
	for _, sink := range c.sinks {
		if err := sink.Send(frame); err != nil {
			applog.Debugf("Session: frame sink error: %v", err)
		}
	}
	return frame
}

// Flush applies a pending request without processing audio. Call it from
// the capture goroutine once the stream has stopped so a final Stop is
// honoured.
func (c *Controller) Flush() {
	cmd := c.pending.Swap(nil)
	if cmd == nil {
		return
	}

	switch cmd.kind {
	case commandStart:
		if cmd.stopFirst && c.active.Load() {
			c.finish()
		}
		if c.active.Load() {
			applog.Warnf("Session: restarting, discarding %d samples", c.tracker.aggregator.Total())
		}
		c.tracker.Reset()
		c.meta = cmd.meta
		c.startedAt = c.now()
		c.active.Store(true)
		applog.Infof("Session: started (%s)", cmd.meta.Instrument)

	case commandStop:
		if !c.active.Load() {
			applog.Debugf("Session: stop requested with no active session")
			return
		}
		c.finish()
	}
}

// finish ends the active session and hands its report to onReport.
func (c *Controller) finish() {
	c.active.Store(false)
	report := NewReport(c.meta, c.tracker.aggregator.notes, c.minSamples, c.startedAt, c.now())
	applog.Infof("Session: stopped after %s, %d notes qualified", report.Duration().Round(time.Millisecond), len(report.Notes))
	if c.onReport != nil {
		c.onReport(report)
	}
}
