// SPDX-License-Identifier: MIT
package export

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	applog "tuner/internal/log"
	"tuner/internal/session"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeout = 5 * time.Second
	queueSize      = 16
)

// ErrDispatcherClosed is returned by Submit after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// ErrQueueFull is returned by Submit when reports arrive faster than they
// are exported.
var ErrQueueFull = errors.New("export queue full")

// Dispatcher exports reports in the background.
type Dispatcher struct {
	exporters []Exporter
	timeout   time.Duration
	sinks     []EventSink

	reports  chan session.Report
	mu       sync.Mutex // Guards closed and sends on reports
	closed   bool
	wg       sync.WaitGroup
	exported atomic.Int64
}

// NewDispatcher creates a dispatcher. Call Start before submitting.
func NewDispatcher(timeout time.Duration, exporters []Exporter, sinks ...EventSink) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		exporters: exporters,
		timeout:   timeout,
		sinks:     sinks,
		reports:   make(chan session.Report, queueSize),
	}
}

// Start launches the export goroutine. ctx bounds every export.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for report := range d.reports {
			d.dispatch(ctx, report)
		}
	}()
}

// Handle submits report and logs a rejection. It has the session.ReportHandler
// signature.
func (d *Dispatcher) Handle(report session.Report) {
	if err := d.Submit(report); err != nil {
		applog.Errorf("Export: session %d not queued: %v", report.SessionID, err)
	}
}

// Submit queues report without blocking.
func (d *Dispatcher) Submit(report session.Report) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.reports <- report:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting reports and waits for queued ones to finish.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.reports)
	}
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}

// Exported returns the number of successful exports.
func (d *Dispatcher) Exported() int64 {
	return d.exported.Load()
}

func (d *Dispatcher) dispatch(ctx context.Context, report session.Report) {
	if report.Empty() {
		applog.Infof("Export: session %d ended with no data to send", report.SessionID)
		d.emit(Event{Type: EventSkipped, SessionID: report.SessionID})
		return
	}

	// Exporters run concurrently; one failing does not cancel the others.
	var g errgroup.Group
	for _, exp := range d.exporters {
		g.Go(func() error {
			exportCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			ev := Event{
				Type:      EventExported,
				SessionID: report.SessionID,
				Exporter:  exp.Name(),
				Notes:     len(report.Notes),
				Samples:   report.Samples(),
			}
			if err := exp.Export(exportCtx, report); err != nil {
				applog.Warnf("Export: session %d to %s failed: %v", report.SessionID, exp.Name(), err)
				ev.Type = EventFailed
				ev.Error = err.Error()
				d.emit(ev)
				return err
			}

			d.exported.Add(1)
			applog.Infof("Export: session %d exported to %s (%d notes)", report.SessionID, exp.Name(), len(report.Notes))
			d.emit(ev)
			return nil
		})
	}
	g.Wait()
}

func (d *Dispatcher) emit(ev Event) {
	ev.Time = time.Now()
	for _, sink := range d.sinks {
		if err := sink.Send(ev); err != nil {
			applog.Debugf("Export: event sink error: %v", err)
		}
	}
}
