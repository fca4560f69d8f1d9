// SPDX-License-Identifier: MIT
package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"tuner/internal/session"
	"tuner/pkg/utils"
)

func testReport(id int64, instrumentID int, notes ...session.NoteAnalysis) session.Report {
	stopped := time.UnixMilli(id)
	return session.Report{
		SessionID:    id,
		Instrument:   "Clarinet",
		InstrumentID: instrumentID,
		Notes:        notes,
		StartedAt:    stopped.Add(-time.Minute),
		StoppedAt:    stopped,
	}
}

type fakeExporter struct {
	name  string
	err   error
	delay time.Duration

	mu      sync.Mutex
	reports []session.Report
}

func (f *fakeExporter) Name() string { return f.name }

func (f *fakeExporter) Export(ctx context.Context, r session.Report) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return f.err
}

func (f *fakeExporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

func eventTypes(sink *utils.MockTransport) map[string]int {
	out := make(map[string]int)
	for _, data := range sink.Sent() {
		out[data.(Event).Type]++
	}
	return out
}

func TestDispatcherExports(t *testing.T) {
	good := &fakeExporter{name: "good"}
	bad := &fakeExporter{name: "bad", err: errors.New("boom")}
	sink := &utils.MockTransport{}

	d := NewDispatcher(time.Second, []Exporter{good, bad}, sink)
	d.Start(context.Background())

	d.Handle(testReport(1000, 1, session.NoteAnalysis{Note: "A4", MeanCents: 3, Count: 6}))
	d.Handle(testReport(2000, 1))
	if err := d.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	if good.count() != 1 || bad.count() != 1 {
		t.Errorf("exports good=%d bad=%d, want 1 each (empty report skipped)", good.count(), bad.count())
	}
	if d.Exported() != 1 {
		t.Errorf("Exported() = %d, want 1", d.Exported())
	}

	want := map[string]int{EventExported: 1, EventFailed: 1, EventSkipped: 1}
	if got := eventTypes(sink); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	for _, data := range sink.Sent() {
		ev := data.(Event)
		if ev.Type == EventFailed && (ev.Error != "boom" || ev.Exporter != "bad") {
			t.Errorf("failed event = %+v", ev)
		}
		if ev.Type == EventExported && (ev.Notes != 1 || ev.Samples != 6) {
			t.Errorf("exported event = %+v", ev)
		}
	}
}

func TestDispatcherTimeout(t *testing.T) {
	slow := &fakeExporter{name: "slow", delay: time.Minute}
	sink := &utils.MockTransport{}

	d := NewDispatcher(20*time.Millisecond, []Exporter{slow}, sink)
	d.Start(context.Background())
	d.Handle(testReport(1, 1, session.NoteAnalysis{Note: "C4", Count: 5}))
	d.Close()

	sent := sink.Sent()
	if len(sent) != 1 {
		t.Fatalf("got %d events, want 1", len(sent))
	}
	if ev := sent[0].(Event); ev.Type != EventFailed {
		t.Errorf("event = %+v, want failure on timeout", ev)
	}
}

func TestDispatcherSubmitAfterClose(t *testing.T) {
	d := NewDispatcher(0, nil)
	d.Start(context.Background())
	d.Close()
	d.Close()

	if err := d.Submit(testReport(1, 1)); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("Submit after Close = %v, want ErrDispatcherClosed", err)
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(time.Second, nil)
	// Not started: nothing drains the queue.
	for i := range queueSize {
		if err := d.Submit(testReport(int64(i), 1)); err != nil {
			t.Fatalf("Submit %d error: %v", i, err)
		}
	}
	if err := d.Submit(testReport(99, 1)); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Submit on full queue = %v, want ErrQueueFull", err)
	}
}

func TestHTTPExporter(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("invalid JSON body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /api/tendencies", func(w http.ResponseWriter, r *http.Request) {
		if id := r.URL.Query().Get("instrument_id"); id != "3" {
			t.Errorf("instrument_id = %q, want 3", id)
		}
		json.NewEncoder(w).Encode([]Tendency{{Note: "A4", InstrumentID: 3, MeanCents: 4.25, TotalSamples: 12}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	h, err := NewHTTPExporter(server.URL+"/", server.Client())
	if err != nil {
		t.Fatalf("NewHTTPExporter error: %v", err)
	}

	report := testReport(1700000000000, 3, session.NoteAnalysis{Note: "A4", MeanCents: 4.25, Count: 12})
	if err := h.Export(context.Background(), report); err != nil {
		t.Fatalf("Export error: %v", err)
	}
	if got["sessionId"] != float64(1700000000000) || got["instrument"] != "Clarinet" || got["instrumentId"] != float64(3) {
		t.Errorf("posted %v", got)
	}
	notes, ok := got["noteStrings"].([]any)
	if !ok || len(notes) != 1 {
		t.Fatalf("noteStrings = %v", got["noteStrings"])
	}
	if n := notes[0].(map[string]any); n["noteString"] != "A4" || n["meanCents"] != 4.25 || n["count"] != float64(12) {
		t.Errorf("note = %v", n)
	}

	tendencies, err := h.Tendencies(context.Background(), 3)
	if err != nil {
		t.Fatalf("Tendencies error: %v", err)
	}
	if len(tendencies) != 1 || tendencies[0].Note != "A4" || tendencies[0].TotalSamples != 12 {
		t.Errorf("tendencies = %+v", tendencies)
	}
}

func TestHTTPExporterStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"bad session"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	h, err := NewHTTPExporter(server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Export(context.Background(), testReport(1, 1)); !errors.Is(err, ErrStatus) {
		t.Errorf("Export error = %v, want ErrStatus", err)
	}
	if _, err := h.Tendencies(context.Background(), 1); !errors.Is(err, ErrStatus) {
		t.Errorf("Tendencies error = %v, want ErrStatus", err)
	}
}

func TestNewHTTPExporterValidation(t *testing.T) {
	for _, endpoint := range []string{"localhost:8000", "ftp://host", "://bad"} {
		if _, err := NewHTTPExporter(endpoint, nil); err == nil {
			t.Errorf("NewHTTPExporter(%q) should fail", endpoint)
		}
	}
}

func TestFileStoreTendencies(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "data", "sessions.yaml"))
	ctx := context.Background()

	if got, err := store.Tendencies(ctx, 1); err != nil || len(got) != 0 {
		t.Fatalf("empty store Tendencies = %v, %v", got, err)
	}

	reports := []session.Report{
		testReport(1000, 1,
			session.NoteAnalysis{Note: "A4", MeanCents: 10, Count: 5},
			session.NoteAnalysis{Note: "C4", MeanCents: -4, Count: 10}),
		testReport(2000, 1,
			session.NoteAnalysis{Note: "A4", MeanCents: 4, Count: 15}),
		testReport(3000, 2,
			session.NoteAnalysis{Note: "A4", MeanCents: 40, Count: 50}),
	}
	for _, r := range reports {
		if err := store.Export(ctx, r); err != nil {
			t.Fatalf("Export error: %v", err)
		}
	}

	got, err := store.Tendencies(ctx, 1)
	if err != nil {
		t.Fatalf("Tendencies error: %v", err)
	}
	want := []Tendency{
		{Note: "A4", InstrumentID: 1, MeanCents: 5.5, TotalSamples: 20},
		{Note: "C4", InstrumentID: 1, MeanCents: -4, TotalSamples: 10},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tendencies = %+v, want %+v", got, want)
	}
}

func TestFileStoreReplacesSession(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "sessions.yaml"))
	ctx := context.Background()

	store.Export(ctx, testReport(1000, 1, session.NoteAnalysis{Note: "A4", MeanCents: 1, Count: 5}))
	store.Export(ctx, testReport(1000, 1, session.NoteAnalysis{Note: "A4", MeanCents: 2, Count: 5}))

	sessions, err := store.Sessions()
	if err != nil {
		t.Fatalf("Sessions error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Notes[0].MeanCents != 2 {
		t.Errorf("sessions = %+v", sessions)
	}
	if !sessions[0].StoppedAt.Equal(time.UnixMilli(1000)) {
		t.Errorf("StoppedAt = %v", sessions[0].StoppedAt)
	}
}

func TestFileStoreCancelled(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "sessions.yaml"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Export(ctx, testReport(1, 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("Export with cancelled context = %v", err)
	}
}

func TestHTTPExporterDecodesTendencies(t *testing.T) {
	want := []Tendency{
		{Note: "C5", InstrumentID: 2, MeanCents: 8.5, TotalSamples: 30},
		{Note: "A4", InstrumentID: 2, MeanCents: -3.25, TotalSamples: 12},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want)
	}))
	defer server.Close()

	h, err := NewHTTPExporter(server.URL, server.Client())
	if err != nil {
		t.Fatal(err)
	}
	got, err := h.Tendencies(context.Background(), 2)
	if err != nil {
		t.Fatalf("Tendencies error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tendencies = %+v, want %+v", got, want)
	}
	// A success body on export is read and discarded.
	if err := h.Export(context.Background(), testReport(1, 2)); err != nil {
		t.Errorf("Export error: %v", err)
	}
}
