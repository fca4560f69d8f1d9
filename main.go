// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"tuner/cmd"
	"tuner/internal/audio"
	"tuner/internal/catalog"
	"tuner/internal/config"
	"tuner/internal/export"
	applog "tuner/internal/log"
	"tuner/internal/session"
	"tuner/internal/transport"
	"tuner/internal/transport/udp"
	"tuner/internal/tui"
	"tuner/internal/wavio"
	"tuner/pkg/build"

	tea "github.com/charmbracelet/bubbletea"
)

// main is the entry point for the tuner.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse configuration and command line arguments
//   - Execute one-off commands if requested
//   - Wire transports, exporters and the session controller
//
// 2. Concurrent Phase (Hot Path):
//   - Start the PortAudio input stream driving the controller
//   - Start recording if enabled
//   - Run the tuner UI, or wait for a signal when headless
//
// 3. Shutdown Phase (Cold Path):
//   - Stop the open session so its report is exported
//   - Stop the stream, recording and transports
//   - Wait for pending exports
func main() {
	if err := run(); err != nil {
		applog.Fatalf("%v", err)
	}
}

func run() error {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds have no link-time values and keep the defaults.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v", err)
	}

	// One thread for the capture callback, one for UI, exports and I/O.
	runtime.GOMAXPROCS(2)

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil // Help or version was printed
	}
	if err := applog.Configure(cfg.LogLevel); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Handle one-off commands that don't need a live session.
	if cfg.Command != "" {
		return executeCommand(ctx, cfg, os.Stdout)
	}

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	// Log lines would tear the alternate screen, so the TUI logs to a file.
	if !cfg.Headless {
		logPath := filepath.Join(os.TempDir(), "tuner.log")
		logFile, err := tea.LogToFile(logPath, "")
		if err != nil {
			return err
		}
		defer logFile.Close()
		applog.SetOutput(logFile)
		defer applog.SetOutput(os.Stderr)
	}

	instruments, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	meta := instruments.Current()

	exporters, err := buildExporters(cfg)
	if err != nil {
		return err
	}

	// Frames fan out to every enabled transport; export events go to the
	// websocket clients and the UI.
	var (
		frames transport.Multi
		events []export.EventSink
		feed   *tui.EventFeed
	)
	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress)
		ws.ListenAndServe()
		frames = append(frames, ws)
		events = append(events, ws)
	}
	if cfg.Transport.LogFrames {
		frames = append(frames, transport.NewLoggingTransport())
	}
	if !cfg.Headless {
		feed = tui.NewEventFeed()
		events = append(events, feed)
	}
	defer frames.Close()

	// Exports outlive the signal context so the final report still goes
	// out during shutdown.
	dispatcher := export.NewDispatcher(cfg.Export.Timeout, exporters, events...)
	dispatcher.Start(context.Background())
	defer dispatcher.Close()

	var sinks []session.FrameSink
	if len(frames) > 0 {
		sinks = append(sinks, frames)
	}
	controller, err := session.NewController(cfg.Core(), dispatcher.Handle, sinks...)
	if err != nil {
		return err
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		defer sender.Close()

		publisher, err := udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, controller)
		if err != nil {
			return err
		}
		publisher.Start()
		defer publisher.Close()
	}

	var recorder *wavio.Recorder
	if cfg.Recording.Enabled {
		recorder, err = wavio.NewRecorder(int(cfg.Audio.SampleRate), cfg.Audio.InputChannels,
			cfg.Recording.BitDepth, cfg.Audio.FramesPerBuffer)
		if err != nil {
			return err
		}
	}

	engine, err := audio.NewEngine(cfg, controller, recorder)
	if err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// The first callback marks the start of the hot path.
	if err := engine.StartInputStream(); err != nil {
		return err
	}

	if recorder != nil {
		path := cfg.RecordingPath(time.Now())
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			applog.Warnf("Recording: %v", err)
		}
		if err := engine.StartRecording(path); err != nil {
			engine.Close()
			return err
		}
	}

	if cfg.Session.AutoStart {
		controller.Start(meta)
	}

	if cfg.Headless {
		applog.Infof("Tuner running headless for %s, press Ctrl+C to stop", meta.Instrument)
		<-ctx.Done()
	} else if err := tui.RunTuner(controller, meta, feed); err != nil {
		applog.Errorf("TUI: %v", err)
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	// An open session is stopped so its report is exported. The engine
	// applies the request after the stream has stopped.
	if controller.Active() {
		controller.Stop()
	}
	if err := engine.Close(); err != nil {
		applog.Errorf("Error closing audio engine: %v", err)
	}
	if recorder != nil {
		fmt.Printf("\nRecording saved to: %s\n", recorder.Path())
	}
	return nil
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	return catalog.Load(cfg.Session.CatalogPath, session.Meta{
		Instrument:   cfg.Session.Instrument,
		InstrumentID: cfg.Session.InstrumentID,
	})
}

// buildExporters returns the local store, then the HTTP API, as configured.
func buildExporters(cfg *config.Config) ([]export.Exporter, error) {
	var exporters []export.Exporter
	if cfg.Export.StorePath != "" {
		exporters = append(exporters, export.NewFileStore(cfg.Export.StorePath))
	}
	if cfg.Export.Endpoint != "" {
		h, err := export.NewHTTPExporter(cfg.Export.Endpoint, nil)
		if err != nil {
			return nil, err
		}
		exporters = append(exporters, h)
	}
	if len(exporters) == 0 {
		applog.Warnf("Export: no store or endpoint configured, reports are discarded")
	}
	return exporters, nil
}

// tendencySource prefers the HTTP API over the local store.
func tendencySource(cfg *config.Config) (export.TendencySource, error) {
	if cfg.Export.Endpoint != "" {
		return export.NewHTTPExporter(cfg.Export.Endpoint, nil)
	}
	if cfg.Export.StorePath != "" {
		return export.NewFileStore(cfg.Export.StorePath), nil
	}
	return nil, fmt.Errorf("no export endpoint or store configured")
}
