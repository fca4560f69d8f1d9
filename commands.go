// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"tuner/cmd"
	"tuner/internal/audio"
	"tuner/internal/catalog"
	"tuner/internal/config"
	"tuner/internal/export"
	applog "tuner/internal/log"
	"tuner/internal/session"
	"tuner/internal/tui"
	"tuner/internal/wavio"
)

// executeCommand handles one-off commands that don't run a live session.
func executeCommand(ctx context.Context, cfg *config.Config, w io.Writer) error {
	switch cfg.Command {
	case cmd.CommandList:
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(w)

	case cmd.CommandDevices:
		return pickDevice(w)

	case cmd.CommandAnalyze:
		return analyze(ctx, cfg, cfg.Args[0], w)

	case cmd.CommandTendencies:
		return showTendencies(ctx, cfg, cfg.Args, w)

	case cmd.CommandInstruments, cmd.CommandInstrumentsAdd, cmd.CommandInstrumentsUse:
		return manageInstruments(cfg, w)
	}
	return fmt.Errorf("unknown command %q", cfg.Command)
}

func pickDevice(w io.Writer) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	sel, ok, err := tui.PickDevice(audio.HostDevices)
	if err != nil || !ok {
		return err
	}
	fmt.Fprintf(w, "Selected [%d] %s at %.0f Hz\n", sel.DeviceID, sel.Name, sel.SampleRate)
	fmt.Fprintf(w, "Use it with: -d %d -s %.0f\n", sel.DeviceID, sel.SampleRate)
	return nil
}

// analyze replays a WAV file through the tuner as a single session, prints
// the report and exports it like a live session.
func analyze(ctx context.Context, cfg *config.Config, path string, w io.Writer) error {
	instruments, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	exporters, err := buildExporters(cfg)
	if err != nil {
		return err
	}

	dispatcher := export.NewDispatcher(cfg.Export.Timeout, exporters, exportPrinter{w})
	dispatcher.Start(context.Background())
	defer dispatcher.Close()

	report, info, err := replaySession(ctx, cfg.Core(), instruments.Current(), path, cfg.Audio.FramesPerBuffer)
	if err != nil {
		return err
	}

	printReport(w, report, info)
	dispatcher.Handle(report)
	return nil
}

// replaySession feeds the file hop by hop through a sliding window, exactly
// as the capture callback does, between a Start and a Stop.
func replaySession(ctx context.Context, core session.Config, meta session.Meta, path string, hop int) (session.Report, wavio.Info, error) {
	var report session.Report
	controller, err := session.NewController(core, func(r session.Report) { report = r })
	if err != nil {
		return report, wavio.Info{}, err
	}

	window := session.NewWindow(controller.BufferSize())
	controller.Start(meta)

	info, err := wavio.Replay(ctx, path, hop, func(info wavio.Info, block []float32) error {
		controller.Step(window.Push(block), float64(info.SampleRate))
		return nil
	})
	if err != nil {
		return report, info, err
	}

	controller.Stop()
	controller.Flush()
	applog.Debugf("Analyze: %s replayed, %d notes", path, len(report.Notes))
	return report, info, nil
}

func printReport(w io.Writer, report session.Report, info wavio.Info) {
	fmt.Fprintf(w, "\n%s: %s, %d Hz, %d ch, %d bit\n\n",
		report.Instrument, info.Duration().Round(10*time.Millisecond), info.SampleRate, info.Channels, info.BitDepth)

	if report.Empty() {
		fmt.Fprintln(w, "No note was held long enough to report.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Note\tMean cents\tSamples\t")
	for _, n := range report.Notes {
		fmt.Fprintf(tw, "%s\t%+.2f\t%d\t\n", n.Note, n.MeanCents, n.Count)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d notes, %d samples\n", len(report.Notes), report.Samples())
}

// exportPrinter reports export outcomes of one-off commands on w.
type exportPrinter struct {
	w io.Writer
}

func (p exportPrinter) Send(data any) error {
	ev, ok := data.(export.Event)
	if !ok {
		return nil
	}
	switch ev.Type {
	case export.EventExported:
		fmt.Fprintf(p.w, "Exported session %d to %s\n", ev.SessionID, ev.Exporter)
	case export.EventFailed:
		fmt.Fprintf(p.w, "Export to %s failed: %s\n", ev.Exporter, ev.Error)
	}
	return nil
}

func showTendencies(ctx context.Context, cfg *config.Config, args []string, w io.Writer) error {
	instruments, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	meta := instruments.Current()
	if len(args) > 0 {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid instrument ID %q", args[0])
		}
		meta = session.Meta{InstrumentID: id, Instrument: "#" + args[0]}
		for _, inst := range instruments.Instruments() {
			if inst.ID == id {
				meta.Instrument = inst.Name
			}
		}
	}

	source, err := tendencySource(cfg)
	if err != nil {
		return err
	}
	tendencies, err := source.Tendencies(ctx, meta.InstrumentID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Tuning tendencies for %s\n\n", meta.Instrument)
	if len(tendencies) == 0 {
		fmt.Fprintln(w, "No sessions recorded yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Note\tMean cents\tSamples\t")
	for _, t := range tendencies {
		fmt.Fprintf(tw, "%s\t%+.2f\t%d\t\n", t.Note, t.MeanCents, t.TotalSamples)
	}
	return tw.Flush()
}

func manageInstruments(cfg *config.Config, w io.Writer) error {
	instruments, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	switch cfg.Command {
	case cmd.CommandInstrumentsAdd:
		inst, err := instruments.Add(cfg.Args[0])
		if err != nil {
			return err
		}
		if err := instruments.Save(); err != nil {
			return err
		}
		fmt.Fprintf(w, "Added [%d] %s\n", inst.ID, inst.Name)
		return nil

	case cmd.CommandInstrumentsUse:
		id, err := strconv.Atoi(cfg.Args[0])
		if err != nil {
			return fmt.Errorf("invalid instrument ID %q", cfg.Args[0])
		}
		if err := instruments.SetCurrent(id); err != nil {
			return err
		}
		if err := instruments.Save(); err != nil {
			return err
		}
		fmt.Fprintf(w, "Sessions are now recorded for %s\n", instruments.Current().Instrument)
		return nil
	}

	printInstruments(w, instruments)
	return nil
}

func printInstruments(w io.Writer, instruments *catalog.Catalog) {
	current := instruments.Current().InstrumentID
	for _, inst := range instruments.Instruments() {
		marker := " "
		if inst.ID == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s [%d] %s\n", marker, inst.ID, inst.Name)
	}
}
