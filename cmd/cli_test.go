// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"tuner/internal/config"
)

func TestParseArgs_Defaults(t *testing.T) {
	cfg, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}
	if cfg.Command != "" || cfg.Headless {
		t.Errorf("Command = %q, Headless = %v, want live TUI session", cfg.Command, cfg.Headless)
	}
	if cfg.Audio.FramesPerBuffer != config.DefaultFramesPerBuffer || cfg.Tuner.BufferSize != config.DefaultBufferSize {
		t.Errorf("audio = %+v, tuner = %+v", cfg.Audio, cfg.Tuner)
	}
}

func TestParseArgs_Flags(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"-d", "2", "-c", "2", "-s", "48000", "-b", "512", "-n", "2048", "-l",
		"--udp", "127.0.0.1:9999", "--websocket", ":9000",
		"-o", "take.wav", "--export-endpoint", "http://localhost:8000",
		"--headless", "--auto-start", "-v",
	})
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}

	wantAudio := config.AudioConfig{
		InputDevice:     2,
		SampleRate:      48000,
		FramesPerBuffer: 512,
		LowLatency:      true,
		InputChannels:   2,
	}
	if cfg.Audio != wantAudio {
		t.Errorf("Audio = %+v, want %+v", cfg.Audio, wantAudio)
	}
	if cfg.Tuner.BufferSize != 2048 {
		t.Errorf("BufferSize = %d, want 2048", cfg.Tuner.BufferSize)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "127.0.0.1:9999" {
		t.Errorf("UDP = %v %q", cfg.Transport.UDPEnabled, cfg.Transport.UDPTargetAddress)
	}
	if !cfg.Transport.WebSocketEnabled || cfg.Transport.WebSocketAddress != ":9000" {
		t.Errorf("WebSocket = %v %q", cfg.Transport.WebSocketEnabled, cfg.Transport.WebSocketAddress)
	}
	if !cfg.Recording.Enabled || cfg.Recording.OutputFile != "take.wav" {
		t.Errorf("Recording = %+v", cfg.Recording)
	}
	if cfg.Export.Endpoint != "http://localhost:8000" {
		t.Errorf("Endpoint = %q", cfg.Export.Endpoint)
	}
	if !cfg.Headless || !cfg.Session.AutoStart || !cfg.Verbose || cfg.LogLevel != "debug" {
		t.Errorf("headless=%v autoStart=%v verbose=%v level=%q",
			cfg.Headless, cfg.Session.AutoStart, cfg.Verbose, cfg.LogLevel)
	}
}

func TestParseArgs_Commands(t *testing.T) {
	tests := []struct {
		args        []string
		wantCommand string
		wantArgs    []string
	}{
		{[]string{"list"}, CommandList, []string{}},
		{[]string{"devices"}, CommandDevices, []string{}},
		{[]string{"analyze", "take.wav"}, CommandAnalyze, []string{"take.wav"}},
		{[]string{"tendencies"}, CommandTendencies, []string{}},
		{[]string{"tendencies", "3"}, CommandTendencies, []string{"3"}},
		{[]string{"instruments"}, CommandInstruments, []string{}},
		{[]string{"instruments", "add", "Oboe"}, CommandInstrumentsAdd, []string{"Oboe"}},
		{[]string{"instruments", "use", "2"}, CommandInstrumentsUse, []string{"2"}},
		{[]string{"analyze", "-n", "2048", "take.wav"}, CommandAnalyze, []string{"take.wav"}},
	}
	for _, tt := range tests {
		cfg, err := ParseArgs(tt.args)
		if err != nil {
			t.Errorf("ParseArgs(%v) error: %v", tt.args, err)
			continue
		}
		if cfg.Command != tt.wantCommand {
			t.Errorf("ParseArgs(%v).Command = %q, want %q", tt.args, cfg.Command, tt.wantCommand)
		}
		if len(cfg.Args) != len(tt.wantArgs) || (len(tt.wantArgs) > 0 && !reflect.DeepEqual(cfg.Args, tt.wantArgs)) {
			t.Errorf("ParseArgs(%v).Args = %v, want %v", tt.args, cfg.Args, tt.wantArgs)
		}
	}
}

func TestParseArgs_Errors(t *testing.T) {
	tests := [][]string{
		{"-b", "1000"},
		{"-n", "512", "-b", "1024"},
		{"--bogus"},
		{"analyze"},
		{"tendencies", "clarinet"},
		{"instruments", "use"},
		{"instruments", "add", "a", "b"},
		{"stray"},
		{"--config", "does-not-exist.yaml"},
	}
	for _, args := range tests {
		if cfg, err := ParseArgs(args); err == nil {
			t.Errorf("ParseArgs(%v) = %+v, want error", args, cfg)
		}
	}
}

func TestParseArgs_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuner.yaml")
	content := `
audio:
  sample_rate: 48000
session:
  instrument: Oboe
  instrument_id: 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseArgs([]string{"--config", path, "-s", "96000"})
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}
	if cfg.Audio.SampleRate != 96000 {
		t.Errorf("SampleRate = %v, flag should win over file", cfg.Audio.SampleRate)
	}
	if cfg.Session.Instrument != "Oboe" || cfg.Session.InstrumentID != 3 {
		t.Errorf("Session = %+v", cfg.Session)
	}
}

func TestParseArgs_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"--version"}} {
		cfg, err := ParseArgs(args)
		if err != nil || cfg != nil {
			t.Errorf("ParseArgs(%v) = %v, %v, want nil, nil", args, cfg, err)
		}
	}
}
