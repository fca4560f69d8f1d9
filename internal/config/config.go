// SPDX-License-Identifier: MIT
package config

import (
	"path/filepath"
	"time"

	"tuner/internal/pitch"
	"tuner/internal/session"
)

// Core configuration constants that define the boundaries and defaults
// for the tuner.
const (
	// Audio capture defaults
	DefaultChannels        = 1           // Mono audio
	DefaultDeviceID        = MinDeviceID // Default to system default device
	DefaultFramesPerBuffer = 1024        // ~23ms at 44.1kHz
	DefaultLowLatency      = false       // Standard latency mode
	DefaultSampleRate      = 44100       // CD-quality audio

	// Tuner defaults
	DefaultBufferSize          = pitch.DefaultBufferSize
	DefaultSilenceRMS          = pitch.DefaultSilenceRMS
	DefaultPeakFraction        = pitch.DefaultPeakFraction
	DefaultStabilityThreshold  = session.DefaultStabilityThreshold
	DefaultMinSamplesForExport = session.DefaultMinSamplesForExport

	// Session defaults
	DefaultInstrument   = "Clarinet"
	DefaultInstrumentID = 1
	DefaultCatalogPath  = "instruments.yaml"

	// Recording defaults
	DefaultRecordInputStream = false
	DefaultOutputDir         = "./recordings"
	DefaultBitDepth          = 16

	// Transport defaults
	DefaultWebSocketAddress = ":8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz

	// Export defaults
	DefaultExportTimeout = 5 * time.Second
	DefaultStorePath     = "sessions.yaml"

	DefaultLogLevel  = "info"
	DefaultVerbosity = false

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
	MinTunerBuffer  = 256    // Smallest estimator window (power of 2)
)

// Config represents the application configuration, loaded from YAML and
// then overridden by environment variables and command line flags.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error.
	Audio     AudioConfig     `yaml:"audio"`
	Tuner     TunerConfig     `yaml:"tuner"`
	Session   SessionConfig   `yaml:"session"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
	Export    ExportConfig    `yaml:"export"`

	// Set from the command line only.
	Command  string   `yaml:"-"` // One-off command instead of a live session.
	Args     []string `yaml:"-"` // Positional arguments of Command.
	Headless bool     `yaml:"-"` // Run the live session without the TUI.
	Verbose  bool     `yaml:"-"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per PortAudio callback.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency from the device.
	InputChannels   int     `yaml:"input_channels"`    // Channels captured, downmixed to mono.
}

// TunerConfig holds the pitch estimator and session core constants.
type TunerConfig struct {
	BufferSize          int     `yaml:"buffer_size"`            // Estimator window N, a power of 2.
	SilenceRMS          float64 `yaml:"silence_rms"`            // RMS below which a window is silent.
	PeakFraction        float64 `yaml:"peak_fraction"`          // Weak-peak rejection fraction.
	StabilityThreshold  int     `yaml:"stability_threshold"`    // Consecutive detections before aggregating.
	MinSamplesForExport int     `yaml:"min_samples_for_export"` // Per-note minimum in a report.
}

// SessionConfig holds the instrument defaults for new sessions.
type SessionConfig struct {
	CatalogPath  string `yaml:"catalog_path"`  // Instrument catalog file.
	Instrument   string `yaml:"instrument"`    // Used when the catalog has no selection.
	InstrumentID int    `yaml:"instrument_id"` // Used when the catalog has no selection.
	AutoStart    bool   `yaml:"auto_start"`    // Start a session as soon as capture begins.
}

// RecordingConfig holds settings related to audio recording.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`     // Record the captured input to a WAV file.
	OutputDir  string `yaml:"output_dir"`  // Directory for generated file names.
	OutputFile string `yaml:"output_file"` // Explicit output path, overrides OutputDir.
	BitDepth   int    `yaml:"bit_depth"`   // 16 or 24.
}

// TransportConfig holds settings for publishing live frames.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Broadcast frames and events as JSON.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address, e.g. ":8080".
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send binary frame packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
	LogFrames        bool          `yaml:"log_frames"`         // Log every frame at debug level.
}

// ExportConfig holds settings for session reports.
type ExportConfig struct {
	Endpoint  string        `yaml:"endpoint"`   // Base URL of the session API, empty to disable.
	Timeout   time.Duration `yaml:"timeout"`    // Per-export timeout.
	StorePath string        `yaml:"store_path"` // Local YAML session store, empty to disable.
}

// NewConfig creates a new Config instance with default values.
// This is the base configuration before a config file, environment
// variables or command line flags are applied.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultChannels,
		},
		Tuner: TunerConfig{
			BufferSize:          DefaultBufferSize,
			SilenceRMS:          DefaultSilenceRMS,
			PeakFraction:        DefaultPeakFraction,
			StabilityThreshold:  DefaultStabilityThreshold,
			MinSamplesForExport: DefaultMinSamplesForExport,
		},
		Session: SessionConfig{
			CatalogPath:  DefaultCatalogPath,
			Instrument:   DefaultInstrument,
			InstrumentID: DefaultInstrumentID,
		},
		Recording: RecordingConfig{
			Enabled:   DefaultRecordInputStream,
			OutputDir: DefaultOutputDir,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			WebSocketAddress: DefaultWebSocketAddress,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
		Export: ExportConfig{
			Timeout:   DefaultExportTimeout,
			StorePath: DefaultStorePath,
		},
		Verbose: DefaultVerbosity,
	}
}

// Core returns the session core constants.
func (c *Config) Core() session.Config {
	return session.Config{
		Estimator: pitch.EstimatorConfig{
			BufferSize:   c.Tuner.BufferSize,
			SilenceRMS:   c.Tuner.SilenceRMS,
			PeakFraction: c.Tuner.PeakFraction,
		},
		StabilityThreshold:  c.Tuner.StabilityThreshold,
		MinSamplesForExport: c.Tuner.MinSamplesForExport,
	}
}

// RecordingPath returns the configured output file, or a time-stamped name
// in OutputDir.
func (c *Config) RecordingPath(now time.Time) string {
	if c.Recording.OutputFile != "" {
		return c.Recording.OutputFile
	}
	name := "recording-" + now.UTC().Format("02-01-2006-150405") + ".wav"
	return filepath.Join(c.Recording.OutputDir, name)
}
