// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	applog "tuner/internal/log"
	"tuner/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPaths are searched in order when LoadConfig is given no path.
var DefaultConfigPaths = []string{"tuner.yaml", "config.yaml"}

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty, it searches DefaultConfigPaths. If no file is found, it uses
// built-in defaults. After loading defaults or from file, it applies
// environment variable overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range DefaultConfigPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	applog.Debugf("Config: loaded %s", path)
	return cfg, nil
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error, fatal", c.LogLevel)
	}

	// Audio Validation
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, c.Audio.InputDevice)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate must be between %d and %d Hz, got %.0f",
			MinSampleRate, MaxSampleRate, c.Audio.SampleRate)
	}
	if c.Audio.InputChannels < 1 {
		return fmt.Errorf("audio.input_channels must be >= 1, got %d", c.Audio.InputChannels)
	}
	if err := validatePowerOfTwo("audio.frames_per_buffer", c.Audio.FramesPerBuffer, 1, MaxBufferFrames); err != nil {
		return err
	}

	// Tuner Validation
	if err := validatePowerOfTwo("tuner.buffer_size", c.Tuner.BufferSize, MinTunerBuffer, MaxBufferFrames); err != nil {
		return err
	}
	if c.Audio.FramesPerBuffer > c.Tuner.BufferSize {
		return fmt.Errorf("audio.frames_per_buffer (%d) must not exceed tuner.buffer_size (%d)",
			c.Audio.FramesPerBuffer, c.Tuner.BufferSize)
	}
	if c.Tuner.SilenceRMS < 0 || c.Tuner.SilenceRMS >= 1 {
		return fmt.Errorf("tuner.silence_rms must be in [0, 1), got %g", c.Tuner.SilenceRMS)
	}
	if c.Tuner.PeakFraction <= 0 || c.Tuner.PeakFraction > 1 {
		return fmt.Errorf("tuner.peak_fraction must be in (0, 1], got %g", c.Tuner.PeakFraction)
	}
	if c.Tuner.StabilityThreshold < 1 {
		return fmt.Errorf("tuner.stability_threshold must be >= 1, got %d", c.Tuner.StabilityThreshold)
	}
	if c.Tuner.MinSamplesForExport < 0 {
		return fmt.Errorf("tuner.min_samples_for_export must be >= 0, got %d", c.Tuner.MinSamplesForExport)
	}

	// Recording Validation
	if c.Recording.BitDepth != 16 && c.Recording.BitDepth != 24 {
		return fmt.Errorf("recording.bit_depth must be 16 or 24, got %d", c.Recording.BitDepth)
	}

	// Transport Validation
	if c.Transport.UDPEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.UDPTargetAddress); err != nil {
			return fmt.Errorf("transport.udp_target_address %q appears invalid: %w", c.Transport.UDPTargetAddress, err)
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if c.Transport.WebSocketEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.WebSocketAddress); err != nil {
			return fmt.Errorf("transport.websocket_address %q appears invalid: %w", c.Transport.WebSocketAddress, err)
		}
	}

	// Export Validation
	if c.Export.Endpoint != "" && c.Export.Timeout <= 0 {
		return fmt.Errorf("export.timeout must be positive when an endpoint is set")
	}

	return nil
}

func validatePowerOfTwo(field string, value, minValue, maxValue int) error {
	if value < minValue || value > maxValue {
		return fmt.Errorf("%s must be between %d and %d, got %d", field, minValue, maxValue, value)
	}
	if !bitint.IsPowerOfTwo(value) {
		return fmt.Errorf("%s must be a power of 2, got %d (try %d)", field, value, bitint.NextPowerOfTwo(value))
	}
	return nil
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
// Unparseable values are ignored with a warning.
func (cfg *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.

	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Infof("Config: Overriding debug from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Infof("Config: Overriding log_level from env: %s", val)
	}

	// ENV_AUDIO_{...}
	// These are specific to capture.

	// ENV_AUDIO_INPUT_DEVICE
	if val, ok := os.LookupEnv("ENV_AUDIO_INPUT_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.InputDevice = iVal
			applog.Infof("Config: Overriding audio.input_device from env: %d", iVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_AUDIO_INPUT_DEVICE=%q: %v", val, err)
		}
	}
	// ENV_AUDIO_SAMPLE_RATE
	if val, ok := os.LookupEnv("ENV_AUDIO_SAMPLE_RATE"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Audio.SampleRate = fVal
			applog.Infof("Config: Overriding audio.sample_rate from env: %.0f", fVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_AUDIO_SAMPLE_RATE=%q: %v", val, err)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Infof("Config: Overriding transport.udp_enabled from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Infof("Config: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Infof("Config: Overriding transport.udp_send_interval from env: %s", dur)
		} else {
			applog.Warnf("Config: Ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WebSocketEnabled = true
		cfg.Transport.WebSocketAddress = val
		applog.Infof("Config: Overriding transport.websocket_address from env: %s", val)
	}

	// ENV_EXPORT_{...}

	// ENV_EXPORT_ENDPOINT
	if val, ok := os.LookupEnv("ENV_EXPORT_ENDPOINT"); ok {
		cfg.Export.Endpoint = val
		applog.Infof("Config: Overriding export.endpoint from env: %s", val)
	}
	// ENV_EXPORT_STORE_PATH
	if val, ok := os.LookupEnv("ENV_EXPORT_STORE_PATH"); ok {
		cfg.Export.StorePath = val
		applog.Infof("Config: Overriding export.store_path from env: %s", val)
	}
}
