// SPDX-License-Identifier: MIT
/*
Package audio captures audio with PortAudio and feeds it to the tuner:
- float32 input stream, downmixed to mono
- sliding estimator window advanced by every callback
- optional WAV recording of the raw input

Thread Safety:
- The stream callback is the only goroutine that touches the window and
  calls the Processor
- Pre-allocates buffers to avoid GC in hot path
- Locks OS thread during audio processing
*/
package audio

import (
	"fmt"
	"runtime"
	"time"

	"tuner/internal/config"
	applog "tuner/internal/log"
	"tuner/internal/session"
	"tuner/internal/wavio"

	"github.com/gordonklaus/portaudio"
)

// MaxConsecutiveWriteFailures stops recording after this many failed writes
// in a row.
const MaxConsecutiveWriteFailures = 5

// Processor consumes one full mono window per callback. Step runs on the
// capture thread; Flush runs once after the stream has stopped.
type Processor interface {
	Step(samples []float32, sampleRate float64) session.Frame
	Flush()
}

type Engine struct {
	// Core configuration and state.
	config     *config.Config
	sampleRate float64
	channels   int

	// Audio input handling.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Tuner input.
	processor Processor
	window    *session.Window
	mono      []float32 // Downmixed callback buffer

	// Recording, nil when disabled.
	recorder      wavRecorder
	writeFailures int
	stopping      bool // A stop after repeated write failures is in flight
}

// wavRecorder is the part of *wavio.Recorder the engine uses.
type wavRecorder interface {
	Start(path string) error
	Write(samples []float32) error
	Stop() error
	Recording() bool
}

// NewEngine resolves the configured input device and pre-allocates the
// capture buffers. recorder may be nil.
func NewEngine(cfg *config.Config, processor Processor, recorder *wavio.Recorder) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}

	engine := newEngine(cfg, processor, recorder)
	engine.inputDevice = inputDevice

	if cfg.Audio.InputChannels > inputDevice.MaxInputChannels {
		return nil, fmt.Errorf("device %s has %d input channels, %d requested",
			inputDevice.Name, inputDevice.MaxInputChannels, cfg.Audio.InputChannels)
	}

	if cfg.Audio.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	applog.Infof("Engine: Using input device %q (%d ch @ %.0f Hz, %d frames/buffer, window %d)",
		inputDevice.Name, engine.channels, engine.sampleRate, cfg.Audio.FramesPerBuffer, cfg.Tuner.BufferSize)
	return engine, nil
}

// newEngine builds the device independent part of the engine. A nil rec
// leaves recording disabled.
func newEngine(cfg *config.Config, processor Processor, rec *wavio.Recorder) *Engine {
	e := &Engine{
		config:     cfg,
		sampleRate: cfg.Audio.SampleRate,
		channels:   cfg.Audio.InputChannels,
		processor:  processor,
		window:     session.NewWindow(cfg.Tuner.BufferSize),
		mono:       make([]float32, cfg.Audio.FramesPerBuffer),
	}
	if rec != nil {
		e.recorder = rec
	}
	return e
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      e.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	return nil
}

// StopInputStream stops and closes the stream. No callback runs after it
// returns.
func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
	}

	return nil
}

func (e *Engine) StartRecording(path string) error {
	if e.recorder == nil {
		return fmt.Errorf("recording is not configured")
	}
	e.writeFailures = 0
	e.stopping = false
	return e.recorder.Start(path)
}

func (e *Engine) StopRecording() error {
	if e.recorder == nil {
		return nil
	}
	return e.recorder.Stop()
}

// Close stops the stream, applies any pending session request and closes
// the recording. The first error is returned after all steps ran.
func (e *Engine) Close() error {
	streamErr := e.StopInputStream()
	if e.processor != nil {
		e.processor.Flush()
	}
	recErr := e.StopRecording()

	if streamErr != nil {
		return streamErr
	}
	return recErr
}

// processInputStream is the core audio processing callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.record(in)

	mono := e.downmix(in)
	window := e.window.Push(mono)
	if e.processor != nil {
		e.processor.Step(window, e.sampleRate)
	}
}

// downmix averages interleaved channels into the mono buffer.
func (e *Engine) downmix(in []float32) []float32 {
	if e.channels == 1 {
		return in
	}

	frames := len(in) / e.channels
	if frames > len(e.mono) {
		frames = len(e.mono)
	}
	scale := 1 / float32(e.channels)
	for i := range frames {
		var sum float32
		for c := range e.channels {
			sum += in[i*e.channels+c]
		}
		e.mono[i] = sum * scale
	}
	return e.mono[:frames]
}

func (e *Engine) record(in []float32) {
	if e.recorder == nil || !e.recorder.Recording() {
		return
	}

	if err := e.recorder.Write(in); err != nil {
		e.writeFailures++
		applog.Errorf("Engine: Error writing to WAV file: %v", err)
		if e.writeFailures >= MaxConsecutiveWriteFailures && !e.stopping {
			e.stopping = true
			applog.Errorf("Engine: %d consecutive write failures, stopping recording", e.writeFailures)
			go func() {
				if err := e.recorder.Stop(); err != nil {
					applog.Errorf("Engine: Error stopping recording: %v", err)
				}
			}()
		}
		return
	}
	e.writeFailures = 0
}
