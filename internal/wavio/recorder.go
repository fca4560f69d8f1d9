// SPDX-License-Identifier: MIT
/*
Package wavio records captured audio to WAV files and replays WAV files as
mono float32 blocks.

Samples are float32 in [-1, 1] on both sides; the files hold signed PCM.
*/
package wavio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrAlreadyRecording is returned by Start while a recording is open.
var ErrAlreadyRecording = errors.New("already recording")

const wavFormatPCM = 1

// Recorder writes interleaved float32 buffers to a PCM WAV file.
//
// Write is called from the capture callback; Start and Stop may be called
// from any goroutine.
type Recorder struct {
	sampleRate int
	channels   int
	bitDepth   int
	scale      float64

	recording atomic.Bool
	mu        sync.Mutex // Guards the fields below
	path      string
	file      *os.File
	encoder   *wav.Encoder
	sampleBuf *audio.IntBuffer // Reusable buffer for format conversion
}

// NewRecorder returns an idle recorder. framesPerBuffer sizes the reusable
// conversion buffer; larger writes grow it once.
func NewRecorder(sampleRate, channels, bitDepth, framesPerBuffer int) (*Recorder, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if channels < 1 {
		return nil, fmt.Errorf("channels must be >= 1, got %d", channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	return &Recorder{
		sampleRate: sampleRate,
		channels:   channels,
		bitDepth:   bitDepth,
		scale:      float64(int(1)<<(bitDepth-1) - 1),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: bitDepth,
			Data:           make([]int, framesPerBuffer*channels),
		},
	}, nil
}

// Start creates path and begins recording.
func (r *Recorder) Start(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording.Load() {
		return ErrAlreadyRecording
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}

	r.file = file
	r.path = path
	r.encoder = wav.NewEncoder(file, r.sampleRate, r.bitDepth, r.channels, wavFormatPCM)
	r.recording.Store(true)
	return nil
}

// Write appends interleaved samples. It is a no-op when not recording.
func (r *Recorder) Write(samples []float32) error {
	if !r.recording.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.encoder == nil {
		return nil
	}

	if cap(r.sampleBuf.Data) < len(samples) {
		r.sampleBuf.Data = make([]int, len(samples))
	}
	data := r.sampleBuf.Data[:len(samples)]
	for i, s := range samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(v * r.scale)
	}
	r.sampleBuf.Data = data

	if err := r.encoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	return nil
}

// Stop finalizes the WAV header and closes the file. It is a no-op when not
// recording.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording.Swap(false) {
		return nil
	}

	var errs []error
	if r.encoder != nil {
		if err := r.encoder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to finalize WAV: %w", err))
		}
		r.encoder = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close recording: %w", err))
		}
		r.file = nil
	}
	return errors.Join(errs...)
}

func (r *Recorder) Recording() bool {
	return r.recording.Load()
}

// Path returns the file of the current or last recording.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}
