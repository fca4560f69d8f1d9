// SPDX-License-Identifier: MIT
package wavio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidFile is returned for files that are not PCM WAV.
var ErrInvalidFile = errors.New("invalid WAV file")

// Info describes an opened WAV file.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int // Frames decoded so far
}

// Duration returns the length of the decoded frames.
func (i Info) Duration() time.Duration {
	return time.Duration(i.Frames) * time.Second / time.Duration(i.SampleRate)
}

// Reader decodes a WAV file into mono float32 samples.
type Reader struct {
	file    *os.File
	decoder *wav.Decoder
	info    Info
	scale   float64
	pcm     *audio.IntBuffer
}

// Open validates path as a PCM WAV file and prepares it for reading.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("%w: %s", ErrInvalidFile, path)
	}

	bitDepth := int(decoder.BitDepth)
	switch bitDepth {
	case 16, 24, 32:
	default:
		file.Close()
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidFile, bitDepth)
	}

	info := Info{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   bitDepth,
	}
	if info.Channels < 1 || info.SampleRate <= 0 {
		file.Close()
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrInvalidFile, info.Channels, info.SampleRate)
	}

	return &Reader{
		file:    file,
		decoder: decoder,
		info:    info,
		scale:   float64(int64(1) << (bitDepth - 1)),
	}, nil
}

func (r *Reader) Info() Info {
	return r.info
}

// Read fills block with mono samples, averaging channels, and returns the
// number written. It returns io.EOF once the file is exhausted.
func (r *Reader) Read(block []float32) (int, error) {
	need := len(block) * r.info.Channels
	if r.pcm == nil || cap(r.pcm.Data) < need {
		r.pcm = &audio.IntBuffer{Data: make([]int, need)}
	}
	r.pcm.Data = r.pcm.Data[:need]

	n, err := r.decoder.PCMBuffer(r.pcm)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("failed to decode WAV data: %w", err)
	}
	frames := n / r.info.Channels
	if frames == 0 {
		return 0, io.EOF
	}

	ch := r.info.Channels
	for i := range frames {
		sum := 0
		for c := range ch {
			sum += r.pcm.Data[i*ch+c]
		}
		block[i] = float32(float64(sum) / float64(ch) / r.scale)
	}
	r.info.Frames += frames
	return frames, nil
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// Replay reads path in blocks of blockSize mono samples and passes each to
// fn, the last one possibly shorter. It stops early when ctx is cancelled or
// fn returns an error.
func Replay(ctx context.Context, path string, blockSize int, fn func(info Info, block []float32) error) (Info, error) {
	if blockSize <= 0 {
		return Info{}, fmt.Errorf("block size must be positive, got %d", blockSize)
	}

	r, err := Open(path)
	if err != nil {
		return Info{}, err
	}
	defer r.Close()

	block := make([]float32, blockSize)
	for {
		if err := ctx.Err(); err != nil {
			return r.info, err
		}

		n, err := r.Read(block)
		if errors.Is(err, io.EOF) {
			return r.info, nil
		}
		if err != nil {
			return r.info, err
		}
		if err := fn(r.info, block[:n]); err != nil {
			return r.info, err
		}
	}
}
