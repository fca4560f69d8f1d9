// SPDX-License-Identifier: MIT
package pitch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ReferenceA4 is the tuning reference in Hz.
const ReferenceA4 = 440.0

// centsEpsilon nudges raw cents before rounding so values that are exactly
// on a tenth in decimal, such as 12.30, do not flicker to 12.2 or 12.4 from
// binary representation error.
const centsEpsilon = 1e-6

// ErrInvalidFrequency is the panic value (wrapped) raised when a note is
// requested for a non-positive or non-finite frequency.
var ErrInvalidFrequency = errors.New("frequency must be positive and finite")

// ErrInvalidNoteName is returned by ParseNoteName.
var ErrInvalidNoteName = errors.New("invalid note name")

// c0 is C in octave 0, 4.75 octaves (57 semitones) below A4.
var c0 = ReferenceA4 * math.Pow(2, -4.75)

// noteNames uses sharps only.
var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note is a frequency snapped to the nearest equal-tempered semitone.
type Note struct {
	Letter   string  `json:"note"`       // One of the 12 sharps-only names
	Octave   int     `json:"octave"`     // Scientific octave, may be negative
	Name     string  `json:"noteString"` // Letter + Octave, e.g. "A4", "D#-1"
	Cents    float64 `json:"cents"`      // Offset from the semitone, one decimal
	Semitone int     `json:"semitone"`   // Semitones above C0
}

// NoteFromFrequency maps a frequency onto the nearest semitone. It panics
// with ErrInvalidFrequency for non-positive or non-finite input: callers
// must only pass frequencies produced by a successful Estimate.
func NoteFromFrequency(frequency float64) Note {
	if !(frequency > 0) || math.IsInf(frequency, 1) {
		panic(fmt.Errorf("%w: %v", ErrInvalidFrequency, frequency))
	}

	exact := 12 * math.Log2(frequency/c0)
	rounded := int(math.Round(exact))
	index := ((rounded % 12) + 12) % 12
	octave := int(math.Floor(float64(rounded) / 12))

	raw := (exact - float64(rounded)) * 100
	cents := math.Floor((raw+centsEpsilon)*10+0.5) / 10

	return Note{
		Letter:   noteNames[index],
		Octave:   octave,
		Name:     noteNames[index] + strconv.Itoa(octave),
		Cents:    cents,
		Semitone: rounded,
	}
}

// Frequency returns the in-tune frequency of the note's semitone.
func (n Note) Frequency() float64 {
	return SemitoneFrequency(n.Semitone)
}

// String formats the note with its signed offset, e.g. "A4 +3.2¢".
func (n Note) String() string {
	return fmt.Sprintf("%s %+.1f¢", n.Name, n.Cents)
}

// SemitoneFrequency returns the in-tune frequency the given number of
// semitones above C0.
func SemitoneFrequency(semitone int) float64 {
	return c0 * math.Pow(2, float64(semitone)/12)
}

// ParseNoteName returns the semitone index above C0 for a name such as
// "C#4" or "A-1". Only the sharps-only spellings produced by
// NoteFromFrequency are accepted.
func ParseNoteName(name string) (int, error) {
	letterLen := 1
	if len(name) > 1 && name[1] == '#' {
		letterLen = 2
	}
	if len(name) <= letterLen {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNoteName, name)
	}

	index := -1
	for i, n := range noteNames {
		if strings.EqualFold(n, name[:letterLen]) {
			index = i
			break
		}
	}
	if index < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNoteName, name)
	}

	octave, err := strconv.Atoi(name[letterLen:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNoteName, name)
	}
	return octave*12 + index, nil
}
