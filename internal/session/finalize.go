// SPDX-License-Identifier: MIT
package session

import (
	"cmp"
	"slices"

	"tuner/internal/pitch"
)

// DefaultMinSamplesForExport is the minimum per-note count kept by Finalize.
const DefaultMinSamplesForExport = 5

// NoteAnalysis is the finalized tuning tendency of one note.
type NoteAnalysis struct {
	Note      string  `json:"noteString" yaml:"note"`
	MeanCents float64 `json:"meanCents" yaml:"mean_cents"`
	Count     int     `json:"count" yaml:"count"`
}

// Finalize computes the mean cents of every note with at least minSamples
// samples. It does not modify notes and returns an empty, non-nil slice
// when nothing qualifies. Results are ordered from lowest to highest pitch.
func Finalize(notes map[string]Running, minSamples int) []NoteAnalysis {
	out := make([]NoteAnalysis, 0, len(notes))
	for name, r := range notes {
		if r.Count <= 0 || r.Count < minSamples {
			continue
		}
		out = append(out, NoteAnalysis{
			Note:      name,
			MeanCents: r.SumCents / float64(r.Count),
			Count:     r.Count,
		})
	}

	slices.SortFunc(out, func(a, b NoteAnalysis) int {
		sa, errA := pitch.ParseNoteName(a.Note)
		sb, errB := pitch.ParseNoteName(b.Note)
		switch {
		case errA == nil && errB == nil && sa != sb:
			return cmp.Compare(sa, sb)
		case errA == nil && errB != nil:
			return -1
		case errA != nil && errB == nil:
			return 1
		}
		return cmp.Compare(a.Note, b.Note)
	})
	return out
}
