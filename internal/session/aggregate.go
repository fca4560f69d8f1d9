// SPDX-License-Identifier: MIT
package session

// Running is the per-note sum of cents deviations and sample count.
type Running struct {
	SumCents float64 `json:"sumCents" yaml:"sum_cents"`
	Count    int     `json:"count" yaml:"count"`
}

// Aggregator holds the running per-note statistics of a session. Entries
// are only ever added to or cleared all at once by Reset.
type Aggregator struct {
	notes map[string]Running
	total int
}

func NewAggregator() *Aggregator {
	return &Aggregator{notes: make(map[string]Running)}
}

// Accumulate adds one gated sample for the named note.
func (a *Aggregator) Accumulate(name string, cents float64) {
	r := a.notes[name]
	r.SumCents += cents
	r.Count++
	a.notes[name] = r
	a.total++
}

// Reset replaces the map with an empty one. Snapshots taken earlier are
// unaffected.
func (a *Aggregator) Reset() {
	a.notes = make(map[string]Running)
	a.total = 0
}

// Snapshot returns a copy of the current map.
func (a *Aggregator) Snapshot() map[string]Running {
	out := make(map[string]Running, len(a.notes))
	for name, r := range a.notes {
		out[name] = r
	}
	return out
}

// Total returns the number of samples accumulated since the last Reset.
func (a *Aggregator) Total() int {
	return a.total
}

// Len returns the number of distinct notes.
func (a *Aggregator) Len() int {
	return len(a.notes)
}
