// SPDX-License-Identifier: MIT
package session

// DefaultStabilityThreshold is the number of consecutive identical
// detections before a frame is aggregated.
const DefaultStabilityThreshold = 3

// Gate counts consecutive detections of the same note. It is Idle when
// count is zero and Tracking otherwise.
type Gate struct {
	threshold int
	current   string
	count     int
}

// NewGate returns an idle gate. Thresholds below 1 are raised to 1.
func NewGate(threshold int) *Gate {
	return &Gate{threshold: max(threshold, 1)}
}

// Observe advances the gate by one frame and reports whether the frame
// passes. An unvoiced frame returns the gate to Idle. A voiced frame with
// the tracked note increments the count, any other note restarts it at 1.
func (g *Gate) Observe(name string, voiced bool) bool {
	switch {
	case !voiced:
		g.count = 0
		return false
	case g.count > 0 && name == g.current:
		g.count++
	default:
		g.current = name
		g.count = 1
	}
	return g.count >= g.threshold
}

// Count returns the consecutive detection count, zero when idle.
func (g *Gate) Count() int {
	return g.count
}

// Current returns the tracked note name, or false when idle.
func (g *Gate) Current() (string, bool) {
	if g.count == 0 {
		return "", false
	}
	return g.current, true
}

func (g *Gate) Threshold() int {
	return g.threshold
}

// Reset returns the gate to Idle.
func (g *Gate) Reset() {
	g.current = ""
	g.count = 0
}
