// SPDX-License-Identifier: MIT
package session

import "testing"

type observation struct {
	name   string
	voiced bool
}

func TestGateObserve(t *testing.T) {
	tests := []struct {
		desc       string
		frames     []observation
		wantPasses []bool
		wantCount  int
	}{
		{
			desc:       "Five identical frames",
			frames:     []observation{{"A4", true}, {"A4", true}, {"A4", true}, {"A4", true}, {"A4", true}},
			wantPasses: []bool{false, false, true, true, true},
			wantCount:  5,
		},
		{
			desc:       "Note change restarts at one",
			frames:     []observation{{"A4", true}, {"A4", true}, {"A4", true}, {"B4", true}},
			wantPasses: []bool{false, false, true, false},
			wantCount:  1,
		},
		{
			desc:       "Silence resets to idle",
			frames:     []observation{{"A4", true}, {"A4", true}, {"", false}, {"A4", true}},
			wantPasses: []bool{false, false, false, false},
			wantCount:  1,
		},
		{
			desc:       "Silence only",
			frames:     []observation{{"", false}, {"", false}},
			wantPasses: []bool{false, false},
			wantCount:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			g := NewGate(DefaultStabilityThreshold)
			for i, f := range tt.frames {
				if got := g.Observe(f.name, f.voiced); got != tt.wantPasses[i] {
					t.Errorf("frame %d: Observe(%q, %v) = %v, want %v", i, f.name, f.voiced, got, tt.wantPasses[i])
				}
			}
			if g.Count() != tt.wantCount {
				t.Errorf("Count() = %d, want %d", g.Count(), tt.wantCount)
			}
		})
	}
}

func TestGateCurrent(t *testing.T) {
	g := NewGate(3)

	if _, ok := g.Current(); ok {
		t.Error("new gate should be idle")
	}

	g.Observe("C4", true)
	if name, ok := g.Current(); !ok || name != "C4" {
		t.Errorf("Current() = %q, %v, want C4, true", name, ok)
	}

	g.Observe("", false)
	if _, ok := g.Current(); ok {
		t.Error("gate should be idle after silence")
	}

	g.Observe("C4", true)
	g.Reset()
	if g.Count() != 0 {
		t.Errorf("Count() after Reset = %d, want 0", g.Count())
	}
}

func TestGateThresholdFloor(t *testing.T) {
	g := NewGate(0)
	if g.Threshold() != 1 {
		t.Fatalf("Threshold() = %d, want 1", g.Threshold())
	}
	if !g.Observe("A4", true) {
		t.Error("first voiced frame should pass with threshold 1")
	}
}
