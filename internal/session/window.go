// SPDX-License-Identifier: MIT
package session

// Window holds the most recent Size mono samples. Capture callbacks and file
// replay deliver short hops; each hop slides the window so the estimator
// always sees a full buffer. Unfilled slots are zero.
type Window struct {
	buf    []float32
	filled int
}

func NewWindow(size int) *Window {
	return &Window{buf: make([]float32, size)}
}

// Push slides samples into the window and returns it. The returned slice is
// reused by the next Push.
func (w *Window) Push(samples []float32) []float32 {
	size := len(w.buf)
	n := len(samples)
	if n >= size {
		copy(w.buf, samples[n-size:])
	} else {
		copy(w.buf, w.buf[n:])
		copy(w.buf[size-n:], samples)
	}
	w.filled = min(w.filled+n, size)
	return w.buf
}

// Full reports whether Size samples have been pushed since the last Reset.
func (w *Window) Full() bool {
	return w.filled == len(w.buf)
}

func (w *Window) Size() int {
	return len(w.buf)
}

// Reset zeroes the window.
func (w *Window) Reset() {
	clear(w.buf)
	w.filled = 0
}
