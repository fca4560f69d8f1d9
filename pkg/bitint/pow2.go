/*
Package bitint provides the power-of-two helpers used to validate and
suggest capture buffer lengths. Every function is O(1), allocation free
and safe to call from the capture callback.

Usage:

	if !bitint.IsPowerOfTwo(frames) {
		suggestion := bitint.NextPowerOfTwo(frames) // 1000 -> 1024
	}

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two map to themselves: for 8, bits.Len(7) = 3 and 1<<3 = 8,
whereas bits.Len(8) = 4 would double the input.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size.
// Zero and negative sizes return 1.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PrevPowerOfTwo returns the largest power of two <= size.
// Zero and negative sizes return 0.
func PrevPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has a single set bit, so clearing the lowest set bit with n&(n-1) leaves 0.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
