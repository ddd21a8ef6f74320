/*
Package bitint provides the power-of-two helpers used to size capture
frames. PortAudio hosts handle power-of-two buffer sizes best, so frame
lengths derived from device latency are rounded up with NextPowerOfTwo and
bounded with ClampPowerOfTwo.

All functions are allocation free and constant time.

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two are preserved:

	size=8: bits.Len(7) = 3, 1<<3 = 8
	size=9: bits.Len(8) = 4, 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// ClampPowerOfTwo rounds size up to a power of two and bounds the result to
// [lo, hi]. Both bounds must themselves be powers of two; a bound that is not
// is rounded up first.
func ClampPowerOfTwo(size, lo, hi int) int {
	lo = NextPowerOfTwo(lo)
	hi = NextPowerOfTwo(hi)
	if hi < lo {
		hi = lo
	}
	return min(max(NextPowerOfTwo(size), lo), hi)
}
