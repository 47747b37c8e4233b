// Package kutil provides the handful of freestanding memory and string
// primitives the original C core hand-rolled in util.c because no libc is
// available: word-oriented copy/zero over raw linker-symbol ranges, and
// name comparison for the device registry. Go's copy/len cover ordinary
// slices; this package exists for the boot-time .data/.bss walk, which
// runs before any slice can be constructed over those addresses.
package kutil

import "unsafe"

// Memcpy32 copies n bytes from src to dst, one 32-bit word at a time,
// rounding n down to the nearest multiple of 4. Mirrors util_memcpy's
// word-at-a-time loop; callers are responsible for word alignment, as the
// original is.
func Memcpy32(dst, src uintptr, n uint32) {
	words := n / 4
	for i := uint32(0); i < words; i++ {
		off := uintptr(i * 4)
		*(*uint32)(unsafe.Pointer(dst + off)) = *(*uint32)(unsafe.Pointer(src + off))
	}
}

// Bzero32 zeroes n bytes starting at dst, one word at a time, rounding n
// down to the nearest multiple of 4.
func Bzero32(dst uintptr, n uint32) {
	words := n / 4
	for i := uint32(0); i < words; i++ {
		*(*uint32)(unsafe.Pointer(dst + uintptr(i*4))) = 0
	}
}

// StrEqual reports whether two device names are identical. The registry
// compares names by value, not by pointer, matching dev_registerDevice's
// util_strcmp-based duplicate check.
func StrEqual(a, b string) bool {
	return a == b
}
