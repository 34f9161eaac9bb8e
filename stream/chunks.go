// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stream

import "unsafe"

// The helpers below return byte views that share memory with the typed
// slice, in host byte order. Passing the same typed slice again yields a
// view that compares as the same chunk, so it is not re-uploaded.

// Float32s returns the bytes of v without copying.
func Float32s(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(v))), len(v)*4)
}

// Uint32s returns the bytes of v without copying.
func Uint32s(v []uint32) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(v))), len(v)*4)
}

// Int32s returns the bytes of v without copying.
func Int32s(v []int32) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(v))), len(v)*4)
}

// Uint16s returns the bytes of v without copying.
func Uint16s(v []uint16) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(v))), len(v)*2)
}

// TotalBytes returns the summed length of chunks.
func TotalBytes(chunks [][]byte) int {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	return n
}

// sameChunk reports whether a and b are the same memory.
func sameChunk(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || unsafe.SliceData(a) == unsafe.SliceData(b)
}
