// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package nearest

// MaxIndex is the largest identity the RGB encoding can carry.
const MaxIndex = 1<<24 - 1

// EncodeIndex splits a 24-bit identity into R (bits 16-23), G (bits 8-15)
// and B (bits 0-7).
func EncodeIndex(ix uint32) [3]uint8 {
	return [3]uint8{uint8(ix >> 16), uint8(ix >> 8), uint8(ix)}
}

// DecodeIndex reassembles the identity from an RGBA8 pixel.
func DecodeIndex(px []byte) uint32 {
	return uint32(px[0])<<16 | uint32(px[1])<<8 | uint32(px[2])
}

// indexColor returns the identity as normalized RGB channels.
func indexColor(ix uint32) (r, g, b float32) {
	e := EncodeIndex(ix)
	return float32(e[0]) / 255, float32(e[1]) / 255, float32(e[2]) / 255
}

// DecodeDistance converts an alpha that stores distance/cutoff back to a
// distance.
func DecodeDistance(alpha uint8, cutoff float32) float64 {
	return float64(alpha) / 255 * float64(cutoff)
}

// DecodeCloseness converts an alpha that stores 1 - distance/cutoff back to
// a distance.
func DecodeCloseness(alpha uint8, cutoff float32) float64 {
	return (1 - float64(alpha)/255) * float64(cutoff)
}
