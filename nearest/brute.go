// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package nearest

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// BruteForce returns the exact nearest point among xs[i], ys[i] with
// identity i, for checking reducer results. Ties keep the lowest identity.
// Points at or beyond cutoff are not hits.
func BruteForce(xs, ys []float32, at mgl32.Vec2, cutoff float32) Result {
	best := Result{Distance: float64(cutoff)}
	bestD := math.Inf(1)
	for i := range min(len(xs), len(ys)) {
		d := float64(mgl32.Vec2{xs[i], ys[i]}.Sub(at).Len())
		if d < bestD {
			bestD = d
			best.Index = uint32(i)
		}
	}
	if bestD < float64(cutoff) {
		best.Distance = bestD
		best.Hit = true
	}
	return best
}
