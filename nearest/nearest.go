// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package nearest finds the point nearest to a query location with render
// passes instead of a CPU spatial index.
//
// Two strategies share the [Reducer] interface:
//
//   - [DepthTest] draws every point onto a single pixel with depth equal to
//     its normalized distance. The depth test keeps the closest fragment,
//     whose color encodes the point identity and distance.
//   - [TreeReduction] writes each point's identity and closeness to its own
//     texel, then repeatedly reduces groups of four texels to the one with
//     the greatest closeness until a single texel remains.
//
// Both read one pixel back. Identities are 24-bit, stored big-endian in
// RGB; distances are quantized to 8 bits of the cutoff.
package nearest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gpupick/gpucore"
	"github.com/gogpu/gpupick/internal/metrics"
)

var (
	// ErrInvalidCutoff is returned for a cutoff that is not a positive finite number.
	ErrInvalidCutoff = errors.New("nearest: cutoff must be positive")

	// ErrTooManyPoints is returned when the point count exceeds what the
	// identity encoding or the working texture can address.
	ErrTooManyPoints = errors.New("nearest: too many points")

	// ErrInvalidCount is returned for a negative point count.
	ErrInvalidCount = errors.New("nearest: invalid point count")

	// ErrUnknownStrategy is returned by New for an unknown strategy.
	ErrUnknownStrategy = errors.New("nearest: unknown strategy")
)

// Strategy selects the reduction algorithm.
type Strategy int

// Strategies.
const (
	DepthTest Strategy = iota
	TreeReduction
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case DepthTest:
		return "depth-test"
	case TreeReduction:
		return "tree-reduction"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses the names returned by Strategy.String, plus the
// short forms "depth" and "tree".
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "depth-test", "depth":
		return DepthTest, nil
	case "tree-reduction", "tree":
		return TreeReduction, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Default cutoffs per strategy.
const (
	DefaultDepthTestCutoff     = 20
	DefaultTreeReductionCutoff = 3
	DefaultMaxTextureSide      = 4096
)

// Options configure a Reducer.
type Options struct {
	Strategy Strategy

	// Cutoff is the distance at and beyond which points are not reported.
	// Zero selects the strategy default.
	Cutoff float32

	// MaxTextureSide caps the tree reduction's working texture. Zero
	// selects DefaultMaxTextureSide.
	MaxTextureSide int
}

func (o Options) withDefaults() Options {
	if o.Cutoff == 0 {
		if o.Strategy == TreeReduction {
			o.Cutoff = DefaultTreeReductionCutoff
		} else {
			o.Cutoff = DefaultDepthTestCutoff
		}
	}
	if o.MaxTextureSide == 0 {
		o.MaxTextureSide = DefaultMaxTextureSide
	}
	return o
}

func (o Options) validate() error {
	if o.Cutoff <= 0 || math.IsInf(float64(o.Cutoff), 0) || o.Cutoff != o.Cutoff {
		return fmt.Errorf("%w: %v", ErrInvalidCutoff, o.Cutoff)
	}
	if o.MaxTextureSide < 1 {
		return fmt.Errorf("nearest: max texture side %d must be positive", o.MaxTextureSide)
	}
	return nil
}

// Result is the outcome of a query.
type Result struct {
	// Index is the identity of the nearest point. It is meaningless when
	// Hit is false.
	Index uint32
	// Distance is the quantized distance to that point; it equals the
	// cutoff when nothing was within range.
	Distance float64
	// Hit reports whether any point was closer than the cutoff.
	Hit bool
}

// Found reports whether a point was hit and is closer than threshold.
func (r Result) Found(threshold float64) bool {
	return r.Hit && r.Distance < threshold
}

// Reducer answers nearest-point queries over points supplied through three
// bound attributes: cross value (x), main value (y) and a dense uint32
// identity in [0, count).
type Reducer interface {
	// Query returns the point nearest to at among the first count points.
	Query(dev gpucore.Device, count int, at mgl32.Vec2) (Result, error)

	// Visualize draws the first pass to the default surface instead of the
	// working target.
	Visualize(dev gpucore.Device, count int, at mgl32.Vec2) error

	SetCrossValueAttribute(b gpucore.Binder)
	SetMainValueAttribute(b gpucore.Binder)
	SetIndexValueAttribute(b gpucore.Binder)

	Strategy() Strategy
	Cutoff() float32

	// Clear forgets device resources after the device was lost.
	Clear()
	// Destroy releases device resources.
	Destroy(dev gpucore.Device)
}

// New returns a Reducer for opts.Strategy.
func New(opts Options) (Reducer, error) {
	switch opts.Strategy {
	case DepthTest:
		return NewDepthTest(opts)
	case TreeReduction:
		return NewTreeReduction(opts)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownStrategy, opts.Strategy)
	}
}

// checkCount validates a query's point count against the identity range.
func checkCount(count int) error {
	if count < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	if count > MaxIndex+1 {
		return fmt.Errorf("%w: %d points, identities are 24-bit", ErrTooManyPoints, count)
	}
	return nil
}

// observe records query metrics.
func observe(s Strategy, start time.Time, res Result, err error) {
	outcome := "miss"
	switch {
	case err != nil:
		outcome = "error"
	case res.Hit:
		outcome = "hit"
	}
	metrics.QueriesTotal.WithLabelValues(s.String(), outcome).Inc()
	metrics.QueryDurationSeconds.WithLabelValues(s.String()).Observe(time.Since(start).Seconds())
}

var (
	_ Reducer = (*DepthTestReducer)(nil)
	_ Reducer = (*TreeReducer)(nil)
)
