// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package nearest

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gpupick"
	"github.com/gogpu/gpupick/gpucore"
	"github.com/gogpu/gpupick/internal/metrics"
	"github.com/gogpu/gpupick/pingpong"
)

// TreeReducer finds the nearest point with a map pass followed by 4-to-1
// reduce passes over a ping-pong texture.
//
// Point identities must be dense: identity i is written to texel i of a
// square working texture sized for count points.
type TreeReducer struct {
	inputs
	opts Options

	target  *pingpong.Texture
	point   *gpucore.Uniform
	params  *gpucore.Uniform
	mapper  *gpucore.ProgramBuilder
	reducer *gpucore.ProgramBuilder
	pixel   [4]byte
	passes  int
}

// NewTreeReduction returns a tree-reduction reducer. opts.Strategy is ignored.
func NewTreeReduction(opts Options) (*TreeReducer, error) {
	opts.Strategy = TreeReduction
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	r := &TreeReducer{
		opts:   opts,
		target: pingpong.New(1, 1),
		point:  gpucore.NewUniform(),
		params: gpucore.NewUniform(),
	}
	r.target.SetClearColor(gpucore.Transparent)
	r.mapper = gpucore.NewProgramBuilder(treeMapProgram).
		SetUniform(uniformPoint, r.point).
		SetUniform(uniformParams, r.params).
		SetTarget("", r.target)
	r.reducer = gpucore.NewProgramBuilder(treeReduceProgram).
		SetUniform(uniformParams, r.params).
		SetTarget(textureSource, r.target)
	return r, nil
}

// Strategy returns TreeReduction.
func (r *TreeReducer) Strategy() Strategy { return TreeReduction }

// Cutoff returns the cutoff distance.
func (r *TreeReducer) Cutoff() float32 { return r.opts.Cutoff }

// Passes returns the number of passes (map plus reduces) of the last query.
func (r *TreeReducer) Passes() int { return r.passes }

// TextureSide returns the working texture side for count points: the
// smallest power of two whose square holds count texels.
func (r *TreeReducer) TextureSide(count int) (int, error) {
	root := int(math.Ceil(math.Sqrt(float64(max(count, 1)))))
	side := 1
	for side < root {
		side <<= 1
	}
	if side > r.opts.MaxTextureSide {
		return 0, fmt.Errorf("%w: %d points need a %dx%d texture, max side %d",
			ErrTooManyPoints, count, side, side, r.opts.MaxTextureSide)
	}
	return side, nil
}

// Query returns the point nearest to at among the first count points.
func (r *TreeReducer) Query(dev gpucore.Device, count int, at mgl32.Vec2) (res Result, err error) {
	start := time.Now()
	defer func() { observe(TreeReduction, start, res, err) }()

	if err := checkCount(count); err != nil {
		return Result{}, err
	}
	if count == 0 {
		r.passes = 0
		return Result{Distance: float64(r.opts.Cutoff)}, nil
	}
	side, err := r.TextureSide(count)
	if err != nil {
		return Result{}, err
	}

	r.target.SetSize(side, side)
	r.params.Set(r.opts.Cutoff, float32(side))
	r.point.Set(at.X(), at.Y())
	r.inputs.apply(r.mapper)
	r.target.SetEnable(true)

	if err := r.mapper.Draw(dev, count); err != nil {
		return Result{}, fmt.Errorf("map pass: %w", err)
	}
	passes := 1
	for i := count; ; {
		i = (i + 3) / 4
		if err := r.reducer.Draw(dev, i); err != nil {
			return Result{}, fmt.Errorf("reduce pass %d: %w", passes, err)
		}
		passes++
		if i <= 1 {
			break
		}
	}
	r.passes = passes
	metrics.ReductionPasses.Observe(float64(passes))

	if err := r.target.ToArray(dev, r.pixel[:], 1); err != nil {
		return Result{}, fmt.Errorf("read result: %w", err)
	}
	alpha := r.pixel[3]
	res = Result{
		Index:    DecodeIndex(r.pixel[:]),
		Distance: DecodeCloseness(alpha, r.opts.Cutoff),
		Hit:      alpha > 0,
	}
	gpupick.Logger().Debug("nearest: tree-reduction query",
		"count", count, "side", side, "passes", passes,
		"index", res.Index, "distance", res.Distance, "hit", res.Hit)
	return res, nil
}

// Visualize draws the map pass to the default surface.
func (r *TreeReducer) Visualize(dev gpucore.Device, count int, at mgl32.Vec2) error {
	if err := checkCount(count); err != nil {
		return err
	}
	side, err := r.TextureSide(count)
	if err != nil {
		return err
	}
	r.params.Set(r.opts.Cutoff, float32(side))
	r.point.Set(at.X(), at.Y())
	r.inputs.apply(r.mapper)
	r.target.SetEnable(false)
	defer r.target.SetEnable(true)
	return r.mapper.Draw(dev, count)
}

// Clear forgets device resources.
func (r *TreeReducer) Clear() { r.target.Clear() }

// Destroy releases device resources.
func (r *TreeReducer) Destroy(dev gpucore.Device) { r.target.Destroy(dev) }
