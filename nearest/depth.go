// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package nearest

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gpupick"
	"github.com/gogpu/gpupick/gpucore"
	"github.com/gogpu/gpupick/pingpong"
)

// DepthTestReducer finds the nearest point with a single depth-tested pass
// into a 1x1 target.
type DepthTestReducer struct {
	inputs
	opts Options

	target *pingpong.Texture
	point  *gpucore.Uniform
	params *gpucore.Uniform
	mapper *gpucore.ProgramBuilder
	pixel  [4]byte
}

// NewDepthTest returns a depth-test reducer. opts.Strategy is ignored.
func NewDepthTest(opts Options) (*DepthTestReducer, error) {
	opts.Strategy = DepthTest
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	r := &DepthTestReducer{
		opts:   opts,
		target: pingpong.New(1, 1),
		point:  gpucore.NewUniform(),
		params: gpucore.NewUniform(opts.Cutoff),
	}
	r.target.SetClearColor(gpucore.Black)
	r.mapper = gpucore.NewProgramBuilder(depthMapProgram).
		SetUniform(uniformPoint, r.point).
		SetUniform(uniformParams, r.params).
		SetTarget("", r.target).
		SetDepthTest(gpucore.CompareLess)
	return r, nil
}

// Strategy returns DepthTest.
func (r *DepthTestReducer) Strategy() Strategy { return DepthTest }

// Cutoff returns the cutoff distance.
func (r *DepthTestReducer) Cutoff() float32 { return r.opts.Cutoff }

// Query returns the point nearest to at among the first count points.
func (r *DepthTestReducer) Query(dev gpucore.Device, count int, at mgl32.Vec2) (res Result, err error) {
	start := time.Now()
	defer func() { observe(DepthTest, start, res, err) }()

	if err := checkCount(count); err != nil {
		return Result{}, err
	}
	if count == 0 {
		return Result{Distance: float64(r.opts.Cutoff)}, nil
	}

	r.point.Set(at.X(), at.Y())
	r.inputs.apply(r.mapper)
	r.target.SetEnable(true)
	if err := r.mapper.Draw(dev, count); err != nil {
		return Result{}, fmt.Errorf("depth pass: %w", err)
	}
	if err := r.target.ToArray(dev, r.pixel[:], 1); err != nil {
		return Result{}, fmt.Errorf("read result: %w", err)
	}

	alpha := r.pixel[3]
	res = Result{
		Index:    DecodeIndex(r.pixel[:]),
		Distance: DecodeDistance(alpha, r.opts.Cutoff),
		Hit:      alpha < 255,
	}
	gpupick.Logger().Debug("nearest: depth-test query",
		"count", count, "index", res.Index, "distance", res.Distance, "hit", res.Hit)
	return res, nil
}

// Visualize draws the depth pass to the default surface.
func (r *DepthTestReducer) Visualize(dev gpucore.Device, count int, at mgl32.Vec2) error {
	if err := checkCount(count); err != nil {
		return err
	}
	r.point.Set(at.X(), at.Y())
	r.inputs.apply(r.mapper)
	r.target.SetEnable(false)
	defer r.target.SetEnable(true)
	return r.mapper.Draw(dev, count)
}

// Clear forgets device resources.
func (r *DepthTestReducer) Clear() { r.target.Clear() }

// Destroy releases device resources.
func (r *DepthTestReducer) Destroy(dev gpucore.Device) { r.target.Destroy(dev) }
