// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package series draws a streaming scatter series and picks the point
// under the pointer.
//
// The series owns three streaming attributes (x, y and a dense identity)
// that are shared between the scatter program and a nearest.Reducer, so a
// pick re-uses the buffers the chart already uploaded.
package series

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gpupick"
	"github.com/gogpu/gpupick/gpucore"
	"github.com/gogpu/gpupick/nearest"
	"github.com/gogpu/gpupick/stream"
)

//go:embed shaders/points.wgsl
var pointsShaderSource string

// DefaultThreshold is the pick acceptance distance in data units.
const DefaultThreshold = 2

var (
	// ErrNilReducer is returned by Pick when the series has no reducer.
	ErrNilReducer = errors.New("series: nil reducer")

	// ErrEmptyDomain is returned for a domain with zero width or height.
	ErrEmptyDomain = errors.New("series: empty domain")
)

const (
	attrCross     = "aCrossValue"
	attrMain      = "aMainValue"
	uniformDomain = "uDomain"
	uniformColor  = "uColor"
)

var pointsProgram = &gpucore.ProgramDesc{
	Label:      "series-points",
	Source:     pointsShaderSource,
	Topology:   gpucore.TopologyPoints,
	Attributes: []string{attrCross, attrMain},
	Uniforms:   []string{uniformDomain, uniformColor},
	Vertex:     pointsVertex,
	Fragment:   gpucore.PassColor,
}

// Programs returns the WGSL programs used by the series.
func Programs() []*gpucore.ProgramDesc {
	return []*gpucore.ProgramDesc{pointsProgram}
}

func pointsVertex(in *gpucore.VertexInput) gpucore.VertexOutput {
	domain := in.Uniforms[0]
	lo := mgl32.Vec2{domain[0], domain[1]}
	hi := mgl32.Vec2{domain[2], domain[3]}
	p := mgl32.Vec2{in.Attributes[0][0], in.Attributes[1][0]}
	span := hi.Sub(lo)
	t := p.Sub(lo)
	return gpucore.VertexOutput{
		Position: [4]float32{t[0]/span[0]*2 - 1, t[1]/span[1]*2 - 1, 0, 1},
		Color:    in.Uniforms[1],
	}
}

// Domain is the data rectangle mapped onto the surface.
type Domain struct {
	XMin, XMax float32
	YMin, YMax float32
}

func (d Domain) validate() error {
	if d.XMax == d.XMin || d.YMax == d.YMin {
		return fmt.Errorf("%w: %+v", ErrEmptyDomain, d)
	}
	return nil
}

// Series is a streaming point series.
type Series struct {
	cross, main, index *stream.Attribute

	count  int
	domain Domain
	ids    [][]byte

	domainUniform *gpucore.Uniform
	color         *gpucore.Uniform
	painter       *gpucore.ProgramBuilder
	reducer       nearest.Reducer
}

// New returns a series whose attribute buffers hold maxByteLength bytes
// each (maxByteLength/4 points). reducer may be nil if Pick is not used.
func New(maxByteLength int, reducer nearest.Reducer) *Series {
	s := &Series{
		cross:         stream.New(stream.Config{MaxByteLength: maxByteLength}),
		main:          stream.New(stream.Config{MaxByteLength: maxByteLength}),
		index:         stream.New(stream.Config{MaxByteLength: maxByteLength, Type: gpucore.ElementUint32}),
		domain:        Domain{XMin: -1, XMax: 1, YMin: -1, YMax: 1},
		domainUniform: gpucore.NewUniform(-1, -1, 1, 1),
		color:         gpucore.NewUniform(0, 0, 0, 1),
	}
	s.painter = gpucore.NewProgramBuilder(pointsProgram).
		SetAttribute(attrCross, s.cross).
		SetAttribute(attrMain, s.main).
		SetUniform(uniformDomain, s.domainUniform).
		SetUniform(uniformColor, s.color)
	s.SetReducer(reducer)
	return s
}

// SetReducer replaces the reducer used by Pick and attaches the series
// attributes to it.
func (s *Series) SetReducer(r nearest.Reducer) {
	s.reducer = r
	if r == nil {
		return
	}
	r.SetCrossValueAttribute(s.cross)
	r.SetMainValueAttribute(s.main)
	r.SetIndexValueAttribute(s.index)
}

// Reducer returns the reducer used by Pick.
func (s *Series) Reducer() nearest.Reducer { return s.reducer }

// SetDomain sets the data rectangle shown on the surface.
func (s *Series) SetDomain(d Domain) error {
	if err := d.validate(); err != nil {
		return err
	}
	s.domain = d
	s.domainUniform.Set(d.XMin, d.YMin, d.XMax, d.YMax)
	return nil
}

// Domain returns the data rectangle shown on the surface.
func (s *Series) Domain() Domain { return s.domain }

// SetColor sets the point color.
func (s *Series) SetColor(c gpucore.Color) {
	s.color.Set(c.R, c.G, c.B, c.A)
}

// SetBackground makes Draw clear the surface to c before drawing. A nil c
// draws over whatever the surface holds.
func (s *Series) SetBackground(c *gpucore.Color) {
	s.painter.SetClear(c)
}

// Count returns the number of points.
func (s *Series) Count() int { return s.count }

// SetData replaces all three columns. Each is a list of 4-byte-per-point
// chunks; index holds dense uint32 identities. The point count is the
// shortest column.
func (s *Series) SetData(cross, main, index [][]byte) {
	s.cross.SetData(cross)
	s.main.SetData(main)
	s.index.SetData(index)
	s.ids = nil
	s.count = min(stream.TotalBytes(cross), stream.TotalBytes(main), stream.TotalBytes(index)) / 4
}

// Append adds one batch of float32 x and y values, generating identities
// that continue from the current count. Earlier batches are not re-uploaded.
func (s *Series) Append(cross, main []byte) error {
	if len(cross) != len(main) || len(cross)%4 != 0 {
		return fmt.Errorf("series: batch columns of %d and %d bytes", len(cross), len(main))
	}
	if s.ids == nil && s.count > 0 {
		return errors.New("series: Append after SetData with caller identities")
	}
	n := len(cross) / 4
	ids := make([]uint32, n)
	for i := range ids {
		ids[i] = uint32(s.count + i)
	}
	s.ids = append(s.ids, stream.Uint32s(ids))
	s.cross.SetData(append(slices.Clip(s.cross.Data()), cross))
	s.main.SetData(append(slices.Clip(s.main.Data()), main))
	s.index.SetData(s.ids)
	s.count += n
	gpupick.Logger().Debug("series: batch appended", "points", n, "total", s.count)
	return nil
}

// Draw renders the series onto the default surface.
func (s *Series) Draw(dev gpucore.Device) error {
	if s.count == 0 {
		return nil
	}
	return s.painter.Draw(dev, s.count)
}

// Pick returns the point nearest to at and whether it lies within
// threshold data units.
func (s *Series) Pick(dev gpucore.Device, at mgl32.Vec2, threshold float64) (nearest.Result, bool, error) {
	if s.reducer == nil {
		return nearest.Result{}, false, ErrNilReducer
	}
	res, err := s.reducer.Query(dev, s.count, at)
	if err != nil {
		return nearest.Result{}, false, fmt.Errorf("pick: %w", err)
	}
	return res, res.Found(threshold), nil
}

// PointerToDomain converts a pointer position in logical pixels (origin at
// the top-left of the surface) to data coordinates.
func (s *Series) PointerToDomain(dev gpucore.Device, x, y float64) mgl32.Vec2 {
	w, h := dev.SurfaceSize()
	ratio := dev.PixelRatio()
	u := x * ratio / float64(w)
	v := y * ratio / float64(h)
	d := s.domain
	return mgl32.Vec2{
		d.XMin + float32(u)*(d.XMax-d.XMin),
		d.YMax - float32(v)*(d.YMax-d.YMin),
	}
}

// Clear forgets device resources after the device was lost.
func (s *Series) Clear() {
	s.cross.Clear()
	s.main.Clear()
	s.index.Clear()
	if s.reducer != nil {
		s.reducer.Clear()
	}
}

// Destroy releases device resources.
func (s *Series) Destroy(dev gpucore.Device) {
	s.cross.Destroy(dev)
	s.main.Destroy(dev)
	s.index.Destroy(dev)
	if s.reducer != nil {
		s.reducer.Destroy(dev)
	}
}
