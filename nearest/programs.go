// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package nearest

import (
	_ "embed"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gpupick/gpucore"
)

//go:embed shaders/depth_map.wgsl
var depthMapShaderSource string

//go:embed shaders/tree_map.wgsl
var treeMapShaderSource string

//go:embed shaders/tree_reduce.wgsl
var treeReduceShaderSource string

// Program input names.
const (
	AttrCrossValue = "aCrossValue"
	AttrMainValue  = "aMainValue"
	AttrIndexValue = "aIndexValue"

	uniformPoint  = "uPoint"
	uniformParams = "uParams"
	textureSource = "uSource"
)

var pointAttributes = []string{AttrCrossValue, AttrMainValue, AttrIndexValue}

var depthMapProgram = &gpucore.ProgramDesc{
	Label:      "nearest-depth-map",
	Source:     depthMapShaderSource,
	Topology:   gpucore.TopologyPoints,
	Attributes: pointAttributes,
	Uniforms:   []string{uniformPoint, uniformParams},
	Vertex:     depthMapVertex,
	Fragment:   gpucore.PassColor,
}

var treeMapProgram = &gpucore.ProgramDesc{
	Label:      "nearest-tree-map",
	Source:     treeMapShaderSource,
	Topology:   gpucore.TopologyPoints,
	Attributes: pointAttributes,
	Uniforms:   []string{uniformPoint, uniformParams},
	Vertex:     treeMapVertex,
	Fragment:   gpucore.PassColor,
}

var treeReduceProgram = &gpucore.ProgramDesc{
	Label:    "nearest-tree-reduce",
	Source:   treeReduceShaderSource,
	Topology: gpucore.TopologyPoints,
	Uniforms: []string{uniformParams},
	Textures: []string{textureSource},
	Vertex:   treeReduceVertex,
	Fragment: gpucore.PassColor,
}

// Programs returns the WGSL programs used by the reducers.
func Programs() []*gpucore.ProgramDesc {
	return []*gpucore.ProgramDesc{depthMapProgram, treeMapProgram, treeReduceProgram}
}

// clampedDistance returns min(|p - at|, cutoff) for the point attributes.
func clampedDistance(in *gpucore.VertexInput, cutoff float32) float32 {
	point := in.Uniforms[0]
	p := mgl32.Vec2{in.Attributes[0][0], in.Attributes[1][0]}
	return min(p.Sub(mgl32.Vec2{point[0], point[1]}).Len(), cutoff)
}

func depthMapVertex(in *gpucore.VertexInput) gpucore.VertexOutput {
	cutoff := in.Uniforms[1][0]
	d := clampedDistance(in, cutoff) / cutoff
	r, g, b := indexColor(uint32(in.Attributes[2][0]))
	return gpucore.VertexOutput{
		Position: [4]float32{0, 0, d, 1},
		Color:    [4]float32{r, g, b, d},
	}
}

func treeMapVertex(in *gpucore.VertexInput) gpucore.VertexOutput {
	params := in.Uniforms[1]
	cutoff, side := params[0], int(params[1])
	ix := uint32(in.Attributes[2][0])
	d := clampedDistance(in, cutoff)
	r, g, b := indexColor(ix)
	return gpucore.VertexOutput{
		Position: cellCenter(int(ix), side),
		Color:    [4]float32{r, g, b, 1 - d/cutoff},
	}
}

func treeReduceVertex(in *gpucore.VertexInput) gpucore.VertexOutput {
	side := int(in.Uniforms[0][1])
	src := in.Textures[0]
	j := in.VertexIndex
	best := loadCell(src, 4*j, side)
	for k := 1; k < 4; k++ {
		if c := loadCell(src, 4*j+k, side); c[3] > best[3] {
			best = c
		}
	}
	return gpucore.VertexOutput{Position: cellCenter(j, side), Color: best}
}

func loadCell(src gpucore.TextureReader, i, side int) [4]float32 {
	i = min(i, side*side-1)
	return gpucore.LoadClamped(src, i%side, i/side)
}

func cellCenter(i, side int) [4]float32 {
	x, y := gpucore.TexelToClip(i%side, i/side, side, side)
	return [4]float32{x, y, 0, 1}
}

// inputs holds the attribute binders shared by a reducer's map programs.
type inputs struct {
	cross, main, index gpucore.Binder
}

func (in *inputs) SetCrossValueAttribute(b gpucore.Binder) { in.cross = b }
func (in *inputs) SetMainValueAttribute(b gpucore.Binder)  { in.main = b }
func (in *inputs) SetIndexValueAttribute(b gpucore.Binder) { in.index = b }

// apply copies the current binders into b. Unset binders unbind the
// attribute so the draw fails with gpucore.ErrUnboundInput.
func (in *inputs) apply(b *gpucore.ProgramBuilder) {
	b.SetAttribute(AttrCrossValue, in.cross).
		SetAttribute(AttrMainValue, in.main).
		SetAttribute(AttrIndexValue, in.index)
}
