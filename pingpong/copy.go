// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pingpong

import (
	_ "embed"

	"github.com/gogpu/gpupick/gpucore"
	"github.com/gogpu/gpupick/stream"
)

//go:embed shaders/to_array.wgsl
var toArrayShaderSource string

// Input names of the remap program.
const (
	attrVertex   = "aVertex"
	uniformSizes = "uSizes"
	uniformCount = "uCount"
	textureInput = "uTexture"
)

// quadVertices is a full-surface quad as two triangles.
var quadVertices = []float32{
	-1, -1, 1, -1, -1, 1,
	-1, 1, 1, -1, 1, 1,
}

// toArrayProgram copies texel i of the bound texture to surface pixel i.
var toArrayProgram = &gpucore.ProgramDesc{
	Label:      "pingpong-to-array",
	Source:     toArrayShaderSource,
	Topology:   gpucore.TopologyTriangles,
	Attributes: []string{attrVertex},
	Uniforms:   []string{uniformSizes, uniformCount},
	Textures:   []string{textureInput},
	Vertex:     toArrayVertex,
	Fragment:   toArrayFragment,
}

// Programs returns the WGSL programs used by Texture.
func Programs() []*gpucore.ProgramDesc {
	return []*gpucore.ProgramDesc{toArrayProgram}
}

func toArrayVertex(in *gpucore.VertexInput) gpucore.VertexOutput {
	v := in.Attributes[0]
	sizes, count := in.Uniforms[0], in.Uniforms[1]
	pos := [4]float32{v[0], v[1], 0, 1}
	if pos[1] < 0 {
		rows := ceil32(count[0] / sizes[0])
		pos[1] = 1 - rows/sizes[1]*2
	}
	return gpucore.VertexOutput{Position: pos}
}

func toArrayFragment(in *gpucore.FragmentInput) [4]float32 {
	sizes := in.Uniforms[0]
	surfaceWidth := int(sizes[0])
	textureWidth := int(sizes[2])
	index := int(in.FragCoord[1])*surfaceWidth + int(in.FragCoord[0])
	return gpucore.LoadClamped(in.Textures[0], index%textureWidth, index/textureWidth)
}

func ceil32(v float32) float32 {
	i := float32(int(v))
	if i < v {
		return i + 1
	}
	return i
}

// newQuad returns the streaming attribute holding quadVertices.
func newQuad() *stream.Attribute {
	a := stream.New(stream.Config{
		MaxByteLength: len(quadVertices) * 4,
		Type:          gpucore.ElementFloat32,
		Size:          2,
	})
	a.SetData([][]byte{stream.Float32s(quadVertices)})
	return a
}
