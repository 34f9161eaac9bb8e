package gpucore

import "fmt"

// MaxAttributes is the maximum number of vertex attributes a program declares.
const MaxAttributes = 8

// ProgramDesc describes a shader program.
//
// Source is the WGSL used by GPU devices. Entry points are vs_main and
// fs_main; attribute i is @location(i) in declaration order; uniforms are
// vec4 fields of the struct at @group(0) @binding(0) in declaration order;
// texture i is a texture_2d<f32> at @group(0) @binding(i+1).
//
// Vertex and Fragment are the same program as CPU kernels, executed by the
// software device with identical input ordering.
type ProgramDesc struct {
	Label    string
	Source   string
	Topology Topology

	Attributes []string
	Uniforms   []string
	Textures   []string

	Vertex   VertexKernel
	Fragment FragmentKernel
}

// Validate checks the declaration lists are consistent.
func (p *ProgramDesc) Validate() error {
	if p == nil {
		return ErrNilProgram
	}
	if len(p.Attributes) > MaxAttributes {
		return fmt.Errorf("gpucore: program %q declares %d attributes (max %d)", p.Label, len(p.Attributes), MaxAttributes)
	}
	seen := make(map[string]bool, len(p.Attributes)+len(p.Uniforms)+len(p.Textures))
	for _, list := range [][]string{p.Attributes, p.Uniforms, p.Textures} {
		for _, name := range list {
			if name == "" || seen[name] {
				return fmt.Errorf("gpucore: program %q: duplicate or empty input %q", p.Label, name)
			}
			seen[name] = true
		}
	}
	return nil
}

// AttributeLocation returns the location of the named attribute or -1.
func (p *ProgramDesc) AttributeLocation(name string) int {
	return indexOf(p.Attributes, name)
}

// UniformSlot returns the vec4 slot of the named uniform or -1.
func (p *ProgramDesc) UniformSlot(name string) int {
	return indexOf(p.Uniforms, name)
}

// TextureUnit returns the unit of the named texture or -1.
func (p *ProgramDesc) TextureUnit(name string) int {
	return indexOf(p.Textures, name)
}

func indexOf(list []string, name string) int {
	for i, n := range list {
		if n == name {
			return i
		}
	}
	return -1
}
