//go:build !nogpu

package wgpu

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpupick"
	"github.com/gogpu/gpupick/gpucore"
)

// Entry points every program's WGSL declares.
const (
	vertexEntryPoint   = "vs_main"
	fragmentEntryPoint = "fs_main"
)

// program holds the compiled module and layouts shared by every pipeline
// variant of one ProgramDesc.
type program struct {
	module     hal.ShaderModule
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
}

// pipelineKey identifies one pipeline variant. layouts encodes the vertex
// buffer layouts in attribute order.
type pipelineKey struct {
	program *gpucore.ProgramDesc
	layouts string
	depth   bool
	compare gpucore.CompareFunction
}

// Prepare compiles the given programs ahead of their first draw.
func (d *Device) Prepare(programs ...*gpucore.ProgramDesc) error {
	for _, p := range programs {
		if _, err := d.programFor(p); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) programFor(p *gpucore.ProgramDesc) (*program, error) {
	if d.destroyed {
		return nil, ErrDestroyed
	}
	if prog, ok := d.programs[p]; ok {
		return prog, nil
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	source := hal.ShaderSource{WGSL: p.Source}
	if d.opts.PrecompileSPIRV {
		words, err := CompileSPIRV(p.Source)
		if err != nil {
			return nil, fmt.Errorf("program %q: %w", p.Label, err)
		}
		source = hal.ShaderSource{SPIRV: words}
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  p.Label,
		Source: source,
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", p.Label, err)
	}
	prog := &program{module: module}

	// Binding 0: uniform vec4 block; binding i+1: texture i.
	entries := []gputypes.BindGroupLayoutEntry{{
		Binding:    0,
		Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}}
	for i := range p.Textures {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i + 1),
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	prog.layout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   p.Label + "_layout",
		Entries: entries,
	})
	if err != nil {
		d.destroyProgram(prog)
		return nil, fmt.Errorf("create %s bind group layout: %w", p.Label, err)
	}
	prog.pipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            p.Label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{prog.layout},
	})
	if err != nil {
		d.destroyProgram(prog)
		return nil, fmt.Errorf("create %s pipeline layout: %w", p.Label, err)
	}

	d.programs[p] = prog
	gpupick.Logger().Debug("wgpu: program compiled", "program", p.Label, "spirv", d.opts.PrecompileSPIRV)
	return prog, nil
}

// vertexLayouts returns one buffer layout per attribute, in location order,
// and the key fragment describing them.
func vertexLayouts(p *gpucore.ProgramDesc, attrs map[string]gpucore.AttributeBinding) ([]gputypes.VertexBufferLayout, string, error) {
	layouts := make([]gputypes.VertexBufferLayout, len(p.Attributes))
	var key strings.Builder
	for i, name := range p.Attributes {
		b := attrs[name]
		format, err := vertexFormat(b)
		if err != nil {
			return nil, "", fmt.Errorf("attribute %s: %w", name, err)
		}
		step := gputypes.VertexStepModeVertex
		if b.Divisor > 0 {
			step = gputypes.VertexStepModeInstance
		}
		layouts[i] = gputypes.VertexBufferLayout{
			ArrayStride: uint64(b.ByteStride()),
			StepMode:    step,
			Attributes: []gputypes.VertexAttribute{{
				Format:         format,
				Offset:         0,
				ShaderLocation: uint32(i),
			}},
		}
		fmt.Fprintf(&key, "%v/%d/%d;", format, b.ByteStride(), step)
	}
	return layouts, key.String(), nil
}

func (d *Device) pipelineFor(p *gpucore.ProgramDesc, prog *program, layouts []gputypes.VertexBufferLayout, key pipelineKey) (hal.RenderPipeline, error) {
	if pl, ok := d.pipelines[key]; ok {
		return pl, nil
	}
	topology := gputypes.PrimitiveTopologyTriangleList
	if p.Topology == gpucore.TopologyPoints {
		topology = gputypes.PrimitiveTopologyPointList
	}
	desc := &hal.RenderPipelineDescriptor{
		Label:  p.Label,
		Layout: prog.pipeLayout,
		Vertex: hal.VertexState{
			Module:     prog.module,
			EntryPoint: vertexEntryPoint,
			Buffers:    layouts,
		},
		Fragment: &hal.FragmentState{
			Module:     prog.module,
			EntryPoint: fragmentEntryPoint,
			Targets: []gputypes.ColorTargetState{{
				Format:    gputypes.TextureFormatRGBA8Unorm,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		Primitive: gputypes.PrimitiveState{
			Topology: topology,
			CullMode: gputypes.CullModeNone,
		},
	}
	if key.depth {
		keep := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            gputypes.TextureFormatDepth24PlusStencil8,
			DepthWriteEnabled: key.compare != gpucore.CompareNone,
			DepthCompare:      compareFunction(key.compare),
			StencilFront:      keep,
			StencilBack:       keep,
		}
	}
	pl, err := d.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline: %w", p.Label, err)
	}
	d.pipelines[key] = pl
	gpupick.Logger().Debug("wgpu: pipeline created", "program", p.Label, "depth", key.depth, "cached", len(d.pipelines))
	return pl, nil
}

func compareFunction(c gpucore.CompareFunction) gputypes.CompareFunction {
	switch c {
	case gpucore.CompareLess:
		return gputypes.CompareFunctionLess
	case gpucore.CompareLessEqual:
		return gputypes.CompareFunctionLessEqual
	default:
		return gputypes.CompareFunctionAlways
	}
}

var (
	floatFormats  = [4]gputypes.VertexFormat{gputypes.VertexFormatFloat32, gputypes.VertexFormatFloat32x2, gputypes.VertexFormatFloat32x3, gputypes.VertexFormatFloat32x4}
	uint32Formats = [4]gputypes.VertexFormat{gputypes.VertexFormatUint32, gputypes.VertexFormatUint32x2, gputypes.VertexFormatUint32x3, gputypes.VertexFormatUint32x4}
	sint32Formats = [4]gputypes.VertexFormat{gputypes.VertexFormatSint32, gputypes.VertexFormatSint32x2, gputypes.VertexFormatSint32x3, gputypes.VertexFormatSint32x4}
)

// vertexFormat maps an attribute layout to a vertex format. 8- and 16-bit
// types exist only in 2- and 4-component forms.
func vertexFormat(b gpucore.AttributeBinding) (gputypes.VertexFormat, error) {
	if b.Size < 1 || b.Size > 4 {
		return 0, fmt.Errorf("%w: %d components", ErrUnsupportedFormat, b.Size)
	}
	n := b.Size - 1
	switch b.Type {
	case gpucore.ElementFloat32:
		return floatFormats[n], nil
	case gpucore.ElementUint32:
		if !b.Normalized {
			return uint32Formats[n], nil
		}
	case gpucore.ElementInt32:
		if !b.Normalized {
			return sint32Formats[n], nil
		}
	case gpucore.ElementUint16:
		switch {
		case b.Size == 2 && b.Normalized:
			return gputypes.VertexFormatUnorm16x2, nil
		case b.Size == 2:
			return gputypes.VertexFormatUint16x2, nil
		case b.Size == 4 && b.Normalized:
			return gputypes.VertexFormatUnorm16x4, nil
		case b.Size == 4:
			return gputypes.VertexFormatUint16x4, nil
		}
	case gpucore.ElementUint8:
		switch {
		case b.Size == 2 && b.Normalized:
			return gputypes.VertexFormatUnorm8x2, nil
		case b.Size == 2:
			return gputypes.VertexFormatUint8x2, nil
		case b.Size == 4 && b.Normalized:
			return gputypes.VertexFormatUnorm8x4, nil
		case b.Size == 4:
			return gputypes.VertexFormatUint8x4, nil
		}
	}
	return 0, fmt.Errorf("%w: %d x %s normalized=%t", ErrUnsupportedFormat, b.Size, b.Type, b.Normalized)
}

func (d *Device) destroyProgram(prog *program) {
	if prog.pipeLayout != nil {
		d.device.DestroyPipelineLayout(prog.pipeLayout)
		prog.pipeLayout = nil
	}
	if prog.layout != nil {
		d.device.DestroyBindGroupLayout(prog.layout)
		prog.layout = nil
	}
	if prog.module != nil {
		d.device.DestroyShaderModule(prog.module)
		prog.module = nil
	}
}

// destroyPipelines releases pipelines, then programs.
func (d *Device) destroyPipelines() {
	for key, pl := range d.pipelines {
		d.device.DestroyRenderPipeline(pl)
		delete(d.pipelines, key)
	}
	for p, prog := range d.programs {
		d.destroyProgram(prog)
		delete(d.programs, p)
	}
}
