//go:build !nogpu

package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpupick/gpucore"
)

// renderTarget is the resolved color and optional depth attachment of a
// draw.
type renderTarget struct {
	color *texture
	depth *depthBuffer
}

func (d *Device) resolveTarget(fb *gpucore.Framebuffer) (renderTarget, error) {
	if fb == nil {
		return renderTarget{color: d.surface}, nil
	}
	color, ok := d.textures[fb.Color]
	if !ok {
		return renderTarget{}, fmt.Errorf("wgpu: color attachment %d: %w", fb.Color, gpucore.ErrUnknownResource)
	}
	rt := renderTarget{color: color}
	if fb.Depth != gpucore.InvalidID {
		depth, ok := d.depths[fb.Depth]
		if !ok {
			return renderTarget{}, fmt.Errorf("wgpu: depth attachment %d: %w", fb.Depth, gpucore.ErrUnknownResource)
		}
		if depth.width != color.width || depth.height != color.height {
			return renderTarget{}, fmt.Errorf("wgpu: depth %dx%d for color %dx%d: %w",
				depth.width, depth.height, color.width, color.height, gpucore.ErrInvalidDimensions)
		}
		rt.depth = depth
	}
	return rt, nil
}

// Draw encodes cmd as one render pass, submits it and waits for completion.
func (d *Device) Draw(cmd *gpucore.DrawCommand) error {
	if d.destroyed {
		return ErrDestroyed
	}
	if err := cmd.Validate(); err != nil {
		return err
	}
	p := cmd.Program
	rt, err := d.resolveTarget(cmd.Framebuffer)
	if err != nil {
		return err
	}
	if vp := cmd.Viewport; !vp.Empty() && (vp.X != 0 || vp.Y != 0 || vp.Width != rt.color.width || vp.Height != rt.color.height) {
		return fmt.Errorf("%w: %+v of %dx%d target", ErrUnsupportedViewport, vp, rt.color.width, rt.color.height)
	}

	sampled := make([]*texture, len(p.Textures))
	for i, name := range p.Textures {
		t, ok := d.textures[cmd.Textures[name]]
		if !ok {
			return fmt.Errorf("wgpu: texture %s: %w", name, gpucore.ErrUnknownResource)
		}
		if t == rt.color {
			return fmt.Errorf("wgpu: texture %s: %w", name, gpucore.ErrFeedbackLoop)
		}
		sampled[i] = t
	}
	vertexBuffers := make([]*buffer, len(p.Attributes))
	for i, name := range p.Attributes {
		b, ok := d.buffers[cmd.Attributes[name].Buffer]
		if !ok {
			return fmt.Errorf("wgpu: attribute %s buffer: %w", name, gpucore.ErrUnknownResource)
		}
		vertexBuffers[i] = b
	}

	prog, err := d.programFor(p)
	if err != nil {
		return err
	}
	layouts, layoutKey, err := vertexLayouts(p, cmd.Attributes)
	if err != nil {
		return err
	}
	key := pipelineKey{program: p, layouts: layoutKey, depth: rt.depth != nil}
	if key.depth {
		key.compare = cmd.DepthCompare
	}
	pipeline, err := d.pipelineFor(p, prog, layouts, key)
	if err != nil {
		return err
	}

	uniformBuf, err := d.uniformBuffer(p, cmd.Uniforms)
	if err != nil {
		return err
	}
	defer d.device.DestroyBuffer(uniformBuf.buf)

	entries := []gputypes.BindGroupEntry{
		{Binding: 0, Resource: gputypes.BufferBinding{
			Buffer: uniformBuf.buf.NativeHandle(), Offset: 0, Size: uint64(len(uniformBuf.shadow)),
		}},
	}
	for i, t := range sampled {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i + 1),
			Resource: gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()},
		})
	}
	bindGroup, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.Label + "_bind",
		Layout:  prog.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create %s bind group: %w", p.Label, err)
	}
	defer d.device.DestroyBindGroup(bindGroup)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: p.Label + "_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(p.Label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	var barriers []hal.TextureBarrier
	for _, t := range sampled {
		barriers = appendTransition(barriers, t, gputypes.TextureUsageTextureBinding)
	}
	barriers = appendTransition(barriers, rt.color, gputypes.TextureUsageRenderAttachment)
	if len(barriers) > 0 {
		encoder.TransitionTextures(barriers)
	}

	rp := encoder.BeginRenderPass(renderPassDescriptor(p.Label, rt, cmd))
	if cmd.Count > 0 {
		rp.SetPipeline(pipeline)
		rp.SetBindGroup(0, bindGroup, nil)
		for i, b := range vertexBuffers {
			rp.SetVertexBuffer(uint32(i), b.buf, uint64(cmd.Attributes[p.Attributes[i]].Offset))
		}
		rp.Draw(uint32(cmd.Count), 1, 0, 0)
	}
	rp.End()

	if err := d.submit(encoder); err != nil {
		return err
	}
	if rt.color == d.surface {
		d.readbackValid = false
	}
	return nil
}

func renderPassDescriptor(label string, rt renderTarget, cmd *gpucore.DrawCommand) *hal.RenderPassDescriptor {
	load := gputypes.LoadOpLoad
	if cmd.Clear {
		load = gputypes.LoadOpClear
	}
	c := cmd.ClearColor
	desc := &hal.RenderPassDescriptor{
		Label: label + "_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       rt.color.view,
			LoadOp:     load,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)},
		}},
	}
	if rt.depth != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              rt.depth.view,
			DepthLoadOp:       load,
			DepthStoreOp:      gputypes.StoreOpStore,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		}
	}
	return desc
}

// appendTransition records a barrier moving t to usage unless it is
// already there.
func appendTransition(barriers []hal.TextureBarrier, t *texture, usage gputypes.TextureUsage) []hal.TextureBarrier {
	if t.usage == usage {
		return barriers
	}
	barriers = append(barriers, hal.TextureBarrier{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: t.usage,
			NewUsage: usage,
		},
	})
	t.usage = usage
	return barriers
}

// uniformBuffer packs the program's uniforms as consecutive vec4<f32>
// fields and uploads them to a fresh buffer.
func (d *Device) uniformBuffer(p *gpucore.ProgramDesc, values map[string]gpucore.UniformValue) (*buffer, error) {
	size := max(16*len(p.Uniforms), 16)
	data := make([]byte, size)
	for i, name := range p.Uniforms {
		v := values[name]
		for c := range v {
			binary.LittleEndian.PutUint32(data[i*16+c*4:], math.Float32bits(v[c]))
		}
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: p.Label + "_uniforms",
		Size:  uint64(size),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s uniform buffer: %w", p.Label, err)
	}
	d.queue.WriteBuffer(buf, 0, data)
	return &buffer{buf: buf, shadow: data}, nil
}

// submit ends encoding, submits the command buffer and waits on a fence.
func (d *Device) submit(encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, d.waitTimeout())
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !ok {
		return ErrGPUTimeout
	}
	return nil
}
