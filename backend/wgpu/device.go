//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpupick"
	"github.com/gogpu/gpupick/gpucore"
)

// DefaultWaitTimeout bounds each fence wait.
const DefaultWaitTimeout = 5 * time.Second

var (
	// ErrNotHALProvider is returned by FromProvider for providers that do not
	// expose HAL types.
	ErrNotHALProvider = errors.New("wgpu: provider does not expose HAL types")

	// ErrUnsupportedFormat is returned for attribute layouts with no vertex format.
	ErrUnsupportedFormat = errors.New("wgpu: unsupported vertex format")

	// ErrUnsupportedViewport is returned for viewports smaller than the target.
	ErrUnsupportedViewport = errors.New("wgpu: partial viewport")

	// ErrGPUTimeout is returned when a fence wait does not complete.
	ErrGPUTimeout = errors.New("wgpu: GPU wait timed out")

	// ErrDestroyed is returned by every call after Destroy.
	ErrDestroyed = errors.New("wgpu: device destroyed")
)

// Options configures a Device.
type Options struct {
	// SurfaceWidth and SurfaceHeight size the offscreen default surface.
	SurfaceWidth  int
	SurfaceHeight int

	// PixelRatio is reported by PixelRatio. Zero means 1.
	PixelRatio float64

	// PrecompileSPIRV compiles WGSL with naga and creates shader modules
	// from SPIR-V instead of handing WGSL to the HAL.
	PrecompileSPIRV bool

	// WaitTimeout bounds each fence wait. Zero means DefaultWaitTimeout.
	WaitTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.PixelRatio <= 0 {
		o.PixelRatio = 1
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = DefaultWaitTimeout
	}
	return o
}

type buffer struct {
	buf hal.Buffer
	// shadow mirrors the contents so unaligned writes can be widened to
	// 4-byte boundaries without clobbering neighbors.
	shadow []byte
}

type texture struct {
	tex           hal.Texture
	view          hal.TextureView
	width, height int
	// usage is the usage the texture was last transitioned to; zero before
	// first use.
	usage gputypes.TextureUsage
}

type depthBuffer struct {
	tex           hal.Texture
	view          hal.TextureView
	width, height int
}

// Device is a gpucore.Device backed by a HAL device and queue.
type Device struct {
	device hal.Device
	queue  hal.Queue
	opts   Options

	nextID   uint64
	buffers  map[gpucore.BufferID]*buffer
	textures map[gpucore.TextureID]*texture
	depths   map[gpucore.DepthBufferID]*depthBuffer
	surface  *texture

	programs  map[*gpucore.ProgramDesc]*program
	pipelines map[pipelineKey]hal.RenderPipeline

	// readback caches the tightly packed surface pixels until the next
	// draw to the surface.
	readback      []byte
	readbackValid bool

	// release tears down a device opened by Open; nil for adopted devices.
	release   func()
	destroyed bool
}

var _ gpucore.Device = (*Device)(nil)

// New wraps an open HAL device and queue. The caller keeps ownership of
// both; Destroy releases only resources the Device created.
func New(device hal.Device, queue hal.Queue, opts Options) (*Device, error) {
	if device == nil || queue == nil {
		return nil, gpucore.ErrNilDevice
	}
	if opts.SurfaceWidth <= 0 || opts.SurfaceHeight <= 0 {
		return nil, fmt.Errorf("wgpu: surface %dx%d: %w", opts.SurfaceWidth, opts.SurfaceHeight, gpucore.ErrInvalidDimensions)
	}
	d := &Device{
		device:    device,
		queue:     queue,
		opts:      opts.withDefaults(),
		buffers:   make(map[gpucore.BufferID]*buffer),
		textures:  make(map[gpucore.TextureID]*texture),
		depths:    make(map[gpucore.DepthBufferID]*depthBuffer),
		programs:  make(map[*gpucore.ProgramDesc]*program),
		pipelines: make(map[pipelineKey]hal.RenderPipeline),
	}
	surface, err := d.newTexture("surface", opts.SurfaceWidth, opts.SurfaceHeight)
	if err != nil {
		return nil, err
	}
	d.surface = surface
	gpupick.Logger().Debug("wgpu: device ready",
		"width", opts.SurfaceWidth, "height", opts.SurfaceHeight, "spirv", opts.PrecompileSPIRV)
	return d, nil
}

// FromProvider adopts the HAL device and queue of a host provider. The
// provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue.
func FromProvider(provider any, opts Options) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNotHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNotHALProvider)
	}
	return New(device, queue, opts)
}

func (d *Device) allocID() uint64 {
	d.nextID++
	return d.nextID
}

func (d *Device) waitTimeout() time.Duration { return d.opts.WaitTimeout }

// CreateBuffer allocates a vertex buffer.
func (d *Device) CreateBuffer(size int) (gpucore.BufferID, error) {
	if d.destroyed {
		return gpucore.InvalidID, ErrDestroyed
	}
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("wgpu: buffer of %d bytes: %w", size, gpucore.ErrInvalidDimensions)
	}
	aligned := align4(size)
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpupick_vertex",
		Size:  uint64(aligned),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create vertex buffer: %w", err)
	}
	id := gpucore.BufferID(d.allocID())
	d.buffers[id] = &buffer{buf: buf, shadow: make([]byte, aligned)}
	return id, nil
}

// WriteBuffer uploads data at offset. Writes are widened to 4-byte
// alignment using the buffer's current contents.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset int, data []byte) error {
	if d.destroyed {
		return ErrDestroyed
	}
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("wgpu: buffer %d: %w", id, gpucore.ErrUnknownResource)
	}
	if offset < 0 || offset+len(data) > len(b.shadow) {
		return fmt.Errorf("wgpu: write [%d, %d) of %d-byte buffer: %w", offset, offset+len(data), len(b.shadow), gpucore.ErrOutOfBounds)
	}
	if len(data) == 0 {
		return nil
	}
	copy(b.shadow[offset:], data)
	lo := offset &^ 3
	hi := align4(offset + len(data))
	d.queue.WriteBuffer(b.buf, uint64(lo), b.shadow[lo:hi])
	return nil
}

// DestroyBuffer releases the buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	if b, ok := d.buffers[id]; ok {
		d.device.DestroyBuffer(b.buf)
		delete(d.buffers, id)
	}
}

func (d *Device) newTexture(label string, width, height int) (*texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("wgpu: texture %dx%d: %w", width, height, gpucore.ErrInvalidDimensions)
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage: gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s texture: %w", label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create %s texture view: %w", label, err)
	}
	return &texture{tex: tex, view: view, width: width, height: height}, nil
}

func (d *Device) destroyTexture(t *texture) {
	if t.view != nil {
		d.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		d.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// CreateTexture allocates an RGBA8 render target. New textures are
// zero-filled.
func (d *Device) CreateTexture(width, height int) (gpucore.TextureID, error) {
	if d.destroyed {
		return gpucore.InvalidID, ErrDestroyed
	}
	t, err := d.newTexture("gpupick_target", width, height)
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.TextureID(d.allocID())
	d.textures[id] = t
	if err := d.WriteTexture(id, make([]byte, width*height*4)); err != nil {
		d.DestroyTexture(id)
		return gpucore.InvalidID, err
	}
	return id, nil
}

// WriteTexture replaces the texture contents.
func (d *Device) WriteTexture(id gpucore.TextureID, data []byte) error {
	if d.destroyed {
		return ErrDestroyed
	}
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("wgpu: texture %d: %w", id, gpucore.ErrUnknownResource)
	}
	if len(data) != t.width*t.height*4 {
		return fmt.Errorf("wgpu: texture data of %d bytes for %dx%d: %w", len(data), t.width, t.height, gpucore.ErrInvalidDimensions)
	}
	d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(t.width * 4),
			RowsPerImage: uint32(t.height),
		},
		&hal.Extent3D{Width: uint32(t.width), Height: uint32(t.height), DepthOrArrayLayers: 1},
	)
	t.usage = gputypes.TextureUsageCopyDst
	return nil
}

// DestroyTexture releases the texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	if t, ok := d.textures[id]; ok {
		d.destroyTexture(t)
		delete(d.textures, id)
	}
}

// CreateDepthBuffer allocates a depth attachment.
func (d *Device) CreateDepthBuffer(width, height int) (gpucore.DepthBufferID, error) {
	if d.destroyed {
		return gpucore.InvalidID, ErrDestroyed
	}
	if width <= 0 || height <= 0 {
		return gpucore.InvalidID, fmt.Errorf("wgpu: depth buffer %dx%d: %w", width, height, gpucore.ErrInvalidDimensions)
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "gpupick_depth",
		Size:          hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatDepth24PlusStencil8,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create depth texture: %w", err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "gpupick_depth_view",
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return gpucore.InvalidID, fmt.Errorf("create depth texture view: %w", err)
	}
	id := gpucore.DepthBufferID(d.allocID())
	d.depths[id] = &depthBuffer{tex: tex, view: view, width: width, height: height}
	return id, nil
}

// DestroyDepthBuffer releases the depth attachment.
func (d *Device) DestroyDepthBuffer(id gpucore.DepthBufferID) {
	db, ok := d.depths[id]
	if !ok {
		return
	}
	d.device.DestroyTextureView(db.view)
	d.device.DestroyTexture(db.tex)
	delete(d.depths, id)
}

// SurfaceSize returns the default surface size.
func (d *Device) SurfaceSize() (int, int) { return d.surface.width, d.surface.height }

// PixelRatio returns device pixels per logical pixel.
func (d *Device) PixelRatio() float64 { return d.opts.PixelRatio }

// Destroy releases every resource the device created, then the HAL device
// itself when it was opened by Open. Safe to call more than once.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	for id := range d.buffers {
		d.DestroyBuffer(id)
	}
	for id := range d.textures {
		d.DestroyTexture(id)
	}
	for id := range d.depths {
		d.DestroyDepthBuffer(id)
	}
	d.destroyPipelines()
	if d.surface != nil {
		d.destroyTexture(d.surface)
	}
	d.readback = nil
	d.readbackValid = false
	d.destroyed = true
	if d.release != nil {
		d.release()
		d.release = nil
	}
}

// Live returns the number of live buffers, textures and depth buffers.
func (d *Device) Live() (buffers, textures, depthBuffers int) {
	return len(d.buffers), len(d.textures), len(d.depths)
}

func align4(n int) int { return (n + 3) &^ 3 }
