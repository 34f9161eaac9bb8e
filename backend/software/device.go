// Package software implements gpucore.Device on the CPU.
//
// Programs run through their Go kernels with the same coordinate,
// depth-test and RGBA8 quantization rules as the GPU backend. The device
// also records every buffer write, which makes upload behavior observable in
// tests.
package software

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gpupick/gpucore"
)

// ErrDeviceLost is returned by every call after Lose.
var ErrDeviceLost = errors.New("software: device lost")

// Write records one WriteBuffer call.
type Write struct {
	Buffer gpucore.BufferID
	Offset int
	Length int
}

// Stats counts device activity.
type Stats struct {
	Draws          int
	BufferWrites   int
	BytesWritten   int
	TextureWrites  int
	ReadPixelCalls int
}

type texture struct {
	width, height int
	pix           []byte
}

func (t *texture) Size() (int, int) { return t.width, t.height }

func (t *texture) Load(x, y int) [4]float32 {
	i := (y*t.width + x) * 4
	p := t.pix[i : i+4 : i+4]
	return [4]float32{float32(p[0]) / 255, float32(p[1]) / 255, float32(p[2]) / 255, float32(p[3]) / 255}
}

type depthBuffer struct {
	width, height int
	depth         []float32
}

// Device is a CPU implementation of gpucore.Device.
type Device struct {
	surface    *texture
	pixelRatio float64

	buffers  map[gpucore.BufferID][]byte
	textures map[gpucore.TextureID]*texture
	depths   map[gpucore.DepthBufferID]*depthBuffer
	nextID   uint64

	writes []Write
	stats  Stats
	lost   bool
}

// New creates a device with a width x height default surface.
func New(width, height int) (*Device, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("software: surface %dx%d: %w", width, height, gpucore.ErrInvalidDimensions)
	}
	return &Device{
		surface:    newTexture(width, height),
		pixelRatio: 1,
		buffers:    make(map[gpucore.BufferID][]byte),
		textures:   make(map[gpucore.TextureID]*texture),
		depths:     make(map[gpucore.DepthBufferID]*depthBuffer),
	}, nil
}

func newTexture(width, height int) *texture {
	return &texture{width: width, height: height, pix: make([]byte, width*height*4)}
}

func (d *Device) allocID() uint64 {
	d.nextID++
	return d.nextID
}

// CreateBuffer allocates a zero-filled buffer.
func (d *Device) CreateBuffer(size int) (gpucore.BufferID, error) {
	if d.lost {
		return gpucore.InvalidID, ErrDeviceLost
	}
	if size < 0 {
		return gpucore.InvalidID, fmt.Errorf("software: buffer size %d: %w", size, gpucore.ErrInvalidDimensions)
	}
	id := gpucore.BufferID(d.allocID())
	d.buffers[id] = make([]byte, size)
	return id, nil
}

// WriteBuffer copies data into the buffer at offset and records the write.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset int, data []byte) error {
	if d.lost {
		return ErrDeviceLost
	}
	buf, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("software: buffer %d: %w", id, gpucore.ErrUnknownResource)
	}
	if offset < 0 || offset+len(data) > len(buf) {
		return fmt.Errorf("software: write [%d, %d) into %d-byte buffer: %w",
			offset, offset+len(data), len(buf), gpucore.ErrOutOfBounds)
	}
	copy(buf[offset:], data)
	d.writes = append(d.writes, Write{Buffer: id, Offset: offset, Length: len(data)})
	d.stats.BufferWrites++
	d.stats.BytesWritten += len(data)
	return nil
}

// DestroyBuffer releases the buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	delete(d.buffers, id)
}

// CreateTexture allocates a zero-filled RGBA8 texture.
func (d *Device) CreateTexture(width, height int) (gpucore.TextureID, error) {
	if d.lost {
		return gpucore.InvalidID, ErrDeviceLost
	}
	if width <= 0 || height <= 0 {
		return gpucore.InvalidID, fmt.Errorf("software: texture %dx%d: %w", width, height, gpucore.ErrInvalidDimensions)
	}
	id := gpucore.TextureID(d.allocID())
	d.textures[id] = newTexture(width, height)
	return id, nil
}

// WriteTexture replaces the texture contents.
func (d *Device) WriteTexture(id gpucore.TextureID, data []byte) error {
	if d.lost {
		return ErrDeviceLost
	}
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("software: texture %d: %w", id, gpucore.ErrUnknownResource)
	}
	if len(data) != len(t.pix) {
		return fmt.Errorf("software: texture data %d bytes, want %d: %w", len(data), len(t.pix), gpucore.ErrOutOfBounds)
	}
	copy(t.pix, data)
	d.stats.TextureWrites++
	return nil
}

// DestroyTexture releases the texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	delete(d.textures, id)
}

// CreateDepthBuffer allocates a depth buffer cleared to 1.
func (d *Device) CreateDepthBuffer(width, height int) (gpucore.DepthBufferID, error) {
	if d.lost {
		return gpucore.InvalidID, ErrDeviceLost
	}
	if width <= 0 || height <= 0 {
		return gpucore.InvalidID, fmt.Errorf("software: depth buffer %dx%d: %w", width, height, gpucore.ErrInvalidDimensions)
	}
	db := &depthBuffer{width: width, height: height, depth: make([]float32, width*height)}
	for i := range db.depth {
		db.depth[i] = 1
	}
	id := gpucore.DepthBufferID(d.allocID())
	d.depths[id] = db
	return id, nil
}

// DestroyDepthBuffer releases the depth buffer.
func (d *Device) DestroyDepthBuffer(id gpucore.DepthBufferID) {
	delete(d.depths, id)
}

// SurfaceSize returns the default surface size.
func (d *Device) SurfaceSize() (int, int) {
	return d.surface.width, d.surface.height
}

// PixelRatio returns device pixels per logical pixel.
func (d *Device) PixelRatio() float64 {
	return d.pixelRatio
}

// SetPixelRatio sets the value reported by PixelRatio. Non-positive values
// reset it to 1.
func (d *Device) SetPixelRatio(r float64) {
	if r <= 0 {
		r = 1
	}
	d.pixelRatio = r
}

// Resize replaces the default surface with a cleared width x height one.
func (d *Device) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("software: surface %dx%d: %w", width, height, gpucore.ErrInvalidDimensions)
	}
	d.surface = newTexture(width, height)
	return nil
}

// ReadPixels copies a rectangle of the default surface into dst.
func (d *Device) ReadPixels(x, y, width, height int, dst []byte) error {
	if d.lost {
		return ErrDeviceLost
	}
	s := d.surface
	if x < 0 || y < 0 || width < 0 || height < 0 || x+width > s.width || y+height > s.height {
		return fmt.Errorf("software: read %dx%d at (%d,%d) from %dx%d surface: %w",
			width, height, x, y, s.width, s.height, gpucore.ErrOutOfBounds)
	}
	rowBytes := width * 4
	if len(dst) < rowBytes*height {
		return fmt.Errorf("software: read needs %d bytes, dst has %d: %w", rowBytes*height, len(dst), gpucore.ErrOutOfBounds)
	}
	for row := range height {
		src := ((y+row)*s.width + x) * 4
		copy(dst[row*rowBytes:(row+1)*rowBytes], s.pix[src:src+rowBytes])
	}
	d.stats.ReadPixelCalls++
	return nil
}

// Image returns a copy of the default surface.
func (d *Device) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, d.surface.width, d.surface.height))
	copy(img.Pix, d.surface.pix)
	return img
}

// TexturePixels returns a copy of the texture contents and its size.
func (d *Device) TexturePixels(id gpucore.TextureID) ([]byte, int, int, error) {
	t, ok := d.textures[id]
	if !ok {
		return nil, 0, 0, fmt.Errorf("software: texture %d: %w", id, gpucore.ErrUnknownResource)
	}
	pix := make([]byte, len(t.pix))
	copy(pix, t.pix)
	return pix, t.width, t.height, nil
}

// Buffer returns a copy of the buffer contents.
func (d *Device) Buffer(id gpucore.BufferID) ([]byte, error) {
	buf, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("software: buffer %d: %w", id, gpucore.ErrUnknownResource)
	}
	return append([]byte(nil), buf...), nil
}

// Writes returns the buffer writes recorded since the last ResetWrites.
func (d *Device) Writes() []Write {
	return append([]Write(nil), d.writes...)
}

// ResetWrites clears the write log.
func (d *Device) ResetWrites() {
	d.writes = d.writes[:0]
}

// Stats returns activity counters.
func (d *Device) Stats() Stats {
	return d.stats
}

// Live returns the number of live buffers, textures and depth buffers.
func (d *Device) Live() (buffers, textures, depthBuffers int) {
	return len(d.buffers), len(d.textures), len(d.depths)
}

// Lose drops every resource and fails all further calls, like a lost
// graphics context. Restore makes the device usable again, empty.
func (d *Device) Lose() {
	d.lost = true
	clear(d.buffers)
	clear(d.textures)
	clear(d.depths)
}

// Restore recovers a lost device. Previously issued IDs stay invalid.
func (d *Device) Restore() {
	d.lost = false
}
