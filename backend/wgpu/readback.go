//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpupick"
	"github.com/gogpu/gpupick/gpucore"
)

// copyPitchAlignment is the required BytesPerRow alignment of
// texture-to-buffer copies.
const copyPitchAlignment = 256

// ReadPixels copies a rectangle of the default surface into dst. The whole
// surface is read back once and served from cache until the next draw to
// the surface.
func (d *Device) ReadPixels(x, y, width, height int, dst []byte) error {
	if d.destroyed {
		return ErrDestroyed
	}
	if width < 0 || height < 0 {
		return fmt.Errorf("wgpu: read %dx%d: %w", width, height, gpucore.ErrInvalidDimensions)
	}
	sw, sh := d.SurfaceSize()
	if x < 0 || y < 0 || x+width > sw || y+height > sh {
		return fmt.Errorf("wgpu: read (%d,%d) %dx%d of %dx%d surface: %w", x, y, width, height, sw, sh, gpucore.ErrOutOfBounds)
	}
	if len(dst) < width*height*4 {
		return fmt.Errorf("wgpu: %d-byte destination for %dx%d: %w", len(dst), width, height, gpucore.ErrOutOfBounds)
	}
	if width == 0 || height == 0 {
		return nil
	}
	if !d.readbackValid {
		if err := d.readSurface(); err != nil {
			return err
		}
	}
	rowBytes := width * 4
	for row := range height {
		src := ((y+row)*sw + x) * 4
		copy(dst[row*rowBytes:(row+1)*rowBytes], d.readback[src:src+rowBytes])
	}
	return nil
}

// readSurface copies the surface texture into a staging buffer, waits, and
// strips row padding into d.readback.
func (d *Device) readSurface() error {
	s := d.surface
	w, h := uint32(s.width), uint32(s.height)
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpupick_readback",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gpupick_readback_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gpupick_readback"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	if barriers := appendTransition(nil, s, gputypes.TextureUsageCopySrc); len(barriers) > 0 {
		encoder.TransitionTextures(barriers)
	}
	encoder.CopyTextureToBuffer(s.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: s.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	if err := d.submit(encoder); err != nil {
		return err
	}

	raw := make([]byte, stagingSize)
	if err := d.queue.ReadBuffer(staging, 0, raw); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	tight := int(bytesPerRow) * int(h)
	if cap(d.readback) < tight {
		d.readback = make([]byte, tight)
	}
	d.readback = d.readback[:tight]
	if alignedBytesPerRow == bytesPerRow {
		copy(d.readback, raw)
	} else {
		for row := range int(h) {
			src := row * int(alignedBytesPerRow)
			copy(d.readback[row*int(bytesPerRow):], raw[src:src+int(bytesPerRow)])
		}
	}
	d.readbackValid = true
	gpupick.Logger().Debug("wgpu: surface read back", "width", w, "height", h)
	return nil
}
