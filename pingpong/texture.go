// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pingpong provides a double-buffered offscreen render target.
//
// Each enabled Bind renders into the back texture while the front texture
// is available as a sampler, then swaps the two. Iterative passes (such as a
// reduction) therefore read the previous pass's output and write the next.
// ToArray reads the front texture back into a byte array.
package pingpong

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpupick"
	"github.com/gogpu/gpupick/gpucore"
	"github.com/gogpu/gpupick/internal/metrics"
	"github.com/gogpu/gpupick/stream"
)

var (
	// ErrInvalidSize is returned when the texture size is not positive.
	ErrInvalidSize = errors.New("pingpong: invalid texture size")

	// ErrInvalidLength is returned when ToArray is asked for more pixels than
	// the texture holds, or the destination is too short.
	ErrInvalidLength = errors.New("pingpong: invalid readback length")

	// ErrSurfaceTooSmall is returned when the default surface cannot hold the
	// pixels ToArray copies through it.
	ErrSurfaceTooSmall = errors.New("pingpong: surface too small for readback")
)

// Texture is a ping-pong render target. It implements gpucore.Binder and
// gpucore.Committer.
//
// The zero value is not usable; call New.
type Texture struct {
	width, height int
	enable        bool
	clearColor    gpucore.Color

	textures [2]gpucore.TextureID
	front    int
	depth    gpucore.DepthBufferID

	// dirty forces both textures and the depth buffer to be recreated.
	dirty bool
	// dirtyTexture is the index of a 1x1 placeholder that must be grown to
	// full size before it is rendered into, or -1.
	dirtyTexture int

	copier *gpucore.ProgramBuilder
	quad   *stream.Attribute
	sizes  *gpucore.Uniform
	count  *gpucore.Uniform
}

// New returns an enabled width x height target cleared to transparent black.
func New(width, height int) *Texture {
	t := &Texture{
		width:        width,
		height:       height,
		enable:       true,
		dirty:        true,
		dirtyTexture: -1,
		quad:         newQuad(),
		sizes:        gpucore.NewUniform(),
		count:        gpucore.NewUniform(),
	}
	t.copier = gpucore.NewProgramBuilder(toArrayProgram).
		SetAttribute(attrVertex, t.quad).
		SetUniform(uniformSizes, t.sizes).
		SetUniform(uniformCount, t.count).
		SetTarget(textureInput, t)
	return t
}

// Width returns the texture width.
func (t *Texture) Width() int { return t.width }

// Height returns the texture height.
func (t *Texture) Height() int { return t.height }

// SetSize changes the texture size. Storage is recreated on the next Bind.
func (t *Texture) SetSize(width, height int) {
	if width == t.width && height == t.height {
		return
	}
	t.width, t.height = width, height
	t.dirty = true
}

// SetWidth changes the texture width.
func (t *Texture) SetWidth(width int) { t.SetSize(width, t.height) }

// SetHeight changes the texture height.
func (t *Texture) SetHeight(height int) { t.SetSize(t.width, height) }

// SetEnable selects whether Bind targets the textures (true) or the default
// surface (false).
func (t *Texture) SetEnable(enable bool) { t.enable = enable }

// Enabled reports whether Bind targets the textures.
func (t *Texture) Enabled() bool { return t.enable }

// SetClearColor sets the color the back texture is cleared to before each
// enabled pass.
func (t *Texture) SetClearColor(c gpucore.Color) { t.clearColor = c }

// Front returns the texture most recently rendered into.
func (t *Texture) Front() gpucore.TextureID { return t.textures[t.front] }

// Bind makes the target current for the next draw.
//
// When enabled, the draw renders into the back texture with the depth
// buffer attached, after clearing both, while name (if not empty) samples
// the front texture; the roles swap in Commit once the draw succeeded.
// When disabled, the draw goes to the default surface and name samples the
// front texture.
func (t *Texture) Bind(dev gpucore.Device, cmd *gpucore.DrawCommand, name string) error {
	if err := t.ensure(dev); err != nil {
		return err
	}
	if name != "" {
		cmd.Textures[name] = t.textures[t.front]
	}
	if !t.enable {
		w, h := dev.SurfaceSize()
		cmd.Framebuffer = nil
		cmd.Viewport = gpucore.Viewport{Width: w, Height: h}
		return nil
	}
	back := 1 - t.front
	cmd.Framebuffer = &gpucore.Framebuffer{Color: t.textures[back], Depth: t.depth}
	cmd.Viewport = gpucore.Viewport{Width: t.width, Height: t.height}
	cmd.Clear = true
	cmd.ClearColor = t.clearColor
	return nil
}

// Commit makes the texture cmd rendered into the front. Commands that did
// not render into the back texture leave the roles unchanged.
func (t *Texture) Commit(cmd *gpucore.DrawCommand) {
	back := 1 - t.front
	if cmd.Framebuffer != nil && t.textures[back] != gpucore.InvalidID && cmd.Framebuffer.Color == t.textures[back] {
		t.front = back
	}
}

// ensure creates or reconfigures device storage.
//
// A full reconfiguration leaves the front texture as a 1x1 blank so the
// first pass samples nothing, and grows it on the following Bind, before
// it becomes the back texture.
func (t *Texture) ensure(dev gpucore.Device) error {
	if dev == nil {
		return gpucore.ErrNilDevice
	}
	if t.width <= 0 || t.height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, t.width, t.height)
	}
	if t.textures[0] == gpucore.InvalidID || t.textures[1] == gpucore.InvalidID || t.depth == gpucore.InvalidID {
		t.dirty = true
	}

	if t.dirty {
		t.release(dev)
		front, err := dev.CreateTexture(1, 1)
		if err != nil {
			return fmt.Errorf("create front texture: %w", err)
		}
		t.textures[t.front] = front
		if err := dev.WriteTexture(front, make([]byte, 4)); err != nil {
			return fmt.Errorf("clear front texture: %w", err)
		}
		back, err := dev.CreateTexture(t.width, t.height)
		if err != nil {
			return fmt.Errorf("create back texture: %w", err)
		}
		t.textures[1-t.front] = back
		depth, err := dev.CreateDepthBuffer(t.width, t.height)
		if err != nil {
			return fmt.Errorf("create depth buffer: %w", err)
		}
		t.depth = depth
		t.dirty = false
		t.dirtyTexture = t.front
		metrics.TargetReconfiguresTotal.WithLabelValues("full").Inc()
		gpupick.Logger().Debug("pingpong: reconfigured", "width", t.width, "height", t.height)
		return nil
	}

	if t.dirtyTexture >= 0 {
		i := t.dirtyTexture
		dev.DestroyTexture(t.textures[i])
		t.textures[i] = gpucore.InvalidID
		id, err := dev.CreateTexture(t.width, t.height)
		if err != nil {
			return fmt.Errorf("grow texture: %w", err)
		}
		t.textures[i] = id
		t.dirtyTexture = -1
		metrics.TargetReconfiguresTotal.WithLabelValues("front").Inc()
	}
	return nil
}

// ToArray reads the first count pixels of the front texture, in row-major
// order, into dst as RGBA8. The pixels are remapped onto the default
// surface, which must hold at least count pixels, and read back one surface
// row at a time. The enable state is restored on return.
func (t *Texture) ToArray(dev gpucore.Device, dst []byte, count int) error {
	if dev == nil {
		return gpucore.ErrNilDevice
	}
	if count <= 0 || count > t.width*t.height || len(dst) < count*4 {
		return fmt.Errorf("%w: %d pixels from %dx%d into %d bytes", ErrInvalidLength, count, t.width, t.height, len(dst))
	}
	sw, sh := dev.SurfaceSize()
	if sw*sh < count {
		return fmt.Errorf("%w: %d pixels, surface %dx%d", ErrSurfaceTooSmall, count, sw, sh)
	}

	enabled := t.enable
	t.enable = false
	defer func() { t.enable = enabled }()

	t.sizes.Set(float32(sw), float32(sh), float32(t.width), float32(t.height))
	t.count.Set(float32(count))
	if err := t.copier.Draw(dev, 6); err != nil {
		return fmt.Errorf("remap texture: %w", err)
	}

	for row, offset := 0, 0; offset < count; row, offset = row+1, offset+sw {
		n := min(count-offset, sw)
		if err := dev.ReadPixels(0, row, n, 1, dst[offset*4:(offset+n)*4]); err != nil {
			return fmt.Errorf("read row %d: %w", row, err)
		}
	}
	metrics.ReadbackPixelsTotal.Add(float64(count))
	return nil
}

// Clear forgets device storage without releasing it, for use after the
// device was lost.
func (t *Texture) Clear() {
	t.textures = [2]gpucore.TextureID{}
	t.depth = gpucore.InvalidID
	t.front = 0
	t.dirty = true
	t.dirtyTexture = -1
	t.quad.Clear()
}

// Destroy releases device storage.
func (t *Texture) Destroy(dev gpucore.Device) {
	if dev != nil {
		t.release(dev)
		t.quad.Destroy(dev)
	}
	t.Clear()
}

func (t *Texture) release(dev gpucore.Device) {
	for i, id := range t.textures {
		if id != gpucore.InvalidID {
			dev.DestroyTexture(id)
			t.textures[i] = gpucore.InvalidID
		}
	}
	if t.depth != gpucore.InvalidID {
		dev.DestroyDepthBuffer(t.depth)
		t.depth = gpucore.InvalidID
	}
}
