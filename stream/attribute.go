// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package stream uploads chunked vertex attribute data to a fixed-capacity
// device buffer, re-sending only the chunks that changed since the last
// upload.
//
// Data is an ordered list of byte chunks laid out back to back in the
// buffer. A chunk is considered unchanged when it is the same memory (same
// backing array and length) as the chunk at the same position last time.
// Appending a chunk uploads only the new chunk; replacing a chunk in place
// uploads only that chunk; resizing a chunk uploads it and everything after
// it, because their offsets moved.
package stream

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpupick"
	"github.com/gogpu/gpupick/gpucore"
	"github.com/gogpu/gpupick/internal/metrics"
)

var (
	// ErrCapacityExceeded is returned when the chunks do not fit in MaxByteLength.
	ErrCapacityExceeded = errors.New("stream: data exceeds buffer capacity")

	// ErrInvalidConfig is returned for an unusable configuration.
	ErrInvalidConfig = errors.New("stream: invalid configuration")
)

// Config describes the attribute layout and buffer capacity.
type Config struct {
	// MaxByteLength is the size of the device buffer. It is allocated once
	// and never grows.
	MaxByteLength int

	// Type is the component type; defaults to float32.
	Type gpucore.ElementType
	// Size is the number of components per vertex, 1 to 4; defaults to 1.
	Size       int
	Normalized bool
	Stride     int
	Offset     int
	Divisor    int
}

func (c Config) withDefaults() Config {
	if c.Type == 0 {
		c.Type = gpucore.ElementFloat32
	}
	if c.Size == 0 {
		c.Size = 1
	}
	return c
}

// Validate checks the configuration.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.MaxByteLength < 0 || c.Type.Size() == 0 || c.Size < 1 || c.Size > 4 || c.Stride < 0 || c.Offset < 0 || c.Divisor < 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidConfig, c)
	}
	return nil
}

// Attribute is a streaming vertex attribute. It implements gpucore.Binder.
type Attribute struct {
	cfg Config

	data [][]byte

	// baseline is a shallow copy of data as of the last upload. It is only
	// meaningful while hasBaseline is set.
	baseline    [][]byte
	hasBaseline bool

	buffer     gpucore.BufferID
	reallocate bool
}

// New returns an attribute with the given configuration.
func New(cfg Config) *Attribute {
	return &Attribute{cfg: cfg.withDefaults()}
}

// Config returns the current configuration.
func (a *Attribute) Config() Config { return a.cfg }

// Configure replaces the configuration. A new MaxByteLength reallocates the
// buffer on the next upload and forces a full re-upload.
func (a *Attribute) Configure(cfg Config) {
	cfg = cfg.withDefaults()
	if cfg.MaxByteLength != a.cfg.MaxByteLength && a.buffer != gpucore.InvalidID {
		a.reallocate = true
	}
	a.cfg = cfg
}

// SetData replaces the chunk list. Chunks are retained, not copied: keep
// passing the same slices for data that did not change.
func (a *Attribute) SetData(chunks [][]byte) {
	a.data = chunks
}

// Data returns the current chunk list.
func (a *Attribute) Data() [][]byte { return a.data }

// Len returns the total byte length of the current chunks.
func (a *Attribute) Len() int { return TotalBytes(a.data) }

// Vertices returns how many whole vertices the current chunks hold.
func (a *Attribute) Vertices() int {
	stride := a.binding().ByteStride()
	if stride == 0 {
		return 0
	}
	return max(a.Len()-a.cfg.Offset, 0) / stride
}

// Buffer returns the device buffer, or InvalidID before the first upload.
func (a *Attribute) Buffer() gpucore.BufferID { return a.buffer }

func (a *Attribute) binding() gpucore.AttributeBinding {
	return gpucore.AttributeBinding{
		Buffer:     a.buffer,
		Type:       a.cfg.Type,
		Size:       a.cfg.Size,
		Normalized: a.cfg.Normalized,
		Stride:     a.cfg.Stride,
		Offset:     a.cfg.Offset,
		Divisor:    a.cfg.Divisor,
	}
}

// Bind uploads pending changes and binds the buffer as the named attribute.
func (a *Attribute) Bind(dev gpucore.Device, cmd *gpucore.DrawCommand, name string) error {
	b, err := a.Upload(dev)
	if err != nil {
		return err
	}
	cmd.Attributes[name] = b
	return nil
}

// Upload sends changed chunks to the device and returns the binding.
//
// The capacity check happens before anything is written, so a failed
// upload leaves the buffer and baseline untouched.
func (a *Attribute) Upload(dev gpucore.Device) (gpucore.AttributeBinding, error) {
	if dev == nil {
		return gpucore.AttributeBinding{}, gpucore.ErrNilDevice
	}
	if err := a.cfg.Validate(); err != nil {
		return gpucore.AttributeBinding{}, err
	}
	total := TotalBytes(a.data)
	if total > a.cfg.MaxByteLength {
		metrics.StreamCapacityErrorsTotal.Inc()
		return gpucore.AttributeBinding{}, fmt.Errorf("%w: %d bytes, capacity %d", ErrCapacityExceeded, total, a.cfg.MaxByteLength)
	}

	if a.buffer == gpucore.InvalidID || a.reallocate {
		if a.buffer != gpucore.InvalidID {
			dev.DestroyBuffer(a.buffer)
		}
		id, err := dev.CreateBuffer(a.cfg.MaxByteLength)
		if err != nil {
			a.buffer = gpucore.InvalidID
			return gpucore.AttributeBinding{}, fmt.Errorf("create stream buffer: %w", err)
		}
		a.buffer = id
		a.reallocate = false
		a.hasBaseline = false
		gpupick.Logger().Debug("stream: buffer allocated", "bytes", a.cfg.MaxByteLength)
	}

	if a.hasBaseline {
		if prev := TotalBytes(a.baseline); total < prev {
			gpupick.Logger().Debug("stream: data shrank", "from", prev, "to", total)
		}
	}

	invalid := !a.hasBaseline
	offset, uploaded, skipped, writes := 0, 0, 0, 0
	for i, chunk := range a.data {
		if !invalid && (i >= len(a.baseline) || len(a.baseline[i]) != len(chunk)) {
			invalid = true
		}
		if invalid || !sameChunk(a.baseline[i], chunk) {
			if len(chunk) > 0 {
				if err := dev.WriteBuffer(a.buffer, offset, chunk); err != nil {
					// The buffer is partially updated; force a full upload next time.
					a.hasBaseline = false
					return gpucore.AttributeBinding{}, fmt.Errorf("upload chunk %d: %w", i, err)
				}
				writes++
			}
			uploaded += len(chunk)
		} else {
			skipped += len(chunk)
		}
		offset += len(chunk)
	}

	a.baseline = append(a.baseline[:0], a.data...)
	a.hasBaseline = true

	metrics.StreamUploadBytesTotal.Add(float64(uploaded))
	metrics.StreamSkippedBytesTotal.Add(float64(skipped))
	metrics.StreamChunkUploadsTotal.Add(float64(writes))
	if writes > 0 {
		gpupick.Logger().Debug("stream: upload", "chunks", writes, "bytes", uploaded, "skipped", skipped)
	}
	return a.binding(), nil
}

// Clear forgets the device buffer without releasing it, for use after the
// device was lost. The next upload allocates a new buffer and sends all data.
func (a *Attribute) Clear() {
	a.buffer = gpucore.InvalidID
	a.reallocate = false
	a.hasBaseline = false
	a.baseline = nil
}

// Destroy releases the device buffer.
func (a *Attribute) Destroy(dev gpucore.Device) {
	if a.buffer != gpucore.InvalidID && dev != nil {
		dev.DestroyBuffer(a.buffer)
	}
	a.Clear()
}
