package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/gpupick/gpucore"
)

// Backend names.
const (
	// NameWGPU selects the gogpu/wgpu HAL device.
	NameWGPU = "wgpu"

	// NameSoftware selects the CPU reference device.
	NameSoftware = "software"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered
	// or none of the registered backends could open a device.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrInvalidConfig is returned for a non-positive surface size.
	ErrInvalidConfig = errors.New("backend: invalid config")
)

// Config describes the device a backend should open.
type Config struct {
	// SurfaceWidth and SurfaceHeight size the default surface in physical pixels.
	SurfaceWidth  int
	SurfaceHeight int

	// PixelRatio is the physical/logical pixel ratio. Zero means 1.
	PixelRatio float64

	// Provider supplies a host GPU device. Backends that cannot adopt one ignore it.
	Provider gpucontext.DeviceProvider
}

// Validate checks the surface size.
func (c Config) Validate() error {
	if c.SurfaceWidth <= 0 || c.SurfaceHeight <= 0 {
		return fmt.Errorf("%w: surface %dx%d", ErrInvalidConfig, c.SurfaceWidth, c.SurfaceHeight)
	}
	return nil
}

// Ratio returns PixelRatio, or 1 when unset.
func (c Config) Ratio() float64 {
	if c.PixelRatio <= 0 {
		return 1
	}
	return c.PixelRatio
}

// Factory opens a device for cfg.
type Factory func(cfg Config) (gpucore.Device, error)
