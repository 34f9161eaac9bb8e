//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpupick/backend"
	"github.com/gogpu/gpupick/gpucore"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// ErrNoAdapter is returned by Open when no GPU adapter is found.
var ErrNoAdapter = errors.New("wgpu: no GPU adapters found")

func init() {
	backend.Register(backend.NameWGPU, openBackend)
}

func openBackend(cfg backend.Config) (gpucore.Device, error) {
	opts := Options{
		SurfaceWidth:  cfg.SurfaceWidth,
		SurfaceHeight: cfg.SurfaceHeight,
		PixelRatio:    cfg.Ratio(),
	}
	if cfg.Provider != nil {
		return FromProvider(cfg.Provider, opts)
	}
	return Open(opts)
}

// Open creates a Vulkan instance, opens the first discrete or integrated
// adapter (else the first adapter) and wraps it. Destroy releases the
// device and instance.
func Open(opts Options) (*Device, error) {
	api, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("wgpu: vulkan backend not available")
	}
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	d, err := New(openDev.Device, openDev.Queue, opts)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.release = func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return d, nil
}
