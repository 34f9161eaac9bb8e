package backend

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/gpupick"
	"github.com/gogpu/gpupick/gpucore"
)

// registry holds registered device factories.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for Default (first that opens wins).
	priority = []string{NameWGPU, NameSoftware}
)

// Register registers a device factory with the given name.
// This is typically called from init() functions in backend packages.
// A factory registered under an existing name replaces it.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = f
}

// Unregister removes a backend from the registry.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open opens a device from the named backend.
func Open(name string, cfg Config) (gpucore.Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	registryMu.RLock()
	f, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	dev, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s device: %w", name, err)
	}
	gpupick.Logger().Debug("backend: device opened", "backend", name,
		"width", cfg.SurfaceWidth, "height", cfg.SurfaceHeight)
	return dev, nil
}

// Default opens a device from the best available backend.
// Priority order: wgpu > software, then any other registered backend.
// A backend whose factory fails is skipped.
func Default(cfg Config) (gpucore.Device, string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	names := Available()
	order := make([]string, 0, len(names))
	for _, name := range priority {
		if slices.Contains(names, name) {
			order = append(order, name)
		}
	}
	for _, name := range names {
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}

	for _, name := range order {
		dev, err := Open(name, cfg)
		if err == nil {
			return dev, name, nil
		}
		gpupick.Logger().Warn("backend: skipping", "backend", name, "error", err)
	}
	return nil, "", ErrBackendNotAvailable
}

// MustDefault returns the default device or panics.
func MustDefault(cfg Config) gpucore.Device {
	dev, _, err := Default(cfg)
	if err != nil {
		panic(err)
	}
	return dev
}
