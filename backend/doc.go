// Package backend selects the device that executes draw commands.
//
// Backends register a Factory from an init() function and are opened at
// runtime by name or by priority:
//
//	import (
//		"github.com/gogpu/gpupick/backend"
//		_ "github.com/gogpu/gpupick/backend/software"
//		_ "github.com/gogpu/gpupick/backend/wgpu"
//	)
//
//	dev, name, err := backend.Default(backend.Config{SurfaceWidth: 800, SurfaceHeight: 600})
//
// # Available Backends
//
//   - "wgpu": gogpu/wgpu HAL device, optionally adopting a host device
//     through Config.Provider
//   - "software": CPU reference rasterizer, always available
package backend
