// Package wgpu implements gpucore.Device on the gogpu/wgpu HAL.
//
// A Device either owns a Vulkan device opened by Open, or adopts the device
// and queue of a host application through a gpucontext.DeviceProvider that
// also exposes HalDevice() and HalQueue().
//
// Every Draw is encoded into one render pass and submitted with a fence
// wait, so draws are observed in order by later draws and by ReadPixels.
// Render targets are RGBA8Unorm textures; depth attachments are
// Depth24PlusStencil8 with the stencil aspect unused. The default surface
// is an offscreen texture of the configured size.
//
// Pipelines are cached per program and state:
//
//	program (WGSL or SPIR-V module, bind group layout)
//	  -> pipeline key (topology, vertex layouts, depth state)
//	    -> hal.RenderPipeline
//
// Build with -tags nogpu to exclude this package's GPU code.
package wgpu
