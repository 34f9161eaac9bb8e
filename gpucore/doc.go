// Package gpucore defines the device contract the picking pipeline runs on.
//
// A [Device] exposes only what the reducers need: vertex buffers, RGBA8
// textures, depth buffers, a draw call and readback of the default surface.
// Resources are named by opaque IDs so that the same algorithms drive both
// the wgpu HAL device and the CPU software device.
//
//	                +---------------------+
//	                |  stream / pingpong  |
//	                |  nearest / series   |
//	                +----------+----------+
//	                           |  ProgramBuilder.Draw
//	                +----------v----------+
//	                |   gpucore.Device    |
//	                +----------+----------+
//	                           |
//	         +-----------------+-----------------+
//	         |                                   |
//	+--------v--------+                 +--------v--------+
//	|  backend/wgpu   |                 |backend/software |
//	|  (hal.Device)   |                 |  (CPU kernels)  |
//	+-----------------+                 +-----------------+
//
// # Programs
//
// A [ProgramDesc] carries WGSL source for GPU devices and equivalent
// [VertexKernel] and [FragmentKernel] functions for the software device.
// Inputs are referenced by name. A [ProgramBuilder] maps each name to a
// [Binder]; at draw time the binders fill in a [DrawCommand] which the device
// executes.
//
// # Coordinates
//
// Clip space has y up and depth in [0, 1]. Pixel row 0 is the top row.
// Texel (x, y) of a W x H target is covered by the clip-space point
// ((x+0.5)/W*2-1, 1-(y+0.5)/H*2), see [TexelToClip]. Color channels are
// stored as RGBA8 with round-to-nearest, see [Quantize].
package gpucore
