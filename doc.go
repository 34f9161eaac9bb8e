// Package gpupick finds the data point nearest to a query location by
// running the search on the GPU.
//
// # Overview
//
// A chart may hold millions of points that already live in GPU vertex
// buffers for drawing. Picking the one under the pointer does not need a CPU
// spatial index: the same buffers are fed to a small render pass whose
// output pixels encode the index of the nearest point and its distance.
//
// The work is split across sub-packages:
//
//   - [github.com/gogpu/gpupick/gpucore] defines the [gpucore.Device]
//     contract (buffers, textures, depth buffers, draws, readback) and the
//     [gpucore.ProgramBuilder] that binds named inputs to a program.
//   - [github.com/gogpu/gpupick/stream] uploads chunked attribute data,
//     re-sending only the chunks that changed.
//   - [github.com/gogpu/gpupick/pingpong] is a double-buffered render
//     target with readback into a byte array.
//   - [github.com/gogpu/gpupick/nearest] holds the two reducers: a depth
//     test arg-min into a single pixel and a 4-to-1 tree reduction.
//   - [github.com/gogpu/gpupick/series] draws a streaming point series
//     and answers pick queries against it.
//   - [github.com/gogpu/gpupick/columnar] turns Arrow and Parquet columns
//     into the chunk lists the streaming buffers consume.
//
// # Backends
//
// Two devices implement the contract:
//
//   - backend/wgpu renders through gogpu/wgpu's HAL (Vulkan, Metal, DX12,
//     GLES or the noop device in tests).
//   - backend/software executes the programs' CPU kernels with the same
//     coordinate and quantization rules, for headless use and tests.
//
// # Logging
//
// gpupick logs through [log/slog] and is silent by default. See [SetLogger].
package gpupick
