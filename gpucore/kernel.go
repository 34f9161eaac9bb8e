package gpucore

// TextureReader gives kernels integer texel access, the CPU side of WGSL
// textureLoad. Load expects in-range coordinates; see LoadClamped.
type TextureReader interface {
	Size() (width, height int)
	Load(x, y int) [4]float32
}

// VertexInput is what a vertex kernel sees for one vertex.
type VertexInput struct {
	VertexIndex int
	// Attributes holds the fetched attributes in declaration order. Missing
	// components default to (0, 0, 0, 1).
	Attributes [MaxAttributes][4]float32
	Uniforms   []UniformValue
	Textures   []TextureReader
}

// VertexOutput is a clip-space position plus one flat color varying.
type VertexOutput struct {
	Position [4]float32
	Color    [4]float32
}

// FragmentInput is what a fragment kernel sees for one pixel.
type FragmentInput struct {
	// FragCoord is the pixel center in target pixels, like @builtin(position).
	FragCoord [2]float32
	// Color is the provoking vertex's varying.
	Color    [4]float32
	Uniforms []UniformValue
	Textures []TextureReader
}

// VertexKernel is the CPU form of vs_main.
type VertexKernel func(in *VertexInput) VertexOutput

// FragmentKernel is the CPU form of fs_main.
type FragmentKernel func(in *FragmentInput) [4]float32

// PassColor is a FragmentKernel returning the vertex color unchanged.
func PassColor(in *FragmentInput) [4]float32 {
	return in.Color
}

// LoadClamped reads texel (x, y) clamped to the texture edge, matching
// the behavior the shaders rely on for out-of-range loads.
func LoadClamped(t TextureReader, x, y int) [4]float32 {
	w, h := t.Size()
	x = min(max(x, 0), w-1)
	y = min(max(y, 0), h-1)
	return t.Load(x, y)
}
