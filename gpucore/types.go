package gpucore

// Resource IDs
//
// These opaque IDs represent device resources. Each Device implementation
// maintains a mapping between IDs and its own backend objects.

// BufferID is an opaque handle to a vertex buffer.
type BufferID uint64

// TextureID is an opaque handle to an RGBA8 texture.
type TextureID uint64

// DepthBufferID is an opaque handle to a depth attachment.
type DepthBufferID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// ElementType is the scalar type of one attribute component.
type ElementType uint8

// Element types.
const (
	ElementFloat32 ElementType = iota + 1
	ElementUint32
	ElementInt32
	ElementUint16
	ElementUint8
)

// Size returns the size of one component in bytes.
func (t ElementType) Size() int {
	switch t {
	case ElementFloat32, ElementUint32, ElementInt32:
		return 4
	case ElementUint16:
		return 2
	case ElementUint8:
		return 1
	default:
		return 0
	}
}

// String returns the element type name.
func (t ElementType) String() string {
	switch t {
	case ElementFloat32:
		return "float32"
	case ElementUint32:
		return "uint32"
	case ElementInt32:
		return "int32"
	case ElementUint16:
		return "uint16"
	case ElementUint8:
		return "uint8"
	default:
		return "unknown"
	}
}

// Topology is the primitive type a draw assembles from its vertices.
type Topology uint8

// Topologies.
const (
	// TopologyPoints rasterizes each vertex as a single pixel.
	TopologyPoints Topology = iota
	// TopologyTriangles assembles every three vertices into a triangle.
	TopologyTriangles
)

// String returns the topology name.
func (t Topology) String() string {
	if t == TopologyTriangles {
		return "triangles"
	}
	return "points"
}

// CompareFunction selects the depth test of a draw.
type CompareFunction uint8

// Depth compare functions. CompareNone disables depth testing and writes.
const (
	CompareNone CompareFunction = iota
	CompareLess
	CompareLessEqual
	CompareAlways
)

// String returns the compare function name.
func (c CompareFunction) String() string {
	switch c {
	case CompareLess:
		return "less"
	case CompareLessEqual:
		return "less-equal"
	case CompareAlways:
		return "always"
	default:
		return "none"
	}
}

// Color is a linear RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float32
}

// Black is opaque black.
var Black = Color{A: 1}

// Transparent is the all-zero color.
var Transparent = Color{}

// Viewport is a pixel rectangle of the current render target. Y grows down.
type Viewport struct {
	X, Y, Width, Height int
}

// Empty reports whether the viewport covers no pixels.
func (v Viewport) Empty() bool {
	return v.Width <= 0 || v.Height <= 0
}

// UniformValue is one vec4 uniform slot.
type UniformValue [4]float32

// Vec4 builds a UniformValue from up to four components; missing components
// are zero.
func Vec4(v ...float32) UniformValue {
	var u UniformValue
	copy(u[:], v)
	return u
}

// Quantize converts a normalized channel value to its RGBA8 byte with
// round-to-nearest, clamping to [0, 1] first.
func Quantize(v float32) uint8 {
	switch {
	case v != v || v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}

// TexelToClip returns the clip-space center of texel (x, y) in a
// width x height target. Clip y points up and texel row 0 is the top row.
func TexelToClip(x, y, width, height int) (cx, cy float32) {
	cx = (float32(x)+0.5)/float32(width)*2 - 1
	cy = 1 - (float32(y)+0.5)/float32(height)*2
	return cx, cy
}
