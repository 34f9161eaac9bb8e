package software

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gpupick/gpucore"
)

// Draw executes cmd through the program's CPU kernels.
func (d *Device) Draw(cmd *gpucore.DrawCommand) error {
	if d.lost {
		return ErrDeviceLost
	}
	if err := cmd.Validate(); err != nil {
		return err
	}
	p := cmd.Program
	if p.Vertex == nil || p.Fragment == nil {
		return fmt.Errorf("software: program %q has no kernels: %w", p.Label, gpucore.ErrNilProgram)
	}

	target, depth, err := d.resolveTarget(cmd.Framebuffer)
	if err != nil {
		return err
	}
	if cmd.Clear {
		clearTexture(target, cmd.ClearColor)
		if depth != nil {
			for i := range depth.depth {
				depth.depth[i] = 1
			}
		}
	}

	uniforms := make([]gpucore.UniformValue, len(p.Uniforms))
	for i, name := range p.Uniforms {
		uniforms[i] = cmd.Uniforms[name]
	}
	textures := make([]gpucore.TextureReader, len(p.Textures))
	for i, name := range p.Textures {
		t, ok := d.textures[cmd.Textures[name]]
		if !ok {
			return fmt.Errorf("software: texture %s (%d): %w", name, cmd.Textures[name], gpucore.ErrUnknownResource)
		}
		if t == target {
			return fmt.Errorf("software: texture %s: %w", name, gpucore.ErrFeedbackLoop)
		}
		textures[i] = t
	}
	fetchers := make([]fetcher, len(p.Attributes))
	for i, name := range p.Attributes {
		b := cmd.Attributes[name]
		buf, ok := d.buffers[b.Buffer]
		if !ok {
			return fmt.Errorf("software: attribute %s buffer %d: %w", name, b.Buffer, gpucore.ErrUnknownResource)
		}
		fetchers[i] = fetcher{buf: buf, binding: b, stride: b.ByteStride()}
	}

	r := &rasterizer{
		target:   target,
		depth:    depth,
		compare:  cmd.DepthCompare,
		viewport: clipViewport(cmd.Viewport, target.width, target.height),
		fragment: p.Fragment,
		in:       gpucore.FragmentInput{Uniforms: uniforms, Textures: textures},
	}
	if r.viewport.Empty() {
		d.stats.Draws++
		return nil
	}

	in := gpucore.VertexInput{Uniforms: uniforms, Textures: textures}
	run := func(i int) gpucore.VertexOutput {
		in.VertexIndex = i
		for a := range fetchers {
			fetchers[a].fetch(i, &in.Attributes[a])
		}
		return p.Vertex(&in)
	}

	switch p.Topology {
	case gpucore.TopologyTriangles:
		var tri [3]gpucore.VertexOutput
		for i := 0; i+2 < cmd.Count; i += 3 {
			tri[0], tri[1], tri[2] = run(i), run(i+1), run(i+2)
			r.triangle(&tri)
		}
	default:
		for i := range cmd.Count {
			out := run(i)
			r.point(&out)
		}
	}
	d.stats.Draws++
	return nil
}

func (d *Device) resolveTarget(fb *gpucore.Framebuffer) (*texture, *depthBuffer, error) {
	if fb == nil {
		return d.surface, nil, nil
	}
	t, ok := d.textures[fb.Color]
	if !ok {
		return nil, nil, fmt.Errorf("software: render target %d: %w", fb.Color, gpucore.ErrUnknownResource)
	}
	if fb.Depth == gpucore.InvalidID {
		return t, nil, nil
	}
	db, ok := d.depths[fb.Depth]
	if !ok {
		return nil, nil, fmt.Errorf("software: depth buffer %d: %w", fb.Depth, gpucore.ErrUnknownResource)
	}
	if db.width < t.width || db.height < t.height {
		return nil, nil, fmt.Errorf("software: depth buffer %dx%d smaller than target %dx%d: %w",
			db.width, db.height, t.width, t.height, gpucore.ErrInvalidDimensions)
	}
	return t, db, nil
}

func clearTexture(t *texture, c gpucore.Color) {
	px := [4]byte{gpucore.Quantize(c.R), gpucore.Quantize(c.G), gpucore.Quantize(c.B), gpucore.Quantize(c.A)}
	for i := 0; i < len(t.pix); i += 4 {
		copy(t.pix[i:i+4], px[:])
	}
}

func clipViewport(v gpucore.Viewport, width, height int) gpucore.Viewport {
	if v.Empty() {
		return gpucore.Viewport{Width: width, Height: height}
	}
	x0, y0 := max(v.X, 0), max(v.Y, 0)
	x1, y1 := min(v.X+v.Width, width), min(v.Y+v.Height, height)
	if x1 <= x0 || y1 <= y0 {
		return gpucore.Viewport{}
	}
	return gpucore.Viewport{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// fetcher reads one attribute from a buffer. Reads past the end of the
// buffer return zero components.
type fetcher struct {
	buf     []byte
	binding gpucore.AttributeBinding
	stride  int
}

func (f *fetcher) fetch(vertex int, dst *[4]float32) {
	*dst = [4]float32{0, 0, 0, 1}
	if f.binding.Divisor > 0 {
		vertex = 0
	}
	size := f.binding.Type.Size()
	base := f.binding.Offset + vertex*f.stride
	for c := range f.binding.Size {
		off := base + c*size
		if off+size > len(f.buf) {
			dst[c] = 0
			continue
		}
		dst[c] = f.decode(f.buf[off : off+size])
	}
}

func (f *fetcher) decode(b []byte) float32 {
	switch f.binding.Type {
	case gpucore.ElementFloat32:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case gpucore.ElementUint32:
		return float32(binary.LittleEndian.Uint32(b))
	case gpucore.ElementInt32:
		return float32(int32(binary.LittleEndian.Uint32(b)))
	case gpucore.ElementUint16:
		v := float32(binary.LittleEndian.Uint16(b))
		if f.binding.Normalized {
			return v / 65535
		}
		return v
	case gpucore.ElementUint8:
		v := float32(b[0])
		if f.binding.Normalized {
			return v / 255
		}
		return v
	default:
		return 0
	}
}

// rasterizer writes fragments into one target.
type rasterizer struct {
	target   *texture
	depth    *depthBuffer
	compare  gpucore.CompareFunction
	viewport gpucore.Viewport
	fragment gpucore.FragmentKernel
	in       gpucore.FragmentInput
}

type screenVertex struct {
	x, y, z float32
}

// project maps a clip-space position to target pixels. ok is false when the
// vertex is behind the eye or outside the depth range.
func (r *rasterizer) project(pos [4]float32) (screenVertex, bool) {
	w := pos[3]
	if w <= 0 {
		return screenVertex{}, false
	}
	x, y, z := pos[0]/w, pos[1]/w, pos[2]/w
	if z < 0 || z > 1 {
		return screenVertex{}, false
	}
	vp := r.viewport
	return screenVertex{
		x: float32(vp.X) + (x+1)*0.5*float32(vp.Width),
		y: float32(vp.Y) + (1-y)*0.5*float32(vp.Height),
		z: z,
	}, true
}

func (r *rasterizer) inside(px, py int) bool {
	vp := r.viewport
	return px >= vp.X && py >= vp.Y && px < vp.X+vp.Width && py < vp.Y+vp.Height
}

func (r *rasterizer) point(out *gpucore.VertexOutput) {
	v, ok := r.project(out.Position)
	if !ok {
		return
	}
	px, py := int(math.Floor(float64(v.x))), int(math.Floor(float64(v.y)))
	if !r.inside(px, py) {
		return
	}
	r.shade(px, py, v.z, out.Color)
}

func (r *rasterizer) triangle(tri *[3]gpucore.VertexOutput) {
	var v [3]screenVertex
	for i := range tri {
		sv, ok := r.project(tri[i].Position)
		if !ok {
			return
		}
		v[i] = sv
	}
	area := edge(v[0], v[1], v[2].x, v[2].y)
	if area == 0 {
		return
	}
	if area < 0 {
		v[1], v[2] = v[2], v[1]
		area = -area
	}

	vp := r.viewport
	minX := max(int(math.Floor(float64(min(v[0].x, v[1].x, v[2].x)))), vp.X)
	maxX := min(int(math.Ceil(float64(max(v[0].x, v[1].x, v[2].x)))), vp.X+vp.Width-1)
	minY := max(int(math.Floor(float64(min(v[0].y, v[1].y, v[2].y)))), vp.Y)
	maxY := min(int(math.Ceil(float64(max(v[0].y, v[1].y, v[2].y)))), vp.Y+vp.Height-1)

	for py := minY; py <= maxY; py++ {
		cy := float32(py) + 0.5
		for px := minX; px <= maxX; px++ {
			cx := float32(px) + 0.5
			w0 := edge(v[1], v[2], cx, cy)
			w1 := edge(v[2], v[0], cx, cy)
			w2 := edge(v[0], v[1], cx, cy)
			if !covers(w0, v[1], v[2]) || !covers(w1, v[2], v[0]) || !covers(w2, v[0], v[1]) {
				continue
			}
			z := (w0*v[0].z + w1*v[1].z + w2*v[2].z) / area
			r.shade(px, py, z, tri[0].Color)
		}
	}
}

// edge is twice the signed area of (a, b, (x, y)).
func edge(a, b screenVertex, x, y float32) float32 {
	return (b.x-a.x)*(y-a.y) - (b.y-a.y)*(x-a.x)
}

// covers applies the fill rule: samples exactly on an edge belong to only
// one of the two triangles sharing it.
func covers(w float32, a, b screenVertex) bool {
	if w != 0 {
		return w > 0
	}
	return b.y < a.y || (b.y == a.y && b.x < a.x)
}

func (r *rasterizer) shade(px, py int, z float32, color [4]float32) {
	i := py*r.target.width + px
	if r.depth != nil && r.compare != gpucore.CompareNone {
		di := py*r.depth.width + px
		if !depthPasses(r.compare, z, r.depth.depth[di]) {
			return
		}
		r.depth.depth[di] = z
	}
	r.in.FragCoord = [2]float32{float32(px) + 0.5, float32(py) + 0.5}
	r.in.Color = color
	c := r.fragment(&r.in)
	p := r.target.pix[i*4 : i*4+4 : i*4+4]
	p[0], p[1], p[2], p[3] = gpucore.Quantize(c[0]), gpucore.Quantize(c[1]), gpucore.Quantize(c[2]), gpucore.Quantize(c[3])
}

func depthPasses(c gpucore.CompareFunction, z, stored float32) bool {
	switch c {
	case gpucore.CompareLess:
		return z < stored
	case gpucore.CompareLessEqual:
		return z <= stored
	default:
		return true
	}
}
