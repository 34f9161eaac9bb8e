package software

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/gpupick/backend"
	"github.com/gogpu/gpupick/gpucore"
)

func newDevice(t *testing.T, w, h int) *Device {
	t.Helper()
	d, err := New(w, h)
	if err != nil {
		t.Fatalf("New(%d, %d) = %v", w, h, err)
	}
	return d
}

func float32Bytes(v ...float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

// pointProgram draws each vertex at a clip position with depth and the
// color uniform.
var pointProgram = &gpucore.ProgramDesc{
	Label:      "test-points",
	Topology:   gpucore.TopologyPoints,
	Attributes: []string{"aPosition"},
	Uniforms:   []string{"uColor"},
	Vertex: func(in *gpucore.VertexInput) gpucore.VertexOutput {
		p := in.Attributes[0]
		return gpucore.VertexOutput{
			Position: [4]float32{p[0], p[1], p[2], 1},
			Color:    in.Uniforms[0],
		}
	},
	Fragment: gpucore.PassColor,
}

func drawPoints(t *testing.T, d *Device, fb *gpucore.Framebuffer, cmp gpucore.CompareFunction, color gpucore.UniformValue, xyz ...float32) {
	t.Helper()
	buf, err := d.CreateBuffer(len(xyz) * 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.WriteBuffer(buf, 0, float32Bytes(xyz...)); err != nil {
		t.Fatal(err)
	}
	cmd := gpucore.NewDrawCommand(pointProgram, len(xyz)/3)
	cmd.Framebuffer = fb
	cmd.DepthCompare = cmp
	cmd.Attributes["aPosition"] = gpucore.AttributeBinding{Buffer: buf, Type: gpucore.ElementFloat32, Size: 3}
	cmd.Uniforms["uColor"] = color
	if err := d.Draw(cmd); err != nil {
		t.Fatalf("Draw() = %v", err)
	}
}

func TestNewInvalidSize(t *testing.T) {
	if _, err := New(0, 4); !errors.Is(err, gpucore.ErrInvalidDimensions) {
		t.Errorf("New(0, 4) error = %v, want ErrInvalidDimensions", err)
	}
}

func TestWriteBufferBounds(t *testing.T) {
	d := newDevice(t, 4, 4)
	id, err := d.CreateBuffer(8)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.WriteBuffer(id, 4, make([]byte, 8)); !errors.Is(err, gpucore.ErrOutOfBounds) {
		t.Errorf("WriteBuffer past end error = %v, want ErrOutOfBounds", err)
	}
	if err := d.WriteBuffer(id+100, 0, nil); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("WriteBuffer unknown id error = %v, want ErrUnknownResource", err)
	}
	if err := d.WriteBuffer(id, 4, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteBuffer() = %v", err)
	}
	writes := d.Writes()
	if len(writes) != 1 || writes[0] != (Write{Buffer: id, Offset: 4, Length: 4}) {
		t.Errorf("Writes() = %+v, want one write at offset 4", writes)
	}
	d.ResetWrites()
	if len(d.Writes()) != 0 {
		t.Error("ResetWrites() did not clear the log")
	}
}

func TestPointLandsOnTexel(t *testing.T) {
	const w, h = 8, 4
	d := newDevice(t, w, h)
	for _, tc := range []struct{ x, y int }{{0, 0}, {7, 0}, {3, 2}, {7, 3}} {
		cx, cy := gpucore.TexelToClip(tc.x, tc.y, w, h)
		drawPoints(t, d, nil, gpucore.CompareNone, gpucore.Vec4(1, 0, 0, 1), cx, cy, 0)

		px := make([]byte, 4)
		if err := d.ReadPixels(tc.x, tc.y, 1, 1, px); err != nil {
			t.Fatal(err)
		}
		if px[0] != 255 || px[3] != 255 {
			t.Errorf("texel (%d,%d) = %v, want red", tc.x, tc.y, px)
		}
	}
}

func TestDepthLessKeepsNearest(t *testing.T) {
	d := newDevice(t, 1, 1)
	tex, _ := d.CreateTexture(1, 1)
	depth, _ := d.CreateDepthBuffer(1, 1)
	fb := &gpucore.Framebuffer{Color: tex, Depth: depth}

	drawPoints(t, d, fb, gpucore.CompareLess, gpucore.Vec4(0.2, 0, 0, 1), 0, 0, 0.5)
	drawPoints(t, d, fb, gpucore.CompareLess, gpucore.Vec4(0.4, 0, 0, 1), 0, 0, 0.7)
	drawPoints(t, d, fb, gpucore.CompareLess, gpucore.Vec4(0.6, 0, 0, 1), 0, 0, 0.5)

	pix, _, _, err := d.TexturePixels(tex)
	if err != nil {
		t.Fatal(err)
	}
	if want := gpucore.Quantize(0.2); pix[0] != want {
		t.Errorf("red = %d, want %d (first fragment at the minimum depth)", pix[0], want)
	}
}

func TestPointsOutsideDepthRangeClipped(t *testing.T) {
	d := newDevice(t, 1, 1)
	drawPoints(t, d, nil, gpucore.CompareNone, gpucore.Vec4(1, 1, 1, 1), 0, 0, 1.5, 0, 0, -0.1)
	px := make([]byte, 4)
	if err := d.ReadPixels(0, 0, 1, 1, px); err != nil {
		t.Fatal(err)
	}
	if px[0] != 0 || px[3] != 0 {
		t.Errorf("pixel = %v, want untouched", px)
	}
}

func TestQuadCoversEveryPixelOnce(t *testing.T) {
	const w, h = 7, 5
	d := newDevice(t, w, h)
	quad := float32Bytes(-1, -1, 1, -1, -1, 1, -1, 1, 1, -1, 1, 1)
	buf, _ := d.CreateBuffer(len(quad))
	if err := d.WriteBuffer(buf, 0, quad); err != nil {
		t.Fatal(err)
	}
	hits := make(map[[2]float32]int)
	prog := &gpucore.ProgramDesc{
		Label:      "test-quad",
		Topology:   gpucore.TopologyTriangles,
		Attributes: []string{"aVertex"},
		Vertex: func(in *gpucore.VertexInput) gpucore.VertexOutput {
			v := in.Attributes[0]
			return gpucore.VertexOutput{Position: [4]float32{v[0], v[1], 0, 1}}
		},
		Fragment: func(in *gpucore.FragmentInput) [4]float32 {
			hits[in.FragCoord]++
			return [4]float32{1, 1, 1, 1}
		},
	}
	cmd := gpucore.NewDrawCommand(prog, 6)
	cmd.Attributes["aVertex"] = gpucore.AttributeBinding{Buffer: buf, Type: gpucore.ElementFloat32, Size: 2}
	if err := d.Draw(cmd); err != nil {
		t.Fatalf("Draw() = %v", err)
	}
	if len(hits) != w*h {
		t.Fatalf("covered %d pixels, want %d", len(hits), w*h)
	}
	for c, n := range hits {
		if n != 1 {
			t.Errorf("pixel %v shaded %d times, want 1", c, n)
		}
	}
}

func TestFeedbackLoopRejected(t *testing.T) {
	d := newDevice(t, 2, 2)
	tex, _ := d.CreateTexture(2, 2)
	prog := &gpucore.ProgramDesc{
		Label:    "test-sample",
		Textures: []string{"uTexture"},
		Vertex:   func(*gpucore.VertexInput) gpucore.VertexOutput { return gpucore.VertexOutput{} },
		Fragment: gpucore.PassColor,
	}
	cmd := gpucore.NewDrawCommand(prog, 1)
	cmd.Framebuffer = &gpucore.Framebuffer{Color: tex}
	cmd.Textures["uTexture"] = tex
	if err := d.Draw(cmd); !errors.Is(err, gpucore.ErrFeedbackLoop) {
		t.Errorf("Draw() error = %v, want ErrFeedbackLoop", err)
	}
}

func TestUnboundInputRejected(t *testing.T) {
	d := newDevice(t, 2, 2)
	cmd := gpucore.NewDrawCommand(pointProgram, 1)
	if err := d.Draw(cmd); !errors.Is(err, gpucore.ErrUnboundInput) {
		t.Errorf("Draw() error = %v, want ErrUnboundInput", err)
	}
}

func TestReadPixelsBounds(t *testing.T) {
	d := newDevice(t, 4, 2)
	if err := d.ReadPixels(0, 2, 1, 1, make([]byte, 4)); !errors.Is(err, gpucore.ErrOutOfBounds) {
		t.Errorf("ReadPixels row 2 error = %v, want ErrOutOfBounds", err)
	}
	if err := d.ReadPixels(0, 0, 4, 1, make([]byte, 8)); !errors.Is(err, gpucore.ErrOutOfBounds) {
		t.Errorf("ReadPixels short dst error = %v, want ErrOutOfBounds", err)
	}
}

func TestLoseAndRestore(t *testing.T) {
	d := newDevice(t, 2, 2)
	buf, _ := d.CreateBuffer(4)
	d.Lose()
	if _, err := d.CreateBuffer(4); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("CreateBuffer after Lose error = %v, want ErrDeviceLost", err)
	}
	d.Restore()
	if err := d.WriteBuffer(buf, 0, []byte{1}); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("WriteBuffer with stale id error = %v, want ErrUnknownResource", err)
	}
	if b, tx, db := d.Live(); b+tx+db != 0 {
		t.Errorf("Live() = %d, %d, %d after Lose, want none", b, tx, db)
	}
}

func TestFetchNormalizedAndPadding(t *testing.T) {
	f := fetcher{
		buf:     []byte{255, 0, 0, 0, 128, 0, 0, 0},
		binding: gpucore.AttributeBinding{Buffer: 1, Type: gpucore.ElementUint8, Size: 2, Normalized: true, Stride: 4},
		stride:  4,
	}
	var got [4]float32
	f.fetch(0, &got)
	if got != [4]float32{1, 0, 0, 1} {
		t.Errorf("fetch(0) = %v, want [1 0 0 1]", got)
	}
	f.fetch(1, &got)
	if got[0] != 128.0/255 {
		t.Errorf("fetch(1)[0] = %v, want %v", got[0], 128.0/255)
	}
	f.fetch(5, &got)
	if got != [4]float32{0, 0, 0, 1} {
		t.Errorf("fetch past end = %v, want zeros", got)
	}
}

func TestRegisteredWithBackend(t *testing.T) {
	dev, err := backend.Open(backend.NameSoftware, backend.Config{SurfaceWidth: 3, SurfaceHeight: 2, PixelRatio: 1.5})
	if err != nil {
		t.Fatalf("backend.Open(software) = %v", err)
	}
	if w, h := dev.SurfaceSize(); w != 3 || h != 2 {
		t.Errorf("SurfaceSize() = %dx%d, want 3x2", w, h)
	}
	if dev.PixelRatio() != 1.5 {
		t.Errorf("PixelRatio() = %v, want 1.5", dev.PixelRatio())
	}
}
