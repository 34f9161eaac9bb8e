// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package nearest

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gpupick/backend/software"
	"github.com/gogpu/gpupick/gpucore"
	"github.com/gogpu/gpupick/stream"
)

// pointSet binds xs, ys and dense identities to a reducer through
// streaming attributes.
type pointSet struct {
	xs, ys      []float32
	ids         []uint32
	cross, main *stream.Attribute
	index       *stream.Attribute
}

func newPointSet(xs, ys []float32) *pointSet {
	ps := &pointSet{xs: xs, ys: ys, ids: make([]uint32, len(xs))}
	for i := range ps.ids {
		ps.ids[i] = uint32(i)
	}
	capacity := len(xs) * 4
	ps.cross = stream.New(stream.Config{MaxByteLength: capacity})
	ps.main = stream.New(stream.Config{MaxByteLength: capacity})
	ps.index = stream.New(stream.Config{MaxByteLength: capacity, Type: gpucore.ElementUint32})
	ps.cross.SetData([][]byte{stream.Float32s(xs)})
	ps.main.SetData([][]byte{stream.Float32s(ys)})
	ps.index.SetData([][]byte{stream.Uint32s(ps.ids)})
	return ps
}

func (ps *pointSet) attach(r Reducer) {
	r.SetCrossValueAttribute(ps.cross)
	r.SetMainValueAttribute(ps.main)
	r.SetIndexValueAttribute(ps.index)
}

func (ps *pointSet) clear() {
	ps.cross.Clear()
	ps.main.Clear()
	ps.index.Clear()
}

func (ps *pointSet) distance(i uint32, at mgl32.Vec2) float64 {
	return float64(mgl32.Vec2{ps.xs[i], ps.ys[i]}.Sub(at).Len())
}

func newDevice(t *testing.T) *software.Device {
	t.Helper()
	d, err := software.New(16, 16)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newReducer(t *testing.T, s Strategy) Reducer {
	t.Helper()
	r, err := New(Options{Strategy: s})
	if err != nil {
		t.Fatalf("New(%v) = %v", s, err)
	}
	return r
}

var strategies = []Strategy{DepthTest, TreeReduction}

// checkNearest verifies res against the exact answer within the 8-bit
// distance quantization.
func checkNearest(t *testing.T, ps *pointSet, res Result, at mgl32.Vec2, cutoff float32) {
	t.Helper()
	const eps = 1e-4
	quantum := float64(cutoff) / 255
	want := BruteForce(ps.xs, ps.ys, at, cutoff)
	if res.Hit != want.Hit {
		if want.Distance >= float64(cutoff)-quantum {
			// Within one quantum of the cutoff the 8-bit encoding cannot
			// tell a hit from a miss.
			return
		}
		t.Fatalf("Hit = %v, want %v (res %+v, exact %+v)", res.Hit, want.Hit, res, want)
	}
	if !res.Hit {
		return
	}
	if int(res.Index) >= len(ps.xs) {
		t.Fatalf("Index = %d out of range", res.Index)
	}
	got := ps.distance(res.Index, at)
	if got > want.Distance+quantum+eps {
		t.Errorf("point %d at distance %v, nearest is %d at %v", res.Index, got, want.Index, want.Distance)
	}
	if math.Abs(res.Distance-got) > quantum/2+eps {
		t.Errorf("Distance = %v, point %d is at %v (quantum %v)", res.Distance, res.Index, got, quantum)
	}
}

func TestIndexRoundTrip(t *testing.T) {
	for _, ix := range []uint32{0, 1, 255, 256, 65535, 65536, 0x123456, MaxIndex} {
		e := EncodeIndex(ix)
		if got := DecodeIndex([]byte{e[0], e[1], e[2], 255}); got != ix {
			t.Errorf("DecodeIndex(EncodeIndex(%#x)) = %#x", ix, got)
		}
		r, g, b := indexColor(ix)
		px := []byte{gpucore.Quantize(r), gpucore.Quantize(g), gpucore.Quantize(b)}
		if got := DecodeIndex(px); got != ix {
			t.Errorf("identity %#x through RGBA8 = %#x", ix, got)
		}
	}
	if e := EncodeIndex(0x0A0B0C); e != [3]uint8{0x0A, 0x0B, 0x0C} {
		t.Errorf("EncodeIndex(0x0A0B0C) = %v, want R high byte", e)
	}
}

func TestDistanceDecoding(t *testing.T) {
	if got := DecodeDistance(255, 20); got != 20 {
		t.Errorf("DecodeDistance(255, 20) = %v, want 20", got)
	}
	if got := DecodeDistance(0, 20); got != 0 {
		t.Errorf("DecodeDistance(0, 20) = %v, want 0", got)
	}
	if got := DecodeCloseness(255, 3); got != 0 {
		t.Errorf("DecodeCloseness(255, 3) = %v, want 0", got)
	}
	if got := DecodeCloseness(0, 3); got != 3 {
		t.Errorf("DecodeCloseness(0, 3) = %v, want 3", got)
	}
	for _, d := range []float32{0, 0.3, 1.7, 2.99} {
		a := gpucore.Quantize(1 - d/3)
		if got := DecodeCloseness(a, 3); math.Abs(got-float64(d)) > 3.0/510+1e-6 {
			t.Errorf("closeness round trip of %v = %v", d, got)
		}
	}
}

func TestArgMin(t *testing.T) {
	xs := []float32{10, 0.25, 7, -9, 4}
	ys := []float32{10, 0.5, -8, 3, 9}
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			d := newDevice(t)
			ps := newPointSet(xs, ys)
			r := newReducer(t, s)
			ps.attach(r)

			res, err := r.Query(d, len(xs), mgl32.Vec2{0, 0})
			if err != nil {
				t.Fatalf("Query() = %v", err)
			}
			if !res.Hit || res.Index != 1 {
				t.Errorf("Query() = %+v, want index 1", res)
			}
			checkNearest(t, ps, res, mgl32.Vec2{0, 0}, r.Cutoff())
		})
	}
}

func TestExactHit(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			d := newDevice(t)
			ps := newPointSet([]float32{5, 1, 2}, []float32{5, 1, 2})
			r := newReducer(t, s)
			ps.attach(r)
			res, err := r.Query(d, 3, mgl32.Vec2{2, 2})
			if err != nil {
				t.Fatal(err)
			}
			if res.Index != 2 || res.Distance != 0 || !res.Found(0.5) {
				t.Errorf("Query() = %+v, want index 2 at distance 0", res)
			}
		})
	}
}

func TestNothingInRange(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			d := newDevice(t)
			ps := newPointSet([]float32{100, -100}, []float32{100, -100})
			r := newReducer(t, s)
			ps.attach(r)
			res, err := r.Query(d, 2, mgl32.Vec2{0, 0})
			if err != nil {
				t.Fatal(err)
			}
			if res.Hit || res.Distance != float64(r.Cutoff()) || res.Found(1e9) {
				t.Errorf("Query() = %+v, want miss at cutoff %v", res, r.Cutoff())
			}
		})
	}
}

func TestGridCenter(t *testing.T) {
	const cols, rows = 40, 25
	var xs, ys []float32
	for y := range rows {
		for x := range cols {
			xs = append(xs, float32(x))
			ys = append(ys, float32(y))
		}
	}
	at := mgl32.Vec2{19.5, 12}
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			d := newDevice(t)
			ps := newPointSet(xs, ys)
			r := newReducer(t, s)
			ps.attach(r)
			res, err := r.Query(d, len(xs), at)
			if err != nil {
				t.Fatalf("Query() = %v", err)
			}
			checkNearest(t, ps, res, at, r.Cutoff())
			if got := ps.distance(res.Index, at); math.Abs(got-0.5) > 1e-6 {
				t.Errorf("picked point %d at distance %v, want one of the two at 0.5", res.Index, got)
			}
		})
	}
}

func TestRandomPoints(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	const n = 3000
	xs, ys := make([]float32, n), make([]float32, n)
	for i := range xs {
		xs[i] = rng.Float32() * 50
		ys[i] = rng.Float32() * 50
	}
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			d := newDevice(t)
			ps := newPointSet(xs, ys)
			r := newReducer(t, s)
			ps.attach(r)
			for range 20 {
				at := mgl32.Vec2{rng.Float32()*60 - 5, rng.Float32()*60 - 5}
				res, err := r.Query(d, n, at)
				if err != nil {
					t.Fatalf("Query(%v) = %v", at, err)
				}
				checkNearest(t, ps, res, at, r.Cutoff())
			}
		})
	}
}

func TestPrefixCount(t *testing.T) {
	xs := []float32{5, 0}
	ys := []float32{5, 0}
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			d := newDevice(t)
			ps := newPointSet(xs, ys)
			r := newReducer(t, s)
			ps.attach(r)
			res, err := r.Query(d, 1, mgl32.Vec2{0, 0})
			if err != nil {
				t.Fatal(err)
			}
			if res.Hit && res.Index != 0 {
				t.Errorf("Query(count=1) = %+v, considered a point past count", res)
			}
		})
	}
}

func TestTextureSide(t *testing.T) {
	r, err := NewTreeReduction(Options{MaxTextureSide: 64})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct{ count, want int }{
		{0, 1}, {1, 1}, {2, 2}, {4, 2}, {5, 4}, {16, 4}, {17, 8}, {1000, 32}, {4096, 64},
	}
	for _, tt := range tests {
		got, err := r.TextureSide(tt.count)
		if err != nil || got != tt.want {
			t.Errorf("TextureSide(%d) = %d, %v, want %d", tt.count, got, err, tt.want)
		}
	}
	if _, err := r.TextureSide(4097); !errors.Is(err, ErrTooManyPoints) {
		t.Errorf("TextureSide(4097) error = %v, want ErrTooManyPoints", err)
	}
}

func TestReducePassCount(t *testing.T) {
	d := newDevice(t)
	xs := make([]float32, 1000)
	ps := newPointSet(xs, xs)
	r, err := NewTreeReduction(Options{})
	if err != nil {
		t.Fatal(err)
	}
	ps.attach(r)
	if _, err := r.Query(d, 1000, mgl32.Vec2{}); err != nil {
		t.Fatal(err)
	}
	// 1000 -> 250 -> 63 -> 16 -> 4 -> 1, plus the map pass.
	if got := r.Passes(); got != 6 {
		t.Errorf("Passes() = %d, want 6", got)
	}
}

type cells [][4]float32

func TestReduceStepKeepsMaxAlpha(t *testing.T) {
	base := [][4]float32{{0.1, 0, 0, 0.2}, {0.2, 0, 0, 0.9}, {0.3, 0, 0, 0.5}, {0.4, 0, 0, 0.1}}
	perms := [][4]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 0, 3, 2}, {2, 3, 0, 1}}
	for _, p := range perms {
		row := make(cells, 4)
		for i, j := range p {
			row[i] = base[j]
		}
		in := &gpucore.VertexInput{
			Uniforms: []gpucore.UniformValue{gpucore.Vec4(3, 2)},
			Textures: []gpucore.TextureReader{square(row)},
		}
		out := treeReduceVertex(in)
		if out.Color != base[1] {
			t.Errorf("perm %v: reduced to %v, want %v", p, out.Color, base[1])
		}
	}

	tie := cells{{0.1, 0, 0, 0.5}, {0.2, 0, 0, 0.5}, {0, 0, 0, 0}, {0, 0, 0, 0}}
	in := &gpucore.VertexInput{
		Uniforms: []gpucore.UniformValue{gpucore.Vec4(3, 2)},
		Textures: []gpucore.TextureReader{square(tie)},
	}
	if out := treeReduceVertex(in); out.Color != tie[0] {
		t.Errorf("tie reduced to %v, want first compared %v", out.Color, tie[0])
	}
}

// square lays four cells out as a 2x2 texture in row-major order.
type squareCells cells

func square(c cells) squareCells { return squareCells(c) }

func (s squareCells) Size() (int, int)         { return 2, 2 }
func (s squareCells) Load(x, y int) [4]float32 { return s[y*2+x] }

func TestQueryErrors(t *testing.T) {
	d := newDevice(t)
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			r := newReducer(t, s)
			if _, err := r.Query(d, -1, mgl32.Vec2{}); !errors.Is(err, ErrInvalidCount) {
				t.Errorf("Query(-1) error = %v, want ErrInvalidCount", err)
			}
			if _, err := r.Query(d, MaxIndex+2, mgl32.Vec2{}); !errors.Is(err, ErrTooManyPoints) {
				t.Errorf("Query(2^24+1) error = %v, want ErrTooManyPoints", err)
			}
			if _, err := r.Query(d, 3, mgl32.Vec2{}); !errors.Is(err, gpucore.ErrUnboundInput) {
				t.Errorf("Query() without attributes error = %v, want ErrUnboundInput", err)
			}
			res, err := r.Query(d, 0, mgl32.Vec2{})
			if err != nil || res.Hit {
				t.Errorf("Query(0) = %+v, %v, want miss", res, err)
			}
		})
	}
}

func TestDetachAttribute(t *testing.T) {
	d := newDevice(t)
	ps := newPointSet([]float32{0, 1, 2}, []float32{0, 0, 0})
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			r := newReducer(t, s)
			ps.attach(r)
			if _, err := r.Query(d, 3, mgl32.Vec2{1, 0}); err != nil {
				t.Fatalf("Query() = %v", err)
			}
			r.SetCrossValueAttribute(nil)
			_, err := r.Query(d, 3, mgl32.Vec2{1, 0})
			var ie *gpucore.InputError
			if !errors.Is(err, gpucore.ErrUnboundInput) || !errors.As(err, &ie) || ie.Name != AttrCrossValue {
				t.Errorf("Query() after detaching cross error = %v, want ErrUnboundInput for %s", err, AttrCrossValue)
			}
		})
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Options{Strategy: Strategy(9)}); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("New(unknown) error = %v, want ErrUnknownStrategy", err)
	}
	if _, err := New(Options{Cutoff: -1}); !errors.Is(err, ErrInvalidCutoff) {
		t.Errorf("New(cutoff -1) error = %v, want ErrInvalidCutoff", err)
	}
	if _, err := New(Options{Cutoff: float32(math.NaN())}); !errors.Is(err, ErrInvalidCutoff) {
		t.Errorf("New(cutoff NaN) error = %v, want ErrInvalidCutoff", err)
	}
	r := newReducer(t, DepthTest)
	if r.Cutoff() != DefaultDepthTestCutoff {
		t.Errorf("depth-test Cutoff() = %v, want %v", r.Cutoff(), DefaultDepthTestCutoff)
	}
	r = newReducer(t, TreeReduction)
	if r.Cutoff() != DefaultTreeReductionCutoff {
		t.Errorf("tree Cutoff() = %v, want %v", r.Cutoff(), DefaultTreeReductionCutoff)
	}
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{
		"depth": DepthTest, "depth-test": DepthTest, "tree": TreeReduction, "tree-reduction": TreeReduction,
	} {
		if got, err := ParseStrategy(in); err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseStrategy("kd"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("ParseStrategy(kd) error = %v, want ErrUnknownStrategy", err)
	}
}

func TestVisualizeDrawsToSurface(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			d := newDevice(t)
			ps := newPointSet([]float32{1}, []float32{1})
			r := newReducer(t, s)
			ps.attach(r)
			if err := r.Visualize(d, 1, mgl32.Vec2{1, 1}); err != nil {
				t.Fatalf("Visualize() = %v", err)
			}
			img := d.Image()
			lit := 0
			for i := 3; i < len(img.Pix); i += 4 {
				if img.Pix[i] != 0 {
					lit++
				}
			}
			if lit == 0 && s == TreeReduction {
				t.Error("Visualize() left the surface empty")
			}
			if _, err := r.Query(d, 1, mgl32.Vec2{1, 1}); err != nil {
				t.Errorf("Query after Visualize = %v", err)
			}
		})
	}
}

func TestRecoverAfterDeviceLoss(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			d := newDevice(t)
			ps := newPointSet([]float32{0, 1}, []float32{0, 1})
			r := newReducer(t, s)
			ps.attach(r)
			if _, err := r.Query(d, 2, mgl32.Vec2{1, 1}); err != nil {
				t.Fatal(err)
			}
			d.Lose()
			if _, err := r.Query(d, 2, mgl32.Vec2{1, 1}); err == nil {
				t.Fatal("Query on a lost device succeeded")
			}
			d.Restore()
			r.Clear()
			ps.clear()
			res, err := r.Query(d, 2, mgl32.Vec2{1, 1})
			if err != nil {
				t.Fatalf("Query after Clear = %v", err)
			}
			if res.Index != 1 {
				t.Errorf("Query after Clear = %+v, want index 1", res)
			}
		})
	}
}

func TestDestroyReleases(t *testing.T) {
	d := newDevice(t)
	ps := newPointSet([]float32{0}, []float32{0})
	r := newReducer(t, TreeReduction)
	ps.attach(r)
	if _, err := r.Query(d, 1, mgl32.Vec2{}); err != nil {
		t.Fatal(err)
	}
	r.Destroy(d)
	if _, textures, depths := d.Live(); textures+depths != 0 {
		t.Errorf("%d textures and %d depth buffers live after Destroy", textures, depths)
	}
}

func TestBruteForce(t *testing.T) {
	xs := []float32{3, 1, 1}
	ys := []float32{0, 0, 0}
	res := BruteForce(xs, ys, mgl32.Vec2{0, 0}, 10)
	if !res.Hit || res.Index != 1 || res.Distance != 1 {
		t.Errorf("BruteForce() = %+v, want first of the tied points at distance 1", res)
	}
	if res := BruteForce(xs, ys, mgl32.Vec2{100, 0}, 10); res.Hit || res.Distance != 10 {
		t.Errorf("BruteForce() out of range = %+v, want miss at cutoff", res)
	}
}
