package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/gogpu/gpupick/columnar"
	"github.com/gogpu/gpupick/series"
	"github.com/gogpu/gpupick/stream"
)

// source yields point batches in row order.
type source interface {
	Next() bool
	Batch() columnar.Batch
	Err() error
	Close()
}

// batchSource serves batches that are already in memory.
type batchSource struct {
	batches []columnar.Batch
	i       int
}

func (s *batchSource) Next() bool {
	if s.i >= len(s.batches) {
		return false
	}
	s.i++
	return true
}

func (s *batchSource) Batch() columnar.Batch { return s.batches[s.i-1] }
func (s *batchSource) Err() error            { return nil }
func (s *batchSource) Close()                {}

// arrowSource streams record batches from an Arrow IPC file. Identities
// are assigned in row order.
type arrowSource struct {
	*columnar.Stream
	f *os.File
}

func (s *arrowSource) Close() {
	s.Release()
	_ = s.f.Close()
}

func openSource(cfg *Config) (source, error) {
	switch dataFormat(cfg.Data) {
	case "arrow":
		f, err := os.Open(cfg.Data)
		if err != nil {
			return nil, err
		}
		st, err := columnar.NewStream(f, columnar.Names{X: columnar.DefaultNames.X, Y: columnar.DefaultNames.Y}, nil)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return &arrowSource{Stream: st, f: f}, nil
	case "parquet":
		f, err := os.Open(cfg.Data)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		cols, err := columnar.ReadParquet(f, info.Size(), cfg.BatchRows)
		if err != nil {
			return nil, err
		}
		return &batchSource{batches: splitColumns(cols)}, nil
	}
	return &batchSource{batches: generate(cfg.Points, cfg.BatchRows, cfg.Seed)}, nil
}

func splitColumns(cols *columnar.Columns) []columnar.Batch {
	batches := make([]columnar.Batch, len(cols.X))
	for i := range batches {
		batches[i] = columnar.Batch{X: cols.X[i], Y: cols.Y[i], Index: cols.Index[i], Rows: len(cols.X[i]) / 4}
	}
	return batches
}

// generate returns n points along a noisy sine wave in batches of at most
// batchRows rows.
func generate(n, batchRows int, seed uint64) []columnar.Batch {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var batches []columnar.Batch
	for start := 0; start < n; start += batchRows {
		rows := min(batchRows, n-start)
		xs := make([]float32, rows)
		ys := make([]float32, rows)
		ids := make([]uint32, rows)
		for i := range rows {
			row := start + i
			x := float64(row) / float64(n) * 1000
			xs[i] = float32(x)
			ys[i] = float32(100*math.Sin(x/50) + rng.NormFloat64()*5)
			ids[i] = uint32(row)
		}
		batches = append(batches, columnar.Batch{
			X:     stream.Float32s(xs),
			Y:     stream.Float32s(ys),
			Index: stream.Uint32s(ids),
			Rows:  rows,
		})
	}
	return batches
}

// writeDataset writes generated points to path in the format its extension
// names.
func writeDataset(path string, cfg *Config) error {
	batches := generate(cfg.Points, cfg.BatchRows, cfg.Seed)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	switch dataFormat(path) {
	case "arrow":
		err = writeArrow(f, batches)
	case "parquet":
		err = writeParquet(f, batches)
	default:
		err = ErrInvalidFormat
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeArrow(f *os.File, batches []columnar.Batch) error {
	recs := make([]arrow.Record, 0, len(batches))
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()
	for _, b := range batches {
		rec, err := columnar.NewRecord(nil, decodeFloats(b.X), decodeFloats(b.Y), decodeUints(b.Index), 0)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	return columnar.WriteIPC(f, nil, recs...)
}

func writeParquet(f *os.File, batches []columnar.Batch) error {
	var rows []columnar.Row
	for _, b := range batches {
		xs, ys, ids := decodeFloats(b.X), decodeFloats(b.Y), decodeUints(b.Index)
		for i := range xs {
			rows = append(rows, columnar.Row{X: xs[i], Y: ys[i], Index: ids[i]})
		}
	}
	return columnar.WriteParquet(f, rows)
}

// pointSet keeps a CPU copy of everything loaded, for domain fitting and
// pick verification.
type pointSet struct {
	xs, ys []float32
	ids    []uint32
	domain series.Domain
}

func (p *pointSet) add(b columnar.Batch) {
	xs, ys := decodeFloats(b.X), decodeFloats(b.Y)
	var ids []uint32
	if b.Index != nil {
		ids = decodeUints(b.Index)
	} else {
		ids = make([]uint32, len(xs))
		for i := range ids {
			ids[i] = uint32(len(p.ids) + i)
		}
	}
	for i := range xs {
		if len(p.xs) == 0 && i == 0 {
			p.domain = series.Domain{XMin: xs[0], XMax: xs[0], YMin: ys[0], YMax: ys[0]}
		}
		p.domain.XMin = min(p.domain.XMin, xs[i])
		p.domain.XMax = max(p.domain.XMax, xs[i])
		p.domain.YMin = min(p.domain.YMin, ys[i])
		p.domain.YMax = max(p.domain.YMax, ys[i])
	}
	p.xs = append(p.xs, xs...)
	p.ys = append(p.ys, ys...)
	p.ids = append(p.ids, ids...)
}

// paddedDomain returns the data bounds grown by 5% (at least 1 unit) on
// every side so edge points stay inside the surface.
func (p *pointSet) paddedDomain() series.Domain {
	d := p.domain
	px := max((d.XMax-d.XMin)*0.05, 1)
	py := max((d.YMax-d.YMin)*0.05, 1)
	return series.Domain{XMin: d.XMin - px, XMax: d.XMax + px, YMin: d.YMin - py, YMax: d.YMax + py}
}

func decodeFloats(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func decodeUints(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

func describe(cfg *Config) string {
	if cfg.Data == "" {
		return fmt.Sprintf("generated (%d points, seed %d)", cfg.Points, cfg.Seed)
	}
	return cfg.Data
}
