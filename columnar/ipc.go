// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package columnar

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/gogpu/gpupick"
	"github.com/gogpu/gpupick/internal/metrics"
)

// Batch is the chunk of every point column contributed by one record.
type Batch struct {
	X, Y, Index []byte
	Rows        int
}

// Stream reads an Arrow IPC stream one record batch at a time and
// accumulates its columns. Records are retained until Release.
type Stream struct {
	r     *ipc.Reader
	names Names
	recs  []arrow.Record
	cols  Columns
	batch Batch
	err   error
}

// NewStream starts reading an Arrow IPC stream from r. A nil mem uses the
// Go allocator.
func NewStream(r io.Reader, names Names, mem memory.Allocator) (*Stream, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	rd, err := ipc.NewReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("open arrow stream: %w", err)
	}
	return &Stream{r: rd, names: names}, nil
}

// Next reads the next record batch. It returns false at the end of the
// stream or on error; check Err.
func (s *Stream) Next() bool {
	if s.err != nil || s.r == nil {
		return false
	}
	if !s.r.Next() {
		s.err = s.r.Err()
		return false
	}
	rec := s.r.Record()
	b, err := recordBatch(rec, s.names)
	if err != nil {
		s.err = err
		return false
	}
	rec.Retain()
	s.recs = append(s.recs, rec)

	s.batch = b
	s.cols.X = append(s.cols.X, b.X)
	s.cols.Y = append(s.cols.Y, b.Y)
	if b.Index != nil {
		s.cols.Index = append(s.cols.Index, b.Index)
	}
	s.cols.Rows += b.Rows

	metrics.IngestRowsTotal.WithLabelValues("arrow").Add(float64(b.Rows))
	metrics.IngestBatchesTotal.WithLabelValues("arrow").Inc()
	gpupick.Logger().Debug("columnar: arrow batch", "rows", b.Rows, "total", s.cols.Rows)
	return true
}

// Batch returns the batch read by the last successful Next.
func (s *Stream) Batch() Batch { return s.batch }

// Columns returns every batch read so far.
func (s *Stream) Columns() Columns { return s.cols }

// Rows returns the number of rows read so far.
func (s *Stream) Rows() int { return s.cols.Rows }

// Err returns the first error met by Next.
func (s *Stream) Err() error { return s.err }

// Release frees the reader and every retained record. Chunks returned
// earlier must not be used afterwards.
func (s *Stream) Release() {
	for _, rec := range s.recs {
		rec.Release()
	}
	s.recs = nil
	s.cols = Columns{}
	s.batch = Batch{}
	if s.r != nil {
		s.r.Release()
		s.r = nil
	}
}

func recordBatch(rec arrow.Record, names Names) (Batch, error) {
	b := Batch{Rows: int(rec.NumRows())}
	var err error
	if b.X, err = recordChunk(rec, names.X); err != nil {
		return Batch{}, err
	}
	if b.Y, err = recordChunk(rec, names.Y); err != nil {
		return Batch{}, err
	}
	if names.Index != "" {
		if b.Index, err = recordChunk(rec, names.Index); err != nil {
			return Batch{}, err
		}
	}
	return b, nil
}

// NewRecord builds a record with the Schema layout. ids may be nil, in
// which case identities continue from first.
func NewRecord(mem memory.Allocator, xs, ys []float32, ids []uint32, first uint32) (arrow.Record, error) {
	if len(xs) != len(ys) || (ids != nil && len(ids) != len(xs)) {
		return nil, fmt.Errorf("columnar: column lengths %d, %d, %d differ", len(xs), len(ys), len(ids))
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	b := array.NewRecordBuilder(mem, Schema())
	defer b.Release()

	b.Field(0).(*array.Float32Builder).AppendValues(xs, nil)
	b.Field(1).(*array.Float32Builder).AppendValues(ys, nil)
	ib := b.Field(2).(*array.Uint32Builder)
	if ids != nil {
		ib.AppendValues(ids, nil)
	} else {
		ib.Reserve(len(xs))
		for i := range xs {
			ib.Append(first + uint32(i))
		}
	}
	return b.NewRecord(), nil
}

// WriteIPC writes records as an Arrow IPC stream with the Schema layout.
func WriteIPC(w io.Writer, mem memory.Allocator, recs ...arrow.Record) error {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	wr := ipc.NewWriter(w, ipc.WithSchema(Schema()), ipc.WithAllocator(mem))
	for _, rec := range recs {
		if err := wr.Write(rec); err != nil {
			_ = wr.Close()
			return fmt.Errorf("write arrow batch: %w", err)
		}
	}
	return wr.Close()
}
