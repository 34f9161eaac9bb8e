// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package columnar turns Arrow and Parquet point datasets into the chunk
// sequences consumed by stream.Attribute.
//
// Arrow chunks are zero-copy views of the record value buffers; they stay
// valid until the owning Stream (or table) is released.
package columnar

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/gogpu/gpupick/stream"
)

var (
	// ErrMissingColumn is returned when a named column is absent.
	ErrMissingColumn = errors.New("columnar: missing column")

	// ErrUnsupportedType is returned for columns that are not float32,
	// uint32 or int32.
	ErrUnsupportedType = errors.New("columnar: unsupported column type")

	// ErrNulls is returned for columns containing null values.
	ErrNulls = errors.New("columnar: column contains nulls")
)

// Names maps the point columns to schema field names. An empty Index means
// the dataset carries no identity column.
type Names struct {
	X, Y, Index string
}

// DefaultNames is the column naming used by the datasets this package
// writes.
var DefaultNames = Names{X: "x", Y: "y", Index: "ix"}

// Columns holds chunked point columns. Chunk i of every column describes
// the same rows.
type Columns struct {
	X, Y, Index [][]byte
	Rows        int
}

// Schema returns the Arrow schema for DefaultNames.
func Schema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: DefaultNames.X, Type: arrow.PrimitiveTypes.Float32},
		{Name: DefaultNames.Y, Type: arrow.PrimitiveTypes.Float32},
		{Name: DefaultNames.Index, Type: arrow.PrimitiveTypes.Uint32},
	}, nil)
}

// TableChunks returns the value buffers of every chunk of a primitive
// column.
func TableChunks(tbl arrow.Table, column string) ([][]byte, error) {
	idx := tbl.Schema().FieldIndices(column)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, column)
	}
	chunks := tbl.Column(idx[0]).Data().Chunks()
	out := make([][]byte, 0, len(chunks))
	for _, c := range chunks {
		b, err := valueBytes(c)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", column, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// TableColumns returns the point columns of tbl.
func TableColumns(tbl arrow.Table, names Names) (*Columns, error) {
	cols := &Columns{Rows: int(tbl.NumRows())}
	var err error
	if cols.X, err = TableChunks(tbl, names.X); err != nil {
		return nil, err
	}
	if cols.Y, err = TableChunks(tbl, names.Y); err != nil {
		return nil, err
	}
	if names.Index != "" {
		if cols.Index, err = TableChunks(tbl, names.Index); err != nil {
			return nil, err
		}
	}
	return cols, nil
}

func recordChunk(rec arrow.Record, column string) ([]byte, error) {
	idx := rec.Schema().FieldIndices(column)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, column)
	}
	b, err := valueBytes(rec.Column(idx[0]))
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", column, err)
	}
	return b, nil
}

func valueBytes(arr arrow.Array) ([]byte, error) {
	if arr.NullN() > 0 {
		return nil, ErrNulls
	}
	switch a := arr.(type) {
	case *array.Float32:
		return stream.Float32s(a.Float32Values()), nil
	case *array.Uint32:
		return stream.Uint32s(a.Uint32Values()), nil
	case *array.Int32:
		return stream.Int32s(a.Int32Values()), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, arr.DataType())
	}
}
