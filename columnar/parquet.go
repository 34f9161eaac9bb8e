// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package columnar

import (
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/gogpu/gpupick"
	"github.com/gogpu/gpupick/internal/metrics"
	"github.com/gogpu/gpupick/stream"
)

// DefaultBatchRows is the Parquet read batch size used when none is given.
const DefaultBatchRows = 64 * 1024

// Row is one point as stored in Parquet files.
type Row struct {
	X     float32 `parquet:"x"`
	Y     float32 `parquet:"y"`
	Index uint32  `parquet:"ix"`
}

// ReadParquet reads rows in batches of batchRows; each batch becomes one
// chunk of every column.
func ReadParquet(r io.ReaderAt, size int64, batchRows int) (*Columns, error) {
	if batchRows <= 0 {
		batchRows = DefaultBatchRows
	}
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	pr := parquet.NewGenericReader[Row](pf)
	defer pr.Close()

	cols := &Columns{}
	rows := make([]Row, batchRows)
	for {
		n, err := pr.Read(rows)
		if n > 0 {
			appendRows(cols, rows[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet: %w", err)
		}
		if n == 0 {
			break
		}
	}
	gpupick.Logger().Debug("columnar: parquet read", "rows", cols.Rows, "batches", len(cols.X))
	return cols, nil
}

func appendRows(cols *Columns, rows []Row) {
	xs := make([]float32, len(rows))
	ys := make([]float32, len(rows))
	ids := make([]uint32, len(rows))
	for i, r := range rows {
		xs[i], ys[i], ids[i] = r.X, r.Y, r.Index
	}
	cols.X = append(cols.X, stream.Float32s(xs))
	cols.Y = append(cols.Y, stream.Float32s(ys))
	cols.Index = append(cols.Index, stream.Uint32s(ids))
	cols.Rows += len(rows)

	metrics.IngestRowsTotal.WithLabelValues("parquet").Add(float64(len(rows)))
	metrics.IngestBatchesTotal.WithLabelValues("parquet").Inc()
}

// WriteParquet writes rows to w with zstd compression.
func WriteParquet(w io.Writer, rows []Row) error {
	pw := parquet.NewGenericWriter[Row](w, parquet.Compression(&parquet.Zstd))
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return fmt.Errorf("write parquet: %w", err)
	}
	return pw.Close()
}
