// Package metrics holds the Prometheus instruments shared by the gpupick
// packages. Instruments register on the default registry; the gpupick
// command exposes them with promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StreamUploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpupick_stream_upload_bytes_total",
		Help: "Total bytes written to streaming attribute buffers",
	})

	StreamSkippedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpupick_stream_skipped_bytes_total",
		Help: "Total bytes of unchanged chunks that were not re-uploaded",
	})

	StreamChunkUploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpupick_stream_chunk_uploads_total",
		Help: "Total number of chunk uploads issued by streaming attributes",
	})

	StreamCapacityErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpupick_stream_capacity_errors_total",
		Help: "Total number of uploads rejected because data exceeded the buffer capacity",
	})

	RenderPassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpupick_render_passes_total",
		Help: "Total number of draw calls issued, by program",
	}, []string{"program"})

	TargetReconfiguresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpupick_target_reconfigures_total",
		Help: "Total number of ping-pong texture reconfigurations, by kind (full, front)",
	}, []string{"kind"})

	ReadbackPixelsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpupick_readback_pixels_total",
		Help: "Total number of pixels read back from render targets",
	})

	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpupick_queries_total",
		Help: "Total number of nearest-point queries, by strategy and outcome",
	}, []string{"strategy", "outcome"})

	QueryDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gpupick_query_duration_seconds",
		Help:    "Latency of nearest-point queries including readback",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
	}, []string{"strategy"})

	ReductionPasses = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gpupick_reduction_passes",
		Help:    "Number of reduce passes per tree-reduction query",
		Buckets: prometheus.LinearBuckets(1, 1, 16),
	})

	IngestRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpupick_ingest_rows_total",
		Help: "Total rows ingested from columnar sources, by format",
	}, []string{"format"})

	IngestBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpupick_ingest_batches_total",
		Help: "Total record batches ingested from columnar sources, by format",
	}, []string{"format"})
)
