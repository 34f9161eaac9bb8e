package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(StreamUploadBytesTotal)
	StreamUploadBytesTotal.Add(64)
	if got := testutil.ToFloat64(StreamUploadBytesTotal); got != before+64 {
		t.Errorf("StreamUploadBytesTotal = %v, want %v", got, before+64)
	}

	passes := RenderPassesTotal.WithLabelValues("test")
	before = testutil.ToFloat64(passes)
	passes.Inc()
	if got := testutil.ToFloat64(passes); got != before+1 {
		t.Errorf("RenderPassesTotal{program=test} = %v, want %v", got, before+1)
	}
}

func TestHistogramsObserve(t *testing.T) {
	if QueryDurationSeconds == nil || ReductionPasses == nil {
		t.Fatal("histograms should not be nil")
	}
	QueryDurationSeconds.WithLabelValues("tree-reduction").Observe(0.002)
	ReductionPasses.Observe(6)
}
