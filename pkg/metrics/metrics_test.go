package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Attempt("direct", "ok")
	m.PlatformResult("github", "live", time.Second)
	m.BatchRun("manual", time.Second)
	m.BatchEntity("success")
}

func TestCountersRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Attempt("direct", "failed")
	m.Attempt("direct", "failed")
	m.Attempt("mirror-1", "ok")

	if got := testutil.ToFloat64(m.RetrievalAttempts.WithLabelValues("direct", "failed")); got != 2 {
		t.Fatalf("expected 2 failed direct attempts, got %v", got)
	}
	if got := testutil.ToFloat64(m.RetrievalAttempts.WithLabelValues("mirror-1", "ok")); got != 1 {
		t.Fatalf("expected 1 ok mirror attempt, got %v", got)
	}
}
