package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCountsRequestsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewCollector(reg, "pks_client")

	collector.RecordRequest("GET", "ok", 20*time.Millisecond)
	collector.RecordRequest("GET", "ok", 30*time.Millisecond)
	collector.RecordRequest("POST", "not_found", 10*time.Millisecond)

	if got := testutil.ToFloat64(collector.requests.WithLabelValues("GET", "ok")); got != 2 {
		t.Fatalf("expected 2 GET ok requests, got %v", got)
	}
	if got := testutil.ToFloat64(collector.requests.WithLabelValues("POST", "not_found")); got != 1 {
		t.Fatalf("expected 1 POST not_found request, got %v", got)
	}
	if count := testutil.CollectAndCount(collector.latency); count != 2 {
		t.Fatalf("expected 2 latency series, got %d", count)
	}
}

func TestStatusOutcome(t *testing.T) {
	if StatusOutcome(404) != "404" {
		t.Fatalf("unexpected outcome label %q", StatusOutcome(404))
	}
}
