package prommetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")
	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordDecision("anonymous", true)
	metrics.RecordDecision("anonymous", true)
	metrics.RecordDecision("anonymous", false)
	metrics.RecordDecision("pro", true)

	if got := testutil.ToFloat64(metrics.decisionsTotal.WithLabelValues("anonymous", "true")); got != 2 {
		t.Errorf("anonymous/true = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.decisionsTotal.WithLabelValues("anonymous", "false")); got != 1 {
		t.Errorf("anonymous/false = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.decisionsTotal.WithLabelValues("pro", "true")); got != 1 {
		t.Errorf("pro/true = %v, want 1", got)
	}
}

func TestRecordStorageOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordStorageOperation("anon_increment", 5*time.Millisecond, nil)
	metrics.RecordStorageOperation("anon_increment", 5*time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(metrics.storageOpsErrors.WithLabelValues("anon_increment")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}

	// Both calls observed, only the failing one counted as an error.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "test_storage_operation_duration_seconds" {
			found = true
			if n := f.GetMetric()[0].GetHistogram().GetSampleCount(); n != 2 {
				t.Errorf("Histogram sample count = %d, want 2", n)
			}
		}
	}
	if !found {
		t.Error("Duration histogram was not registered")
	}
}
