package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecording(t *testing.T) {
	m := NewMetrics()

	m.RecordInvocation("a/b", true, 12)
	m.RecordInvocation("a/b", true, 30)
	m.RecordInvocation("a/b", false, 5)
	m.RecordRetry("a/b")
	m.RecordPolicyDenied("a/b", "capability")
	m.RecordJob("img/gen", "completed")

	if got := testutil.ToFloat64(m.ToolInvocations.WithLabelValues("a/b", "true")); got != 2 {
		t.Errorf("invocations ok=true = %v", got)
	}
	if got := testutil.ToFloat64(m.ToolInvocations.WithLabelValues("a/b", "false")); got != 1 {
		t.Errorf("invocations ok=false = %v", got)
	}
	if got := testutil.ToFloat64(m.ToolRetries.WithLabelValues("a/b")); got != 1 {
		t.Errorf("retries = %v", got)
	}
	if got := testutil.ToFloat64(m.PolicyDenied.WithLabelValues("a/b", "capability")); got != 1 {
		t.Errorf("policy denied = %v", got)
	}
	if got := testutil.ToFloat64(m.Jobs.WithLabelValues("img/gen", "completed")); got != 1 {
		t.Errorf("jobs = %v", got)
	}
}

func TestMetricsIndependentRegistries(t *testing.T) {
	// Two hubs in one process must not collide on registration.
	a := NewMetrics()
	b := NewMetrics()
	a.RecordInvocation("x/y", true, 1)
	if got := testutil.ToFloat64(b.ToolInvocations.WithLabelValues("x/y", "true")); got != 0 {
		t.Errorf("registries should be independent, got %v", got)
	}
}
