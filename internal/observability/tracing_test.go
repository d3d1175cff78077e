package observability

import (
	"context"
	"testing"
)

func TestTracerSpanTree(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test"})
	defer shutdown(context.Background())

	root := tracer.StartSpan(SpanOptions{Name: "invoke", Attributes: map[string]any{"tool": "a/b"}})
	child := tracer.StartSpan(SpanOptions{Name: "adapter", TraceID: root.TraceID, ParentID: root.SpanID})

	tracer.AddEvent(root.SpanID, "policy_checked", map[string]any{"allowed": true})
	tracer.SetAttributes(root.SpanID, map[string]any{"ok": true})
	tracer.EndSpan(child.SpanID, "ok")
	tracer.EndSpan(root.SpanID, "ok")

	spans := tracer.GetTrace(root.TraceID)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].SpanID != root.SpanID {
		t.Error("spans should be in start-time order")
	}
	if spans[1].ParentID != root.SpanID {
		t.Error("child should reference parent")
	}
	if spans[0].Status != "ok" || spans[0].EndTime.IsZero() {
		t.Error("ended span should carry status and end time")
	}
	if len(spans[0].Events) != 1 || spans[0].Events[0].Name != "policy_checked" {
		t.Errorf("events = %v", spans[0].Events)
	}
	if spans[0].Attributes["ok"] != true {
		t.Error("SetAttributes should merge")
	}
}

func TestTracerUnknownSpanOpsAreNoops(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{})
	defer shutdown(context.Background())

	tracer.AddEvent("missing", "x", nil)
	tracer.SetAttributes("missing", map[string]any{"a": 1})
	tracer.EndSpan("missing", "ok")

	if spans := tracer.GetTrace("missing"); len(spans) != 0 {
		t.Errorf("unexpected spans: %v", spans)
	}
}

func TestTracerEvictsOldestEndedTraces(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{MaxTraces: 2})
	defer shutdown(context.Background())

	first := tracer.StartSpan(SpanOptions{Name: "first"})
	tracer.EndSpan(first.SpanID, "ok")
	second := tracer.StartSpan(SpanOptions{Name: "second"})
	tracer.EndSpan(second.SpanID, "ok")
	third := tracer.StartSpan(SpanOptions{Name: "third"})

	if spans := tracer.GetTrace(first.TraceID); len(spans) != 0 {
		t.Errorf("oldest ended trace should be evicted, got %v", spans)
	}
	if spans := tracer.GetTrace(second.TraceID); len(spans) != 1 {
		t.Errorf("second trace should survive, got %d spans", len(spans))
	}
	if spans := tracer.GetTrace(third.TraceID); len(spans) != 1 {
		t.Errorf("open trace should survive, got %d spans", len(spans))
	}
}

func TestTracerNeverEvictsOpenTraces(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{MaxTraces: 1})
	defer shutdown(context.Background())

	open := tracer.StartSpan(SpanOptions{Name: "long-running"})
	for i := 0; i < 5; i++ {
		span := tracer.StartSpan(SpanOptions{Name: "short"})
		tracer.EndSpan(span.SpanID, "ok")
	}

	if spans := tracer.GetTrace(open.TraceID); len(spans) != 1 {
		t.Fatalf("trace with an open span must not be evicted, got %d spans", len(spans))
	}
	tracer.EndSpan(open.SpanID, "ok")
	if spans := tracer.GetTrace(open.TraceID); len(spans) != 1 || spans[0].Status != "ok" {
		t.Errorf("ending the span should still record status, got %v", spans)
	}
}

func TestTracerNewTraceWhenNoTraceID(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{})
	defer shutdown(context.Background())

	a := tracer.StartSpan(SpanOptions{Name: "a"})
	b := tracer.StartSpan(SpanOptions{Name: "b"})
	if a.TraceID == b.TraceID {
		t.Error("separate roots should start separate traces")
	}
}
