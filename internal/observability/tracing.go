package observability

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceConfig configures span export. An empty Endpoint keeps tracing
// in-memory only.
type TraceConfig struct {
	// ServiceName identifies this hub in exported traces.
	ServiceName string

	// Endpoint is the OTLP gRPC collector endpoint (e.g. "localhost:4317").
	Endpoint string

	// EnableInsecure disables TLS for the OTLP connection (dev only).
	EnableInsecure bool

	// MaxTraces bounds the in-memory trace store; once exceeded the oldest
	// fully-ended traces are evicted (default 256).
	MaxTraces int
}

// SpanEvent is a timestamped annotation on a span.
type SpanEvent struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Span is one recorded operation. Spans within a trace form a tree by
// ParentID reference.
type Span struct {
	SpanID     string         `json:"spanId"`
	TraceID    string         `json:"traceId"`
	ParentID   string         `json:"parentId,omitempty"`
	Name       string         `json:"name"`
	StartTime  time.Time      `json:"startTime"`
	EndTime    time.Time      `json:"endTime,omitempty"`
	Status     string         `json:"status,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Events     []SpanEvent    `json:"events,omitempty"`
}

// SpanOptions names and places a new span.
type SpanOptions struct {
	Name       string
	TraceID    string
	ParentID   string
	Attributes map[string]any
}

// Tracer records spans into a bounded in-memory trace store and mirrors them
// to an OpenTelemetry tracer when an OTLP endpoint is configured. Once the
// store holds more than maxTraces traces, the oldest fully-ended ones are
// evicted; a trace with open spans is never dropped.
type Tracer struct {
	mu sync.Mutex

	// spans and byTrace index recorded spans by span id and trace id.
	// open counts not-yet-ended spans per trace; active holds the live
	// otel mirrors of open spans.
	spans   map[string]*Span
	byTrace map[string][]string
	open    map[string]int
	active  map[string]trace.Span

	// traceOrder lists trace ids oldest first for eviction.
	traceOrder []string
	maxTraces  int

	otel     trace.Tracer
	provider *sdktrace.TracerProvider
}

// NewTracer creates a tracer. The returned shutdown function flushes the
// exporter; it is a no-op when no endpoint is configured.
func NewTracer(config TraceConfig) (*Tracer, func(context.Context) error) {
	if config.ServiceName == "" {
		config.ServiceName = "toolhub"
	}
	if config.MaxTraces <= 0 {
		config.MaxTraces = 256
	}
	t := &Tracer{
		spans:     make(map[string]*Span),
		byTrace:   make(map[string][]string),
		open:      make(map[string]int),
		active:    make(map[string]trace.Span),
		maxTraces: config.MaxTraces,
	}

	if config.Endpoint == "" {
		t.otel = otel.Tracer(config.ServiceName)
		return t, func(context.Context) error { return nil }
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.Endpoint)}
	if config.EnableInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(context.Background(), opts...)
	if err != nil {
		t.otel = otel.Tracer(config.ServiceName)
		return t, func(context.Context) error { return nil }
	}
	res, _ := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
	))
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	t.provider = provider
	t.otel = provider.Tracer(config.ServiceName)
	return t, provider.Shutdown
}

// StartSpan opens a span. A missing TraceID starts a new trace.
func (t *Tracer) StartSpan(opts SpanOptions) *Span {
	span := &Span{
		SpanID:     uuid.NewString(),
		TraceID:    opts.TraceID,
		ParentID:   opts.ParentID,
		Name:       opts.Name,
		StartTime:  time.Now().UTC(),
		Attributes: copyAttrs(opts.Attributes),
	}
	if span.TraceID == "" {
		span.TraceID = uuid.NewString()
	}

	t.mu.Lock()
	if _, seen := t.byTrace[span.TraceID]; !seen {
		t.traceOrder = append(t.traceOrder, span.TraceID)
	}
	t.spans[span.SpanID] = span
	t.byTrace[span.TraceID] = append(t.byTrace[span.TraceID], span.SpanID)
	t.open[span.TraceID]++
	if t.otel != nil {
		_, otelSpan := t.otel.Start(context.Background(), opts.Name,
			trace.WithAttributes(toOtelAttrs(opts.Attributes)...))
		t.active[span.SpanID] = otelSpan
	}
	t.evictLocked()
	t.mu.Unlock()
	return span
}

// evictLocked drops the oldest fully-ended traces until the store is back
// under maxTraces. Caller holds t.mu.
func (t *Tracer) evictLocked() {
	if len(t.byTrace) <= t.maxTraces {
		return
	}
	remaining := t.traceOrder[:0]
	for _, traceID := range t.traceOrder {
		if len(t.byTrace) > t.maxTraces && t.open[traceID] == 0 {
			for _, spanID := range t.byTrace[traceID] {
				delete(t.spans, spanID)
			}
			delete(t.byTrace, traceID)
			continue
		}
		remaining = append(remaining, traceID)
	}
	t.traceOrder = remaining
}

// AddEvent appends a timestamped event to an open span.
func (t *Tracer) AddEvent(spanID, name string, attrs map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	span, ok := t.spans[spanID]
	if !ok {
		return
	}
	span.Events = append(span.Events, SpanEvent{
		Name:       name,
		Timestamp:  time.Now().UTC(),
		Attributes: copyAttrs(attrs),
	})
	if otelSpan, live := t.active[spanID]; live {
		otelSpan.AddEvent(name, trace.WithAttributes(toOtelAttrs(attrs)...))
	}
}

// SetAttributes merges attributes into an open span.
func (t *Tracer) SetAttributes(spanID string, attrs map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	span, ok := t.spans[spanID]
	if !ok {
		return
	}
	if span.Attributes == nil {
		span.Attributes = make(map[string]any, len(attrs))
	}
	for key, value := range attrs {
		span.Attributes[key] = value
	}
	if otelSpan, live := t.active[spanID]; live {
		otelSpan.SetAttributes(toOtelAttrs(attrs)...)
	}
}

// EndSpan closes a span with a final status ("ok" or "error").
func (t *Tracer) EndSpan(spanID, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	span, ok := t.spans[spanID]
	if !ok {
		return
	}
	if span.EndTime.IsZero() {
		t.open[span.TraceID]--
		if t.open[span.TraceID] <= 0 {
			delete(t.open, span.TraceID)
		}
	}
	span.EndTime = time.Now().UTC()
	span.Status = status
	if otelSpan, live := t.active[spanID]; live {
		otelSpan.End()
		delete(t.active, spanID)
	}
}

// GetTrace returns the spans of a trace in start-time order.
func (t *Tracer) GetTrace(traceID string) []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := t.byTrace[traceID]
	out := make([]*Span, 0, len(ids))
	for _, id := range ids {
		if span, ok := t.spans[id]; ok {
			clone := *span
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func copyAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for key, value := range attrs {
		out[key] = value
	}
	return out
}

func toOtelAttrs(attrs map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for key, value := range attrs {
		switch v := value.(type) {
		case string:
			out = append(out, attribute.String(key, v))
		case bool:
			out = append(out, attribute.Bool(key, v))
		case int:
			out = append(out, attribute.Int(key, v))
		case int64:
			out = append(out, attribute.Int64(key, v))
		case float64:
			out = append(out, attribute.Float64(key, v))
		default:
			out = append(out, attribute.String(key, fmt.Sprintf("%v", v)))
		}
	}
	return out
}
