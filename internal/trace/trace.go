// Package trace records timed spans for session-engine operations (restore
// steps, catalog loads, publish phases). Spans land in a bounded in-memory
// buffer queryable over the API; when tracing is disabled a noop tracer is
// installed instead.
package trace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const (
	traceIDKey ctxKey = iota
	parentSpanIDKey
	tracerKey
)

// Tracer is the tracing API consumed by the engine.
type Tracer interface {
	StartSpan(ctx context.Context, component, action string) (context.Context, Span)
}

// Span represents one timed operation.
type Span interface {
	End()
	SetStatus(status string)
	SetMetadata(key string, value any)
	TraceID() string
	SpanID() string
}

// Record is one completed span.
type Record struct {
	TraceID      string         `json:"trace_id"`
	SpanID       string         `json:"span_id"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
	Component    string         `json:"component"`
	Action       string         `json:"action"`
	Status       string         `json:"status,omitempty"`
	DurationMs   float64        `json:"duration_ms"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
}

// WithTraceID sets the trace ID in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the trace ID from the context, minting one if absent.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

func withParentSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, parentSpanIDKey, spanID)
}

func getParentSpanID(ctx context.Context) string {
	if v, ok := ctx.Value(parentSpanIDKey).(string); ok {
		return v
	}
	return ""
}

// WithTracer sets the tracer in the context.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	return context.WithValue(ctx, tracerKey, t)
}

// GetTracer returns the tracer from the context, or a noop tracer if none is
// set.
func GetTracer(ctx context.Context) Tracer {
	if v, ok := ctx.Value(tracerKey).(Tracer); ok {
		return v
	}
	return NoopTracer{}
}

// BufferTracer records spans into a Buffer.
type BufferTracer struct {
	buffer *Buffer
}

func NewBufferTracer(buffer *Buffer) *BufferTracer {
	return &BufferTracer{buffer: buffer}
}

func (t *BufferTracer) StartSpan(ctx context.Context, component, action string) (context.Context, Span) {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
		ctx = WithTraceID(ctx, traceID)
	}

	span := &bufferSpan{
		record: Record{
			TraceID:      traceID,
			SpanID:       uuid.New().String(),
			ParentSpanID: getParentSpanID(ctx),
			Component:    component,
			Action:       action,
			StartedAt:    time.Now().UTC(),
		},
		start:  time.Now(),
		buffer: t.buffer,
	}
	// Child spans started under this context reference this span as parent.
	ctx = withParentSpanID(ctx, span.record.SpanID)
	return ctx, span
}

type bufferSpan struct {
	mu     sync.Mutex
	record Record
	start  time.Time
	buffer *Buffer
	ended  bool
}

func (s *bufferSpan) TraceID() string { return s.record.TraceID }
func (s *bufferSpan) SpanID() string  { return s.record.SpanID }

func (s *bufferSpan) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Status = status
}

func (s *bufferSpan) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record.Metadata == nil {
		s.record.Metadata = make(map[string]any)
	}
	s.record.Metadata[key] = value
}

func (s *bufferSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.record.DurationMs = float64(time.Since(s.start).Microseconds()) / 1000.0
	s.buffer.Add(s.record)
}

// NoopTracer discards all spans.
type NoopTracer struct{}

func (NoopTracer) StartSpan(ctx context.Context, component, action string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End()                         {}
func (noopSpan) SetStatus(string)             {}
func (noopSpan) SetMetadata(string, any)      {}
func (noopSpan) TraceID() string              { return "" }
func (noopSpan) SpanID() string               { return "" }
