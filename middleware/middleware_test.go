package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/shrek82/jbulk/core"
	"github.com/shrek82/jbulk/logger"
	"github.com/shrek82/jbulk/middleware"
	"github.com/shrek82/jbulk/model"
	"github.com/shrek82/jbulk/table"
)

type Event struct {
	ID   int64 `jorm:"pk"`
	Kind string
}

func events(n int) []Event {
	out := make([]Event, n)
	for i := range out {
		out[i] = Event{ID: int64(i + 1), Kind: "click"}
	}
	return out
}

type sink struct {
	fail error
	rows int
}

func (s *sink) Name() string { return "memory" }

func (s *sink) Write(ctx context.Context, t *table.Table) (int64, error) {
	if s.fail != nil {
		return 0, s.fail
	}
	s.rows += t.Len()
	return int64(t.Len()), nil
}

// capture records the fields each batch carries when it reaches it.
type capture struct {
	fields []map[string]any
}

func (c *capture) Name() string              { return "capture" }
func (c *capture) Init(e *core.Engine) error { return nil }
func (c *capture) Shutdown() error           { return nil }

func (c *capture) Process(ctx context.Context, b *core.Batch, next core.BatchFunc) (*core.Result, error) {
	c.fields = append(c.fields, b.Fields())
	return next(ctx, b)
}

type recordingTracer struct {
	noop.Tracer
	spans []string
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	r.spans = append(r.spans, name)
	return r.Tracer.Start(ctx, name, opts...)
}

func newEngine(batchSize int) *core.Engine {
	l := logger.New()
	l.SetLevel(logger.LogLevelSilent)
	return core.NewEngine(
		core.WithRegistry(model.NewRegistry()),
		core.WithLogger(l),
		core.WithBatchSize(batchSize),
	)
}

func TestSlowLog(t *testing.T) {
	e := newEngine(2)
	buf := new(bytes.Buffer)
	slowLog := middleware.NewSlowLog(0, "") // Threshold 0 to log everything
	slowLog.SetOutput(buf)
	if err := e.Use(slowLog); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Copy(context.Background(), &sink{}, events(3)); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if n := strings.Count(out, "table=event"); n != 2 {
		t.Errorf("expected 2 slow batch lines, got %d:\n%s", n, out)
	}
	if !strings.Contains(out, "component=slow_batch") || !strings.Contains(out, "rows=1/1") {
		t.Errorf("unexpected slow log output:\n%s", out)
	}
}

func TestSlowLogBelowThreshold(t *testing.T) {
	e := newEngine(10)
	buf := new(bytes.Buffer)
	slowLog := middleware.NewSlowLog(time.Hour, "")
	slowLog.SetOutput(buf)
	e.Use(slowLog)

	if _, err := e.Copy(context.Background(), &sink{}, events(3)); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("fast batch was logged: %s", buf.String())
	}
}

func TestTracing(t *testing.T) {
	e := newEngine(2)
	tracer := &recordingTracer{}
	c := &capture{}
	if err := e.Use(middleware.NewTracingWith(tracer), c); err != nil {
		t.Fatal(err)
	}

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-123")
	ctx = context.WithValue(ctx, middleware.TraceIDKey, "trace-abc")
	if _, err := e.Copy(ctx, &sink{}, events(4)); err != nil {
		t.Fatal(err)
	}

	if len(tracer.spans) != 2 || tracer.spans[0] != "jbulk.memory" {
		t.Errorf("unexpected spans: %v", tracer.spans)
	}
	if len(c.fields) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(c.fields))
	}
	if c.fields[0]["request_id"] != "req-123" || c.fields[0]["trace_id"] != "trace-abc" {
		t.Errorf("fields not propagated: %v", c.fields[0])
	}
	if _, ok := c.fields[0]["user_ip"]; ok {
		t.Errorf("absent context key was added: %v", c.fields[0])
	}
}

func TestCircuitBreaker(t *testing.T) {
	e := newEngine(10)
	cb := middleware.NewCircuitBreaker(2, 50*time.Millisecond)
	if err := e.Use(cb); err != nil {
		t.Fatal(err)
	}

	down := errors.New("connection refused")
	s := &sink{fail: down}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := e.Copy(ctx, s, events(1)); !errors.Is(err, down) {
			t.Fatalf("attempt %d: expected sink error, got %v", i, err)
		}
	}
	if cb.State() != middleware.StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	// Open breaker rejects without reaching the sink.
	s.fail = nil
	if _, err := e.Copy(ctx, s, events(1)); !errors.Is(err, middleware.ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if s.rows != 0 {
		t.Errorf("sink was reached while open")
	}

	time.Sleep(80 * time.Millisecond)
	n, err := e.Copy(ctx, s, events(3))
	if err != nil {
		t.Fatalf("expected success after timeout, got %v", err)
	}
	if n != 3 || cb.State() != middleware.StateClosed {
		t.Errorf("n = %d, state = %s", n, cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailure(t *testing.T) {
	e := newEngine(10)
	cb := middleware.NewCircuitBreaker(1, 20*time.Millisecond)
	e.Use(cb)

	s := &sink{fail: errors.New("timeout")}
	e.Copy(context.Background(), s, events(1))
	if cb.State() != middleware.StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	time.Sleep(40 * time.Millisecond)
	if _, err := e.Copy(context.Background(), s, events(1)); err == nil || errors.Is(err, middleware.ErrCircuitOpen) {
		t.Fatalf("probe should reach the sink, got %v", err)
	}
	if cb.State() != middleware.StateOpen {
		t.Errorf("failed probe should reopen, state = %s", cb.State())
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newEngine(2)
	m := middleware.NewMetrics("jbulk", reg)
	if err := e.Use(m); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Copy(context.Background(), &sink{}, events(5)); err != nil {
		t.Fatal(err)
	}
	e.Copy(context.Background(), &sink{fail: errors.New("boom")}, events(1))

	if got := testutil.ToFloat64(m.Batches().WithLabelValues("memory", "event", "success")); got != 3 {
		t.Errorf("success batches = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.Batches().WithLabelValues("memory", "event", "error")); got != 1 {
		t.Errorf("error batches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Rows().WithLabelValues("memory", "event")); got != 5 {
		t.Errorf("rows = %v, want 5", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"jbulk_batches_total", "jbulk_rows_total", "jbulk_batch_duration_seconds", "jbulk_batch_rows"} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}

	if err := e.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if families, _ := reg.Gather(); len(families) != 0 {
		t.Errorf("collectors left registered after shutdown: %d", len(families))
	}
}
