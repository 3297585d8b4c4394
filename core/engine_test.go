package core_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shrek82/jbulk/core"
	"github.com/shrek82/jbulk/logger"
	"github.com/shrek82/jbulk/model"
	"github.com/shrek82/jbulk/table"
)

type memorySink struct {
	batches []*table.Table
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Write(ctx context.Context, t *table.Table) (int64, error) {
	s.batches = append(s.batches, t)
	return int64(t.Len()), nil
}

type recorder struct {
	name string
	log  *[]string
}

func (r *recorder) Name() string              { return r.name }
func (r *recorder) Init(e *core.Engine) error { return nil }
func (r *recorder) Shutdown() error           { return nil }

func (r *recorder) Process(ctx context.Context, b *core.Batch, next core.BatchFunc) (*core.Result, error) {
	*r.log = append(*r.log, r.name+">")
	res, err := next(ctx, b)
	*r.log = append(*r.log, "<"+r.name)
	return res, err
}

func newEngine(opts ...core.EngineOption) *core.Engine {
	l := logger.New()
	l.SetLevel(logger.LogLevelSilent)
	return core.NewEngine(append([]core.EngineOption{core.WithRegistry(model.NewRegistry()), core.WithLogger(l)}, opts...)...)
}

func TestEngineCopyBatches(t *testing.T) {
	e := newEngine(core.WithBatchSize(4))
	var calls []string
	if err := e.Use(&recorder{name: "a", log: &calls}, &recorder{name: "b", log: &calls}); err != nil {
		t.Fatal(err)
	}

	sink := &memorySink{}
	n, err := e.Copy(context.Background(), sink, sampleOrders(10))
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if n != 10 {
		t.Errorf("copied %d rows, want 10", n)
	}
	if len(sink.batches) != 3 || sink.batches[2].Len() != 2 {
		t.Fatalf("unexpected batches: %d", len(sink.batches))
	}

	want := []string{"a>", "b>", "<b", "<a"}
	if !reflect.DeepEqual(calls[:4], want) {
		t.Errorf("middleware order = %v, want %v", calls[:4], want)
	}

	// Rows keep the order of the input across batches.
	if got := sink.batches[1].Rows[0][1]; got != "NE" {
		t.Errorf("first row of batch 1 number = %v, want NE", got)
	}
}

func TestEngineCopyCanceled(t *testing.T) {
	e := newEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Copy(ctx, &memorySink{}, sampleOrders(2)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEngineCopyEmpty(t *testing.T) {
	e := newEngine()
	sink := &memorySink{}
	n, err := e.Copy(context.Background(), sink, []Order{})
	if err != nil || n != 0 || len(sink.batches) != 0 {
		t.Errorf("empty input: n=%d err=%v batches=%d", n, err, len(sink.batches))
	}
}

func TestEngineSchema(t *testing.T) {
	e := newEngine()
	tbl, err := e.Schema(&Order{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"id", "number", "total", "ship_street", "ship_city", "created_at"}
	if got := tbl.ColumnNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("columns = %v, want %v", got, want)
	}
	if street, _ := tbl.Column("ship_street"); !street.AllowNull {
		t.Errorf("ship_street should allow null")
	}

	cols, err := e.Columns(Order{})
	if err != nil || len(cols) != len(want) {
		t.Errorf("Columns = %d, %v", len(cols), err)
	}
}

func TestEngineShutdown(t *testing.T) {
	e := newEngine()
	var calls []string
	e.Use(&recorder{name: "a", log: &calls})
	if err := e.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Copy(context.Background(), &memorySink{}, sampleOrders(1)); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 0 {
		t.Errorf("middleware ran after shutdown: %v", calls)
	}
}

type Stamp struct {
	Token  uuid.UUID `jorm:"generated:add"`
	SeenAt time.Time `jorm:"auto_time"`
}

type Visit struct {
	ID      int64  `jorm:"pk auto"`
	First   *Stamp `jorm:"owned prefix:first_"`
	Last    Stamp  `jorm:"owned prefix:last_"`
	Skipped *Stamp `jorm:"owned prefix:skipped_"`
}

func TestEngineStampsOwnedFields(t *testing.T) {
	e := newEngine()
	visits := []Visit{{First: &Stamp{}}}
	tbl, err := e.Table(visits)
	if err != nil {
		t.Fatal(err)
	}

	v := visits[0]
	if v.First.Token == uuid.Nil || v.First.SeenAt.IsZero() {
		t.Errorf("first stamp not filled: %+v", v.First)
	}
	if v.Last.Token == uuid.Nil || v.Last.SeenAt.IsZero() {
		t.Errorf("last stamp not filled: %+v", v.Last)
	}
	if v.First.Token == v.Last.Token {
		t.Error("owned values share a generated key")
	}
	if v.Skipped != nil {
		t.Errorf("nil owned value was allocated: %+v", v.Skipped)
	}

	col, ok := tbl.Column("last_seen_at")
	if !ok {
		t.Fatalf("columns = %v", tbl.ColumnNames())
	}
	if got, ok := tbl.Rows[0][col.Ordinal].(time.Time); !ok || !got.Equal(v.Last.SeenAt) {
		t.Errorf("last_seen_at = %v, want %v", got, v.Last.SeenAt)
	}
	skipped, _ := tbl.Column("skipped_seen_at")
	if !table.IsNull(tbl.Rows[0][skipped.Ordinal]) {
		t.Errorf("skipped_seen_at = %v, want null", tbl.Rows[0][skipped.Ordinal])
	}
}

type Dims struct {
	Width  float64
	Height float64
}

type Parcel struct {
	ID    int64 `jorm:"pk auto"`
	Label string
	Box   Dims
}

func TestEngineColumnsAfterRegisterOwned(t *testing.T) {
	e := newEngine()
	names := func() []string {
		t.Helper()
		cols, err := e.Columns(&Parcel{})
		if err != nil {
			t.Fatal(err)
		}
		var out []string
		for _, c := range cols {
			out = append(out, c.ColumnName)
		}
		return out
	}

	if got := names(); !reflect.DeepEqual(got, []string{"label"}) {
		t.Fatalf("columns before = %v", got)
	}
	if _, err := e.Registry().RegisterOwned(&Dims{}, "parcel"); err != nil {
		t.Fatal(err)
	}
	if got, want := names(), []string{"label", "width", "height"}; !reflect.DeepEqual(got, want) {
		t.Errorf("columns after = %v, want %v", got, want)
	}
}

func TestEngineSetLogger(t *testing.T) {
	e := newEngine()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			l := logger.New()
			l.SetLevel(logger.LogLevelSilent)
			e.SetLogger(l)
		}
	}()
	for i := 0; i < 20; i++ {
		if _, err := e.Copy(context.Background(), &memorySink{}, sampleOrders(2)); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	var buf bytes.Buffer
	l := logger.New()
	l.SetLevel(logger.LogLevelDebug)
	l.SetOutput(&buf)
	e.SetLogger(l)
	if e.Logger() != l {
		t.Fatal("Logger did not return the logger just set")
	}
	if _, err := e.Copy(context.Background(), &memorySink{}, sampleOrders(2)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "batch 0: 2 rows to memory") {
		t.Errorf("debug output = %q", buf.String())
	}
}
