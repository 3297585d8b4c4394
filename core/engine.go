package core

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shrek82/jbulk/logger"
	"github.com/shrek82/jbulk/model"
	"github.com/shrek82/jbulk/schema"
	"github.com/shrek82/jbulk/table"
)

// DefaultBatchSize is the number of rows handed to a sink at once.
const DefaultBatchSize = 1000

// Sink receives materialized batches. A Sink is used by one call at a time.
type Sink interface {
	Name() string
	Write(ctx context.Context, t *table.Table) (int64, error)
}

// Engine turns entity slices into tables and streams them to sinks in batches.
// It is safe for concurrent use.
type Engine struct {
	registry  *model.Registry
	projector *schema.Projector
	logger    logger.Logger
	validate  *validator.Validate
	batchSize int

	mu          sync.RWMutex
	middlewares []BatchMiddleware
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRegistry makes the engine map entities with r instead of model.DefaultRegistry.
func WithRegistry(r *model.Registry) EngineOption {
	return func(e *Engine) { e.registry = r }
}

// WithBatchSize sets the rows per batch. Zero or less keeps the default.
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithValidation checks every entity's validate tags before it is materialized.
func WithValidation() EngineOption {
	return func(e *Engine) { e.validate = validator.New(validator.WithRequiredStructEnabled()) }
}

// WithLogger sets the engine's logger.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		registry:  model.DefaultRegistry,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.New()
	}
	e.projector = schema.NewProjector(e.registry)
	e.registry.OnChange(e.projector.Invalidate)
	return e
}

// Registry returns the model registry.
func (e *Engine) Registry() *model.Registry {
	return e.registry
}

// Logger returns the engine's logger.
func (e *Engine) Logger() logger.Logger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logger
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(l logger.Logger) {
	e.mu.Lock()
	e.logger = l
	e.mu.Unlock()
}

// Use registers middleware, initializing each one.
func (e *Engine) Use(middlewares ...BatchMiddleware) error {
	for _, m := range middlewares {
		if err := m.Init(e); err != nil {
			return errors.Wrapf(err, "init middleware %s", m.Name())
		}
	}
	e.mu.Lock()
	e.middlewares = append(e.middlewares, middlewares...)
	e.mu.Unlock()
	return nil
}

// Shutdown shuts every middleware down, returning the first error.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var first error
	for _, m := range e.middlewares {
		if err := m.Shutdown(); err != nil && first == nil {
			first = errors.Wrapf(err, "shutdown middleware %s", m.Name())
		}
	}
	e.middlewares = nil
	return first
}

// Columns returns the projected columns of value's entity type.
func (e *Engine) Columns(value any) ([]schema.ColumnDescriptor, error) {
	m, err := e.registry.Entity(value)
	if err != nil {
		return nil, err
	}
	return e.projector.Project(m, m.Type)
}

// Schema returns the empty table value's entity type materializes into.
func (e *Engine) Schema(value any) (*table.Table, error) {
	m, err := e.registry.Entity(value)
	if err != nil {
		return nil, err
	}
	descs, err := e.projector.Project(m, m.Type)
	if err != nil {
		return nil, err
	}
	return table.Build(m.TableName, descs)
}

// Table prepares values and materializes them into a table. values must be a
// slice of structs or struct pointers, or a pointer to such a slice.
// BeforeInsert hooks run first, then auto_time fields still at their zero
// value are stamped and zero generated UUID keys are filled in.
func (e *Engine) Table(values any) (*table.Table, error) {
	_, t, err := e.table(values)
	return t, err
}

func (e *Engine) table(values any) (*model.Model, *table.Table, error) {
	m, items, err := e.entities(values)
	if err != nil {
		return nil, nil, err
	}
	now := time.Now()
	for i, item := range items {
		if err := e.prepare(m, item, now); err != nil {
			return nil, nil, errors.WithMessagef(err, "%s[%d]", m.Type.Name(), i)
		}
	}

	descs, err := e.projector.Project(m, m.Type)
	if err != nil {
		return nil, nil, err
	}
	t, err := table.Materialize(m.TableName, descs, values)
	if err != nil {
		return nil, nil, err
	}
	return m, t, nil
}

// Copy materializes values and writes them to sink in batches, each through
// the middleware chain. It stops at the first failed batch and reports the
// rows written before it.
func (e *Engine) Copy(ctx context.Context, sink Sink, values any) (int64, error) {
	m, t, err := e.table(values)
	if err != nil {
		return 0, err
	}
	if t.Len() == 0 {
		return 0, nil
	}

	log := e.Logger()
	run := e.chain(func(ctx context.Context, b *Batch) (*Result, error) {
		start := time.Now()
		n, err := sink.Write(ctx, b.Table)
		res := &Result{RowsAffected: n, Duration: time.Since(start), Error: err}
		log.WithFields(b.Fields()).Debug("batch %d: %d rows to %s in %v", b.Index, n, b.Sink, res.Duration)
		return res, err
	})

	var total int64
	for i, chunk := range t.Chunk(e.batchSize) {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch := &Batch{Entity: m.Type, Table: chunk, Index: i, Sink: sink.Name()}
		res, err := run(ctx, batch)
		if res != nil {
			total += res.RowsAffected
		}
		if err != nil {
			return total, fmt.Errorf("%w: %s: batch %d: %w", ErrBatchFailed, sink.Name(), i, err)
		}
	}

	if err := afterInsert(values); err != nil {
		return total, err
	}
	return total, nil
}

func (e *Engine) chain(final BatchFunc) BatchFunc {
	e.mu.RLock()
	middlewares := e.middlewares
	e.mu.RUnlock()

	next := final
	for i := len(middlewares) - 1; i >= 0; i-- {
		m, n := middlewares[i], next
		next = func(ctx context.Context, b *Batch) (*Result, error) {
			return m.Process(ctx, b, n)
		}
	}
	return next
}

// entities resolves the model of values and returns its elements as addressable struct values.
func (e *Engine) entities(values any) (*model.Model, []reflect.Value, error) {
	rv := reflect.ValueOf(values)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice {
		return nil, nil, errors.Wrapf(ErrInvalidValues, "want a slice, got %T", values)
	}
	m, err := e.registry.Entity(rv.Type())
	if err != nil {
		return nil, nil, err
	}

	items := make([]reflect.Value, rv.Len())
	for i := range items {
		item := rv.Index(i)
		for item.Kind() == reflect.Ptr || item.Kind() == reflect.Interface {
			if item.IsNil() {
				return nil, nil, errors.Wrapf(table.ErrNilEntity, "%s[%d]", m.Type.Name(), i)
			}
			item = item.Elem()
		}
		if item.Type() != m.Type {
			return nil, nil, errors.Wrapf(ErrInvalidValues, "element %d is %s, want %s", i, item.Type(), m.Type)
		}
		items[i] = item
	}
	return m, items, nil
}

var (
	timeType = reflect.TypeFor[time.Time]()
	uuidType = reflect.TypeFor[uuid.UUID]()
)

func (e *Engine) prepare(m *model.Model, item reflect.Value, now time.Time) error {
	if item.CanAddr() {
		if h, ok := item.Addr().Interface().(BeforeInserter); ok {
			if err := h.BeforeInsert(); err != nil {
				return fmt.Errorf("%w: %w", ErrHook, err)
			}
		}
	}

	if item.CanSet() {
		e.stampModel(m, item, now)
	}

	if e.validate != nil {
		if err := e.validate.Struct(item.Interface()); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	return nil
}

// stampModel fills the auto fields of m and of every owned value it holds.
// Nil owned pointers stay nil.
func (e *Engine) stampModel(m *model.Model, item reflect.Value, now time.Time) {
	for _, f := range m.Fields {
		fv, err := item.FieldByIndexErr(f.Index)
		if err != nil || !fv.CanSet() {
			continue
		}
		stamp(f, fv, now)
	}

	for name, rel := range m.Relations {
		if rel.Type != model.RelationOwnsOne {
			continue
		}
		sub, ok := e.registry.FindOwnedEntityType(rel.Target, name, m).(*model.Model)
		if !ok {
			continue
		}
		sf, ok := item.Type().FieldByName(rel.Field)
		if !ok {
			continue
		}
		ov, err := item.FieldByIndexErr(sf.Index)
		if err != nil {
			continue
		}
		if ov.Kind() == reflect.Ptr {
			if ov.IsNil() {
				continue
			}
			ov = ov.Elem()
		}
		if ov.Kind() == reflect.Struct && ov.CanSet() {
			e.stampModel(sub, ov, now)
		}
	}
}

func stamp(f *model.Field, fv reflect.Value, now time.Time) {
	switch {
	case (f.AutoTime || f.AutoUpdate) && fv.Type() == timeType:
		if fv.Interface().(time.Time).IsZero() {
			fv.Set(reflect.ValueOf(now))
		}
	case (f.AutoTime || f.AutoUpdate) && fv.Type() == reflect.PointerTo(timeType):
		if fv.IsNil() {
			t := now
			fv.Set(reflect.ValueOf(&t))
		}
	case f.Generated != schema.Never && fv.Type() == uuidType:
		if fv.Interface().(uuid.UUID) == uuid.Nil {
			fv.Set(reflect.ValueOf(uuid.New()))
		}
	case f.Generated != schema.Never && fv.Type() == reflect.PointerTo(uuidType):
		if fv.IsNil() {
			id := uuid.New()
			fv.Set(reflect.ValueOf(&id))
		}
	}
}

func afterInsert(values any) error {
	rv := reflect.ValueOf(values)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i)
		if item.Kind() != reflect.Ptr && item.CanAddr() {
			item = item.Addr()
		}
		if h, ok := item.Interface().(AfterInserter); ok {
			if err := h.AfterInsert(); err != nil {
				return fmt.Errorf("%w: %w", ErrHook, err)
			}
		}
	}
	return nil
}
