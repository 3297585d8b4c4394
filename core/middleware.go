package core

import (
	"context"
	"reflect"
	"time"

	"github.com/shrek82/jbulk/table"
)

// Component is the base interface for all jbulk components/middleware.
type Component interface {
	Name() string
	Init(e *Engine) error
	Shutdown() error
}

// Batch is one chunk of rows on its way to a sink.
type Batch struct {
	Entity reflect.Type
	Table  *table.Table
	Index  int // position of the batch within the call
	Sink   string

	fields map[string]any
}

// WithFields adds fields to every log line written for the batch.
func (b *Batch) WithFields(fields map[string]any) {
	if b.fields == nil {
		b.fields = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		b.fields[k] = v
	}
}

// Fields returns the log fields attached to the batch.
func (b *Batch) Fields() map[string]any {
	return b.fields
}

// Result represents the outcome of writing one batch.
type Result struct {
	RowsAffected int64
	Duration     time.Duration
	Error        error
}

// BatchFunc is the function type for the next step in the middleware chain.
type BatchFunc func(ctx context.Context, batch *Batch) (*Result, error)

// BatchMiddleware is the interface for batch interceptors.
type BatchMiddleware interface {
	Component
	Process(ctx context.Context, batch *Batch, next BatchFunc) (*Result, error)
}
