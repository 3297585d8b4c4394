// Package jbulk projects entities onto flat tables and bulk loads them.
package jbulk

import (
	"github.com/shrek82/jbulk/core"
	"github.com/shrek82/jbulk/middleware"
	"github.com/shrek82/jbulk/model"
	"github.com/shrek82/jbulk/schema"
	"github.com/shrek82/jbulk/table"
)

// Re-export core types and functions
type DB = core.DB
type Tx = core.Tx
type Options = core.Options
type Config = core.Config
type Engine = core.Engine
type Sink = core.Sink
type Batch = core.Batch
type BatchMiddleware = core.BatchMiddleware

// Re-export table types
type Table = table.Table
type Column = table.Column
type ColumnDescriptor = schema.ColumnDescriptor

var (
	Open       = core.Open
	NewEngine  = core.NewEngine
	LoadConfig = core.LoadConfig
	Null       = table.Null
	IsNull     = table.IsNull
	Register   = model.DefaultRegistry.Register
)

// OpenConfig opens a DB from c. A slow-batch log is installed when
// slow_threshold or slow_log_path is set.
func OpenConfig(c *Config) (*DB, error) {
	db, err := core.OpenConfig(c)
	if err != nil {
		return nil, err
	}
	if c.SlowThreshold > 0 || c.SlowLogPath != "" {
		if err := db.Use(middleware.NewSlowLog(c.SlowThreshold, c.SlowLogPath)); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

var defaultEngine = core.NewEngine()

// Project returns the flattened columns of value's entity type.
func Project(value any) ([]ColumnDescriptor, error) {
	return defaultEngine.Columns(value)
}

// Materialize prepares values and builds the table they load as.
func Materialize(values any) (*Table, error) {
	return defaultEngine.Table(values)
}
