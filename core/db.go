package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/shrek82/jbulk/dialect"
	"github.com/shrek82/jbulk/logger"
	"github.com/shrek82/jbulk/model"
	"github.com/shrek82/jbulk/pool"
	"github.com/shrek82/jbulk/table"
)

// Options defines the configuration for the DB connection pool and the bulk engine.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// BatchSize is the rows per batch; DefaultBatchSize when zero.
	BatchSize int
	// LocalInfile loads MySQL batches with LOAD DATA LOCAL INFILE instead of INSERT.
	LocalInfile bool
	// DisableCopy makes PostgreSQL use INSERT instead of COPY.
	DisableCopy bool
	// Validate checks entities' validate tags before they are inserted.
	Validate bool
	Registry *model.Registry
	Logger   logger.Logger
}

// DB is the main entry point for bulk loading into a database.
// It owns the connection pool and an Engine that prepares the batches.
type DB struct {
	pool    pool.Pool
	dialect dialect.Dialect
	engine  *Engine
	opts    Options
}

// Open initializes a new DB instance with the given driver and DSN.
func Open(driver, dsn string, opts *Options) (*DB, error) {
	d, ok := dialect.Get(driver)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDialect, driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	return New(sqlDB, d, opts)
}

// New wraps an open *sql.DB. The connection is checked with a ping.
func New(sqlDB *sql.DB, d dialect.Dialect, opts *Options) (*DB, error) {
	var o Options
	if opts != nil {
		o = *opts
	}

	p := pool.NewStdPool(sqlDB)
	p.Configure(o.MaxOpenConns, o.MaxIdleConns, o.ConnMaxLifetime)

	if err := p.PingContext(context.Background()); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	l := o.Logger
	if l == nil {
		l = logger.New()
	}
	engineOpts := []EngineOption{WithBatchSize(o.BatchSize), WithLogger(l)}
	if o.Registry != nil {
		engineOpts = append(engineOpts, WithRegistry(o.Registry))
	}
	if o.Validate {
		engineOpts = append(engineOpts, WithValidation())
	}

	return &DB{
		pool:    p,
		dialect: d,
		engine:  NewEngine(engineOpts...),
		opts:    o,
	}, nil
}

// Close shuts the middleware down and closes the database connection.
func (db *DB) Close() error {
	err := db.engine.Shutdown()
	if cerr := db.pool.Close(); cerr != nil {
		return cerr
	}
	return err
}

// SetLogger sets a custom logger for the DB and its engine.
func (db *DB) SetLogger(l logger.Logger) {
	db.engine.SetLogger(l)
}

// Use registers batch middleware.
func (db *DB) Use(middlewares ...BatchMiddleware) error {
	return db.engine.Use(middlewares...)
}

// Engine returns the engine preparing the DB's batches.
func (db *DB) Engine() *Engine {
	return db.engine
}

// Dialect returns the DB's dialect.
func (db *DB) Dialect() dialect.Dialect {
	return db.dialect
}

// Stats returns the connection pool statistics.
func (db *DB) Stats() sql.DBStats {
	return db.pool.Stats()
}

// logSQL logs the SQL execution if a logger is set.
func (db *DB) logSQL(sql string, duration time.Duration, args ...any) {
	if l := db.engine.Logger(); l != nil {
		l.SQL(sql, duration, args...)
	}
}

// Exec executes a raw SQL statement without returning any rows.
func (db *DB) Exec(ctx context.Context, sql string, args ...any) (sql.Result, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, ErrInvalidSQL
	}
	start := time.Now()
	res, err := db.pool.ExecContext(ctx, sql, args...)
	db.logSQL(sql, time.Since(start), args...)
	return res, err
}

// Transaction executes a function within a database transaction.
// The transaction is rolled back if fn returns an error or panics.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	start := time.Now()
	sqlTx, err := db.pool.BeginTx(ctx, nil)
	db.logSQL("BEGIN", time.Since(start))
	if err != nil {
		return err
	}

	tx := &Tx{
		db:    db,
		sqlTx: sqlTx,
	}

	defer func() {
		if p := recover(); p != nil {
			start := time.Now()
			_ = sqlTx.Rollback()
			db.logSQL("ROLLBACK", time.Since(start))
			panic(p)
		} else if err != nil {
			start := time.Now()
			_ = sqlTx.Rollback()
			db.logSQL("ROLLBACK", time.Since(start))
		} else {
			start := time.Now()
			err = sqlTx.Commit()
			db.logSQL("COMMIT", time.Since(start))
		}
	}()

	err = fn(tx)
	return err
}

// BulkInsert inserts values, a slice of one entity type, in a single
// transaction. Either every row is inserted or none is.
func (db *DB) BulkInsert(ctx context.Context, values any) (int64, error) {
	var n int64
	err := db.Transaction(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.BulkInsert(ctx, values)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Sink returns the name of the loader BulkInsert uses: "copy", "infile" or "insert".
func (db *DB) Sink() string {
	switch db.dialect.Name() {
	case "postgres":
		if !db.opts.DisableCopy {
			return "copy"
		}
	case "mysql":
		if db.opts.LocalInfile {
			return "infile"
		}
	}
	return "insert"
}

// HasTable reports whether the named table exists.
func (db *DB) HasTable(ctx context.Context, name string) (bool, error) {
	sqlStr, args := db.dialect.HasTableSQL(name)
	var count int
	if err := db.pool.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateTable creates the table value's entity type materializes into, if it doesn't exist.
func (db *DB) CreateTable(ctx context.Context, value any) error {
	t, err := db.engine.Schema(value)
	if err != nil {
		return err
	}
	return db.createTable(ctx, t)
}

func (db *DB) createTable(ctx context.Context, t *table.Table) error {
	exists, err := db.HasTable(ctx, t.Name)
	if err != nil || exists {
		return err
	}
	createSQL, err := dialect.CreateTableSQL(db.dialect, t)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, createSQL)
	return errors.Wrapf(err, "create table %s", t.Name)
}
