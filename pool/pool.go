package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"time"
)

// Pool defines the interface for a database connection pool.
type Pool interface {
	Close() error
	SetMaxOpenConns(n int)
	SetMaxIdleConns(n int)
	SetConnMaxLifetime(d time.Duration)
	PingContext(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Driver() driver.Driver
	Stats() sql.DBStats
}

// StdPool is an implementation of Pool using the standard library's *sql.DB.
type StdPool struct {
	*sql.DB
}

// NewStdPool creates a new StdPool wrapping the given *sql.DB.
func NewStdPool(db *sql.DB) *StdPool {
	return &StdPool{db}
}

// Configure applies the non-zero limits.
func (p *StdPool) Configure(maxOpen, maxIdle int, maxLifetime time.Duration) {
	if maxOpen > 0 {
		p.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		p.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		p.SetConnMaxLifetime(maxLifetime)
	}
}
