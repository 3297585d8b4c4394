package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Tx represents a database transaction.
type Tx struct {
	db    *DB
	sqlTx *sql.Tx
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	if err := tx.sqlTx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	if err := tx.sqlTx.Rollback(); err != nil {
		return fmt.Errorf("transaction rollback failed: %w", err)
	}
	return nil
}

// ExecContext executes a query that doesn't return rows, such as an INSERT.
func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := tx.sqlTx.ExecContext(ctx, query, args...)
	tx.db.logSQL(query, time.Since(start), args...)
	if err != nil {
		return nil, fmt.Errorf("transaction exec failed: %w", err)
	}
	return res, nil
}

// PrepareContext creates a prepared statement bound to the transaction.
func (tx *Tx) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	stmt, err := tx.sqlTx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("transaction prepare failed: %w", err)
	}
	return stmt, nil
}

// QueryRowContext executes a query that is expected to return at most one row.
func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.sqlTx.QueryRowContext(ctx, query, args...)
}

// BulkInsert writes values within the transaction using the fastest loader
// the driver supports: COPY on PostgreSQL, LOAD DATA LOCAL INFILE on MySQL
// when enabled, multi-row INSERT otherwise.
func (tx *Tx) BulkInsert(ctx context.Context, values any) (int64, error) {
	return tx.db.engine.Copy(ctx, tx.Sink(), values)
}

// Sink returns the loader BulkInsert writes batches with.
func (tx *Tx) Sink() Sink {
	switch tx.db.Sink() {
	case "copy":
		return &copySink{tx: tx}
	case "infile":
		return &infileSink{tx: tx}
	}
	return &insertSink{tx: tx}
}
