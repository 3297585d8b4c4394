package core

import (
	"errors"
)

var (
	// ErrUnknownDialect is returned when no dialect is registered for a driver.
	ErrUnknownDialect = errors.New("unknown dialect")
	// ErrInvalidValues is returned when the values to insert are not a slice of one entity type.
	ErrInvalidValues = errors.New("invalid values")
	// ErrValidation is returned when an entity fails its validate tags.
	ErrValidation = errors.New("entity validation failed")
	// ErrHook is returned when a BeforeInsert or AfterInsert hook fails.
	ErrHook = errors.New("insert hook failed")
	// ErrBatchFailed is returned when a batch could not be written to its sink.
	ErrBatchFailed = errors.New("batch failed")
	// ErrConnectionFailed is returned when the database connection cannot be established or is lost.
	ErrConnectionFailed = errors.New("connection failed")
	// ErrInvalidSQL is returned when a raw SQL statement is empty.
	ErrInvalidSQL = errors.New("invalid sql")
	// ErrInvalidConfig is returned when a configuration file cannot be loaded or fails validation.
	ErrInvalidConfig = errors.New("invalid config")
)
