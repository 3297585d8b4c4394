package middleware

import (
	"context"
	"io"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/shrek82/jbulk/core"
	"github.com/shrek82/jbulk/logger"
)

// SlowLogMiddleware logs batches that take longer than the specified threshold.
type SlowLogMiddleware struct {
	Threshold time.Duration
	LogPath   string
	logger    logger.Logger
	file      *lumberjack.Logger
}

// NewSlowLog creates a new SlowLogMiddleware.
// threshold: batches taking longer than this will be logged.
// logPath: path to a rotated log file. If empty, logs go to the engine's logger.
func NewSlowLog(threshold time.Duration, logPath string) *SlowLogMiddleware {
	return &SlowLogMiddleware{
		Threshold: threshold,
		LogPath:   logPath,
	}
}

// SetOutput sets the output destination for the logger.
// This is useful for testing or custom logging.
func (m *SlowLogMiddleware) SetOutput(w io.Writer) {
	l := logger.New()
	l.SetOutput(w)
	m.logger = l.WithFields(map[string]any{"component": "slow_batch"})
}

func (m *SlowLogMiddleware) Name() string {
	return "SlowLog"
}

func (m *SlowLogMiddleware) Init(e *core.Engine) error {
	// If logger is already set (e.g. by SetOutput), don't overwrite it
	if m.logger != nil {
		return nil
	}

	if m.LogPath != "" {
		m.file = &lumberjack.Logger{
			Filename:   m.LogPath,
			MaxSize:    100, // MB
			MaxBackups: 7,
			MaxAge:     7, // days
		}
		m.SetOutput(m.file)
		return nil
	}
	m.logger = e.Logger().WithFields(map[string]any{"component": "slow_batch"})
	return nil
}

func (m *SlowLogMiddleware) Shutdown() error {
	if m.file != nil {
		return m.file.Close()
	}
	return nil
}

func (m *SlowLogMiddleware) Process(ctx context.Context, batch *core.Batch, next core.BatchFunc) (*core.Result, error) {
	start := time.Now()
	res, err := next(ctx, batch)
	duration := time.Since(start)

	if duration > m.Threshold {
		var rows int64
		if res != nil {
			rows = res.RowsAffected
		}
		m.logger.WithFields(batch.Fields()).Warn("duration=%v | table=%s | batch=%d | rows=%d/%d | sink=%s | err=%v",
			duration, batch.Table.Name, batch.Index, rows, batch.Table.Len(), batch.Sink, err)
	}

	return res, err
}
