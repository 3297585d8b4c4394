package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LogLevel defines the severity of the log
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// LogFormat defines the output format of the log
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Logger is the interface for logging SQL and internal messages
type Logger interface {
	SetLevel(level LogLevel)
	SetFormat(format LogFormat)
	SetOutput(w io.Writer)
	WithFields(fields map[string]any) Logger
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	SQL(sql string, duration time.Duration, args ...any)
}

// ParseLevel maps a level name from configuration to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "off":
		return LogLevelSilent, nil
	case "error":
		return LogLevelError, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "", "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	}
	return LogLevelInfo, errors.Errorf("unknown log level %q", s)
}

// logrusLogger is the default implementation of Logger
type logrusLogger struct {
	base   *logrus.Logger
	entry  *logrus.Entry
	format *LogFormat
}

// New creates a logger writing text at info level to stdout.
func New() Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	return FromLogrus(l)
}

// FromLogrus wraps an existing logrus logger. Its level and formatter are reset to jbulk's defaults.
func FromLogrus(l *logrus.Logger) Logger {
	format := LogFormatText
	ll := &logrusLogger{base: l, entry: logrus.NewEntry(l), format: &format}
	ll.SetLevel(LogLevelInfo)
	ll.SetFormat(LogFormatText)
	return ll
}

func (l *logrusLogger) SetLevel(level LogLevel) {
	switch level {
	case LogLevelSilent:
		l.base.SetLevel(logrus.PanicLevel)
	case LogLevelError:
		l.base.SetLevel(logrus.ErrorLevel)
	case LogLevelWarn:
		l.base.SetLevel(logrus.WarnLevel)
	case LogLevelInfo:
		l.base.SetLevel(logrus.InfoLevel)
	default:
		l.base.SetLevel(logrus.DebugLevel)
	}
}

func (l *logrusLogger) SetFormat(format LogFormat) {
	*l.format = format
	if format == LogFormatJSON {
		l.base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
		return
	}
	l.base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
}

func (l *logrusLogger) SetOutput(w io.Writer) {
	l.base.SetOutput(w)
}

func (l *logrusLogger) WithFields(fields map[string]any) Logger {
	return &logrusLogger{
		base:   l.base,
		entry:  l.entry.WithFields(logrus.Fields(fields)),
		format: l.format,
	}
}

func (l *logrusLogger) Debug(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

func (l *logrusLogger) Info(format string, args ...any) {
	l.entry.Infof(format, args...)
}

func (l *logrusLogger) Warn(format string, args ...any) {
	l.entry.Warnf(format, args...)
}

func (l *logrusLogger) Error(format string, args ...any) {
	l.entry.Errorf(format, args...)
}

func (l *logrusLogger) SQL(sql string, duration time.Duration, args ...any) {
	if !l.base.IsLevelEnabled(logrus.InfoLevel) {
		return
	}
	if *l.format == LogFormatJSON {
		l.entry.WithFields(logrus.Fields{
			"sql":      sql,
			"duration": duration.String(),
			"args":     len(args),
		}).Info("sql")
		return
	}
	msg := fmt.Sprintf("[%v] %s | args: %d", duration, sql, len(args))
	l.entry.Info(sqlColor(sql).Sprint(msg))
}

// sqlColor picks a colour by statement kind. fatih/color drops it when the output is not a terminal.
func sqlColor(sqlStr string) *color.Color {
	s := strings.TrimSpace(strings.ToUpper(sqlStr))
	switch {
	case strings.HasPrefix(s, "SELECT"):
		return color.New(color.FgYellow)
	case strings.HasPrefix(s, "INSERT"), strings.HasPrefix(s, "COPY"), strings.HasPrefix(s, "LOAD"):
		return color.New(color.FgGreen)
	case strings.HasPrefix(s, "DELETE"), strings.HasPrefix(s, "DROP"):
		return color.New(color.FgRed)
	default:
		return color.New(color.FgCyan)
	}
}
