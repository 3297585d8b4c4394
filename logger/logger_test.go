package logger_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shrek82/jbulk/logger"
)

func newJSON(buf *bytes.Buffer) logger.Logger {
	l := logger.New()
	l.SetOutput(buf)
	l.SetFormat(logger.LogFormatJSON)
	return l
}

func TestStructuredLogger(t *testing.T) {
	t.Run("TextFormat", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := logger.New()
		l.SetOutput(buf)
		l.Info("hello %s", "world")

		output := buf.String()
		if !strings.Contains(output, "level=info") || !strings.Contains(output, "hello world") {
			t.Errorf("Unexpected text output: %s", output)
		}
	})

	t.Run("JSONFormat", func(t *testing.T) {
		buf := &bytes.Buffer{}
		newJSON(buf).Info("hello %s", "world")

		var data map[string]any
		if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatalf("Failed to unmarshal JSON output: %v", err)
		}
		if data["level"] != "info" || data["msg"] != "hello world" {
			t.Errorf("Unexpected JSON output: %v", data)
		}
		if _, ok := data["time"]; !ok {
			t.Errorf("Missing time field in JSON output")
		}
	})

	t.Run("WithFields", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := newJSON(buf)
		l.WithFields(map[string]any{"request_id": "123"}).Info("processed")

		var data map[string]any
		if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatalf("Failed to unmarshal JSON output: %v", err)
		}
		if data["request_id"] != "123" || data["msg"] != "processed" {
			t.Errorf("Unexpected JSON output with fields: %v", data)
		}

		// The parent logger keeps no fields of its children.
		buf.Reset()
		l.Info("plain")
		if strings.Contains(buf.String(), "request_id") {
			t.Errorf("fields leaked into the parent logger: %s", buf.String())
		}
	})

	t.Run("SQLJSON", func(t *testing.T) {
		buf := &bytes.Buffer{}
		newJSON(buf).SQL("INSERT INTO orders VALUES (?, ?)", 10*time.Millisecond, 1, "a")

		var data map[string]any
		if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatalf("Failed to unmarshal JSON output: %v", err)
		}
		if data["sql"] != "INSERT INTO orders VALUES (?, ?)" || data["duration"] != "10ms" {
			t.Errorf("Unexpected SQL JSON output: %v", data)
		}
		if data["args"] != float64(2) {
			t.Errorf("args = %v, want 2", data["args"])
		}
	})

	t.Run("Level", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := newJSON(buf)
		l.SetLevel(logger.LogLevelWarn)
		l.Info("hidden")
		l.SQL("SELECT 1", time.Millisecond)
		if buf.Len() != 0 {
			t.Errorf("info output below warn level: %s", buf.String())
		}
		l.Warn("shown")
		if !strings.Contains(buf.String(), "shown") {
			t.Errorf("warn output missing")
		}

		buf.Reset()
		l.SetLevel(logger.LogLevelSilent)
		l.Error("nothing")
		if buf.Len() != 0 {
			t.Errorf("silent logger wrote: %s", buf.String())
		}
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]logger.LogLevel{
		"":      logger.LogLevelInfo,
		"DEBUG": logger.LogLevelDebug,
		"warn":  logger.LogLevelWarn,
		"off":   logger.LogLevelSilent,
	}
	for in, want := range cases {
		got, err := logger.ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := logger.ParseLevel("loud"); err == nil {
		t.Errorf("expected an error for an unknown level")
	}
}
