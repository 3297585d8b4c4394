package core_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shrek82/jbulk/core"
)

const sampleConfig = `
driver: sqlite3
dsn: file:bulk.db
max_open_conns: 4
conn_max_lifetime: 5m
batch_size: 500
validate_entities: true
log:
  level: warn
  format: json
slow_threshold: 250ms
slow_log_path: slow.log
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jbulk.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := core.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Driver != "sqlite3" || cfg.BatchSize != 500 || !cfg.ValidateEntities {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.ConnMaxLifetime != 5*time.Minute || cfg.SlowThreshold != 250*time.Millisecond {
		t.Errorf("durations not decoded: %v, %v", cfg.ConnMaxLifetime, cfg.SlowThreshold)
	}

	opts, err := cfg.Options()
	if err != nil {
		t.Fatal(err)
	}
	if opts.MaxOpenConns != 4 || !opts.Validate || opts.Logger == nil {
		t.Errorf("unexpected options: %+v", opts)
	}
}

func TestParseConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown driver": "driver: oracle\ndsn: x\n",
		"missing dsn":    "driver: mysql\n",
		"negative batch": "driver: mysql\ndsn: x\nbatch_size: -1\n",
		"bad log level":  "driver: mysql\ndsn: x\nlog:\n  level: loud\n",
		"not yaml":       "driver: [mysql\n",
	}
	for name, data := range cases {
		if _, err := core.ParseConfig([]byte(data)); !errors.Is(err, core.ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}

	if _, err := core.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("missing file: expected ErrInvalidConfig, got %v", err)
	}
}

func TestOpenConfig(t *testing.T) {
	cfg, err := core.ParseConfig([]byte("driver: sqlite3\ndsn: " + filepath.Join(t.TempDir(), "c.db") + "\nlog:\n  level: silent\n"))
	if err != nil {
		t.Fatal(err)
	}
	db, err := core.OpenConfig(cfg)
	if err != nil {
		t.Fatalf("OpenConfig failed: %v", err)
	}
	defer db.Close()
	if db.Dialect().Name() != "sqlite3" {
		t.Errorf("dialect = %s", db.Dialect().Name())
	}
}
