package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/cobra"

	"github.com/shrek82/jbulk"
	"github.com/shrek82/jbulk/core"
	"github.com/shrek82/jbulk/internal/sample"
	"github.com/shrek82/jbulk/middleware"
)

// BenchCmd returns the bench command
func BenchCmd() *cobra.Command {
	var (
		configPath string
		driver     string
		dsn        string
		count      int
		seed       uint64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Bulk insert generated orders and report throughput",
		Long: `Generate orders, create the orders table if it is missing and load them
with a single BulkInsert call. The connection comes from --config, or from
--driver and --dsn when no config file is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := benchConfig(configPath, driver, dsn)
			if err != nil {
				return err
			}

			db, err := jbulk.OpenConfig(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			metrics := middleware.NewMetrics("jbulk", prometheus.NewRegistry())
			if err := db.Use(middleware.NewTracing(), metrics); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := db.CreateTable(ctx, &sample.Order{}); err != nil {
				return err
			}

			orders := sample.Orders(count, seed)
			start := time.Now()
			n, err := db.BulkInsert(ctx, orders)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			out := cmd.OutOrStdout()
			sink := db.Sink()
			headerColor.Fprintf(out, "%s via %s\n", cfg.Driver, sink)
			fmt.Fprintf(out, "rows:     %d\n", n)
			fmt.Fprintf(out, "batches:  %.0f\n", testutil.ToFloat64(metrics.Batches().WithLabelValues(sink, "orders", "success")))
			fmt.Fprintf(out, "elapsed:  %v\n", elapsed.Round(time.Microsecond))
			if secs := elapsed.Seconds(); secs > 0 {
				fmt.Fprintf(out, "rate:     %.0f rows/s\n", float64(n)/secs)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&driver, "driver", "sqlite3", "database driver when no config is given")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN when no config is given")
	cmd.Flags().IntVarP(&count, "count", "n", 10000, "number of orders to insert")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "seed for generated orders")
	return cmd
}

func benchConfig(path, driver, dsn string) (*core.Config, error) {
	if path != "" {
		return core.LoadConfig(path)
	}
	cfg := &core.Config{Driver: driver, DSN: dsn}
	cfg.Log.Level = "warn"
	return cfg, cfg.Validate()
}
