package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shrek82/jbulk/core"
	"github.com/shrek82/jbulk/internal/sample"
	"github.com/shrek82/jbulk/logger"
	"github.com/shrek82/jbulk/middleware"
	"github.com/shrek82/jbulk/sink"
)

// StreamCmd returns the stream command
func StreamCmd() *cobra.Command {
	var (
		addr      string
		opts      sink.RedisStreamOptions
		count     int
		batchSize int
		seed      uint64
	)

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Append generated orders to a Redis stream",
		Long: `Project generated orders and append one stream entry per row. NULL
columns are left out of the entry. Each batch is sent as one pipeline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			s, err := sink.Dial(ctx, addr, &opts)
			if err != nil {
				return err
			}
			defer s.Close()

			l := logger.New()
			l.SetOutput(cmd.ErrOrStderr())
			l.SetLevel(logger.LogLevelWarn)
			e := core.NewEngine(core.WithBatchSize(batchSize), core.WithValidation(), core.WithLogger(l))
			if err := e.Use(middleware.NewCircuitBreaker(3, 5*time.Second)); err != nil {
				return err
			}
			defer e.Shutdown()

			n, err := e.Copy(ctx, s, sample.Orders(count, seed))
			if err != nil {
				return err
			}
			stream := opts.Stream
			if stream == "" {
				stream = "orders"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "appended %d entries to %s\n", n, stream)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:6379", "Redis address")
	cmd.Flags().StringVar(&opts.Stream, "stream", "", "stream key (default: table name)")
	cmd.Flags().Int64Var(&opts.MaxLen, "maxlen", 0, "trim the stream to about this many entries")
	cmd.Flags().BoolVar(&opts.Approx, "approx", true, "trim with MAXLEN ~")
	cmd.Flags().IntVarP(&count, "count", "n", 1000, "number of orders to append")
	cmd.Flags().IntVar(&batchSize, "batch", core.DefaultBatchSize, "rows per pipeline")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "seed for generated orders")
	return cmd
}
