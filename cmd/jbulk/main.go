package main

import (
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/shrek82/jbulk/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jbulk",
		Short: "jbulk - project entities onto flat tables and bulk load them",
		Long: `jbulk flattens Go entities into table rows and loads them in batches
with the fastest writer the target supports: COPY on PostgreSQL, LOAD DATA
on MySQL, multi-row INSERT elsewhere, or XADD into a Redis stream.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.SchemaCmd())
	rootCmd.AddCommand(cli.BenchCmd())
	rootCmd.AddCommand(cli.StreamCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
