package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shrek82/jbulk/core"
	"github.com/shrek82/jbulk/dialect"
	"github.com/shrek82/jbulk/internal/sample"
	"github.com/shrek82/jbulk/table"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	nullColor   = color.New(color.FgYellow)
	sqlColor    = color.New(color.FgGreen)
)

// SchemaCmd returns the schema command
func SchemaCmd() *cobra.Command {
	var dialectName string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the projected columns of the sample order and its staging table DDL",
		Long: `List the columns an Order projects to, in load order, with the Go type
each column holds and whether it accepts NULL. Owned Shipping fields are
flattened into ship_* columns and the Customer navigation is left out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, ok := dialect.Get(dialectName)
			if !ok {
				return fmt.Errorf("%w: %s", core.ErrUnknownDialect, dialectName)
			}

			e := core.NewEngine()
			descs, err := e.Columns(&sample.Order{})
			if err != nil {
				return err
			}
			t, err := e.Schema(&sample.Order{})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			headerColor.Fprintf(out, "Table %s (%d columns)\n", t.Name, len(t.Columns))
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "COLUMN\tTYPE\tACCESS\tCONVERTER\tNULL")
			for i, desc := range descs {
				col := t.Columns[i]
				converter := "-"
				if desc.Converter != nil {
					converter = desc.Converter.ProviderType().String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", col.Name, col.Type, desc.Accessor.Kind, converter, nullable(col))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			ddl, err := dialect.CreateTableSQL(d, t)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			sqlColor.Fprintln(out, ddl)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dialectName, "dialect", "d", "postgres", "SQL dialect (mysql, postgres, sqlite3, sqlserver)")
	return cmd
}

func nullable(c *table.Column) string {
	if c.AllowNull {
		return nullColor.Sprint("yes")
	}
	return "no"
}
