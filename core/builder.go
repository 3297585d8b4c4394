package core

import (
	"strings"
	"sync"

	"github.com/shrek82/jbulk/dialect"
)

// Builder builds multi-row INSERT statements. It writes "?" for every
// argument and rewrites them into the dialect's placeholders on Build.
type Builder interface {
	// SetTable sets the target table for the SQL statement.
	SetTable(name string) Builder
	// Columns sets the inserted columns, in row order.
	Columns(columns ...string) Builder
	// Rows sets how many rows of values the statement carries.
	Rows(n int) Builder
	// Build generates the final INSERT statement.
	Build() string
}

// sqlBuilder is the default implementation of the Builder interface.
type sqlBuilder struct {
	dialect dialect.Dialect // Database-specific dialect
	table   string          // Target table name
	columns []string        // Inserted columns
	rows    int             // Rows per statement
	sb      strings.Builder // Reusable string builder
}

var builderPool = sync.Pool{
	New: func() any {
		return &sqlBuilder{}
	},
}

// NewBuilder creates a new sqlBuilder instance with the given dialect.
func NewBuilder(d dialect.Dialect) Builder {
	b := builderPool.Get().(*sqlBuilder)
	b.Reset(d)
	return b
}

// PutBuilder returns a sqlBuilder to the pool for reuse.
func PutBuilder(b Builder) {
	if sb, ok := b.(*sqlBuilder); ok {
		sb.Reset(nil)
		builderPool.Put(sb)
	}
}

// Reset clears all builder state and prepares it for a new statement with the given dialect.
func (b *sqlBuilder) Reset(d dialect.Dialect) {
	b.dialect = d
	b.table = ""
	b.columns = b.columns[:0]
	b.rows = 0
	b.sb.Reset()
}

func (b *sqlBuilder) SetTable(name string) Builder {
	b.table = name
	return b
}

func (b *sqlBuilder) Columns(columns ...string) Builder {
	b.columns = append(b.columns[:0], columns...)
	return b
}

func (b *sqlBuilder) Rows(n int) Builder {
	b.rows = n
	return b
}

func (b *sqlBuilder) Build() string {
	b.sb.Reset()
	b.sb.WriteString("INSERT INTO ")
	b.sb.WriteString(b.dialect.Quote(b.table))
	b.sb.WriteString(" (")
	for i, col := range b.columns {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString(b.dialect.Quote(col))
	}
	b.sb.WriteString(") VALUES ")

	for r := 0; r < b.rows; r++ {
		if r > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteByte('(')
		for i := range b.columns {
			if i > 0 {
				b.sb.WriteString(", ")
			}
			b.sb.WriteByte('?')
		}
		b.sb.WriteByte(')')
	}
	return b.replacePlaceholders(b.sb.String())
}

func (b *sqlBuilder) replacePlaceholders(sql string) string {
	if b.dialect.Placeholder(1) == "?" || !strings.Contains(sql, "?") {
		return sql
	}

	// sql came from b.sb, so b.sb can be reused for the rewrite.
	b.sb.Reset()

	index := 1
	for {
		idx := strings.Index(sql, "?")
		if idx == -1 {
			b.sb.WriteString(sql)
			break
		}

		b.sb.WriteString(sql[:idx])
		b.sb.WriteString(b.dialect.Placeholder(index))
		sql = sql[idx+1:]
		index++
	}
	return b.sb.String()
}
