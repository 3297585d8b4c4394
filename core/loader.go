package core

import (
	"bufio"
	"bytes"
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/shrek82/jbulk/dialect"
	"github.com/shrek82/jbulk/table"
)

// ErrNoColumns is returned when an entity has nothing to insert.
var ErrNoColumns = errors.New("table has no insertable columns")

// insertSink writes multi-row INSERT statements, as many rows per statement
// as the dialect's parameter limit allows.
type insertSink struct {
	tx *Tx
}

func (s *insertSink) Name() string {
	return "insert"
}

func (s *insertSink) Write(ctx context.Context, t *table.Table) (int64, error) {
	if len(t.Columns) == 0 {
		return 0, errors.Wrap(ErrNoColumns, t.Name)
	}
	d := s.tx.db.dialect
	columns := t.ColumnNames()

	var total int64
	for _, chunk := range t.Chunk(dialect.RowsPerStatement(d, len(columns))) {
		b := NewBuilder(d).SetTable(t.Name).Columns(columns...).Rows(chunk.Len())
		query := b.Build()
		PutBuilder(b)

		res, err := s.tx.ExecContext(ctx, query, chunk.Args()...)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = int64(chunk.Len())
		}
		total += n
	}
	return total, nil
}

// copySink streams rows with PostgreSQL's COPY FROM STDIN.
type copySink struct {
	tx *Tx
}

func (s *copySink) Name() string {
	return "copy"
}

func (s *copySink) Write(ctx context.Context, t *table.Table) (n int64, err error) {
	if len(t.Columns) == 0 {
		return 0, errors.Wrap(ErrNoColumns, t.Name)
	}
	start := time.Now()
	query := pq.CopyIn(t.Name, t.ColumnNames()...)
	defer func() { s.tx.db.logSQL(query, time.Since(start)) }()

	stmt, err := s.tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close copy")
		}
	}()

	args := make([]any, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			if table.IsNull(v) {
				v = nil
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, errors.Wrap(err, "copy row")
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, errors.Wrap(err, "copy flush")
	}
	return int64(t.Len()), nil
}

// infileSink loads rows with MySQL's LOAD DATA LOCAL INFILE from an
// in-memory reader registered with the driver.
type infileSink struct {
	tx *Tx
}

func (s *infileSink) Name() string {
	return "infile"
}

func (s *infileSink) Write(ctx context.Context, t *table.Table) (int64, error) {
	if len(t.Columns) == 0 {
		return 0, errors.Wrap(ErrNoColumns, t.Name)
	}
	var buf bytes.Buffer
	if err := WriteInfile(&buf, t); err != nil {
		return 0, err
	}

	name := "jbulk-" + uuid.NewString()
	mysql.RegisterReaderHandler(name, func() io.Reader { return &buf })
	defer mysql.DeregisterReaderHandler(name)

	res, err := s.tx.ExecContext(ctx, InfileSQL(s.tx.db.dialect, name, t))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InfileSQL is the LOAD DATA statement reading t's columns from the registered reader name.
// It matches the format of WriteInfile.
func InfileSQL(d dialect.Dialect, reader string, t *table.Table) string {
	columns := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = d.Quote(c.Name)
	}
	return fmt.Sprintf("LOAD DATA LOCAL INFILE 'Reader::%s' INTO TABLE %s CHARACTER SET utf8mb4 "+
		`FIELDS TERMINATED BY ',' ENCLOSED BY '"' ESCAPED BY '' LINES TERMINATED BY '\n' (%s)`,
		reader, d.Quote(t.Name), strings.Join(columns, ", "))
}

// WriteInfile writes t's rows as LOAD DATA input: every value enclosed in
// double quotes with embedded quotes doubled, nulls as a bare NULL.
func WriteInfile(w io.Writer, t *table.Table) error {
	bw := bufio.NewWriter(w)
	for _, row := range t.Rows {
		for i, v := range row {
			if i > 0 {
				bw.WriteByte(',')
			}
			if table.IsNull(v) {
				bw.WriteString("NULL")
				continue
			}
			s, err := infileValue(v)
			if err != nil {
				return errors.Wrapf(err, "column %s", t.Columns[i].Name)
			}
			if s == nil {
				bw.WriteString("NULL")
				continue
			}
			bw.WriteByte('"')
			bw.Write(bytes.ReplaceAll(s, []byte(`"`), []byte(`""`)))
			bw.WriteByte('"')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func infileValue(v any) ([]byte, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return nil, err
		}
		if dv == nil {
			return nil, nil
		}
		v = dv
	}

	switch x := v.(type) {
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	case bool:
		if x {
			return []byte("1"), nil
		}
		return []byte("0"), nil
	case time.Time:
		return []byte(x.UTC().Format("2006-01-02 15:04:05.999999")), nil
	case float32:
		return strconv.AppendFloat(nil, float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.AppendFloat(nil, x, 'g', -1, 64), nil
	}
	return fmt.Append(nil, v), nil
}
