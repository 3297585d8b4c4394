package table

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

var (
	// ErrDuplicateColumn is returned when two columns share a name.
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrUnknownColumn is returned when a value targets a column the table does not have.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrNullViolation is returned when a null is stored in a column that does not allow it.
	ErrNullViolation = errors.New("null value in non-nullable column")
	// ErrTypeMismatch is returned when a value cannot be stored as the column's type.
	ErrTypeMismatch = errors.New("value type does not match column")
)

// DBNull is the type of the Null sentinel.
type DBNull struct{}

func (DBNull) String() string { return "NULL" }

// Null marks an absent value in a row.
var Null = DBNull{}

// IsNull reports whether v is the Null sentinel.
func IsNull(v any) bool {
	_, ok := v.(DBNull)
	return ok
}

// Column is a typed column of a Table.
type Column struct {
	Name      string
	Type      reflect.Type
	AllowNull bool
	Ordinal   int
}

// Row holds one value per column, in column order.
type Row []any

// Table is an in-memory table: ordered typed columns and ordered rows.
type Table struct {
	Name    string
	Columns []*Column
	Rows    []Row
	index   map[string]int
}

// New creates an empty table.
func New(name string) *Table {
	return &Table{Name: name, index: make(map[string]int)}
}

// AddColumn appends a column. Names are unique within a table.
func (t *Table) AddColumn(name string, typ reflect.Type, allowNull bool) (*Column, error) {
	if _, ok := t.index[name]; ok {
		return nil, errors.Wrapf(ErrDuplicateColumn, "table: %s, column: %s", t.Name, name)
	}
	col := &Column{Name: name, Type: typ, AllowNull: allowNull, Ordinal: len(t.Columns)}
	t.Columns = append(t.Columns, col)
	t.index[name] = col.Ordinal
	return col, nil
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.Columns[i], true
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// NewRow returns a row with every value set to Null.
func (t *Table) NewRow() Row {
	row := make(Row, len(t.Columns))
	for i := range row {
		row[i] = Null
	}
	return row
}

// Set stores v in the named column of row. A nil v, or a nil pointer, is
// stored as Null; other pointers are stored as the value they point to.
// Numeric values are converted to the column's numeric type.
func (t *Table) Set(row Row, name string, v any) error {
	i, ok := t.index[name]
	if !ok {
		return errors.Wrapf(ErrUnknownColumn, "table: %s, column: %s", t.Name, name)
	}
	col := t.Columns[i]

	if isNilValue(v) || IsNull(v) {
		if !col.AllowNull {
			return errors.Wrapf(ErrNullViolation, "table: %s, column: %s", t.Name, name)
		}
		row[i] = Null
		return nil
	}

	stored, err := coerce(v, col.Type)
	if err != nil {
		return errors.Wrapf(err, "table: %s, column: %s", t.Name, name)
	}
	row[i] = stored
	return nil
}

// AddRow appends row after checking its width.
func (t *Table) AddRow(row Row) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("table %s: row has %d values, want %d", t.Name, len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Chunk splits the rows into tables of at most size rows sharing t's columns.
func (t *Table) Chunk(size int) []*Table {
	if size <= 0 || len(t.Rows) <= size {
		return []*Table{t}
	}
	var chunks []*Table
	for start := 0; start < len(t.Rows); start += size {
		end := min(start+size, len(t.Rows))
		chunks = append(chunks, &Table{
			Name:    t.Name,
			Columns: t.Columns,
			Rows:    t.Rows[start:end],
			index:   t.index,
		})
	}
	return chunks
}

// Args returns the rows flattened column by column, with Null as nil.
func (t *Table) Args() []any {
	args := make([]any, 0, len(t.Rows)*len(t.Columns))
	for _, row := range t.Rows {
		for _, v := range row {
			if IsNull(v) {
				v = nil
			}
			args = append(args, v)
		}
	}
	return args
}

func coerce(v any, typ reflect.Type) (any, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr && typ.Kind() != reflect.Ptr {
		rv = rv.Elem()
		v = rv.Interface()
	}
	if rv.Type() == typ {
		return v, nil
	}
	if isNumeric(rv.Kind()) && isNumeric(typ.Kind()) {
		return rv.Convert(typ).Interface(), nil
	}
	if rv.Kind() == typ.Kind() && rv.Type().ConvertibleTo(typ) && rv.Kind() != reflect.Struct {
		return rv.Convert(typ).Interface(), nil
	}
	return nil, errors.Wrapf(ErrTypeMismatch, "want %s, got %T", typ, v)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
