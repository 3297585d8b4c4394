package dialect

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shrek82/jbulk/table"
)

// ErrUnsupportedType is returned when a column type has no SQL type in a dialect.
var ErrUnsupportedType = errors.New("unsupported column type")

// Dialect represents the interface for database-specific SQL generation and type mapping.
// Each database (MySQL, SQLite, etc.) must implement this interface to be supported.
type Dialect interface {
	// Name is the database/sql driver name the dialect is registered under
	Name() string
	// DataTypeOf returns the database-specific data type for a Go reflect.Type, or "" if there is none
	DataTypeOf(typ reflect.Type) string
	// Quote wraps a name (table or column) in database-specific quotes
	Quote(name string) string
	// Placeholder returns the bind parameter for the 1-based argument index
	Placeholder(index int) string
	// MaxParams is the largest number of bind parameters one statement may carry
	MaxParams() int
	// HasTableSQL generates the SQL to check if a table exists
	HasTableSQL(tableName string) (string, []any)
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

func init() {
	Register("mysql", &mysql{})
	Register("postgres", &postgres{})
	Register("sqlite3", &sqlite3{})
	Register("sqlserver", &sqlserver{})
}

// Register registers a new dialect for a given driver name
func Register(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// Get retrieves a registered dialect by driver name
func Get(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}

// RowsPerStatement returns how many rows of width columns fit in one statement.
func RowsPerStatement(d Dialect, width int) int {
	if width <= 0 {
		return 1
	}
	return max(d.MaxParams()/width, 1)
}

// CreateTableSQL generates the CREATE TABLE statement for the columns of t.
func CreateTableSQL(d Dialect, t *table.Table) (string, error) {
	var columns []string
	for _, col := range t.Columns {
		typ := d.DataTypeOf(col.Type)
		if typ == "" {
			return "", errors.Wrapf(ErrUnsupportedType, "%s: column %s has type %s", d.Name(), col.Name, col.Type)
		}
		column := fmt.Sprintf("%s %s", d.Quote(col.Name), typ)
		if !col.AllowNull {
			column += " NOT NULL"
		}
		columns = append(columns, column)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", d.Quote(t.Name), strings.Join(columns, ", ")), nil
}

var (
	timeType  = reflect.TypeFor[time.Time]()
	uuidType  = reflect.TypeFor[uuid.UUID]()
	bytesType = reflect.TypeFor[[]byte]()
)

func deref(typ reflect.Type) reflect.Type {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return typ
}
