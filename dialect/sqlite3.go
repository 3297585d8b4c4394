package dialect

import (
	"fmt"
	"reflect"
)

// SQLite dialect implementation
type sqlite3 struct{}

func (d *sqlite3) Name() string {
	return "sqlite3"
}

func (d *sqlite3) DataTypeOf(typ reflect.Type) string {
	typ = deref(typ)
	switch typ {
	case timeType:
		return "datetime"
	case uuidType:
		return "text"
	case bytesType:
		return "blob"
	}

	switch typ.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uintptr,
		reflect.Int64, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "real"
	case reflect.String:
		return "text"
	}
	return ""
}

func (d *sqlite3) Quote(name string) string {
	return fmt.Sprintf("`%s`", name)
}

func (d *sqlite3) Placeholder(index int) string {
	return "?"
}

// MaxParams is SQLITE_MAX_VARIABLE_NUMBER of the bundled sqlite.
func (d *sqlite3) MaxParams() int {
	return 32766
}

func (d *sqlite3) HasTableSQL(tableName string) (string, []any) {
	return "SELECT count(*) FROM sqlite_master WHERE type='table' AND name = ?", []any{tableName}
}
