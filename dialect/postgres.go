package dialect

import (
	"fmt"
	"reflect"
)

// PostgreSQL dialect implementation
type postgres struct{}

func (d *postgres) Name() string {
	return "postgres"
}

func (d *postgres) DataTypeOf(typ reflect.Type) string {
	typ = deref(typ)
	switch typ {
	case timeType:
		return "timestamp with time zone"
	case uuidType:
		return "uuid"
	case bytesType:
		return "bytea"
	}

	switch typ.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uintptr:
		return "integer"
	case reflect.Int64, reflect.Uint64:
		return "bigint"
	case reflect.Float32:
		return "real"
	case reflect.Float64:
		return "double precision"
	case reflect.String:
		return "text"
	}
	return ""
}

func (d *postgres) Quote(name string) string {
	// PostgreSQL uses double quotes for identifiers
	return fmt.Sprintf(`"%s"`, name)
}

func (d *postgres) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *postgres) MaxParams() int {
	return 65535
}

func (d *postgres) HasTableSQL(tableName string) (string, []any) {
	return "SELECT count(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1", []any{tableName}
}
