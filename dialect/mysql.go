package dialect

import (
	"fmt"
	"reflect"
)

// MySQL dialect implementation
type mysql struct{}

func (d *mysql) Name() string {
	return "mysql"
}

func (d *mysql) DataTypeOf(typ reflect.Type) string {
	typ = deref(typ)
	switch typ {
	case timeType:
		return "datetime(6)"
	case uuidType:
		return "char(36)"
	case bytesType:
		return "longblob"
	}

	switch typ.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uintptr:
		return "int"
	case reflect.Int64, reflect.Uint64:
		return "bigint"
	case reflect.Float32, reflect.Float64:
		return "double"
	case reflect.String:
		return "varchar(255)"
	}
	return ""
}

func (d *mysql) Quote(name string) string {
	return fmt.Sprintf("`%s`", name)
}

func (d *mysql) Placeholder(index int) string {
	return "?"
}

func (d *mysql) MaxParams() int {
	return 65535
}

func (d *mysql) HasTableSQL(tableName string) (string, []any) {
	return "SELECT count(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", []any{tableName}
}
