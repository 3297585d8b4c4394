package dialect

import (
	"fmt"
	"reflect"
)

type sqlserver struct{}

func (d *sqlserver) Name() string {
	return "sqlserver"
}

func (d *sqlserver) DataTypeOf(typ reflect.Type) string {
	typ = deref(typ)
	switch typ {
	case timeType:
		return "datetime2"
	case uuidType:
		return "uniqueidentifier"
	case bytesType:
		return "varbinary(max)"
	}

	switch typ.Kind() {
	case reflect.Bool:
		return "bit"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uintptr:
		return "int"
	case reflect.Int64, reflect.Uint64:
		return "bigint"
	case reflect.Float32:
		return "real"
	case reflect.Float64:
		return "float"
	case reflect.String:
		return "nvarchar(255)"
	}
	return ""
}

func (d *sqlserver) Quote(name string) string {
	return fmt.Sprintf("[%s]", name)
}

func (d *sqlserver) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index)
}

// MaxParams stays one below the 2100 parameter limit of a request.
func (d *sqlserver) MaxParams() int {
	return 2099
}

func (d *sqlserver) HasTableSQL(tableName string) (string, []any) {
	return "SELECT count(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = @p1", []any{tableName}
}
