package table

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/shrek82/jbulk/schema"
)

var (
	// ErrConversion wraps a converter failure on a single value.
	ErrConversion = errors.New("value conversion failed")
	// ErrNilEntity is returned when the item sequence holds a nil entity.
	ErrNilEntity = errors.New("nil entity")
)

// ColumnType returns the storage type of desc and whether it accepts nulls.
// The type is the converter's provider type when there is one, otherwise the
// accessed value type, with pointers unwrapped.
func ColumnType(desc schema.ColumnDescriptor) (reflect.Type, bool) {
	typ := desc.ValueType
	if desc.Converter != nil {
		typ = desc.Converter.ProviderType()
	}
	nullable := desc.Nullable || nullableKind(typ)
	// An absent value never reaches the converter, so a nullable field stays nullable.
	if desc.Converter != nil && nullableKind(desc.ValueType) {
		nullable = true
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return typ, nullable
}

func nullableKind(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	}
	return false
}

// Build creates the empty table for descs, one column per descriptor in order.
func Build(name string, descs []schema.ColumnDescriptor) (*Table, error) {
	t := New(name)
	for _, d := range descs {
		typ, nullable := ColumnType(d)
		if _, err := t.AddColumn(d.ColumnName, typ, nullable); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Materialize builds the table for descs and adds one row per element of
// items, which must be a slice or array of entities. Row i holds item i.
// Any failure discards the whole table.
func Materialize(name string, descs []schema.ColumnDescriptor, items any) (*Table, error) {
	t, err := Build(name, descs)
	if err != nil {
		return nil, err
	}

	rv := reflect.ValueOf(items)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.Errorf("materialize %s: want a slice of entities, got %T", name, items)
	}

	t.Rows = make([]Row, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		row, err := t.rowOf(descs, rv.Index(i))
		if err != nil {
			return nil, errors.WithMessagef(err, "materialize %s: row %d", name, i)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// MaterializeSlice is the typed form of Materialize.
func MaterializeSlice[T any](name string, descs []schema.ColumnDescriptor, items []T) (*Table, error) {
	return Materialize(name, descs, items)
}

func (t *Table) rowOf(descs []schema.ColumnDescriptor, item reflect.Value) (Row, error) {
	for item.Kind() == reflect.Interface || item.Kind() == reflect.Ptr {
		if item.IsNil() {
			return nil, ErrNilEntity
		}
		item = item.Elem()
	}

	row := t.NewRow()
	for _, d := range descs {
		v, ok := d.Accessor.GetValue(item)
		if ok && d.Converter != nil {
			converted, err := d.Converter.ConvertToProvider(v)
			if err != nil {
				return nil, errors.Wrapf(ErrConversion, "column %s: %v", d.ColumnName, err)
			}
			v = converted
			ok = !isNilValue(v)
		}
		if !ok {
			v = nil
		}
		if err := t.Set(row, d.ColumnName, v); err != nil {
			return nil, err
		}
	}
	return row, nil
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
