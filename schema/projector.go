package schema

import (
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shrek82/jbulk/convert"
)

// ErrUnresolvedOwnedType is returned when an owned field's entity type cannot be found.
var ErrUnresolvedOwnedType = errors.New("owned entity type not found")

// ColumnDescriptor is one projected column of an entity.
type ColumnDescriptor struct {
	ColumnName string
	Accessor   Accessor
	// ValueType is the Go type of the field the accessor reads.
	ValueType reflect.Type
	// Converter is nil when values are stored as-is.
	Converter convert.Converter
	// Nullable is set when the accessor can come back absent
	// because of the path to the field rather than the field's own type.
	Nullable bool
}

var uuidType = reflect.TypeFor[uuid.UUID]()

// IsUUID reports whether typ is uuid.UUID or a pointer to it.
func IsUUID(typ reflect.Type) bool {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return typ == uuidType
}

// IsOwnedProp reports whether field's type is mapped as an owned entity.
func IsOwnedProp(m Model, field reflect.StructField) bool {
	et := m.FindEntityType(deref(field.Type))
	return et != nil && et.IsOwned()
}

// IsNavigationProp reports whether entity declares field as a navigation.
func IsNavigationProp(entity EntityType, field reflect.StructField) bool {
	return entity.FindNavigation(field.Name) != nil
}

// Project returns the insertable columns of entity, reading values from typ.
// Navigations, unmapped fields and store-generated non-UUID fields are left
// out; owned fields are flattened into their sub-fields in place.
func Project(m Model, entity EntityType, typ reflect.Type) ([]ColumnDescriptor, error) {
	typ = deref(typ)
	if typ.Kind() != reflect.Struct {
		return nil, errors.Errorf("cannot project %s, want a struct", typ)
	}

	var columns []ColumnDescriptor
	for _, field := range readableFields(typ) {
		owned := IsOwnedProp(m, field)
		if !owned && IsNavigationProp(entity, field) {
			continue
		}

		if owned {
			sub, err := ownedColumns(m, entity, typ, field)
			if err != nil {
				return nil, err
			}
			columns = append(columns, sub...)
			continue
		}

		prop := entity.FindProperty(field.Name)
		if prop == nil {
			continue
		}
		if vg := prop.ValueGenerated(); (vg == OnAdd || vg == OnAddOrUpdate) && !IsUUID(prop.GoType()) {
			continue
		}

		columns = append(columns, ColumnDescriptor{
			ColumnName: prop.ColumnName(SQLQuery(entity)),
			Accessor:   DirectAccessor(field.Index),
			ValueType:  field.Type,
			Converter:  prop.ValueConverter(),
			Nullable:   throughPointer(typ, field.Index),
		})
	}
	return columns, nil
}

func ownedColumns(m Model, entity EntityType, typ reflect.Type, field reflect.StructField) ([]ColumnDescriptor, error) {
	ownedType := deref(field.Type)
	owned := m.FindOwnedEntityType(ownedType, field.Name, entity)
	if owned == nil {
		owned = m.FindEntityType(ownedType)
	}
	if owned == nil {
		return nil, errors.Wrapf(ErrUnresolvedOwnedType, "%s.%s (%s)", entity.GoType(), field.Name, ownedType)
	}

	table := Table(owned.Table())
	ownerNullable := field.Type.Kind() == reflect.Ptr || throughPointer(typ, field.Index)

	var columns []ColumnDescriptor
	for _, sub := range readableFields(ownedType) {
		prop := owned.FindProperty(sub.Name)
		if prop == nil {
			continue
		}
		col := prop.FindColumn(table)
		if col == nil {
			continue
		}
		columns = append(columns, ColumnDescriptor{
			ColumnName: col.Name,
			Accessor:   NestedAccessor(field.Index, sub.Index),
			ValueType:  sub.Type,
			Converter:  prop.ValueConverter(),
			Nullable:   ownerNullable || throughPointer(ownedType, sub.Index),
		})
	}
	return columns, nil
}

// readableFields lists exported fields in declaration order, with the fields
// of embedded structs promoted in place of the embedded field.
func readableFields(typ reflect.Type) []reflect.StructField {
	var fields []reflect.StructField
	for _, f := range reflect.VisibleFields(typ) {
		if f.Anonymous && deref(f.Type).Kind() == reflect.Struct {
			continue
		}
		if !f.IsExported() || !exportedPath(typ, f.Index) {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// exportedPath reports whether every embedded struct on the way to index is exported.
func exportedPath(typ reflect.Type, index []int) bool {
	for _, i := range index[:len(index)-1] {
		f := typ.Field(i)
		if !f.IsExported() {
			return false
		}
		typ = deref(f.Type)
	}
	return true
}

// throughPointer reports whether reaching index from typ crosses an embedded pointer.
func throughPointer(typ reflect.Type, index []int) bool {
	typ = deref(typ)
	for _, i := range index[:len(index)-1] {
		f := typ.Field(i)
		if f.Type.Kind() == reflect.Ptr {
			return true
		}
		typ = f.Type
	}
	return false
}

func deref(typ reflect.Type) reflect.Type {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return typ
}

type cacheKey struct {
	typ    reflect.Type
	entity reflect.Type
	table  string
}

type cached struct {
	columns []ColumnDescriptor
	version uint64
}

// Projector caches projections per entity and Go type. Cached entries are dropped by Invalidate.
type Projector struct {
	model   Model
	cache   sync.Map
	version atomic.Uint64
}

// NewProjector creates a Projector over m.
func NewProjector(m Model) *Projector {
	return &Projector{model: m}
}

// Project is the cached form of the package level Project.
func (p *Projector) Project(entity EntityType, typ reflect.Type) ([]ColumnDescriptor, error) {
	typ = deref(typ)
	key := cacheKey{typ: typ, entity: entity.GoType(), table: entity.Table()}
	version := p.version.Load()
	if v, ok := p.cache.Load(key); ok {
		if c := v.(*cached); c.version == version {
			return slices.Clone(c.columns), nil
		}
	}

	columns, err := Project(p.model, entity, typ)
	if err != nil {
		return nil, err
	}
	p.cache.Store(key, &cached{columns: columns, version: version})
	return slices.Clone(columns), nil
}

// Invalidate discards every cached projection.
func (p *Projector) Invalidate() {
	p.version.Add(1)
}
