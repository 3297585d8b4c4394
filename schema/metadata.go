package schema

import (
	"reflect"

	"github.com/shrek82/jbulk/convert"
)

// ValueGenerated describes when the store assigns a property's value.
type ValueGenerated int

const (
	// Never means the caller always supplies the value.
	Never ValueGenerated = iota
	// OnAdd means the store assigns the value on insert (identity, sequence, defaults).
	OnAdd
	// OnAddOrUpdate means the store assigns the value on insert and on every update.
	OnAddOrUpdate
)

func (v ValueGenerated) String() string {
	switch v {
	case OnAdd:
		return "on_add"
	case OnAddOrUpdate:
		return "on_add_or_update"
	default:
		return "never"
	}
}

// StoreObjectKind distinguishes table lookups from query-shaped lookups.
type StoreObjectKind int

const (
	StoreTable StoreObjectKind = iota
	StoreSQLQuery
)

// StoreObject identifies where a column lives.
type StoreObject struct {
	Kind StoreObjectKind
	Name string
}

// Table identifies a table by name.
func Table(name string) StoreObject {
	return StoreObject{Kind: StoreTable, Name: name}
}

// SQLQuery identifies the query an entity type is read through.
func SQLQuery(entity EntityType) StoreObject {
	return StoreObject{Kind: StoreSQLQuery, Name: entity.Table()}
}

// Column is a mapped column.
type Column struct {
	Name  string
	Table string
}

// Model answers entity type lookups for Go types.
type Model interface {
	// FindEntityType returns the entity type mapped to typ, or nil.
	FindEntityType(typ reflect.Type) EntityType
	// FindOwnedEntityType returns the owned entity type declared by the field
	// name of declaring with type typ, or nil.
	FindOwnedEntityType(typ reflect.Type, name string, declaring EntityType) EntityType
}

// EntityType is the mapping metadata of one entity or owned type.
type EntityType interface {
	GoType() reflect.Type
	IsOwned() bool
	// FindNavigation returns the navigation declared by the named field, or nil.
	FindNavigation(name string) Navigation
	// FindProperty returns the mapped property of the named field, or nil.
	FindProperty(name string) Property
	// Table is the name of the table the entity's columns live in.
	Table() string
}

// Navigation is a relationship to another entity.
type Navigation interface {
	Name() string
}

// Property is a mapped scalar property.
type Property interface {
	Name() string
	GoType() reflect.Type
	ValueGenerated() ValueGenerated
	// FindColumn returns the column the property maps to in table, or nil.
	FindColumn(table StoreObject) *Column
	ColumnName(query StoreObject) string
	// ValueConverter returns nil when values are stored as-is.
	ValueConverter() convert.Converter
}
