package model

import (
	"reflect"

	"github.com/shrek82/jbulk/convert"
	"github.com/shrek82/jbulk/schema"
)

// Field represents a database column mapped from a struct field
type Field struct {
	Name       string                // Struct field name
	Column     string                // DB column name
	Type       reflect.Type          // Field type
	Index      []int                 // Struct field index path, embedded structs included
	IsPK       bool                  // Is primary key
	IsAuto     bool                  // Is auto-increment
	AutoTime   bool                  // Set time on insert
	AutoUpdate bool                  // Set time on insert and update
	Generated  schema.ValueGenerated // When the store assigns the value
	Converter  convert.Converter     // Nil when stored as-is
	Tag        string                // Raw tag string
}

// property exposes a Field through schema.Property.
type property struct {
	field *Field
	model *Model
}

func (p property) Name() string {
	return p.field.Name
}

func (p property) GoType() reflect.Type {
	return p.field.Type
}

func (p property) ValueGenerated() schema.ValueGenerated {
	return p.field.Generated
}

func (p property) FindColumn(table schema.StoreObject) *schema.Column {
	if table.Name != p.model.TableName {
		return nil
	}
	return &schema.Column{Name: p.field.Column, Table: p.model.TableName}
}

func (p property) ColumnName(query schema.StoreObject) string {
	return p.field.Column
}

func (p property) ValueConverter() convert.Converter {
	return p.field.Converter
}
