package schema

import (
	"reflect"
)

// AccessorKind tells how an Accessor reaches its value.
type AccessorKind int

const (
	// Direct reads a field of the entity.
	Direct AccessorKind = iota
	// Nested reads an owned field of the entity, then a field of the owned value.
	Nested
)

func (k AccessorKind) String() string {
	if k == Nested {
		return "nested"
	}
	return "direct"
}

// Accessor reads one scalar value out of an entity.
// Owner is only used by Nested accessors.
type Accessor struct {
	Kind  AccessorKind
	Owner []int
	Field []int
}

// DirectAccessor reads the field at index.
func DirectAccessor(index []int) Accessor {
	return Accessor{Kind: Direct, Field: index}
}

// NestedAccessor reads owner from the entity, then field from the owned value.
func NestedAccessor(owner, field []int) Accessor {
	return Accessor{Kind: Nested, Owner: owner, Field: field}
}

// Get returns the value for entity and whether it is present.
// entity may be a struct or a pointer to one. Nil pointers, maps, slices and
// interfaces anywhere on the path are absent; non-nil pointers are dereferenced.
func (a Accessor) Get(entity any) (any, bool) {
	return a.GetValue(reflect.ValueOf(entity))
}

// GetValue is Get for a reflect.Value.
func (a Accessor) GetValue(v reflect.Value) (any, bool) {
	v, ok := indirect(v)
	if !ok {
		return nil, false
	}
	if a.Kind == Nested {
		owner, err := v.FieldByIndexErr(a.Owner)
		if err != nil {
			return nil, false
		}
		if v, ok = indirect(owner); !ok {
			return nil, false
		}
	}
	leaf, err := v.FieldByIndexErr(a.Field)
	if err != nil {
		return nil, false
	}
	leaf, ok = indirect(leaf)
	if !ok {
		return nil, false
	}
	switch leaf.Kind() {
	case reflect.Map, reflect.Slice, reflect.Interface:
		if leaf.IsNil() {
			return nil, false
		}
	}
	return leaf.Interface(), true
}

func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}
