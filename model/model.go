package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/shrek82/jbulk/convert"
	"github.com/shrek82/jbulk/schema"
)

// ErrInvalidModel is returned when a struct cannot be mapped.
var ErrInvalidModel = errors.New("invalid model")

// Tabler lets an entity choose its table name.
type Tabler interface {
	TableName() string
}

// Model represents table metadata
type Model struct {
	TableName string
	Type      reflect.Type
	Fields    []*Field
	FieldMap  map[string]*Field // by column
	PKField   *Field
	Owned     bool
	Relations map[string]*Relation

	byName map[string]*Field
}

// GoType implements schema.EntityType.
func (m *Model) GoType() reflect.Type {
	return m.Type
}

// IsOwned implements schema.EntityType.
func (m *Model) IsOwned() bool {
	return m.Owned
}

// Table implements schema.EntityType.
func (m *Model) Table() string {
	return m.TableName
}

// FindNavigation implements schema.EntityType.
func (m *Model) FindNavigation(name string) schema.Navigation {
	if rel, ok := m.Relations[name]; ok {
		return rel
	}
	return nil
}

// FindProperty implements schema.EntityType.
func (m *Model) FindProperty(name string) schema.Property {
	if f, ok := m.byName[name]; ok {
		return property{field: f, model: m}
	}
	return nil
}

// Field returns the mapped field with the given struct field name.
func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.byName[name]
	return f, ok
}

func (m *Model) pkColumn() string {
	if m.PKField != nil {
		return m.PKField.Column
	}
	return "id"
}

type ownedKey struct {
	owner reflect.Type
	field string
}

// Registry holds the mapping of entity and owned types. It implements schema.Model.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Model
	owned  map[ownedKey]*Model

	listeners []func()
}

// OnChange registers fn to run after a mapping already in use may have changed,
// so caches built from the registry can be dropped.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) notify() {
	r.mu.RLock()
	listeners := r.listeners
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]*Model),
		owned:  make(map[ownedKey]*Model),
	}
}

// DefaultRegistry backs GetModel.
var DefaultRegistry = NewRegistry()

// GetModel returns the model metadata for a given value
func GetModel(value any) (*Model, error) {
	return DefaultRegistry.Entity(value)
}

// Register maps each value's struct type as an entity.
func (r *Registry) Register(values ...any) error {
	for _, v := range values {
		if _, err := r.Entity(v); err != nil {
			return err
		}
	}
	return nil
}

// Entity returns the model of value's type, mapping it on first use.
// value may be a struct, a pointer to one, a slice of either, or a reflect.Type.
func (r *Registry) Entity(value any) (*Model, error) {
	typ, err := structType(value)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	m, ok := r.byType[typ]
	r.mu.RUnlock()
	if ok {
		return entityOf(m)
	}

	r.mu.Lock()
	if m, ok := r.byType[typ]; ok {
		r.mu.Unlock()
		return entityOf(m)
	}
	before := len(r.byType)
	m, err = r.parse(typ, tableName(typ), false, "")
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.byType[typ] = m
	// owned types mapped for the first time change how other owners project
	ownedAdded := len(r.byType)-before > 1
	r.mu.Unlock()

	if ownedAdded {
		r.notify()
	}
	return m, nil
}

func entityOf(m *Model) (*Model, error) {
	if m.Owned {
		return nil, fmt.Errorf("%w: %s is mapped as an owned type", ErrInvalidModel, m.Type)
	}
	return m, nil
}

// RegisterOwned maps value's type as an owned type stored in table,
// independent of any owner. Owners that declare their own mapping of the
// type take precedence over this one.
func (r *Registry) RegisterOwned(value any, table string) (*Model, error) {
	typ, err := structType(value)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if prev, ok := r.byType[typ]; ok && !prev.Owned {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is already mapped as an entity", ErrInvalidModel, typ)
	}
	m, err := r.parse(typ, table, true, "")
	if err == nil {
		r.byType[typ] = m
	}
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	r.notify()
	return m, nil
}

// FindEntityType implements schema.Model.
func (r *Registry) FindEntityType(typ reflect.Type) schema.EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.byType[typ]; ok {
		return m
	}
	return nil
}

// FindOwnedEntityType implements schema.Model.
func (r *Registry) FindOwnedEntityType(typ reflect.Type, name string, declaring schema.EntityType) schema.EntityType {
	if declaring == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.owned[ownedKey{owner: declaring.GoType(), field: name}]; ok && m.Type == typ {
		return m
	}
	return nil
}

// parse builds the model of typ. Owned fields of a non-owned model are
// parsed and registered on the way; r.mu must be held for writing.
func (r *Registry) parse(typ reflect.Type, table string, owned bool, prefix string) (*Model, error) {
	m := &Model{
		TableName: table,
		Type:      typ,
		FieldMap:  make(map[string]*Field),
		Owned:     owned,
		Relations: make(map[string]*Relation),
		byName:    make(map[string]*Field),
	}

	for _, structField := range reflect.VisibleFields(typ) {
		if !structField.IsExported() || !exportedPath(typ, structField.Index) {
			continue
		}
		if structField.Anonymous && deref(structField.Type).Kind() == reflect.Struct {
			continue
		}

		tagStr := structField.Tag.Get("jorm")
		tag := ParseTag(tagStr)
		if tag.Ignore {
			continue
		}

		switch {
		case tag.Owned:
			if owned {
				// one level of ownership only
				continue
			}
			if err := r.parseOwned(m, structField, tag); err != nil {
				return nil, err
			}
			continue
		case tag.RelationType != "" || tag.JoinTable != "":
			rel, err := parseRelation(m, structField, tag)
			if err != nil {
				return nil, err
			}
			m.Relations[structField.Name] = rel
			continue
		case tag.Converter == "" && !isScalar(structField.Type):
			if elemType(structField.Type).Kind() == reflect.Struct {
				rel, err := parseRelation(m, structField, tag)
				if err != nil {
					return nil, err
				}
				m.Relations[structField.Name] = rel
			}
			continue
		}

		field, err := newField(structField, tag, prefix)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %w", ErrInvalidModel, typ.Name(), structField.Name, err)
		}
		if _, dup := m.FieldMap[field.Column]; dup {
			return nil, fmt.Errorf("%w: %s maps column %s twice", ErrInvalidModel, typ.Name(), field.Column)
		}

		m.Fields = append(m.Fields, field)
		m.FieldMap[field.Column] = field
		m.byName[field.Name] = field
		if field.IsPK {
			m.PKField = field
		}
	}

	return m, nil
}

func (r *Registry) parseOwned(owner *Model, structField reflect.StructField, tag *Tag) error {
	ownedType := deref(structField.Type)
	if ownedType.Kind() != reflect.Struct {
		return fmt.Errorf("%w: owned field %s.%s is not a struct", ErrInvalidModel, owner.Type.Name(), structField.Name)
	}

	if prev, ok := r.byType[ownedType]; ok && !prev.Owned {
		return fmt.Errorf("%w: owned field %s.%s: %s is already mapped as an entity", ErrInvalidModel, owner.Type.Name(), structField.Name, ownedType)
	}

	table := tag.Table
	if table == "" {
		table = owner.TableName
	}
	sub, err := r.parse(ownedType, table, true, tag.Prefix)
	if err != nil {
		return err
	}

	r.owned[ownedKey{owner: owner.Type, field: structField.Name}] = sub
	if _, ok := r.byType[ownedType]; !ok {
		r.byType[ownedType] = sub
	}
	owner.Relations[structField.Name] = &Relation{
		Field:  structField.Name,
		Type:   RelationOwnsOne,
		Target: ownedType,
	}
	return nil
}

func newField(structField reflect.StructField, tag *Tag, prefix string) (*Field, error) {
	column := tag.Column
	if column == "" {
		column = camelToSnake(structField.Name)
	}

	field := &Field{
		Name:       structField.Name,
		Column:     prefix + column,
		Type:       structField.Type,
		Index:      structField.Index,
		IsPK:       tag.PrimaryKey,
		IsAuto:     tag.AutoInc,
		AutoTime:   tag.AutoTime,
		AutoUpdate: tag.AutoUpdate,
		Tag:        structField.Tag.Get("jorm"),
	}

	switch tag.Generated {
	case "", "never":
		if tag.AutoInc {
			field.Generated = schema.OnAdd
		}
	case "add", "on_add":
		field.Generated = schema.OnAdd
	case "add_update", "on_add_or_update", "always":
		field.Generated = schema.OnAddOrUpdate
	default:
		return nil, fmt.Errorf("unknown generated value %q", tag.Generated)
	}

	if tag.Converter != "" {
		c, err := convert.Lookup(tag.Converter, structField.Type)
		if err != nil {
			return nil, err
		}
		field.Converter = c
	}
	return field, nil
}

var (
	timeType   = reflect.TypeFor[time.Time]()
	uuidType   = reflect.TypeFor[uuid.UUID]()
	bytesType  = reflect.TypeFor[[]byte]()
	valuerType = reflect.TypeFor[driver.Valuer]()
)

// isScalar reports whether typ is stored in a single column without a converter.
func isScalar(typ reflect.Type) bool {
	typ = deref(typ)
	if typ == timeType || typ == uuidType || typ == bytesType {
		return true
	}
	if typ.Implements(valuerType) || reflect.PointerTo(typ).Implements(valuerType) {
		return true
	}
	switch typ.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func structType(value any) (reflect.Type, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: value is nil", ErrInvalidModel)
	}
	typ, ok := value.(reflect.Type)
	if !ok {
		typ = reflect.TypeOf(value)
	}
	for typ.Kind() == reflect.Ptr || typ.Kind() == reflect.Slice || typ.Kind() == reflect.Array {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: value must be a struct or pointer to struct, got %s", ErrInvalidModel, typ.Kind())
	}
	return typ, nil
}

func tableName(typ reflect.Type) string {
	if t, ok := reflect.New(typ).Interface().(Tabler); ok {
		if name := t.TableName(); name != "" {
			return name
		}
	}
	return camelToSnake(typ.Name())
}

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

func deref(typ reflect.Type) reflect.Type {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return typ
}

func camelToSnake(s string) string {
	if s == "ID" {
		return "id"
	}
	var res []rune
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(rune(s[i-1])) || (i+1 < len(s) && unicode.IsLower(rune(s[i+1])))) {
				res = append(res, '_')
			}
			res = append(res, unicode.ToLower(r))
		} else {
			res = append(res, r)
		}
	}
	return strings.TrimPrefix(string(res), "_")
}
