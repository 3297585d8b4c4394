package model

import (
	"fmt"
	"reflect"
)

type RelationType int

const (
	RelationHasMany RelationType = iota
	RelationBelongsTo
	RelationHasOne
	RelationManyToMany
	// RelationOwnsOne embeds an owned type's columns in the owner's row.
	RelationOwnsOne
)

func (t RelationType) String() string {
	switch t {
	case RelationHasMany:
		return "has_many"
	case RelationBelongsTo:
		return "belongs_to"
	case RelationHasOne:
		return "has_one"
	case RelationManyToMany:
		return "many_to_many"
	case RelationOwnsOne:
		return "owns_one"
	}
	return "unknown"
}

// Relation is a navigation from one model to another.
type Relation struct {
	Field      string       // 关联字段名
	Type       RelationType // 关联类型
	Target     reflect.Type // 关联模型类型
	ForeignKey string       // 外键字段名
	References string       // 引用字段名
	JoinTable  string       // 多对多中间表名
	JoinFK     string       // 中间表外键（指向主表）
	JoinRef    string       // 中间表引用键（指向关联表）
}

// Name implements schema.Navigation.
func (r *Relation) Name() string {
	return r.Field
}

func parseRelation(m *Model, field reflect.StructField, tag *Tag) (*Relation, error) {
	relationType, err := parseRelationType(tag.RelationType, field.Type, tag)
	if err != nil {
		return nil, err
	}

	relation := &Relation{
		Field:  field.Name,
		Type:   relationType,
		Target: elemType(field.Type),
	}

	switch relationType {
	case RelationHasMany, RelationHasOne:
		relation.ForeignKey = tag.ForeignKey
		if relation.ForeignKey == "" {
			relation.ForeignKey = m.TableName + "_id"
		}
		relation.References = tag.References
		if relation.References == "" {
			relation.References = m.pkColumn()
		}

	case RelationBelongsTo:
		relation.ForeignKey = tag.ForeignKey
		if relation.ForeignKey == "" {
			relation.ForeignKey = camelToSnake(field.Name) + "_id"
		}
		relation.References = tag.References
		if relation.References == "" {
			relation.References = "id"
		}

	case RelationManyToMany:
		if tag.JoinTable == "" {
			return nil, fmt.Errorf("%w: many_to_many relation %s requires join_table tag", ErrInvalidModel, field.Name)
		}
		relation.JoinTable = tag.JoinTable
		relation.JoinFK = tag.JoinFK
		if relation.JoinFK == "" {
			relation.JoinFK = m.TableName + "_id"
		}
		relation.JoinRef = tag.JoinRef
		if relation.JoinRef == "" {
			relation.JoinRef = camelToSnake(relation.Target.Name()) + "_id"
		}
	}

	return relation, nil
}

func parseRelationType(relationType string, typ reflect.Type, tag *Tag) (RelationType, error) {
	if relationType != "" {
		switch relationType {
		case "has_many":
			return RelationHasMany, nil
		case "belongs_to":
			return RelationBelongsTo, nil
		case "has_one":
			return RelationHasOne, nil
		case "many_to_many":
			return RelationManyToMany, nil
		default:
			return 0, fmt.Errorf("%w: unknown relation type %s", ErrInvalidModel, relationType)
		}
	}

	if tag.JoinTable != "" {
		return RelationManyToMany, nil
	}

	if k := typ.Kind(); k == reflect.Slice || k == reflect.Array {
		return RelationHasMany, nil
	}

	return RelationBelongsTo, nil
}

// elemType strips slices, arrays and pointers down to the related struct type.
func elemType(typ reflect.Type) reflect.Type {
	for {
		switch typ.Kind() {
		case reflect.Ptr, reflect.Slice, reflect.Array:
			typ = typ.Elem()
		default:
			return typ
		}
	}
}
