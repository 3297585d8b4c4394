package convert

import (
	"reflect"

	"github.com/pkg/errors"
)

var (
	// ErrUnexpectedType is returned when a converter receives a value it was not built for.
	ErrUnexpectedType = errors.New("unexpected value type")
	// ErrUnknownConverter is returned when a converter name is not registered.
	ErrUnknownConverter = errors.New("unknown converter")
)

// Converter transforms a model-level value into its storage-level representation and back.
type Converter interface {
	// ModelType is the Go type the entity field holds.
	ModelType() reflect.Type
	// ProviderType is the Go type handed to the database.
	ProviderType() reflect.Type
	// ConvertToProvider maps a model value to its provider value. A nil input yields nil.
	ConvertToProvider(value any) (any, error)
	// ConvertFromProvider maps a provider value back to a model value. A nil input yields nil.
	ConvertFromProvider(value any) (any, error)
}

type funcConverter[M, P any] struct {
	to   func(M) (P, error)
	from func(P) (M, error)
}

// New builds a Converter from a pair of typed functions.
func New[M, P any](to func(M) (P, error), from func(P) (M, error)) Converter {
	return &funcConverter[M, P]{to: to, from: from}
}

func (c *funcConverter[M, P]) ModelType() reflect.Type {
	return reflect.TypeFor[M]()
}

func (c *funcConverter[M, P]) ProviderType() reflect.Type {
	return reflect.TypeFor[P]()
}

func (c *funcConverter[M, P]) ConvertToProvider(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	m, err := as[M](value)
	if err != nil {
		return nil, err
	}
	return c.to(m)
}

func (c *funcConverter[M, P]) ConvertFromProvider(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	p, err := as[P](value)
	if err != nil {
		return nil, err
	}
	return c.from(p)
}

// as accepts T, *T and values whose type converts to T (named types over the same kind).
func as[T any](value any) (T, error) {
	var zero T
	switch v := value.(type) {
	case T:
		return v, nil
	case *T:
		if v == nil {
			return zero, errors.Wrapf(ErrUnexpectedType, "nil *%s", reflect.TypeFor[T]())
		}
		return *v, nil
	}

	target := reflect.TypeFor[T]()
	rv := reflect.ValueOf(value)
	if rv.Type().Kind() == target.Kind() && rv.Type().ConvertibleTo(target) {
		return rv.Convert(target).Interface().(T), nil
	}
	return zero, errors.Wrapf(ErrUnexpectedType, "want %s, got %T", target, value)
}
