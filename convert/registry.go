package convert

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// Factory builds a converter for a field of the given type.
type Factory func(modelType reflect.Type) (Converter, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

func init() {
	Register("uuid_string", Static(UUIDToString))
	Register("uuid_bytes", Static(UUIDToBytes))
	Register("unix_milli", Static(TimeToUnixMilli))
	Register("bool_int", Static(BoolToInt))
	Register("json", func(t reflect.Type) (Converter, error) { return JSON(t), nil })
	Register("msgpack", func(t reflect.Type) (Converter, error) { return Msgpack(t), nil })
}

// Register makes a converter factory available under name, replacing any previous one.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// Lookup builds the converter registered under name for modelType.
// Pointer model types are resolved to their element type.
func Lookup(name string, modelType reflect.Type) (Converter, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownConverter, "name: %s", name)
	}
	for modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}
	return f(modelType)
}

// Static wraps a fixed converter, rejecting fields of any other type.
func Static(c Converter) Factory {
	return func(modelType reflect.Type) (Converter, error) {
		if modelType != c.ModelType() {
			return nil, errors.Wrapf(ErrUnexpectedType, "converter expects %s, field is %s", c.ModelType(), modelType)
		}
		return c, nil
	}
}
