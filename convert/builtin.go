package convert

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	// UUIDToString stores a uuid.UUID in its canonical 36 character form.
	UUIDToString = New(
		func(u uuid.UUID) (string, error) { return u.String(), nil },
		uuid.Parse,
	)

	// UUIDToBytes stores a uuid.UUID as its 16 raw bytes.
	UUIDToBytes = New(
		func(u uuid.UUID) ([]byte, error) { return u.MarshalBinary() },
		uuid.FromBytes,
	)

	// TimeToUnixMilli stores a time.Time as milliseconds since the epoch.
	TimeToUnixMilli = New(
		func(t time.Time) (int64, error) { return t.UnixMilli(), nil },
		func(ms int64) (time.Time, error) { return time.UnixMilli(ms), nil },
	)

	// BoolToInt stores a bool as 0 or 1.
	BoolToInt = New(
		func(b bool) (int64, error) {
			if b {
				return 1, nil
			}
			return 0, nil
		},
		func(i int64) (bool, error) { return i != 0, nil },
	)
)

type codec struct {
	name      string
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

var (
	jsonCodec    = codec{name: "json", marshal: json.Marshal, unmarshal: json.Unmarshal}
	msgpackCodec = codec{name: "msgpack", marshal: msgpack.Marshal, unmarshal: msgpack.Unmarshal}
)

// encodedConverter serializes an arbitrary model type with a codec.
// Providers are string for json and []byte for msgpack.
type encodedConverter struct {
	codec     codec
	modelType reflect.Type
	asString  bool
}

// JSON returns a converter storing values of typ as JSON text.
func JSON(typ reflect.Type) Converter {
	return &encodedConverter{codec: jsonCodec, modelType: typ, asString: true}
}

// Msgpack returns a converter storing values of typ as msgpack bytes.
func Msgpack(typ reflect.Type) Converter {
	return &encodedConverter{codec: msgpackCodec, modelType: typ}
}

func (c *encodedConverter) ModelType() reflect.Type {
	return c.modelType
}

func (c *encodedConverter) ProviderType() reflect.Type {
	if c.asString {
		return reflect.TypeFor[string]()
	}
	return reflect.TypeFor[[]byte]()
}

func (c *encodedConverter) ConvertToProvider(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	b, err := c.codec.marshal(value)
	if err != nil {
		return nil, errors.Wrapf(err, "%s marshal failed. type: %T", c.codec.name, value)
	}
	if c.asString {
		return string(b), nil
	}
	return b, nil
}

func (c *encodedConverter) ConvertFromProvider(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil, errors.Wrapf(ErrUnexpectedType, "want string or []byte, got %T", value)
	}
	ptr := reflect.New(c.modelType)
	if err := c.codec.unmarshal(data, ptr.Interface()); err != nil {
		return nil, errors.Wrapf(err, "%s unmarshal failed. type: %s", c.codec.name, c.modelType)
	}
	return ptr.Elem().Interface(), nil
}
