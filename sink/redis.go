// Package sink holds core.Sink implementations that write outside a SQL database.
package sink

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/shrek82/jbulk/table"
)

var ErrEmptyEntry = errors.New("row has no non-null values")

// RedisStreamOptions configures a RedisStream.
type RedisStreamOptions struct {
	// Stream is the stream key. Defaults to the table name.
	Stream string
	// MaxLen trims the stream to about this many entries when positive.
	MaxLen int64
	// Approx uses "MAXLEN ~" trimming, which is cheaper for Redis.
	Approx bool
}

// RedisStream appends every row of a batch to a Redis stream as one entry.
// Null values are left out of the entry; all other values are sent as strings.
type RedisStream struct {
	client redis.UniversalClient
	opts   RedisStreamOptions
}

func NewRedisStream(client redis.UniversalClient, opts *RedisStreamOptions) *RedisStream {
	s := &RedisStream{client: client}
	if opts != nil {
		s.opts = *opts
	}
	return s
}

// Dial connects to addr and returns a stream sink on that connection.
func Dial(ctx context.Context, addr string, opts *RedisStreamOptions) (*RedisStream, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "redis ping %s", addr)
	}
	return NewRedisStream(client, opts), nil
}

func (s *RedisStream) Name() string {
	return "redis"
}

// Close closes the underlying client.
func (s *RedisStream) Close() error {
	return s.client.Close()
}

func (s *RedisStream) Write(ctx context.Context, t *table.Table) (int64, error) {
	stream := s.opts.Stream
	if stream == "" {
		stream = t.Name
	}

	pipe := s.client.Pipeline()
	for i, row := range t.Rows {
		values := make([]any, 0, 2*len(row))
		for j, v := range row {
			if table.IsNull(v) {
				continue
			}
			str, ok, err := formatValue(v)
			if err != nil {
				return 0, errors.Wrapf(err, "row %d: column %s", i, t.Columns[j].Name)
			}
			if !ok {
				continue
			}
			values = append(values, t.Columns[j].Name, str)
		}
		if len(values) == 0 {
			return 0, errors.Wrapf(ErrEmptyEntry, "row %d", i)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			MaxLen: s.opts.MaxLen,
			Approx: s.opts.Approx && s.opts.MaxLen > 0,
			Values: values,
		})
	}

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		var written int64
		for _, cmd := range cmds {
			if cmd.Err() == nil {
				written++
			}
		}
		return written, errors.Wrapf(err, "xadd %s", stream)
	}
	return int64(len(cmds)), nil
}

// formatValue renders v as a stream field value. It reports false when a
// driver.Valuer yields NULL, which is left out like Null.
func formatValue(v any) (string, bool, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return "", false, err
		}
		if dv == nil {
			return "", false, nil
		}
		v = dv
	}
	switch x := v.(type) {
	case string:
		return x, true, nil
	case []byte:
		return string(x), true, nil
	case bool:
		return strconv.FormatBool(x), true, nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), true, nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), true, nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true, nil
	case fmt.Stringer:
		return x.String(), true, nil
	}
	return fmt.Sprint(v), true, nil
}
