package analytics

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"

	users "github.com/goliatone/go-admin-users"
)

const (
	// DefaultStream is the stream events are appended to
	DefaultStream = "admin_users:activity"
	// DefaultStreamMaxLen caps the stream, approximately
	DefaultStreamMaxLen int64 = 10000
	// SchemaVersion tags the payload layout
	SchemaVersion = "1"
)

// RedisStreamSink appends normalized events to a Redis stream
type RedisStreamSink struct {
	rdb    *redis.Client
	stream string
	maxLen int64
	opts   []Option
}

// RedisStreamOption configures a RedisStreamSink
type RedisStreamOption func(*RedisStreamSink)

// WithStream overrides the stream name
func WithStream(name string) RedisStreamOption {
	return func(s *RedisStreamSink) {
		if name != "" {
			s.stream = name
		}
	}
}

// WithStreamMaxLen overrides the stream cap
func WithStreamMaxLen(n int64) RedisStreamOption {
	return func(s *RedisStreamSink) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

// WithNormalizeOptions passes options through to Normalize
func WithNormalizeOptions(opts ...Option) RedisStreamOption {
	return func(s *RedisStreamSink) {
		s.opts = append(s.opts, opts...)
	}
}

// NewRedisStreamSink connects to the redis URL
func NewRedisStreamSink(redisURL string, opts ...RedisStreamOption) (*RedisStreamSink, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to parse redis URL")
	}
	return NewRedisStreamSinkFromClient(redis.NewClient(ropts), opts...), nil
}

// NewRedisStreamSinkFromClient uses an existing client
func NewRedisStreamSinkFromClient(client *redis.Client, opts ...RedisStreamOption) *RedisStreamSink {
	s := &RedisStreamSink{
		rdb:    client,
		stream: DefaultStream,
		maxLen: DefaultStreamMaxLen,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Stream returns the stream name
func (s *RedisStreamSink) Stream() string {
	return s.stream
}

// Record implements users.ActivitySink
func (s *RedisStreamSink) Record(ctx context.Context, event users.ActivityEvent) error {
	n := Normalize(event, s.opts...)

	payload, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to marshal activity")
	}

	result := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{
			"verb":           n.Verb,
			"actor_id":       n.ActorID,
			"payload":        string(payload),
			"published_at":   n.OccurredAt.Unix(),
			"schema_version": SchemaVersion,
		},
	})
	if err := result.Err(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to publish activity").
			WithMetadata(map[string]any{"stream": s.stream, "verb": n.Verb})
	}
	return nil
}

// Ping checks the connection
func (s *RedisStreamSink) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the redis client
func (s *RedisStreamSink) Close() error {
	return s.rdb.Close()
}
