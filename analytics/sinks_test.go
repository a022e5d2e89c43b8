package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	users "github.com/goliatone/go-admin-users"
)

type captureLogger struct {
	infos []string
}

func (c *captureLogger) Debug(string, ...any) {}
func (c *captureLogger) Info(msg string, _ ...any) {
	c.infos = append(c.infos, msg)
}
func (c *captureLogger) Warn(string, ...any)  {}
func (c *captureLogger) Error(string, ...any) {}

func sampleEvent() users.ActivityEvent {
	return users.ActivityEvent{
		EventType: users.ActivityUserCreated,
		Actor:     users.ActorRef{ID: "admin-1", Type: "admin", Email: "admin@example.com"},
		UserID:    "user-1",
		Metadata:  map[string]any{users.AttrUserEmail: "new@example.com"},
	}
}

func TestRedisStreamSinkAppendsEvent(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	sink, err := NewRedisStreamSink("redis://"+mr.Addr(), WithStream("test:activity"))
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	require.NoError(t, sink.Ping(ctx))
	require.NoError(t, sink.Record(ctx, sampleEvent()))
	require.NoError(t, sink.Record(ctx, sampleEvent()))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	n, err := client.XLen(ctx, "test:activity").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	msgs, err := client.XRange(ctx, "test:activity", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "User Created", msgs[0].Values["verb"])
	assert.Equal(t, "admin-1", msgs[0].Values["actor_id"])
	assert.Equal(t, SchemaVersion, msgs[0].Values["schema_version"])

	var payload Normalized
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["payload"].(string)), &payload))
	assert.Equal(t, "user-1", payload.ObjectID)
	assert.Equal(t, "new@example.com", payload.Metadata[users.AttrUserEmail])
}

func TestNewRedisStreamSinkRejectsBadURL(t *testing.T) {
	_, err := NewRedisStreamSink("not a url")
	assert.Error(t, err)
}

func TestRedisStreamSinkReportsPublishFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	sink, err := NewRedisStreamSink("redis://" + mr.Addr())
	require.NoError(t, err)
	defer sink.Close()

	mr.Close()

	err = sink.Record(context.Background(), sampleEvent())
	assert.Error(t, err)
}

func TestMetricsSinkCountsByEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewMetricsSink(reg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Record(ctx, sampleEvent()))
	require.NoError(t, sink.Record(ctx, sampleEvent()))
	require.NoError(t, sink.Record(ctx, users.ActivityEvent{EventType: users.ActivityImpersonationStart}))

	assert.Equal(t, 2, testutil.CollectAndCount(sink.Collector()))
	assert.Equal(t, float64(2), testutil.ToFloat64(sink.events.WithLabelValues("User Created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.events.WithLabelValues("Impersonation Start")))
}

func TestMetricsSinkDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetricsSink(reg)
	require.NoError(t, err)

	_, err = NewMetricsSink(reg)
	assert.Error(t, err)
}

func TestLogSinkLogsEvent(t *testing.T) {
	logger := &captureLogger{}
	sink := NewLogSink(logger)

	require.NoError(t, sink.Record(context.Background(), sampleEvent()))
	assert.Equal(t, []string{"activity"}, logger.infos)
}

func TestMultiSinkCallsEverySink(t *testing.T) {
	var calls int
	ok := users.ActivitySinkFunc(func(context.Context, users.ActivityEvent) error {
		calls++
		return nil
	})
	boom := errors.New("boom")
	failing := users.ActivitySinkFunc(func(context.Context, users.ActivityEvent) error {
		calls++
		return boom
	})

	sink := NewMultiSink(failing, nil, ok)
	require.Len(t, sink, 2)

	err := sink.Record(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}
