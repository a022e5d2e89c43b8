package analytics

import (
	"context"
	"errors"

	users "github.com/goliatone/go-admin-users"
)

// LogSink writes every event to a logger
type LogSink struct {
	logger users.Logger
	opts   []Option
}

// NewLogSink creates a LogSink. A nil logger uses the package default.
func NewLogSink(logger users.Logger, opts ...Option) *LogSink {
	_, logger = users.ResolveLogger("users.analytics", nil, logger)
	return &LogSink{logger: logger, opts: opts}
}

// Record implements users.ActivitySink
func (s *LogSink) Record(_ context.Context, event users.ActivityEvent) error {
	n := Normalize(event, s.opts...)
	s.logger.Info("activity",
		"verb", n.Verb,
		"actor_id", n.ActorID,
		"object_id", n.ObjectID,
		"channel", n.Channel,
		"metadata", n.Metadata,
	)
	return nil
}

// MultiSink fans an event out to every sink. All sinks are called even
// when one fails; the failures are joined.
type MultiSink []users.ActivitySink

// NewMultiSink skips nil sinks
func NewMultiSink(sinks ...users.ActivitySink) MultiSink {
	out := make(MultiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Record implements users.ActivitySink
func (m MultiSink) Record(ctx context.Context, event users.ActivityEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
