package users

import (
	"context"
	"sync"
	"time"
)

// ActivityEventType is the analytics label of an event
type ActivityEventType string

const (
	ActivityImpersonationStart ActivityEventType = "Impersonation Start"
	ActivityImpersonationStop  ActivityEventType = "Impersonation Stop"
	ActivityUsersListed        ActivityEventType = "Users Listed"
	ActivityUserCreated        ActivityEventType = "User Created"
	ActivityUserUpdated        ActivityEventType = "User Updated"
	ActivityUserDestroyed      ActivityEventType = "User Destroyed"
	ActivitySignedIn           ActivityEventType = "Signed In"
	ActivitySignedOut          ActivityEventType = "Signed Out"
)

const (
	AttrImpersonatedUserID    = "impersonated_user_id"
	AttrImpersonatedUserEmail = "impersonated_user_email"
	AttrImpersonatedByEmail   = "impersonated_by_email"
	AttrUserEmail             = "user_email"
	AttrCount                 = "count"
)

// ActorRef identifies who performed an action
type ActorRef struct {
	ID    string
	Type  string
	Email string
}

// NewActorRef builds an ActorRef from a user
func NewActorRef(u *User) ActorRef {
	if u == nil {
		return ActorRef{ID: "anonymous", Type: "anonymous"}
	}
	return ActorRef{
		ID:    u.ID.String(),
		Type:  string(u.Role),
		Email: u.Email,
	}
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// DefaultRecordTimeout bounds a single sink call
const DefaultRecordTimeout = 2 * time.Second

// DefaultRecordBuffer is how many events may wait for the sink before new
// ones are dropped
const DefaultRecordBuffer = 256

type queuedEvent struct {
	ctx   context.Context
	event ActivityEvent
	done  chan struct{}
}

// Recorder forwards audit events to a sink from a background worker.
// Recording never blocks or fails the caller: a full queue drops the event
// and sink errors are logged.
type Recorder struct {
	sink     ActivitySink
	timeout  time.Duration
	buffer   int
	now      func() time.Time
	logger   Logger
	provider LoggerProvider

	queue   chan queuedEvent
	stopped chan struct{}
	mu      sync.RWMutex
	closed  bool
}

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithRecorderTimeout bounds each sink call
func WithRecorderTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRecorderBuffer sets the queue size
func WithRecorderBuffer(size int) RecorderOption {
	return func(r *Recorder) {
		if size > 0 {
			r.buffer = size
		}
	}
}

// WithRecorderLogger sets the logger
func WithRecorderLogger(l Logger) RecorderOption {
	return func(r *Recorder) {
		r.provider, r.logger = ResolveLogger("users.recorder", r.provider, l)
	}
}

// WithRecorderLoggerProvider sets the logger provider
func WithRecorderLoggerProvider(p LoggerProvider) RecorderOption {
	return func(r *Recorder) {
		r.provider, r.logger = ResolveLogger("users.recorder", p, nil)
	}
}

// WithRecorderClock overrides the event timestamp source
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder creates a Recorder and starts its worker. A nil sink
// discards events. Call Close to drain the queue on shutdown.
func NewRecorder(sink ActivitySink, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		sink:    normalizeActivitySink(sink),
		timeout: DefaultRecordTimeout,
		buffer:  DefaultRecordBuffer,
		now:     func() time.Time { return time.Now().UTC() },
		stopped: make(chan struct{}),
	}
	r.provider, r.logger = ResolveLogger("users.recorder", nil, nil)
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	r.queue = make(chan queuedEvent, r.buffer)
	go r.run()

	return r
}

// Record queues an event for actor. userID is the subject of the action
// and may be empty.
func (r *Recorder) Record(ctx context.Context, actor *User, eventType ActivityEventType, userID string, attrs map[string]any) {
	if r == nil {
		return
	}

	event := ActivityEvent{
		EventType:  eventType,
		Actor:      NewActorRef(actor),
		UserID:     userID,
		Metadata:   attrs,
		OccurredAt: r.now(),
	}

	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("activity recorder closed, dropping event", "event", string(eventType), "actor_id", event.Actor.ID)
		return
	}

	select {
	case r.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		r.logger.Error("activity queue full, dropping event", "event", string(eventType), "actor_id", event.Actor.ID)
	}
}

// Flush blocks until every event queued before the call reached the sink
func (r *Recorder) Flush(ctx context.Context) error {
	if r == nil {
		return nil
	}

	done := make(chan struct{})

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil
	}
	select {
	case r.queue <- queuedEvent{done: done}:
		r.mu.RUnlock()
	case <-ctx.Done():
		r.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for the queued ones to be sent
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	<-r.stopped
	return nil
}

func (r *Recorder) run() {
	defer close(r.stopped)
	for item := range r.queue {
		if item.done != nil {
			close(item.done)
			continue
		}
		r.deliver(item.ctx, item.event)
	}
}

func (r *Recorder) deliver(ctx context.Context, event ActivityEvent) {
	sinkCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.sink.Record(sinkCtx, event); err != nil {
		r.logger.Error("activity sink error", "event", string(event.EventType), "actor_id", event.Actor.ID, "error", err)
	}
}

// ImpersonationAttributes builds the attributes recorded for impersonation
// start and stop events.
func ImpersonationAttributes(trueUser, target *User) map[string]any {
	attrs := map[string]any{}
	if target != nil {
		attrs[AttrImpersonatedUserID] = target.ID.String()
		attrs[AttrImpersonatedUserEmail] = target.Email
	}
	if trueUser != nil {
		attrs[AttrImpersonatedByEmail] = trueUser.Email
	}
	return attrs
}
