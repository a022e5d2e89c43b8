package users

import (
	"context"
)

// IdentityManager performs the impersonation transitions of a
// SessionIdentity and records them.
type IdentityManager struct {
	policy   Policy
	recorder *Recorder
	logger   Logger
	provider LoggerProvider
}

// IdentityManagerOption configures an IdentityManager
type IdentityManagerOption func(*IdentityManager)

// WithIdentityManagerPolicy overrides the policy used for impersonation
func WithIdentityManagerPolicy(p Policy) IdentityManagerOption {
	return func(m *IdentityManager) {
		m.policy = p
	}
}

// WithIdentityManagerLogger sets the logger
func WithIdentityManagerLogger(l Logger) IdentityManagerOption {
	return func(m *IdentityManager) {
		m.provider, m.logger = ResolveLogger("users.identity", m.provider, l)
	}
}

// WithIdentityManagerLoggerProvider sets the logger provider
func WithIdentityManagerLoggerProvider(p LoggerProvider) IdentityManagerOption {
	return func(m *IdentityManager) {
		m.provider, m.logger = ResolveLogger("users.identity", p, nil)
	}
}

// NewIdentityManager creates an IdentityManager
func NewIdentityManager(recorder *Recorder, opts ...IdentityManagerOption) *IdentityManager {
	if recorder == nil {
		recorder = NewRecorder(nil)
	}
	m := &IdentityManager{
		policy:   BrowserPolicy,
		recorder: recorder,
	}
	m.provider, m.logger = ResolveLogger("users.identity", nil, nil)
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// StartImpersonation makes target the acting principal of id. Only an
// admin true principal may impersonate. The start event is recorded before
// the swap; a rejected attempt records nothing. Starting again while
// impersonating replaces the acting principal.
func (m *IdentityManager) StartImpersonation(ctx context.Context, id *SessionIdentity, target *User) error {
	if !id.IsSignedIn() {
		return ErrUnauthenticated
	}

	if target == nil {
		return ErrUserNotFound
	}

	trueUser := id.True()
	if !m.policy.Can(trueUser, ActionImpersonate, target) {
		m.logger.Warn("impersonation rejected", "true_user_id", trueUser.ID.String(), "target_id", target.ID.String())
		return ErrAdminRequired
	}

	m.recorder.Record(ctx, trueUser, ActivityImpersonationStart, target.ID.String(), ImpersonationAttributes(trueUser, target))

	id.impersonate(target)

	m.logger.Info("impersonation started", "true_user_id", trueUser.ID.String(), "target_id", target.ID.String())
	return nil
}

// StopImpersonation returns id to its true principal. It is a no-op that
// records nothing when id is not impersonating.
func (m *IdentityManager) StopImpersonation(ctx context.Context, id *SessionIdentity) error {
	if !id.IsSignedIn() {
		return ErrUnauthenticated
	}

	if !id.IsImpersonating() {
		return nil
	}

	trueUser := id.True()
	target := id.Current()

	m.recorder.Record(ctx, trueUser, ActivityImpersonationStop, target.ID.String(), ImpersonationAttributes(trueUser, target))

	id.stopImpersonating()

	m.logger.Info("impersonation stopped", "true_user_id", trueUser.ID.String(), "target_id", target.ID.String())
	return nil
}
