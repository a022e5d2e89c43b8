package users

// IdentityState is the state of a SessionIdentity
type IdentityState int

const (
	StateAnonymous IdentityState = iota
	StateSignedIn
	StateImpersonating
)

func (s IdentityState) String() string {
	switch s {
	case StateSignedIn:
		return "signed_in"
	case StateImpersonating:
		return "impersonating"
	default:
		return "anonymous"
	}
}

// Channel is how the identity was established for a request
type Channel string

const (
	ChannelNone    Channel = ""
	ChannelSession Channel = "session"
	ChannelToken   Channel = "token"
)

// SessionIdentity holds the two identity slots of a client: the true
// principal that signed in and the optional acting principal set by
// impersonation. The acting slot can only be filled through
// IdentityManager.StartImpersonation.
//
// A SessionIdentity is rebuilt from the signed session cookie on every
// request. Concurrent requests from the same client each write the cookie
// back and the last response wins.
type SessionIdentity struct {
	trueUser *User
	acting   *User
	channel  Channel
}

// NewSessionIdentity returns an anonymous identity
func NewSessionIdentity() *SessionIdentity {
	return &SessionIdentity{}
}

func restoreSessionIdentity(trueUser, acting *User) *SessionIdentity {
	id := &SessionIdentity{}
	if trueUser == nil {
		return id
	}
	id.trueUser = trueUser
	id.acting = acting
	id.channel = ChannelSession
	return id
}

func tokenIdentity(user *User) *SessionIdentity {
	if user == nil {
		return &SessionIdentity{}
	}
	return &SessionIdentity{trueUser: user, channel: ChannelToken}
}

// SignIn sets the true principal and drops any impersonation
func (s *SessionIdentity) SignIn(u *User) {
	if u == nil {
		s.SignOut()
		return
	}
	s.trueUser = u
	s.acting = nil
	s.channel = ChannelSession
}

// SignOut clears both slots
func (s *SessionIdentity) SignOut() {
	s.trueUser = nil
	s.acting = nil
	s.channel = ChannelNone
}

// True is the principal that signed in
func (s *SessionIdentity) True() *User {
	if s == nil {
		return nil
	}
	return s.trueUser
}

// Acting is the impersonated principal, if any
func (s *SessionIdentity) Acting() *User {
	if s == nil {
		return nil
	}
	return s.acting
}

// Current is the effective principal: the acting principal while
// impersonating, the true principal otherwise.
func (s *SessionIdentity) Current() *User {
	if s == nil {
		return nil
	}
	if s.acting != nil {
		return s.acting
	}
	return s.trueUser
}

// IsImpersonating reports whether an acting principal is set
func (s *SessionIdentity) IsImpersonating() bool {
	return s != nil && s.trueUser != nil && s.acting != nil
}

// IsSignedIn reports whether a true principal is set
func (s *SessionIdentity) IsSignedIn() bool {
	return s != nil && s.trueUser != nil
}

// State returns the identity state
func (s *SessionIdentity) State() IdentityState {
	switch {
	case s == nil || s.trueUser == nil:
		return StateAnonymous
	case s.acting != nil:
		return StateImpersonating
	default:
		return StateSignedIn
	}
}

// Channel returns how the identity was established
func (s *SessionIdentity) Channel() Channel {
	if s == nil {
		return ChannelNone
	}
	return s.channel
}

func (s *SessionIdentity) impersonate(target *User) {
	s.acting = target
}

func (s *SessionIdentity) stopImpersonating() {
	s.acting = nil
}
