package domain

import "time"

// SessionState enumerates the session lifecycle states.
type SessionState string

const (
	SessionAnonymous      SessionState = "anonymous"
	SessionAuthenticating SessionState = "authenticating"
	SessionAuthenticated  SessionState = "authenticated"

	// SessionInvalid is only observed while a rejected credential is being cleared.
	SessionInvalid SessionState = "invalid"
)

// Session pairs a trusted credential with its decoded claims.
type Session struct {
	ID            string
	Credential    Credential
	Claims        Claims
	Generation    uint64
	Valid         bool
	EstablishedAt time.Time
}

// Identity returns the key used to tell one session apart from the next.
func (s *Session) Identity() Identity {
	if s == nil {
		return Identity{}
	}
	return Identity{SessionID: s.ID, Subject: s.Claims.Subject, Generation: s.Generation}
}

// Identity identifies the session a piece of work was issued under.
type Identity struct {
	SessionID  string
	Subject    string
	Generation uint64
}

// Zero reports whether the identity refers to no session.
func (i Identity) Zero() bool {
	return i.SessionID == ""
}

// SessionSnapshot is a point-in-time copy of the session state.
type SessionSnapshot struct {
	State   SessionState
	Session *Session
}

// Authenticated reports whether the snapshot holds a valid session. A re-login
// in progress keeps the installed session authenticated until it is replaced.
func (s SessionSnapshot) Authenticated() bool {
	if s.Session == nil || !s.Session.Valid {
		return false
	}
	return s.State == SessionAuthenticated || s.State == SessionAuthenticating
}

// Claims returns the session claims, if any.
func (s SessionSnapshot) Claims() (Claims, bool) {
	if s.Session == nil {
		return Claims{}, false
	}
	return s.Session.Claims, true
}

// Identity returns the identity of the snapshot session.
func (s SessionSnapshot) Identity() Identity {
	return s.Session.Identity()
}
