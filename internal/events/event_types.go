package events

import (
	"time"

	"github.com/spec-kit/trader-console/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventSessionStarted fires on every transition into Authenticated.
	EventSessionStarted EventType = "session_started"

	// EventSessionEnded fires when an authenticated session is torn down.
	EventSessionEnded EventType = "session_ended"

	// EventCredentialRejected fires when a stored or issued credential fails to decode.
	EventCredentialRejected EventType = "credential_rejected"
)

// EndReason explains why a session ended.
type EndReason string

const (
	EndReasonLogout       EndReason = "logout"
	EndReasonUnauthorized EndReason = "unauthorized"
	EndReasonReplaced     EndReason = "replaced"
	EndReasonInvalid      EndReason = "invalid"
)

// Event represents a session lifecycle change published by the session service.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Identity  domain.Identity `json:"identity"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   interface{}     `json:"payload"`
}

// SessionStartedPayload payload.
type SessionStartedPayload struct {
	Subject string      `json:"subject"`
	Role    domain.Role `json:"role"`

	// Restored is true when the session came from the credential store at startup.
	Restored bool `json:"restored"`
}

// SessionEndedPayload payload.
type SessionEndedPayload struct {
	Reason EndReason `json:"reason"`
}

// CredentialRejectedPayload payload.
type CredentialRejectedPayload struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}
