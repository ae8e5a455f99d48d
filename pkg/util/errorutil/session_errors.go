package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthErrorKind discriminates login, registration and decode failures.
type AuthErrorKind string

const (
	AuthInvalidCredentials AuthErrorKind = "INVALID_CREDENTIALS"
	AuthCorrupt            AuthErrorKind = "CORRUPT_CREDENTIAL"
	AuthNetwork            AuthErrorKind = "NETWORK_ERROR"
	AuthConflict           AuthErrorKind = "CONFLICT"
	AuthValidation         AuthErrorKind = "VALIDATION_FAILED"
)

// AuthStep names the exchange an AuthError came from.
type AuthStep string

const (
	StepLogin    AuthStep = "login"
	StepRegister AuthStep = "register"
	StepDecode   AuthStep = "decode"
)

// AuthError is returned by login, register and credential decoding.
type AuthError struct {
	Kind    AuthErrorKind
	Step    AuthStep
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Step != "" {
		msg = fmt.Sprintf("%s: %s", e.Step, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches another AuthError by kind, and by step when the target sets one.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Step == "" || t.Step == e.Step
}

// WithStep returns a copy of e attributed to step.
func (e *AuthError) WithStep(step AuthStep) *AuthError {
	cp := *e
	cp.Step = step
	return &cp
}

func (e *AuthError) toDomainError() *DomainError {
	status := http.StatusUnauthorized
	switch e.Kind {
	case AuthConflict:
		status = http.StatusConflict
	case AuthValidation:
		status = http.StatusBadRequest
	case AuthNetwork:
		status = http.StatusBadGateway
	}
	details := map[string]any{}
	if e.Step != "" {
		details["step"] = string(e.Step)
	}
	return &DomainError{Code: string(e.Kind), Message: e.messageOrKind(), HTTPStatus: status, Details: details, Err: e.Err}
}

func (e *AuthError) messageOrKind() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func NewInvalidCredentials(message string) *AuthError {
	return &AuthError{Kind: AuthInvalidCredentials, Message: message}
}

func NewCorruptCredential(message string, err error) *AuthError {
	return &AuthError{Kind: AuthCorrupt, Step: StepDecode, Message: message, Err: err}
}

func NewAuthNetworkError(err error) *AuthError {
	return &AuthError{Kind: AuthNetwork, Message: "backend unreachable", Err: err}
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidCredentials = &AuthError{Kind: AuthInvalidCredentials}
	ErrCorruptCredential  = &AuthError{Kind: AuthCorrupt}
	ErrAuthNetwork        = &AuthError{Kind: AuthNetwork}
	ErrRegisterConflict   = &AuthError{Kind: AuthConflict}
	ErrRegisterValidation = &AuthError{Kind: AuthValidation}
)

// AsAuthError extracts an AuthError from err.
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// FetchErrorKind discriminates failures of calls made through the gateway.
type FetchErrorKind string

const (
	FetchUnauthorized FetchErrorKind = "UNAUTHORIZED"
	FetchServer       FetchErrorKind = "SERVER_ERROR"
	FetchNetwork      FetchErrorKind = "NETWORK_ERROR"

	// FetchRejected covers 4xx responses other than 401.
	FetchRejected FetchErrorKind = "REJECTED"
)

// FetchError is returned by every call made through the request gateway.
type FetchError struct {
	Kind     FetchErrorKind
	Status   int
	Resource string
	Message  string
	Err      error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Resource, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (%d)", msg, e.Status)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches another FetchError by kind.
func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	return ok && t.Kind == e.Kind
}

func (e *FetchError) toDomainError() *DomainError {
	status := http.StatusBadGateway
	switch e.Kind {
	case FetchUnauthorized:
		status = http.StatusUnauthorized
	case FetchRejected:
		status = e.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
	}
	message := e.Message
	if message == "" {
		message = fmt.Sprintf("%s request failed", e.Resource)
	}
	return &DomainError{
		Code:       string(e.Kind),
		Message:    message,
		HTTPStatus: status,
		Details:    map[string]any{"resource": e.Resource},
		Err:        e.Err,
	}
}

var (
	ErrFetchUnauthorized = &FetchError{Kind: FetchUnauthorized}
	ErrFetchServer       = &FetchError{Kind: FetchServer}
	ErrFetchNetwork      = &FetchError{Kind: FetchNetwork}
	ErrFetchRejected     = &FetchError{Kind: FetchRejected}
)

// AsFetchError extracts a FetchError from err.
func AsFetchError(err error) (*FetchError, bool) {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a FetchError of kind Unauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrFetchUnauthorized)
}

var (
	// ErrAuthInFlight rejects a login or registration issued while another is pending.
	ErrAuthInFlight = NewDomainError("AUTH_IN_FLIGHT", "a login or registration is already in progress", http.StatusConflict, nil)

	// ErrNoActiveSession is returned by operations that need an authenticated session.
	// ErrAuthCancelled is returned by a login or registration overtaken by a logout.
	ErrAuthCancelled = NewDomainError("AUTH_CANCELLED", "authentication was cancelled by a logout", http.StatusConflict, nil)
	ErrNoActiveSession = NewDomainError("NO_ACTIVE_SESSION", "no active session", http.StatusUnauthorized, nil)
)
