package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/trader-console/internal/domain"
	"github.com/spec-kit/trader-console/internal/events"
	"github.com/spec-kit/trader-console/internal/observability"
	"github.com/spec-kit/trader-console/internal/repository"
	apperrors "github.com/spec-kit/trader-console/pkg/util/errorutil"
)

// AuthExchange performs the backend login and registration exchanges.
type AuthExchange interface {
	Login(ctx context.Context, identifier, secret string) (domain.Credential, error)
	Register(ctx context.Context, reg domain.Registration) error
}

// CredentialDecoder turns a credential into claims, failing with a Corrupt AuthError.
type CredentialDecoder interface {
	Decode(credential domain.Credential) (domain.Claims, error)
}

// SessionDependencies encapsulates collaborator requirements for the session service.
type SessionDependencies struct {
	Store      repository.CredentialRepository
	Exchange   AuthExchange
	Decoder    CredentialDecoder
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// SessionService owns the session state machine and is the only writer of the
// credential slot. Transitions are serialized; event handlers run synchronously
// inside a transition and must not call back into Login, Logout or Expire.
type SessionService struct {
	store      repository.CredentialRepository
	exchange   AuthExchange
	decoder    CredentialDecoder
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time

	inflight   atomic.Bool
	transition sync.Mutex
	// authEpoch is bumped by Logout and Expire under transition. A pending
	// exchange whose epoch changed is dropped.
	authEpoch uint64

	mu         sync.RWMutex
	state      domain.SessionState
	session    *domain.Session
	generation uint64
}

// NewSessionService builds the service in the Anonymous state. Call Load once
// handlers are subscribed to restore a stored credential.
func NewSessionService(deps SessionDependencies, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Store == nil {
		deps.Store = repository.NewMemoryCredentialRepository()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &SessionService{
		store:      deps.Store,
		exchange:   deps.Exchange,
		decoder:    deps.Decoder,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		now:        deps.Now,
		state:      domain.SessionAnonymous,
	}
}

// Load reads the credential store once. A valid credential restores the session;
// a corrupt or expired one is cleared and the service stays Anonymous.
func (s *SessionService) Load(ctx context.Context) domain.SessionSnapshot {
	s.transition.Lock()
	defer s.transition.Unlock()

	if s.currentSession() != nil {
		return s.Current()
	}
	credential, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Warn("credential store read failed", zap.Error(err))
		credential = ""
	}
	if credential.Empty() {
		s.setState(domain.SessionAnonymous, nil)
		return s.Current()
	}

	claims, err := s.decoder.Decode(credential)
	if err != nil {
		s.reject(ctx, "store", err)
		return s.Current()
	}
	s.install(ctx, credential, claims, true)
	return s.Current()
}

// Login exchanges identifier and secret for a credential and adopts it. On
// failure the previous state is kept and an AuthError attributed to the login
// step is returned.
func (s *SessionService) Login(ctx context.Context, identifier, secret string) (domain.SessionSnapshot, error) {
	if !s.inflight.CompareAndSwap(false, true) {
		return s.Current(), apperrors.ErrAuthInFlight
	}
	defer s.inflight.Store(false)

	epoch := s.beginAuthenticating()
	return s.authenticate(ctx, epoch, identifier, secret)
}

// Register creates a trader account and then logs in with the same identifier
// and secret. Registration failures carry the register step, failures of the
// chained login carry the login step.
func (s *SessionService) Register(ctx context.Context, displayName, identifier, secret string) (domain.SessionSnapshot, error) {
	if !s.inflight.CompareAndSwap(false, true) {
		return s.Current(), apperrors.ErrAuthInFlight
	}
	defer s.inflight.Store(false)

	epoch := s.beginAuthenticating()
	err := s.exchange.Register(ctx, domain.Registration{
		DisplayName: displayName,
		Identifier:  identifier,
		Secret:      secret,
		Role:        domain.RoleTrader,
	})
	if err != nil {
		s.abortAuthenticating()
		return s.Current(), attributeStep(err, apperrors.StepRegister)
	}
	return s.authenticate(ctx, epoch, identifier, secret)
}

// Logout clears the store and returns to Anonymous. A login or registration
// still in flight is cancelled and its result dropped. Calling it with no
// session and nothing pending does nothing.
func (s *SessionService) Logout(ctx context.Context) {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.authEpoch++
	if s.currentSession() != nil {
		s.end(ctx, events.EndReasonLogout)
		return
	}
	if s.State() == domain.SessionAuthenticating {
		s.logger.Info("pending authentication cancelled by logout")
		s.setState(domain.SessionAnonymous, nil)
	}
}

// Expire ends the session identified by sessionID. It reports false, and does
// nothing, when that session is no longer current.
func (s *SessionService) Expire(ctx context.Context, sessionID string, reason events.EndReason) bool {
	s.transition.Lock()
	defer s.transition.Unlock()

	current := s.currentSession()
	if current == nil || current.ID != sessionID {
		return false
	}
	s.logger.Info("session expired", zap.String("session_id", sessionID), zap.String("reason", string(reason)))
	s.authEpoch++
	s.end(ctx, reason)
	return true
}

// Current returns a copy of the session state.
func (s *SessionService) Current() domain.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := domain.SessionSnapshot{State: s.state}
	if s.session != nil {
		cp := *s.session
		snapshot.Session = &cp
	}
	return snapshot
}

// Credential returns the credential of the current session, or empty.
func (s *SessionService) Credential() domain.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.Credential
}

func (s *SessionService) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *SessionService) authenticate(ctx context.Context, epoch uint64, identifier, secret string) (domain.SessionSnapshot, error) {
	if s.cancelled(epoch) {
		return s.Current(), apperrors.ErrAuthCancelled
	}
	credential, err := s.exchange.Login(ctx, identifier, secret)
	if err != nil {
		s.abortAuthenticating()
		return s.Current(), attributeStep(err, apperrors.StepLogin)
	}

	claims, err := s.decoder.Decode(credential)
	if err != nil {
		s.transition.Lock()
		if s.authEpoch == epoch {
			s.publish(ctx, events.EventCredentialRejected, domain.Identity{}, events.CredentialRejectedPayload{Source: "login", Error: err.Error()})
		}
		s.transition.Unlock()
		s.abortAuthenticating()
		return s.Current(), err
	}

	s.transition.Lock()
	defer s.transition.Unlock()
	if s.authEpoch != epoch {
		s.logger.Info("dropping credential of a cancelled authentication")
		return s.Current(), apperrors.ErrAuthCancelled
	}
	if previous := s.currentSession(); previous != nil {
		s.publish(ctx, events.EventSessionEnded, previous.Identity(), events.SessionEndedPayload{Reason: events.EndReasonReplaced})
	}
	s.install(ctx, credential, claims, false)
	return s.Current(), nil
}

// install stores credential and enters Authenticated. Callers hold transition.
func (s *SessionService) install(ctx context.Context, credential domain.Credential, claims domain.Claims, restored bool) {
	if !restored {
		if err := s.store.Set(ctx, credential); err != nil {
			s.logger.Warn("credential store write failed", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.generation++
	generation := s.generation
	s.mu.Unlock()

	session := &domain.Session{
		ID:            uuid.NewString(),
		Credential:    credential,
		Claims:        claims,
		Generation:    generation,
		Valid:         true,
		EstablishedAt: s.now(),
	}
	s.setState(domain.SessionAuthenticated, session)
	s.logger.Info("session started",
		zap.String("session_id", session.ID),
		zap.String("subject", claims.Subject),
		zap.String("role", string(claims.Role)),
		zap.Bool("restored", restored))
	s.publish(ctx, events.EventSessionStarted, session.Identity(), events.SessionStartedPayload{
		Subject:  claims.Subject,
		Role:     claims.Role,
		Restored: restored,
	})
}

// reject passes through Invalid, clears the store and settles on Anonymous.
func (s *SessionService) reject(ctx context.Context, source string, cause error) {
	s.logger.Warn("credential rejected", zap.String("source", source), zap.Error(cause))
	s.setState(domain.SessionInvalid, nil)
	s.publish(ctx, events.EventCredentialRejected, domain.Identity{}, events.CredentialRejectedPayload{Source: source, Error: cause.Error()})
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("credential store clear failed", zap.Error(err))
	}
	s.setState(domain.SessionAnonymous, nil)
}

// end tears down the current session. Callers hold transition.
func (s *SessionService) end(ctx context.Context, reason events.EndReason) {
	previous := s.currentSession()
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("credential store clear failed", zap.Error(err))
	}
	s.setState(domain.SessionAnonymous, nil)
	if previous != nil {
		s.publish(ctx, events.EventSessionEnded, previous.Identity(), events.SessionEndedPayload{Reason: reason})
	}
}

// beginAuthenticating enters Authenticating and returns the epoch the exchange
// runs under. An installed session stays in place until it is replaced.
func (s *SessionService) beginAuthenticating() uint64 {
	s.transition.Lock()
	defer s.transition.Unlock()
	s.setState(domain.SessionAuthenticating, s.currentSession())
	return s.authEpoch
}

func (s *SessionService) cancelled(epoch uint64) bool {
	s.transition.Lock()
	defer s.transition.Unlock()
	return s.authEpoch != epoch
}

// abortAuthenticating restores the state the exchange started from, unless a
// logout or expiry already moved it on.
func (s *SessionService) abortAuthenticating() {
	s.transition.Lock()
	defer s.transition.Unlock()
	if s.State() != domain.SessionAuthenticating {
		return
	}
	if session := s.currentSession(); session != nil {
		s.setState(domain.SessionAuthenticated, session)
		return
	}
	s.setState(domain.SessionAnonymous, nil)
}

func (s *SessionService) currentSession() *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *SessionService) setState(state domain.SessionState, session *domain.Session) {
	s.mu.Lock()
	from := s.state
	s.state = state
	s.session = session
	s.mu.Unlock()

	if from != state {
		s.metrics.RecordTransition(string(from), string(state))
		s.logger.Debug("session transition", zap.String("from", string(from)), zap.String("to", string(state)))
	}
}

func (s *SessionService) publish(ctx context.Context, eventType events.EventType, identity domain.Identity, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Identity:  identity,
		Timestamp: s.now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("session event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

// attributeStep tags err with the exchange step. Errors that are not AuthErrors
// are reported as network failures.
func attributeStep(err error, step apperrors.AuthStep) error {
	if authErr, ok := apperrors.AsAuthError(err); ok {
		if authErr.Step == step {
			return authErr
		}
		return authErr.WithStep(step)
	}
	return apperrors.NewAuthNetworkError(err).WithStep(step)
}
