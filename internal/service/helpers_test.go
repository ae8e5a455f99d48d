package service

import (
	"context"
	"sync"
	"testing"

	"github.com/spec-kit/trader-console/internal/auth"
	"github.com/spec-kit/trader-console/internal/domain"
	"github.com/spec-kit/trader-console/internal/events"
	"github.com/spec-kit/trader-console/internal/observability"
	"github.com/spec-kit/trader-console/internal/repository"
)

var issuer = auth.NewTokenManager("service-test-secret", 60)

func mintCredential(t *testing.T, subject string, role domain.Role) domain.Credential {
	t.Helper()
	token, _, err := issuer.GenerateToken(subject, subject+"@x.com", role)
	if err != nil {
		t.Fatalf("mint credential: %v", err)
	}
	return domain.Credential(token)
}

type fakeExchange struct {
	mu            sync.Mutex
	loginFn       func(ctx context.Context, identifier, secret string) (domain.Credential, error)
	registerFn    func(ctx context.Context, reg domain.Registration) error
	logins        int
	registrations []domain.Registration
}

func (f *fakeExchange) Login(ctx context.Context, identifier, secret string) (domain.Credential, error) {
	f.mu.Lock()
	f.logins++
	fn := f.loginFn
	f.mu.Unlock()
	return fn(ctx, identifier, secret)
}

func (f *fakeExchange) Register(ctx context.Context, reg domain.Registration) error {
	f.mu.Lock()
	f.registrations = append(f.registrations, reg)
	fn := f.registerFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, reg)
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func recordEvents(d events.Dispatcher) *eventLog {
	log := &eventLog{}
	handler := func(_ context.Context, e events.Event) error {
		log.mu.Lock()
		defer log.mu.Unlock()
		log.events = append(log.events, e)
		return nil
	}
	d.Subscribe(events.EventSessionStarted, handler)
	d.Subscribe(events.EventSessionEnded, handler)
	d.Subscribe(events.EventCredentialRejected, handler)
	return log
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func (l *eventLog) last() events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return events.Event{}
	}
	return l.events[len(l.events)-1]
}

type sessionFixture struct {
	store      repository.CredentialRepository
	exchange   *fakeExchange
	dispatcher events.Dispatcher
	events     *eventLog
	metrics    *observability.Metrics
	sessions   *SessionService
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		store:      repository.NewMemoryCredentialRepository(),
		exchange:   &fakeExchange{},
		dispatcher: events.NewInMemoryDispatcher(),
		metrics:    observability.NewMetrics(),
	}
	f.events = recordEvents(f.dispatcher)
	f.sessions = NewSessionService(SessionDependencies{
		Store:      f.store,
		Exchange:   f.exchange,
		Decoder:    auth.NewTokenManager("", 0),
		Dispatcher: f.dispatcher,
		Metrics:    f.metrics,
	}, nil)
	return f
}

func (f *sessionFixture) stored(t *testing.T) domain.Credential {
	t.Helper()
	cred, err := f.store.Get(context.Background())
	if err != nil {
		t.Fatalf("store get: %v", err)
	}
	return cred
}

func eventTypesEqual(got, want []events.EventType) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
