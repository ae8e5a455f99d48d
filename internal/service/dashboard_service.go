package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/trader-console/internal/api/client"
	"github.com/spec-kit/trader-console/internal/domain"
	"github.com/spec-kit/trader-console/internal/events"
	"github.com/spec-kit/trader-console/internal/observability"
	apperrors "github.com/spec-kit/trader-console/pkg/util/errorutil"
)

// DependentFetch is one member of the fixed fetch set issued per session.
type DependentFetch struct {
	Name  string
	Fetch func(ctx context.Context) (any, error)
}

// DashboardFetches returns the health, positions and stats fetches.
func DashboardFetches(resources *client.Resources) []DependentFetch {
	return []DependentFetch{
		{Name: "health", Fetch: func(ctx context.Context) (any, error) { return resources.Health(ctx) }},
		{Name: "positions", Fetch: func(ctx context.Context) (any, error) { return resources.Positions(ctx) }},
		{Name: "stats", Fetch: func(ctx context.Context) (any, error) { return resources.DashboardStats(ctx) }},
	}
}

// FetchStatus is the lifecycle of a single dependent fetch.
type FetchStatus string

const (
	FetchIdle    FetchStatus = "idle"
	FetchLoading FetchStatus = "loading"
	FetchReady   FetchStatus = "ready"
	FetchFailed  FetchStatus = "failed"
)

// FetchState reports one fetch independently of its siblings.
type FetchState struct {
	Name      string
	Status    FetchStatus
	Data      any
	Err       error
	UpdatedAt time.Time
}

// DashboardSnapshot is a non-blocking view of the current fetch set.
type DashboardSnapshot struct {
	Identity domain.Identity
	Fetches  []FetchState
}

// Settled reports whether no fetch is still loading.
func (s DashboardSnapshot) Settled() bool {
	for _, f := range s.Fetches {
		if f.Status == FetchLoading {
			return false
		}
	}
	return true
}

// Fetch returns the state of the named fetch.
func (s DashboardSnapshot) Fetch(name string) (FetchState, bool) {
	for _, f := range s.Fetches {
		if f.Name == name {
			return f, true
		}
	}
	return FetchState{}, false
}

// SessionController is the part of the session service the dashboard needs.
type SessionController interface {
	Current() domain.SessionSnapshot
	Expire(ctx context.Context, sessionID string, reason events.EndReason) bool
}

type burst struct {
	identity  domain.Identity
	seq       uint64
	cancel    context.CancelFunc
	remaining int
	done      chan struct{}
	once      sync.Once
}

func (b *burst) finish() {
	b.once.Do(func() { close(b.done) })
}

// DashboardService issues the dependent fetch set whenever the session identity
// changes and discards results that arrive for an identity that is no longer
// current.
type DashboardService struct {
	fetches    []DependentFetch
	sessions   SessionController
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time

	mu       sync.Mutex
	identity domain.Identity
	states   map[string]*FetchState
	current  *burst
	seq      uint64
}

// NewDashboardService creates the service.
func NewDashboardService(fetches []DependentFetch, sessions SessionController, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &DashboardService{
		fetches:    fetches,
		sessions:   sessions,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
		states:     make(map[string]*FetchState, len(fetches)),
	}
	d.resetLocked()
	return d
}

// RegisterHandlers subscribes to session events.
func (d *DashboardService) RegisterHandlers() {
	if d.dispatcher == nil {
		return
	}
	d.dispatcher.Subscribe(events.EventSessionStarted, d.handleSessionStarted)
	d.dispatcher.Subscribe(events.EventSessionEnded, d.handleSessionEnded)
}

func (d *DashboardService) handleSessionStarted(_ context.Context, event events.Event) error {
	d.Activate(event.Identity)
	return nil
}

func (d *DashboardService) handleSessionEnded(_ context.Context, event events.Event) error {
	d.Deactivate(event.Identity)
	return nil
}

// Activate issues the fetch set for identity. Activation with the identity that
// is already current is suppressed and reports false.
func (d *DashboardService) Activate(identity domain.Identity) bool {
	if identity.Zero() {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.identity == identity {
		d.logger.Debug("dashboard activation suppressed", zap.String("session_id", identity.SessionID))
		return false
	}
	d.identity = identity
	d.startLocked()
	return true
}

// Deactivate drops all fetch state for identity. A zero identity deactivates
// whatever is current.
func (d *DashboardService) Deactivate(identity domain.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.identity.Zero() {
		return
	}
	if !identity.Zero() && identity != d.identity {
		return
	}
	d.logger.Debug("dashboard deactivated", zap.String("session_id", d.identity.SessionID))
	d.stopLocked()
	d.identity = domain.Identity{}
	d.resetLocked()
}

// Reload re-issues the fetch set for the current identity.
func (d *DashboardService) Reload() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.identity.Zero() {
		return apperrors.ErrNoActiveSession
	}
	d.startLocked()
	return nil
}

// Sync aligns the dashboard with the session service's current state.
func (d *DashboardService) Sync() {
	if d.sessions == nil {
		return
	}
	snapshot := d.sessions.Current()
	if snapshot.Authenticated() {
		d.Activate(snapshot.Identity())
		return
	}
	d.Deactivate(domain.Identity{})
}

// Snapshot returns the fetch states without waiting on pending fetches.
func (d *DashboardService) Snapshot() DashboardSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	snapshot := DashboardSnapshot{Identity: d.identity, Fetches: make([]FetchState, 0, len(d.fetches))}
	for _, f := range d.fetches {
		snapshot.Fetches = append(snapshot.Fetches, *d.states[f.Name])
	}
	return snapshot
}

// Wait blocks until the current burst has settled, following any burst that
// supersedes it.
func (d *DashboardService) Wait(ctx context.Context) error {
	for {
		d.mu.Lock()
		b := d.current
		d.mu.Unlock()
		if b == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
		}
		d.mu.Lock()
		next := d.current
		d.mu.Unlock()
		if next == nil || next == b {
			return nil
		}
	}
}

func (d *DashboardService) startLocked() {
	d.stopLocked()
	d.seq++
	ctx, cancel := context.WithCancel(context.Background())
	b := &burst{
		identity:  d.identity,
		seq:       d.seq,
		cancel:    cancel,
		remaining: len(d.fetches),
		done:      make(chan struct{}),
	}
	d.current = b
	d.logger.Info("dashboard fetch burst",
		zap.String("session_id", b.identity.SessionID),
		zap.Uint64("generation", b.identity.Generation),
		zap.Uint64("seq", b.seq))

	now := d.now()
	for _, f := range d.fetches {
		d.states[f.Name] = &FetchState{Name: f.Name, Status: FetchLoading, UpdatedAt: now}
	}
	if b.remaining == 0 {
		b.finish()
		cancel()
		return
	}
	for _, f := range d.fetches {
		go d.run(ctx, b, f)
	}
}

func (d *DashboardService) stopLocked() {
	if d.current == nil {
		return
	}
	d.current.cancel()
	d.current.finish()
	d.current = nil
}

func (d *DashboardService) resetLocked() {
	for _, f := range d.fetches {
		d.states[f.Name] = &FetchState{Name: f.Name, Status: FetchIdle}
	}
}

func (d *DashboardService) run(ctx context.Context, b *burst, f DependentFetch) {
	data, err := f.Fetch(ctx)
	d.complete(b, f.Name, data, err)
}

func (d *DashboardService) complete(b *burst, name string, data any, err error) {
	d.mu.Lock()
	if d.current != b {
		d.mu.Unlock()
		d.metrics.RecordDiscarded()
		d.logger.Debug("discarding stale fetch result",
			zap.String("fetch", name),
			zap.String("session_id", b.identity.SessionID),
			zap.Uint64("seq", b.seq))
		return
	}

	state := &FetchState{Name: name, UpdatedAt: d.now()}
	if err != nil {
		state.Status = FetchFailed
		state.Err = err
	} else {
		state.Status = FetchReady
		state.Data = data
	}
	d.states[name] = state
	d.mu.Unlock()

	if err != nil {
		d.logger.Warn("dashboard fetch failed", zap.String("fetch", name), zap.Error(err))
		if apperrors.IsUnauthorized(err) && d.sessions != nil {
			d.sessions.Expire(context.Background(), b.identity.SessionID, events.EndReasonUnauthorized)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != b {
		return
	}
	b.remaining--
	if b.remaining == 0 {
		b.finish()
		b.cancel()
	}
}
