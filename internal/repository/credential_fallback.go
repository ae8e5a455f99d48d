package repository

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/trader-console/internal/domain"
)

const (
	defaultClearRetryInterval = 2 * time.Second
	clearAttemptTimeout       = 2 * time.Second
)

// FallbackCredentialRepository mirrors a durable store in memory. The first failed
// durable operation switches it to memory-only for the rest of the process;
// callers never see the durable error.
//
// A durable clear that fails, or a durable write that fails after an earlier one
// succeeded, leaves a pending clear. It is retried in the background until the
// durable store accepts it, so a logged-out credential is never restored on the
// next start.
type FallbackCredentialRepository struct {
	primary    CredentialRepository
	memory     CredentialRepository
	logger     *zap.Logger
	retryEvery time.Duration

	mu           sync.Mutex
	degraded     bool
	pendingClear bool
	retrying     bool
	closed       bool
	stop         chan struct{}
	wg           sync.WaitGroup
}

// FallbackOption customises a FallbackCredentialRepository.
type FallbackOption func(*FallbackCredentialRepository)

// WithClearRetryInterval sets how often a pending durable clear is retried.
func WithClearRetryInterval(d time.Duration) FallbackOption {
	return func(r *FallbackCredentialRepository) {
		if d > 0 {
			r.retryEvery = d
		}
	}
}

// NewFallbackCredentialRepository wraps primary. A nil primary starts degraded.
func NewFallbackCredentialRepository(primary CredentialRepository, logger *zap.Logger, opts ...FallbackOption) *FallbackCredentialRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &FallbackCredentialRepository{
		primary:    primary,
		memory:     NewMemoryCredentialRepository(),
		logger:     logger,
		retryEvery: defaultClearRetryInterval,
		degraded:   primary == nil,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Degraded reports whether the store is running memory-only.
func (r *FallbackCredentialRepository) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

// ClearPending reports whether the durable store may still hold a credential
// that was cleared in memory.
func (r *FallbackCredentialRepository) ClearPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingClear
}

func (r *FallbackCredentialRepository) Get(ctx context.Context) (domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.degraded {
		credential, err := r.primary.Get(ctx)
		if err == nil {
			_ = r.memory.Set(ctx, credential)
			return credential, nil
		}
		r.degrade("get", err)
	}
	return r.memory.Get(ctx)
}

func (r *FallbackCredentialRepository) Set(ctx context.Context, credential domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.memory.Set(ctx, credential)
	if !r.degraded {
		if err := r.primary.Set(ctx, credential); err != nil {
			r.degrade("set", err)
			// An older credential may still be stored durably.
			r.schedulePendingClearLocked()
		}
	}
	return nil
}

func (r *FallbackCredentialRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.memory.Clear(ctx)
	if r.primary == nil {
		return nil
	}

	err := r.primary.Clear(ctx)
	if err != nil && !r.degraded {
		err = r.primary.Clear(ctx)
	}
	if err == nil {
		r.pendingClear = false
		return nil
	}
	if !r.degraded {
		r.degrade("clear", err)
	}
	r.schedulePendingClearLocked()
	return nil
}

// Close stops the retry loop and makes a last attempt at any pending clear.
func (r *FallbackCredentialRepository) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.stop)
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pendingClear && !r.attemptClearLocked() {
		r.logger.Error("stored credential could not be cleared before exit")
	}
}

func (r *FallbackCredentialRepository) schedulePendingClearLocked() {
	r.pendingClear = true
	if r.retrying || r.closed {
		return
	}
	r.retrying = true
	r.wg.Add(1)
	go r.retryClear()
}

func (r *FallbackCredentialRepository) retryClear() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.retryEvery)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			r.mu.Lock()
			r.retrying = false
			r.mu.Unlock()
			return
		case <-ticker.C:
		}

		r.mu.Lock()
		if !r.pendingClear || r.attemptClearLocked() {
			r.retrying = false
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()
	}
}

// attemptClearLocked clears the durable store once. It reports success.
func (r *FallbackCredentialRepository) attemptClearLocked() bool {
	ctx, cancel := context.WithTimeout(context.Background(), clearAttemptTimeout)
	defer cancel()
	if err := r.primary.Clear(ctx); err != nil {
		r.logger.Debug("pending credential clear failed", zap.Error(err))
		return false
	}
	r.pendingClear = false
	r.logger.Info("pending credential clear applied to durable store")
	return true
}

func (r *FallbackCredentialRepository) degrade(op string, err error) {
	r.degraded = true
	r.logger.Warn("credential store unavailable; continuing in memory, session will not survive restart",
		zap.String("op", op), zap.Error(err))
}
