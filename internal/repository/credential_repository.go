package repository

import (
	"context"
	"sync"

	"github.com/spec-kit/trader-console/internal/domain"
)

// CredentialRepository is the single-slot credential store. Get returns an
// empty credential when nothing is stored.
type CredentialRepository interface {
	Get(ctx context.Context) (domain.Credential, error)
	Set(ctx context.Context, credential domain.Credential) error
	Clear(ctx context.Context) error
}

type memoryCredentialRepository struct {
	mu         sync.RWMutex
	credential domain.Credential
}

// NewMemoryCredentialRepository returns a process-local store; its contents do not survive a restart.
func NewMemoryCredentialRepository() CredentialRepository {
	return &memoryCredentialRepository{}
}

func (r *memoryCredentialRepository) Get(_ context.Context) (domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.credential, nil
}

func (r *memoryCredentialRepository) Set(_ context.Context, credential domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credential = credential
	return nil
}

func (r *memoryCredentialRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credential = ""
	return nil
}
