package grantrepo

import (
	"context"
	"sync"

	"github.com/yanqian/ai-assistant/internal/domain/auth"
)

// MemoryRepository keeps the linked grant in memory for tests/dev.
type MemoryRepository struct {
	mu    sync.RWMutex
	grant *auth.Grant
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Get(_ context.Context) (auth.Grant, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.grant == nil {
		return auth.Grant{}, false, nil
	}
	return cloneGrant(*r.grant), true, nil
}

func (r *MemoryRepository) Save(_ context.Context, grant auth.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := cloneGrant(grant)
	r.grant = &stored
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grant = nil
	return nil
}

func cloneGrant(g auth.Grant) auth.Grant {
	g.Scopes = append([]string(nil), g.Scopes...)
	return g
}

var _ auth.GrantRepository = (*MemoryRepository)(nil)
