package billing

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
)

type memoryRepository struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]entitlement.Subscription
}

// NewMemoryRepository creates a Repository kept in process memory.
func NewMemoryRepository() Repository {
	return &memoryRepository{subs: make(map[uuid.UUID]entitlement.Subscription)}
}

func (r *memoryRepository) GetActiveSubscription(_ context.Context, tenantID uuid.UUID) (*entitlement.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subs {
		if s.TenantID == tenantID && s.IsActive() {
			return &s, nil
		}
	}
	return nil, entitlement.ErrSubscriptionNotFound
}

func (r *memoryRepository) GetByProviderSubID(_ context.Context, providerSubID string) (*entitlement.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *entitlement.Subscription
	for _, s := range r.subs {
		if providerSubID == "" || s.ProviderSubID != providerSubID {
			continue
		}
		if found == nil || s.CreatedAt.After(found.CreatedAt) {
			found = &s
		}
	}
	if found == nil {
		return nil, entitlement.ErrSubscriptionNotFound
	}
	return found, nil
}

func (r *memoryRepository) Save(_ context.Context, sub *entitlement.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.IsActive() {
		for id, s := range r.subs {
			if id != sub.ID && s.TenantID == sub.TenantID && s.IsActive() {
				return ErrSubscriptionConflict
			}
		}
	}
	r.subs[sub.ID] = *sub
	return nil
}
