package planning_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/svc/planning"
)

// seed exposes the store's unguarded inserts for fixtures.
func seed(t *testing.T, store planning.Store) planning.Seeder {
	t.Helper()
	s, ok := store.(planning.Seeder)
	require.True(t, ok, "store does not implement planning.Seeder")
	return s
}

// catalog loads the shipped plan catalog.
func catalog(t *testing.T) *entitlement.Catalog {
	t.Helper()
	c, err := entitlement.NewCatalog(context.Background(), entitlement.NewYAMLSource("../../configs/plans.yaml"))
	require.NoError(t, err)
	return c
}

type subscriptions struct {
	mu    sync.Mutex
	tiers map[uuid.UUID]entitlement.Tier
	err   error
}

func newSubscriptions() *subscriptions {
	return &subscriptions{tiers: make(map[uuid.UUID]entitlement.Tier)}
}

func (s *subscriptions) set(tenantID uuid.UUID, tier entitlement.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[tenantID] = tier
}

func (s *subscriptions) GetActiveSubscription(_ context.Context, tenantID uuid.UUID) (*entitlement.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	tier, ok := s.tiers[tenantID]
	if !ok {
		return nil, entitlement.ErrSubscriptionNotFound
	}
	return &entitlement.Subscription{TenantID: tenantID, Tier: tier, Status: entitlement.StatusActive}, nil
}

// barrierEvaluator holds every CanCreate caller until n checks have completed,
// so concurrent creates all observe the same usage.
type barrierEvaluator struct {
	entitlement.Evaluator
	checked *sync.WaitGroup
}

func newBarrierEvaluator(inner entitlement.Evaluator, n int) *barrierEvaluator {
	wg := &sync.WaitGroup{}
	wg.Add(n)
	return &barrierEvaluator{Evaluator: inner, checked: wg}
}

func (b *barrierEvaluator) CanCreate(ctx context.Context, l entitlement.Limit, tenantID, scopeID uuid.UUID) (entitlement.Decision, error) {
	d, err := b.Evaluator.CanCreate(ctx, l, tenantID, scopeID)
	b.checked.Done()
	b.checked.Wait()
	return d, err
}
