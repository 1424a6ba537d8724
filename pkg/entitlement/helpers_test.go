package entitlement_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
)

func freePlan() entitlement.Plan {
	return entitlement.Plan{
		Tier: entitlement.TierFree,
		Name: "Free",
		Limits: entitlement.LimitSet{
			Caps: map[entitlement.Limit]int64{
				entitlement.LimitPlans:                   1,
				entitlement.LimitObjectives:              3,
				entitlement.LimitInitiativesPerObjective: 3,
				entitlement.LimitTeamMembers:             1,
				entitlement.LimitAIInsightsPerMonth:      5,
			},
			Features: map[entitlement.Feature]bool{
				entitlement.FeatureICEScore:  false,
				entitlement.FeatureTemplates: true,
			},
		},
	}
}

func proPlan() entitlement.Plan {
	return entitlement.Plan{
		Tier:    entitlement.TierPro,
		Name:    "Pro",
		PriceID: "pri_pro",
		Limits: entitlement.LimitSet{
			Caps: map[entitlement.Limit]int64{
				entitlement.LimitPlans:                   3,
				entitlement.LimitObjectives:              entitlement.Unlimited,
				entitlement.LimitInitiativesPerObjective: entitlement.Unlimited,
				entitlement.LimitTeamMembers:             10,
				entitlement.LimitAIInsightsPerMonth:      100,
			},
			Features: map[entitlement.Feature]bool{
				entitlement.FeatureICEScore:        true,
				entitlement.FeatureFiveWTwoH:       true,
				entitlement.FeatureFourDXExecution: true,
				entitlement.FeatureTemplates:       true,
				entitlement.FeatureCollaboration:   true,
			},
		},
	}
}

func enterprisePlan() entitlement.Plan {
	caps := make(map[entitlement.Limit]int64, len(entitlement.Limits))
	for _, l := range entitlement.Limits {
		caps[l] = entitlement.Unlimited
	}
	features := make(map[entitlement.Feature]bool, len(entitlement.Features))
	for _, f := range entitlement.Features {
		features[f] = true
	}
	return entitlement.Plan{
		Tier:    entitlement.TierEnterprise,
		Name:    "Enterprise",
		PriceID: "pri_enterprise",
		Limits:  entitlement.LimitSet{Caps: caps, Features: features},
	}
}

func newTestCatalog(t *testing.T, plans ...entitlement.Plan) *entitlement.Catalog {
	t.Helper()
	if len(plans) == 0 {
		plans = []entitlement.Plan{freePlan(), proPlan(), enterprisePlan()}
	}
	c, err := entitlement.NewCatalog(context.Background(), entitlement.NewInMemSource(plans...))
	require.NoError(t, err)
	return c
}

// subscriptionStub serves a fixed tier per tenant.
type subscriptionStub struct {
	tiers map[uuid.UUID]entitlement.Tier
	err   error
	calls atomic.Int64
}

func (s *subscriptionStub) GetActiveSubscription(_ context.Context, tenantID uuid.UUID) (*entitlement.Subscription, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	tier, ok := s.tiers[tenantID]
	if !ok {
		return nil, entitlement.ErrSubscriptionNotFound
	}
	return &entitlement.Subscription{
		ID:       uuid.New(),
		TenantID: tenantID,
		Tier:     tier,
		Status:   entitlement.StatusActive,
	}, nil
}

func subscribed(tenantID uuid.UUID, tier entitlement.Tier) *subscriptionStub {
	return &subscriptionStub{tiers: map[uuid.UUID]entitlement.Tier{tenantID: tier}}
}

// counterStub returns fixed counts and records every call.
type counterStub struct {
	plans, objectives, members, insights int64
	initiatives                          map[uuid.UUID]int64
	err                                  error
	calls                                atomic.Int64
	since                                atomic.Value
}

func (c *counterStub) CountOwnedPlans(context.Context, uuid.UUID) (int64, error) {
	c.calls.Add(1)
	return c.plans, c.err
}

func (c *counterStub) CountObjectives(context.Context, uuid.UUID) (int64, error) {
	c.calls.Add(1)
	return c.objectives, c.err
}

func (c *counterStub) CountTeamMembers(context.Context, uuid.UUID) (int64, error) {
	c.calls.Add(1)
	return c.members, c.err
}

func (c *counterStub) CountInitiatives(_ context.Context, _, objectiveID uuid.UUID) (int64, error) {
	c.calls.Add(1)
	return c.initiatives[objectiveID], c.err
}

func (c *counterStub) CountAIInsights(_ context.Context, _ uuid.UUID, since time.Time) (int64, error) {
	c.calls.Add(1)
	c.since.Store(since)
	return c.insights, c.err
}

// snapshotStub adds SnapshotReader on top of counterStub.
type snapshotStub struct {
	*counterStub
	snapshots atomic.Int64
}

func (s *snapshotStub) Snapshot(_ context.Context, _ uuid.UUID, _ time.Time) (entitlement.UsageSnapshot, error) {
	s.snapshots.Add(1)
	if s.err != nil {
		return entitlement.UsageSnapshot{}, s.err
	}
	return entitlement.UsageSnapshot{
		Plans:                   s.plans,
		Objectives:              s.objectives,
		TeamMembers:             s.members,
		AIInsights:              s.insights,
		InitiativesPerObjective: s.initiatives,
	}, nil
}
