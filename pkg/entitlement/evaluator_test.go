package entitlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
)

func TestNewEvaluator(t *testing.T) {
	t.Parallel()

	t.Run("panics without catalog", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			entitlement.NewEvaluator(nil, &subscriptionStub{})
		})
	})

	t.Run("panics without subscription store", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			entitlement.NewEvaluator(newTestCatalog(t), nil)
		})
	})

	t.Run("duplicate counter panics", func(t *testing.T) {
		t.Parallel()
		fn := func(context.Context, entitlement.Scope) (int64, error) { return 0, nil }
		assert.Panics(t, func() {
			entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{},
				entitlement.WithCounter(entitlement.LimitObjectives, fn),
				entitlement.WithCounter(entitlement.LimitObjectives, fn),
			)
		})
	})

	t.Run("explicit counter wins over usage counter", func(t *testing.T) {
		t.Parallel()
		tenantID := uuid.New()
		uc := &counterStub{objectives: 0}
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{},
			entitlement.WithUsageCounter(uc),
			entitlement.WithCounter(entitlement.LimitObjectives, func(context.Context, entitlement.Scope) (int64, error) {
				return 3, nil
			}),
		)

		d, err := eval.CanCreate(context.Background(), entitlement.LimitObjectives, tenantID, uuid.Nil)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, int64(3), d.Current)
		assert.Zero(t, uc.calls.Load())
	})
}

func TestEvaluator_ResolveLimits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("no subscription falls back to free", func(t *testing.T) {
		t.Parallel()
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{})

		ls, err := eval.ResolveLimits(ctx, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, freePlan().Limits, ls)
	})

	t.Run("active subscription resolves its tier", func(t *testing.T) {
		t.Parallel()
		tenantID := uuid.New()
		eval := entitlement.NewEvaluator(newTestCatalog(t), subscribed(tenantID, entitlement.TierPro))

		p, err := eval.ResolvePlan(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, entitlement.TierPro, p.Tier)
	})

	t.Run("store failure is a lookup failure", func(t *testing.T) {
		t.Parallel()
		storeErr := errors.New("connection refused")
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{err: storeErr})

		_, err := eval.ResolveLimits(ctx, uuid.New())
		require.Error(t, err)
		assert.True(t, entitlement.IsLookupFailure(err))
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("tier missing from catalog is a configuration error", func(t *testing.T) {
		t.Parallel()
		tenantID := uuid.New()
		eval := entitlement.NewEvaluator(newTestCatalog(t, freePlan()), subscribed(tenantID, entitlement.TierPro))

		_, err := eval.ResolveLimits(ctx, tenantID)
		require.Error(t, err)
		assert.True(t, entitlement.IsConfigurationError(err))
		assert.ErrorIs(t, err, entitlement.ErrUnknownTier)
	})

	t.Run("returned set does not alias the catalog", func(t *testing.T) {
		t.Parallel()
		catalog := newTestCatalog(t)
		eval := entitlement.NewEvaluator(catalog, &subscriptionStub{})

		ls, err := eval.ResolveLimits(ctx, uuid.New())
		require.NoError(t, err)
		ls.Caps[entitlement.LimitObjectives] = 1000

		again, err := eval.ResolveLimits(ctx, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, int64(3), again.Caps[entitlement.LimitObjectives])
	})
}

func TestEvaluator_CanCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("free tier at objectives cap is denied", func(t *testing.T) {
		t.Parallel()
		uc := &counterStub{objectives: 3}
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{}, entitlement.WithUsageCounter(uc))

		d, err := eval.CanCreate(ctx, entitlement.LimitObjectives, uuid.New(), uuid.Nil)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, int64(3), d.Current)
		assert.Equal(t, int64(3), d.Cap)
		assert.Equal(t, entitlement.TierFree, d.Tier)
		assert.Equal(t, entitlement.TierPro, d.UpgradeTier)
	})

	t.Run("pro tier with unlimited objectives allows without counting", func(t *testing.T) {
		t.Parallel()
		tenantID := uuid.New()
		uc := &counterStub{objectives: 500}
		eval := entitlement.NewEvaluator(newTestCatalog(t), subscribed(tenantID, entitlement.TierPro), entitlement.WithUsageCounter(uc))

		d, err := eval.CanCreate(ctx, entitlement.LimitObjectives, tenantID, uuid.Nil)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, entitlement.Unlimited, d.Cap)
		assert.Zero(t, uc.calls.Load())
	})

	t.Run("unlimited allows regardless of usage", func(t *testing.T) {
		t.Parallel()
		tenantID := uuid.New()
		for _, usage := range []int64{0, 1, 1 << 20, 1 << 62} {
			uc := &counterStub{plans: usage, objectives: usage, members: usage, insights: usage}
			eval := entitlement.NewEvaluator(newTestCatalog(t), subscribed(tenantID, entitlement.TierEnterprise), entitlement.WithUsageCounter(uc))
			for _, l := range entitlement.Limits {
				d, err := eval.CanCreate(ctx, l, tenantID, uuid.New())
				require.NoError(t, err)
				assert.True(t, d.Allowed, "limit %s usage %d", l, usage)
			}
		}
	})

	t.Run("allowed iff usage below cap", func(t *testing.T) {
		t.Parallel()
		caps := []int64{0, 1, 3, 10}
		for _, c := range caps {
			plan := freePlan()
			plan.Limits.Caps[entitlement.LimitTeamMembers] = c
			catalog := newTestCatalog(t, plan)

			for u := int64(0); u <= c+2; u++ {
				uc := &counterStub{members: u}
				eval := entitlement.NewEvaluator(catalog, &subscriptionStub{}, entitlement.WithUsageCounter(uc))

				d, err := eval.CanCreate(ctx, entitlement.LimitTeamMembers, uuid.New(), uuid.Nil)
				require.NoError(t, err)
				assert.Equal(t, u < c, d.Allowed, "cap %d usage %d", c, u)
			}
		}
	})

	t.Run("cap zero denies the first creation", func(t *testing.T) {
		t.Parallel()
		plan := freePlan()
		plan.Limits.Caps[entitlement.LimitAIInsightsPerMonth] = 0
		uc := &counterStub{}
		eval := entitlement.NewEvaluator(newTestCatalog(t, plan), &subscriptionStub{}, entitlement.WithUsageCounter(uc))

		d, err := eval.CanCreate(ctx, entitlement.LimitAIInsightsPerMonth, uuid.New(), uuid.Nil)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, int64(0), d.Current)
	})

	t.Run("repeated checks return the same decision", func(t *testing.T) {
		t.Parallel()
		uc := &counterStub{objectives: 2}
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{}, entitlement.WithUsageCounter(uc))
		tenantID := uuid.New()

		first, err := eval.CanCreate(ctx, entitlement.LimitObjectives, tenantID, uuid.Nil)
		require.NoError(t, err)
		second, err := eval.CanCreate(ctx, entitlement.LimitObjectives, tenantID, uuid.Nil)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.True(t, first.Allowed)
	})

	t.Run("initiatives are counted per objective", func(t *testing.T) {
		t.Parallel()
		full, empty := uuid.New(), uuid.New()
		uc := &counterStub{initiatives: map[uuid.UUID]int64{full: 3}}
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{}, entitlement.WithUsageCounter(uc))
		tenantID := uuid.New()

		d, err := eval.CanCreate(ctx, entitlement.LimitInitiativesPerObjective, tenantID, full)
		require.NoError(t, err)
		assert.False(t, d.Allowed)

		d, err = eval.CanCreate(ctx, entitlement.LimitInitiativesPerObjective, tenantID, empty)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("scoped limit without scope id", func(t *testing.T) {
		t.Parallel()
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{}, entitlement.WithUsageCounter(&counterStub{}))

		_, err := eval.CanCreate(ctx, entitlement.LimitInitiativesPerObjective, uuid.New(), uuid.Nil)
		assert.ErrorIs(t, err, entitlement.ErrScopeRequired)
	})

	t.Run("unknown limit", func(t *testing.T) {
		t.Parallel()
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{}, entitlement.WithUsageCounter(&counterStub{}))

		d, err := eval.CanCreate(ctx, entitlement.Limit("max_widgets"), uuid.New(), uuid.Nil)
		assert.ErrorIs(t, err, entitlement.ErrUnknownLimit)
		assert.False(t, d.Allowed)
	})

	t.Run("counter failure propagates instead of deciding", func(t *testing.T) {
		t.Parallel()
		countErr := errors.New("timeout")
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{}, entitlement.WithUsageCounter(&counterStub{err: countErr}))

		d, err := eval.CanCreate(ctx, entitlement.LimitObjectives, uuid.New(), uuid.Nil)
		require.Error(t, err)
		assert.True(t, entitlement.IsLookupFailure(err))
		assert.ErrorIs(t, err, countErr)
		assert.False(t, d.Allowed)
		assert.NotErrorIs(t, err, entitlement.ErrLimitExceeded)
	})

	t.Run("subscription failure propagates", func(t *testing.T) {
		t.Parallel()
		uc := &counterStub{}
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{err: errors.New("down")}, entitlement.WithUsageCounter(uc))

		_, err := eval.CanCreate(ctx, entitlement.LimitObjectives, uuid.New(), uuid.Nil)
		assert.True(t, entitlement.IsLookupFailure(err))
		assert.Zero(t, uc.calls.Load())
	})

	t.Run("missing counter is a configuration error", func(t *testing.T) {
		t.Parallel()
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{})

		_, err := eval.CanCreate(ctx, entitlement.LimitObjectives, uuid.New(), uuid.Nil)
		assert.ErrorIs(t, err, entitlement.ErrNoCounterRegistered)
		assert.True(t, entitlement.IsConfigurationError(err))
	})

	t.Run("no upgrade tier when nothing lifts the cap", func(t *testing.T) {
		t.Parallel()
		tenantID := uuid.New()
		uc := &counterStub{members: 10}
		eval := entitlement.NewEvaluator(newTestCatalog(t, freePlan(), proPlan()), subscribed(tenantID, entitlement.TierPro), entitlement.WithUsageCounter(uc))

		d, err := eval.CanCreate(ctx, entitlement.LimitTeamMembers, tenantID, uuid.Nil)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Empty(t, d.UpgradeTier)
	})

	t.Run("ai insights count from month start", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2026, time.March, 17, 15, 4, 5, 0, time.UTC)
		uc := &counterStub{insights: 4}
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{},
			entitlement.WithUsageCounter(uc),
			entitlement.WithClock(func() time.Time { return now }),
		)

		d, err := eval.CanCreate(ctx, entitlement.LimitAIInsightsPerMonth, uuid.New(), uuid.Nil)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), uc.since.Load())
	})
}

func TestEvaluator_HasFeature(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	freeTenant, proTenant := uuid.New(), uuid.New()
	subs := &subscriptionStub{tiers: map[uuid.UUID]entitlement.Tier{proTenant: entitlement.TierPro}}
	eval := entitlement.NewEvaluator(newTestCatalog(t), subs)

	t.Run("free tier without ice score", func(t *testing.T) {
		t.Parallel()
		ok, err := eval.HasFeature(ctx, entitlement.FeatureICEScore, freeTenant)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("pro tier with ice score", func(t *testing.T) {
		t.Parallel()
		ok, err := eval.HasFeature(ctx, entitlement.FeatureICEScore, proTenant)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("flag missing from the set is disabled", func(t *testing.T) {
		t.Parallel()
		ok, err := eval.HasFeature(ctx, entitlement.FeatureIntegrations, freeTenant)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown flag name is disabled", func(t *testing.T) {
		t.Parallel()
		ok, err := eval.HasFeature(ctx, entitlement.Feature("okr_forecasting"), proTenant)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("lookup failure is not a false", func(t *testing.T) {
		t.Parallel()
		broken := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{err: errors.New("down")})
		_, err := broken.HasFeature(ctx, entitlement.FeatureTemplates, proTenant)
		assert.True(t, entitlement.IsLookupFailure(err))
	})
}

func TestEvaluator_Usage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("get usage", func(t *testing.T) {
		t.Parallel()
		uc := &counterStub{objectives: 2}
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{}, entitlement.WithUsageCounter(uc))

		u, err := eval.GetUsage(ctx, entitlement.LimitObjectives, uuid.New(), uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, entitlement.UsageInfo{Current: 2, Cap: 3}, u)
	})

	t.Run("get usage counts unlimited limits too", func(t *testing.T) {
		t.Parallel()
		tenantID := uuid.New()
		uc := &counterStub{objectives: 42}
		eval := entitlement.NewEvaluator(newTestCatalog(t), subscribed(tenantID, entitlement.TierPro), entitlement.WithUsageCounter(uc))

		u, err := eval.GetUsage(ctx, entitlement.LimitObjectives, tenantID, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, entitlement.UsageInfo{Current: 42, Cap: entitlement.Unlimited}, u)
	})

	t.Run("all usage via counters", func(t *testing.T) {
		t.Parallel()
		uc := &counterStub{plans: 1, objectives: 2, members: 1, insights: 3}
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{}, entitlement.WithUsageCounter(uc))

		all, err := eval.GetAllUsage(ctx, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, map[entitlement.Limit]entitlement.UsageInfo{
			entitlement.LimitPlans:              {Current: 1, Cap: 1},
			entitlement.LimitObjectives:         {Current: 2, Cap: 3},
			entitlement.LimitTeamMembers:        {Current: 1, Cap: 1},
			entitlement.LimitAIInsightsPerMonth: {Current: 3, Cap: 5},
		}, all)
	})

	t.Run("all usage via snapshot", func(t *testing.T) {
		t.Parallel()
		uc := &snapshotStub{counterStub: &counterStub{plans: 1, objectives: 2}}
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{}, entitlement.WithUsageCounter(uc))

		all, err := eval.GetAllUsage(ctx, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, int64(2), all[entitlement.LimitObjectives].Current)
		assert.Equal(t, int64(1), uc.snapshots.Load())
		assert.Zero(t, uc.calls.Load())
	})

	t.Run("all usage propagates failures", func(t *testing.T) {
		t.Parallel()
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{}, entitlement.WithUsageCounter(&counterStub{err: errors.New("boom")}))

		_, err := eval.GetAllUsage(ctx, uuid.New())
		assert.True(t, entitlement.IsLookupFailure(err))
	})

	t.Run("percentage", func(t *testing.T) {
		t.Parallel()
		tenantID := uuid.New()
		subs := &subscriptionStub{tiers: map[uuid.UUID]entitlement.Tier{tenantID: entitlement.TierPro}}
		uc := &counterStub{plans: 1, objectives: 2, members: 5, insights: 250}
		eval := entitlement.NewEvaluator(newTestCatalog(t), subs, entitlement.WithUsageCounter(uc))

		assert.Equal(t, 33, eval.UsagePercentage(ctx, entitlement.LimitPlans, tenantID, uuid.Nil))
		assert.Equal(t, -1, eval.UsagePercentage(ctx, entitlement.LimitObjectives, tenantID, uuid.Nil))
		assert.Equal(t, 50, eval.UsagePercentage(ctx, entitlement.LimitTeamMembers, tenantID, uuid.Nil))
		assert.Equal(t, 100, eval.UsagePercentage(ctx, entitlement.LimitAIInsightsPerMonth, tenantID, uuid.Nil))
		assert.Equal(t, 0, eval.UsagePercentage(ctx, entitlement.Limit("bogus"), tenantID, uuid.Nil))
	})
}

func TestEvaluator_CanDowngrade(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("usage fits the target tier", func(t *testing.T) {
		t.Parallel()
		tenantID := uuid.New()
		uc := &counterStub{plans: 1, objectives: 3, members: 1, insights: 2}
		eval := entitlement.NewEvaluator(newTestCatalog(t), subscribed(tenantID, entitlement.TierPro), entitlement.WithUsageCounter(uc))

		assert.NoError(t, eval.CanDowngrade(ctx, tenantID, entitlement.TierFree))
	})

	t.Run("usage exceeds the target tier", func(t *testing.T) {
		t.Parallel()
		tenantID := uuid.New()
		uc := &counterStub{plans: 1, objectives: 12, members: 1}
		eval := entitlement.NewEvaluator(newTestCatalog(t), subscribed(tenantID, entitlement.TierPro), entitlement.WithUsageCounter(uc))

		err := eval.CanDowngrade(ctx, tenantID, entitlement.TierFree)
		require.Error(t, err)
		assert.ErrorIs(t, err, entitlement.ErrDowngradeNotPossible)
		assert.Contains(t, err.Error(), string(entitlement.LimitObjectives))
	})

	t.Run("snapshot covers initiatives per objective", func(t *testing.T) {
		t.Parallel()
		tenantID := uuid.New()
		uc := &snapshotStub{counterStub: &counterStub{
			plans:       1,
			objectives:  2,
			members:     1,
			initiatives: map[uuid.UUID]int64{uuid.New(): 7},
		}}
		eval := entitlement.NewEvaluator(newTestCatalog(t), subscribed(tenantID, entitlement.TierPro), entitlement.WithUsageCounter(uc))

		err := eval.CanDowngrade(ctx, tenantID, entitlement.TierFree)
		require.Error(t, err)
		assert.ErrorIs(t, err, entitlement.ErrDowngradeNotPossible)
		assert.Contains(t, err.Error(), string(entitlement.LimitInitiativesPerObjective))
	})

	t.Run("upgrade never needs counting", func(t *testing.T) {
		t.Parallel()
		uc := &counterStub{}
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{}, entitlement.WithUsageCounter(uc))

		assert.NoError(t, eval.CanDowngrade(ctx, uuid.New(), entitlement.TierEnterprise))
		assert.Zero(t, uc.calls.Load())
	})

	t.Run("unknown target tier", func(t *testing.T) {
		t.Parallel()
		eval := entitlement.NewEvaluator(newTestCatalog(t), &subscriptionStub{})

		assert.ErrorIs(t, eval.CanDowngrade(ctx, uuid.New(), entitlement.Tier("platinum")), entitlement.ErrUnknownTier)
	})
}
