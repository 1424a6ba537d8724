package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStore looks up a tenant's active subscription.
type SubscriptionStore interface {
	// GetActiveSubscription returns ErrSubscriptionNotFound if the tenant has none.
	GetActiveSubscription(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
}

// UsageCounter counts live tenant-scoped rows. Implementations are pure reads.
type UsageCounter interface {
	CountOwnedPlans(ctx context.Context, tenantID uuid.UUID) (int64, error)
	CountObjectives(ctx context.Context, tenantID uuid.UUID) (int64, error)
	CountTeamMembers(ctx context.Context, tenantID uuid.UUID) (int64, error)
	// CountInitiatives counts only the tenant's own rows, so a foreign
	// objective id reads as empty.
	CountInitiatives(ctx context.Context, tenantID, objectiveID uuid.UUID) (int64, error)
	CountAIInsights(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error)
}

// SnapshotReader takes every tenant count in one consistent read.
type SnapshotReader interface {
	Snapshot(ctx context.Context, tenantID uuid.UUID, insightsSince time.Time) (UsageSnapshot, error)
}

// UsageSnapshot is derived per evaluation and never stored.
type UsageSnapshot struct {
	Plans                   int64               `json:"plans"`
	Objectives              int64               `json:"objectives"`
	TeamMembers             int64               `json:"team_members"`
	AIInsights              int64               `json:"ai_insights"`
	InitiativesPerObjective map[uuid.UUID]int64 `json:"initiatives_per_objective"`
}

// Count returns the snapshot value for a tenant-scoped limit.
func (s UsageSnapshot) Count(l Limit) (int64, bool) {
	switch l {
	case LimitPlans:
		return s.Plans, true
	case LimitObjectives:
		return s.Objectives, true
	case LimitTeamMembers:
		return s.TeamMembers, true
	case LimitAIInsightsPerMonth:
		return s.AIInsights, true
	}
	return 0, false
}

// Scope identifies what a count is taken over.
// ScopeID is set only for scoped limits (the objective of an initiative).
type Scope struct {
	TenantID uuid.UUID
	ScopeID  uuid.UUID
}

// CounterFunc returns current usage for one limit.
// Should be fast: it runs on every creation attempt.
type CounterFunc func(ctx context.Context, scope Scope) (int64, error)

// CounterRegistry maps a Limit to its CounterFunc.
// Not thread-safe: register all counters at startup only.
type CounterRegistry map[Limit]CounterFunc

// NewRegistry returns a new, empty CounterRegistry.
func NewRegistry() CounterRegistry {
	return make(CounterRegistry)
}

// Register sets or replaces the CounterFunc for l. Panics if fn is nil.
func (r CounterRegistry) Register(l Limit, fn CounterFunc) {
	if fn == nil {
		panic(fmt.Sprintf("entitlement: CounterFunc for limit %q cannot be nil", l))
	}
	r[l] = fn
}

// RegistryFromCounter wires every known limit to uc.
// AI insights are counted from the start of the current UTC calendar month.
func RegistryFromCounter(uc UsageCounter, now func() time.Time) CounterRegistry {
	if now == nil {
		now = time.Now
	}
	r := NewRegistry()
	r.Register(LimitPlans, func(ctx context.Context, s Scope) (int64, error) {
		return uc.CountOwnedPlans(ctx, s.TenantID)
	})
	r.Register(LimitObjectives, func(ctx context.Context, s Scope) (int64, error) {
		return uc.CountObjectives(ctx, s.TenantID)
	})
	r.Register(LimitTeamMembers, func(ctx context.Context, s Scope) (int64, error) {
		return uc.CountTeamMembers(ctx, s.TenantID)
	})
	r.Register(LimitInitiativesPerObjective, func(ctx context.Context, s Scope) (int64, error) {
		return uc.CountInitiatives(ctx, s.TenantID, s.ScopeID)
	})
	r.Register(LimitAIInsightsPerMonth, func(ctx context.Context, s Scope) (int64, error) {
		return uc.CountAIInsights(ctx, s.TenantID, MonthStart(now()))
	})
	return r
}

// MonthStart returns the first instant of t's calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
