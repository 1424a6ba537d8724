package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Evaluator answers whether a tenant may create one more item of a limit
// and whether a feature is enabled for the tenant's tier.
type Evaluator interface {
	// ResolveLimits returns the tenant's effective LimitSet.
	// Tenants without an active subscription get the free plan.
	ResolveLimits(ctx context.Context, tenantID uuid.UUID) (LimitSet, error)

	// ResolvePlan is ResolveLimits with the surrounding plan.
	ResolvePlan(ctx context.Context, tenantID uuid.UUID) (Plan, error)

	// CanCreate checks whether one more item fits under the cap.
	// scopeID is required for scoped limits and ignored otherwise.
	CanCreate(ctx context.Context, l Limit, tenantID, scopeID uuid.UUID) (Decision, error)

	// HasFeature resolves a flag; unknown flags are disabled.
	HasFeature(ctx context.Context, f Feature, tenantID uuid.UUID) (bool, error)

	// GetUsage returns current usage and cap for a limit.
	GetUsage(ctx context.Context, l Limit, tenantID, scopeID uuid.UUID) (UsageInfo, error)

	// GetAllUsage returns usage for every tenant-scoped limit.
	GetAllUsage(ctx context.Context, tenantID uuid.UUID) (map[Limit]UsageInfo, error)

	// UsagePercentage returns usage as 0-100, or -1 for unlimited. Returns 0 on errors.
	UsagePercentage(ctx context.Context, l Limit, tenantID, scopeID uuid.UUID) int

	// CanDowngrade checks that current usage fits into the target tier.
	CanDowngrade(ctx context.Context, tenantID uuid.UUID, target Tier) error
}

// Decision is the per-call outcome of CanCreate. It is never persisted.
type Decision struct {
	Allowed     bool  `json:"allowed"`
	Limit       Limit `json:"limit"`
	Current     int64 `json:"current"`
	Cap         int64 `json:"cap"`
	Tier        Tier  `json:"tier"`
	UpgradeTier Tier  `json:"upgrade_tier,omitempty"` // cheapest tier lifting a denial
}

// Err returns nil for an allowed decision and a *LimitError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &LimitError{
		Limit:       d.Limit,
		Current:     d.Current,
		Cap:         d.Cap,
		Tier:        d.Tier,
		UpgradeTier: d.UpgradeTier,
	}
}

type evaluator struct {
	catalog       *Catalog
	subscriptions SubscriptionStore
	counters      CounterRegistry
	usage         UsageCounter
	snapshots     SnapshotReader
	log           *slog.Logger
	now           func() time.Time
}

// NewEvaluator creates an Evaluator over a loaded catalog.
// Panics if catalog or subscriptions is nil.
func NewEvaluator(catalog *Catalog, subscriptions SubscriptionStore, opts ...Option) Evaluator {
	if catalog == nil {
		panic("entitlement: Catalog is required")
	}
	if subscriptions == nil {
		panic("entitlement: SubscriptionStore is required")
	}

	e := &evaluator{
		catalog:       catalog,
		subscriptions: subscriptions,
		counters:      NewRegistry(),
		log:           slog.New(slog.DiscardHandler),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	// explicit WithCounter registrations win over the usage counter
	if e.usage != nil {
		for l, fn := range RegistryFromCounter(e.usage, e.now) {
			if _, ok := e.counters[l]; !ok {
				e.counters[l] = fn
			}
		}
		if sr, ok := e.usage.(SnapshotReader); ok {
			e.snapshots = sr
		}
	}

	return e
}

func (e *evaluator) ResolveLimits(ctx context.Context, tenantID uuid.UUID) (LimitSet, error) {
	p, err := e.ResolvePlan(ctx, tenantID)
	if err != nil {
		return LimitSet{}, err
	}
	return p.Limits, nil
}

func (e *evaluator) ResolvePlan(ctx context.Context, tenantID uuid.UUID) (Plan, error) {
	sub, err := e.subscriptions.GetActiveSubscription(ctx, tenantID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return e.catalog.Default(), nil
	}
	if err != nil {
		return Plan{}, lookupError(err)
	}
	if sub == nil || !sub.IsActive() {
		return e.catalog.Default(), nil
	}

	p, ok := e.catalog.Plan(sub.Tier)
	if !ok {
		return Plan{}, configError(ErrUnknownTier, "tenant %s is subscribed to %q", tenantID, sub.Tier)
	}
	return p, nil
}

func (e *evaluator) CanCreate(ctx context.Context, l Limit, tenantID, scopeID uuid.UUID) (Decision, error) {
	d := Decision{Limit: l}
	if err := checkLimit(l, scopeID); err != nil {
		return d, err
	}

	plan, err := e.ResolvePlan(ctx, tenantID)
	if err != nil {
		return d, err
	}
	d.Tier = plan.Tier

	c, err := e.capFor(ctx, plan, l)
	d.Cap = c
	if err != nil {
		return d, err
	}

	// never count for unlimited: a slow or stale count must not block it
	if c == Unlimited {
		d.Allowed = true
		return d, nil
	}

	current, err := e.count(ctx, l, Scope{TenantID: tenantID, ScopeID: scopeID})
	if err != nil {
		return d, err
	}

	d.Current = current
	d.Allowed = allows(current, c)
	if !d.Allowed {
		d.UpgradeTier = e.catalog.UpgradeTierFor(plan.Tier, l, current)
	}
	return d, nil
}

func (e *evaluator) HasFeature(ctx context.Context, f Feature, tenantID uuid.UUID) (bool, error) {
	ls, err := e.ResolveLimits(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return ls.Enabled(f), nil
}

func (e *evaluator) GetUsage(ctx context.Context, l Limit, tenantID, scopeID uuid.UUID) (UsageInfo, error) {
	if err := checkLimit(l, scopeID); err != nil {
		return UsageInfo{}, err
	}

	plan, err := e.ResolvePlan(ctx, tenantID)
	if err != nil {
		return UsageInfo{}, err
	}

	c, err := e.capFor(ctx, plan, l)
	if err != nil {
		return UsageInfo{}, err
	}

	current, err := e.count(ctx, l, Scope{TenantID: tenantID, ScopeID: scopeID})
	if err != nil {
		return UsageInfo{}, err
	}
	return UsageInfo{Current: current, Cap: c}, nil
}

func (e *evaluator) GetAllUsage(ctx context.Context, tenantID uuid.UUID) (map[Limit]UsageInfo, error) {
	plan, err := e.ResolvePlan(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	counts, _, err := e.tenantCounts(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	result := make(map[Limit]UsageInfo, len(counts))
	for l, current := range counts {
		c, _ := plan.Limits.Cap(l)
		result[l] = UsageInfo{Current: current, Cap: c}
	}
	return result, nil
}

func (e *evaluator) UsagePercentage(ctx context.Context, l Limit, tenantID, scopeID uuid.UUID) int {
	u, err := e.GetUsage(ctx, l, tenantID, scopeID)
	if err != nil {
		return 0
	}

	switch {
	case u.Cap == Unlimited:
		return -1
	case u.Cap == 0:
		return 100
	}
	return min(int((u.Current*100)/u.Cap), 100)
}

func (e *evaluator) CanDowngrade(ctx context.Context, tenantID uuid.UUID, target Tier) error {
	targetPlan, ok := e.catalog.Plan(target)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTier, target)
	}

	currentPlan, err := e.ResolvePlan(ctx, tenantID)
	if err != nil {
		return err
	}

	cmp := ComparePlans(&currentPlan, &targetPlan)
	if !cmp.HasLoweredCaps() {
		return nil
	}

	counts, perObjective, err := e.tenantCounts(ctx, tenantID)
	if err != nil {
		return err
	}

	for _, l := range Limits {
		change, lowered := cmp.LoweredCaps[l]
		if !lowered {
			continue
		}
		if current, ok := counts[l]; ok && current > change.To {
			return fmt.Errorf("%w: %s usage %d exceeds %s cap %d",
				ErrDowngradeNotPossible, l, current, target, change.To)
		}
		if !l.Scoped() {
			continue
		}
		for objectiveID, current := range perObjective {
			if current > change.To {
				return fmt.Errorf("%w: %s usage %d on objective %s exceeds %s cap %d",
					ErrDowngradeNotPossible, l, current, objectiveID, target, change.To)
			}
		}
	}
	return nil
}

// capFor reads the cap, rejecting caps that break the LimitSet invariant.
// An invalid cap denies and surfaces as a configuration error, never as unlimited.
func (e *evaluator) capFor(ctx context.Context, plan Plan, l Limit) (int64, error) {
	c, ok := plan.Limits.Cap(l)
	if !ok {
		return 0, configError(ErrUnknownLimit, "plan %s has no cap for %s", plan.Tier, l)
	}
	if c < Unlimited {
		e.log.WarnContext(ctx, "invalid cap in plan catalog",
			slog.String("tier", string(plan.Tier)),
			slog.String("limit", string(l)),
			slog.Int64("cap", c),
		)
		return c, configError(ErrInvalidCap, "plan %s: %s = %d", plan.Tier, l, c)
	}
	return c, nil
}

func (e *evaluator) count(ctx context.Context, l Limit, s Scope) (int64, error) {
	fn, ok := e.counters[l]
	if !ok {
		return 0, configError(ErrNoCounterRegistered, "limit %s", l)
	}
	n, err := fn(ctx, s)
	if err != nil {
		return 0, lookupError(err)
	}
	return n, nil
}

// tenantCounts returns usage for every tenant-scoped limit, from a single
// snapshot when the counter supports it. Per-objective counts are only
// available from a snapshot.
func (e *evaluator) tenantCounts(ctx context.Context, tenantID uuid.UUID) (map[Limit]int64, map[uuid.UUID]int64, error) {
	counts := make(map[Limit]int64, len(Limits))

	if e.snapshots != nil {
		snap, err := e.snapshots.Snapshot(ctx, tenantID, MonthStart(e.now()))
		if err != nil {
			return nil, nil, lookupError(err)
		}
		for _, l := range Limits {
			if n, ok := snap.Count(l); ok {
				counts[l] = n
			}
		}
		return counts, snap.InitiativesPerObjective, nil
	}

	for _, l := range Limits {
		if l.Scoped() {
			continue
		}
		if _, ok := e.counters[l]; !ok {
			continue
		}
		n, err := e.count(ctx, l, Scope{TenantID: tenantID})
		if err != nil {
			return nil, nil, err
		}
		counts[l] = n
	}
	return counts, nil, nil
}

func checkLimit(l Limit, scopeID uuid.UUID) error {
	if !l.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownLimit, l)
	}
	if l.Scoped() && scopeID == uuid.Nil {
		return fmt.Errorf("%w: %s", ErrScopeRequired, l)
	}
	return nil
}
