package gating

import (
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/stratplan/handler"
	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/pkg/tenant"
)

// EntitlementsView is the body of GET /entitlements.
type EntitlementsView struct {
	Tier   entitlement.Tier                            `json:"tier"`
	Plan   string                                      `json:"plan"`
	Limits entitlement.LimitSet                        `json:"limits"`
	Usage  map[entitlement.Limit]entitlement.UsageInfo `json:"usage"`
}

// DecisionView is the body of GET /entitlements/limits/{limit}.
type DecisionView struct {
	entitlement.Decision
	UpgradeName string `json:"upgrade_tier_name,omitempty"`
}

// FeatureView is the body of GET /entitlements/features/{feature}.
type FeatureView struct {
	Feature     entitlement.Feature `json:"feature"`
	Enabled     bool                `json:"enabled"`
	UpgradeTier entitlement.Tier    `json:"upgrade_tier,omitempty"`
}

func (m *module) entitlements(ctx handler.Context, _ struct{}) handler.Response {
	tenantID := tenant.MustIDFromContext(ctx)

	plan, err := m.eval.ResolvePlan(ctx, tenantID)
	if err != nil {
		return m.fail(err)
	}
	usage, err := m.eval.GetAllUsage(ctx, tenantID)
	if err != nil {
		return m.fail(err)
	}

	return handler.JSON(EntitlementsView{
		Tier:   plan.Tier,
		Plan:   plan.Name,
		Limits: plan.Limits,
		Usage:  usage,
	})
}

// limitDecision answers CanCreate without creating anything, so clients can
// show an upgrade prompt before the user attempts the action.
func (m *module) limitDecision(ctx handler.Context, _ struct{}) handler.Response {
	r := ctx.Request()
	l, err := entitlement.ParseLimit(chi.URLParam(r, "limit"))
	if err != nil {
		return m.fail(err)
	}
	scopeID, err := parseScope(r.URL.Query().Get("scope_id"))
	if err != nil {
		return m.fail(err)
	}

	d, err := m.eval.CanCreate(ctx, l, tenant.MustIDFromContext(ctx), scopeID)
	if err != nil {
		m.metrics.limit(l, err)
		return m.fail(err)
	}
	m.metrics.limit(l, d.Err())

	return handler.JSON(DecisionView{Decision: d, UpgradeName: tierName(d.UpgradeTier)})
}

func (m *module) featureFlag(ctx handler.Context, _ struct{}) handler.Response {
	f := entitlement.Feature(chi.URLParam(ctx.Request(), "feature"))
	tenantID := tenant.MustIDFromContext(ctx)

	enabled, err := m.eval.HasFeature(ctx, f, tenantID)
	if err != nil {
		m.metrics.feature(f, err)
		return m.fail(err)
	}
	if enabled {
		m.metrics.feature(f, nil)
		return handler.JSON(FeatureView{Feature: f, Enabled: true})
	}

	plan, err := m.eval.ResolvePlan(ctx, tenantID)
	if err != nil {
		m.metrics.feature(f, err)
		return m.fail(err)
	}
	m.metrics.feature(f, entitlement.ErrFeatureNotAvailable)

	view := FeatureView{Feature: f}
	// only suggest a tier above the current one
	if t := m.catalog.FeatureTier(f); t.Rank() > plan.Tier.Rank() {
		view.UpgradeTier = t
	}
	return handler.JSON(view)
}

func parseScope(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidScope
	}
	return id, nil
}
