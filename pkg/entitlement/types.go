package entitlement

import (
	"fmt"
	"slices"
)

// Tier is a named subscription level bundling a LimitSet.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// DefaultTier is used for tenants without an active subscription.
const DefaultTier = TierFree

// Rank orders tiers from cheapest to most expensive.
// Unknown tiers rank below free so they never look like an upgrade.
func (t Tier) Rank() int {
	switch t {
	case TierFree:
		return 1
	case TierPro:
		return 2
	case TierEnterprise:
		return 3
	default:
		return 0
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t.Rank() > 0
}

// ParseTier converts a raw tier name into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
	return t, nil
}

// Limit names a countable cap in a LimitSet.
type Limit string

const (
	LimitPlans                   Limit = "max_plans"
	LimitObjectives              Limit = "max_objectives"
	LimitInitiativesPerObjective Limit = "max_initiatives_per_objective"
	LimitTeamMembers             Limit = "max_team_members"
	LimitAIInsightsPerMonth      Limit = "ai_insights_per_month"
)

// Limits lists every known limit in display order.
var Limits = []Limit{
	LimitPlans,
	LimitObjectives,
	LimitInitiativesPerObjective,
	LimitTeamMembers,
	LimitAIInsightsPerMonth,
}

// Known reports whether l is one of the predefined limits.
func (l Limit) Known() bool {
	switch l {
	case LimitPlans, LimitObjectives, LimitInitiativesPerObjective,
		LimitTeamMembers, LimitAIInsightsPerMonth:
		return true
	}
	return false
}

// Scoped reports whether usage for l is counted per scope (objective) instead of per tenant.
func (l Limit) Scoped() bool {
	return l == LimitInitiativesPerObjective
}

// ParseLimit converts a raw limit name into a Limit.
func ParseLimit(s string) (Limit, error) {
	l := Limit(s)
	if !l.Known() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLimit, s)
	}
	return l, nil
}

// Feature is a boolean capability flag in a LimitSet.
// Any string is accepted: flags the catalog does not know resolve to false.
type Feature string

const (
	FeatureICEScore        Feature = "ice_score"
	FeatureFiveWTwoH       Feature = "five_w_two_h"
	FeatureFourDXExecution Feature = "four_dx_execution"
	FeatureTemplates       Feature = "templates"
	FeatureIntegrations    Feature = "integrations"
	FeatureCollaboration   Feature = "collaboration"
	FeatureCustomBranding  Feature = "custom_branding"
)

// Features lists every known feature flag.
var Features = []Feature{
	FeatureICEScore,
	FeatureFiveWTwoH,
	FeatureFourDXExecution,
	FeatureTemplates,
	FeatureIntegrations,
	FeatureCollaboration,
	FeatureCustomBranding,
}

// Known reports whether f is one of the predefined feature flags.
func (f Feature) Known() bool {
	return slices.Contains(Features, f)
}

// Unlimited marks a cap without an upper bound (-1 chosen for SQL compatibility).
const Unlimited int64 = -1

// UsageInfo contains the current usage and cap for a limit.
type UsageInfo struct {
	Current int64 `json:"current"`
	Cap     int64 `json:"cap"`
}
