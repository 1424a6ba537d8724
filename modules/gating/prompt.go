package gating

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
)

// LimitPrompt is the error detail of a plan_limit_reached response.
type LimitPrompt struct {
	Limit       entitlement.Limit `json:"limit"`
	Current     int64             `json:"current"`
	Cap         int64             `json:"cap"`
	Tier        entitlement.Tier  `json:"tier"`
	UpgradeTier entitlement.Tier  `json:"upgrade_tier,omitempty"`
	UpgradeName string            `json:"upgrade_tier_name,omitempty"`
	UpgradeURL  string            `json:"upgrade_url,omitempty"`
}

// FeaturePrompt is the error detail of a feature_not_available response.
type FeaturePrompt struct {
	Feature     entitlement.Feature `json:"feature"`
	Tier        entitlement.Tier    `json:"tier"`
	UpgradeTier entitlement.Tier    `json:"upgrade_tier,omitempty"`
	UpgradeName string              `json:"upgrade_tier_name,omitempty"`
	UpgradeURL  string              `json:"upgrade_url,omitempty"`
}

var limitLabels = map[entitlement.Limit]string{
	entitlement.LimitPlans:                   "strategic plans",
	entitlement.LimitObjectives:              "objectives",
	entitlement.LimitInitiativesPerObjective: "initiatives for this objective",
	entitlement.LimitTeamMembers:             "team members",
	entitlement.LimitAIInsightsPerMonth:      "AI insights this month",
}

var featureLabels = map[entitlement.Feature]string{
	entitlement.FeatureICEScore:        "ICE score prioritization",
	entitlement.FeatureFiveWTwoH:       "5W2H action plans",
	entitlement.FeatureFourDXExecution: "4DX execution tracking",
	entitlement.FeatureTemplates:       "Templates",
	entitlement.FeatureIntegrations:    "Integrations",
	entitlement.FeatureCollaboration:   "Team collaboration",
	entitlement.FeatureCustomBranding:  "Custom branding",
}

// tierName title-cases a tier id for display. Casers are stateful, so one
// is built per call.
func tierName(t entitlement.Tier) string {
	if t == "" {
		return ""
	}
	return cases.Title(language.English).String(string(t))
}

func limitLabel(l entitlement.Limit) string {
	if s, ok := limitLabels[l]; ok {
		return s
	}
	return strings.ReplaceAll(string(l), "_", " ")
}

func featureLabel(f entitlement.Feature) string {
	if s, ok := featureLabels[f]; ok {
		return s
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(f), "_", " "))
}

func upgradeURL(base string, t entitlement.Tier) string {
	if base == "" || t == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("tier", string(t))
	u.RawQuery = q.Encode()
	return u.String()
}

func (p LimitPrompt) message() string {
	msg := fmt.Sprintf("You have reached the limit of %d %s on the %s plan.", p.Cap, limitLabel(p.Limit), tierName(p.Tier))
	if p.UpgradeTier != "" {
		msg += fmt.Sprintf(" Upgrade to %s to add more.", p.UpgradeName)
	}
	return msg
}

func (p FeaturePrompt) message() string {
	msg := fmt.Sprintf("%s is not available on the %s plan.", featureLabel(p.Feature), tierName(p.Tier))
	if p.UpgradeTier != "" {
		msg += fmt.Sprintf(" Upgrade to %s to unlock it.", p.UpgradeName)
	}
	return msg
}
