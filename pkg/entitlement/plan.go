package entitlement

import (
	"time"

	"github.com/google/uuid"
)

// Plan describes a tier and its caps/feature flags.
// Plans come from catalog seeding and are never mutated by tenant actions.
type Plan struct {
	Tier        Tier     `yaml:"tier" json:"tier"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description,omitempty"`
	PriceID     string   `yaml:"price_id" json:"-"` // billing provider's price id, empty for free
	Limits      LimitSet `yaml:"limits" json:"limits"`
}

func (p Plan) clone() Plan {
	p.Limits = p.Limits.Clone()
	return p
}

// SubscriptionStatus represents the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription binds a tenant to a tier for a billing period.
// At most one active subscription exists per tenant.
type Subscription struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Tier          Tier
	Status        SubscriptionStatus
	ProviderSubID string // empty for subscriptions created without a provider
	PeriodStart   time.Time
	PeriodEnd     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CancelledAt   *time.Time
}

// IsActive returns true if the subscription is active.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// PlanComparison contains the differences between two plans.
// Used to validate downgrades and to describe upgrades to users.
type PlanComparison struct {
	NewFeatures  []Feature
	LostFeatures []Feature
	RaisedCaps   map[Limit]CapChange
	LoweredCaps  map[Limit]CapChange
}

// CapChange represents a change of a single cap.
type CapChange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// HasLoweredCaps returns true if any cap decreases.
func (c *PlanComparison) HasLoweredCaps() bool {
	return len(c.LoweredCaps) > 0
}

// ComparePlans returns the differences between current and target plans.
func ComparePlans(current, target *Plan) *PlanComparison {
	if current == nil || target == nil {
		return nil
	}

	comparison := &PlanComparison{
		NewFeatures:  make([]Feature, 0),
		LostFeatures: make([]Feature, 0),
		RaisedCaps:   make(map[Limit]CapChange),
		LoweredCaps:  make(map[Limit]CapChange),
	}

	for _, f := range Features {
		had, has := current.Limits.Enabled(f), target.Limits.Enabled(f)
		switch {
		case has && !had:
			comparison.NewFeatures = append(comparison.NewFeatures, f)
		case had && !has:
			comparison.LostFeatures = append(comparison.LostFeatures, f)
		}
	}

	for _, l := range Limits {
		from, _ := current.Limits.Cap(l)
		to, _ := target.Limits.Cap(l)
		if from == to {
			continue
		}

		change := CapChange{From: from, To: to}
		// unlimited-to-limited counts as a decrease
		switch {
		case from == Unlimited:
			comparison.LoweredCaps[l] = change
		case to == Unlimited, to > from:
			comparison.RaisedCaps[l] = change
		default:
			comparison.LoweredCaps[l] = change
		}
	}

	return comparison
}
