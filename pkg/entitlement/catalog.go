package entitlement

import (
	"context"
	"errors"
	"slices"
)

// Catalog is the read-only table of plans, loaded once at process start
// and injected into the evaluator.
type Catalog struct {
	plans map[Tier]Plan
	order []Tier
}

// NewCatalog loads and validates plans from src.
// A missing free plan or an invalid cap is a configuration error.
func NewCatalog(ctx context.Context, src PlanSource) (*Catalog, error) {
	if src == nil {
		panic("entitlement: PlanSource is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	c := &Catalog{
		plans: make(map[Tier]Plan, len(plans)),
		order: make([]Tier, 0, len(plans)),
	}
	for t, p := range plans {
		c.plans[t] = p.clone()
		c.order = append(c.order, t)
	}
	slices.SortFunc(c.order, func(a, b Tier) int { return a.Rank() - b.Rank() })

	return c, nil
}

// Plan returns a copy of the plan for tier.
func (c *Catalog) Plan(t Tier) (Plan, bool) {
	p, ok := c.plans[t]
	if !ok {
		return Plan{}, false
	}
	return p.clone(), true
}

// Default returns the free plan. NewCatalog guarantees it exists.
func (c *Catalog) Default() Plan {
	p, _ := c.Plan(DefaultTier)
	return p
}

// Plans returns all plans ordered from cheapest to most expensive.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.plans[t].clone())
	}
	return out
}

// TierByPriceID maps a billing provider price id to a tier.
func (c *Catalog) TierByPriceID(priceID string) (Tier, bool) {
	if priceID == "" {
		return "", false
	}
	for _, t := range c.order {
		if c.plans[t].PriceID == priceID {
			return t, true
		}
	}
	return "", false
}

// UpgradeTierFor returns the cheapest tier above current whose cap for l
// admits one more item at the given usage. Empty if no tier does.
func (c *Catalog) UpgradeTierFor(current Tier, l Limit, usage int64) Tier {
	for _, t := range c.order {
		if t.Rank() <= current.Rank() {
			continue
		}
		if cp, ok := c.plans[t].Limits.Cap(l); ok && lifts(cp, usage) {
			return t
		}
	}
	return ""
}

// FeatureTier returns the cheapest tier that enables f. Empty if none does.
func (c *Catalog) FeatureTier(f Feature) Tier {
	for _, t := range c.order {
		if c.plans[t].Limits.Enabled(f) {
			return t
		}
	}
	return ""
}

func validatePlans(plans map[Tier]Plan) error {
	if _, ok := plans[DefaultTier]; !ok {
		return errors.Join(ErrConfiguration, ErrMissingDefaultPlan)
	}

	prices := make(map[string]Tier, len(plans))
	for t, p := range plans {
		if !t.Valid() {
			return configError(ErrUnknownTier, "catalog key %q", t)
		}
		if p.Tier != t {
			return configError(ErrUnknownTier, "plan tier mismatch: key %s != plan.Tier %s", t, p.Tier)
		}
		if err := p.Limits.Validate(); err != nil {
			return configError(err, "plan %s", t)
		}
		if p.PriceID == "" {
			continue
		}
		if other, dup := prices[p.PriceID]; dup {
			return configError(ErrUnknownTier, "price id %q used by %s and %s", p.PriceID, other, t)
		}
		prices[p.PriceID] = t
	}
	return nil
}
