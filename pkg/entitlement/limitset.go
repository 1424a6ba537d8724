package entitlement

import (
	"fmt"
	"maps"
)

// LimitSet holds the caps and feature flags attached to a tier.
type LimitSet struct {
	Caps     map[Limit]int64  `yaml:"caps" json:"caps"`
	Features map[Feature]bool `yaml:"features" json:"features"`
}

// Cap returns the cap for l and whether the set defines it.
func (s LimitSet) Cap(l Limit) (int64, bool) {
	c, ok := s.Caps[l]
	return c, ok
}

// Enabled resolves a feature flag. Unknown or missing flags are disabled,
// so code may query flags the catalog has not been updated for yet.
func (s LimitSet) Enabled(f Feature) bool {
	return s.Features[f]
}

// Validate checks the cap invariant and that every known limit is present.
func (s LimitSet) Validate() error {
	for _, l := range Limits {
		c, ok := s.Caps[l]
		if !ok {
			return fmt.Errorf("%w: %s is not defined", ErrUnknownLimit, l)
		}
		if c < Unlimited {
			return fmt.Errorf("%w: %s = %d", ErrInvalidCap, l, c)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s LimitSet) Clone() LimitSet {
	return LimitSet{
		Caps:     maps.Clone(s.Caps),
		Features: maps.Clone(s.Features),
	}
}

// EnabledFeatures returns enabled flags in the order of Features.
func (s LimitSet) EnabledFeatures() []Feature {
	out := make([]Feature, 0, len(s.Features))
	for _, f := range Features {
		if s.Features[f] {
			out = append(out, f)
		}
	}
	return out
}

// allows reports whether usage below limit permits one more item.
// Callers must handle Unlimited and invalid caps first.
func allows(current, limit int64) bool {
	return current < limit
}

// lifts reports whether c admits one more item for the given usage.
func lifts(c, current int64) bool {
	return c == Unlimited || (c >= 0 && allows(current, c))
}
