package entitlement

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a deployment defect in the plan catalog.
	// It is never worked around with a hardcoded fallback.
	ErrConfiguration      = errors.New("entitlement configuration error")
	ErrMissingDefaultPlan = errors.New("default free plan is missing from the catalog")
	ErrInvalidCap         = errors.New("limit cap must be -1 or a non-negative number")
	ErrUnknownTier        = errors.New("unknown subscription tier")
	ErrFailedToLoadPlans  = errors.New("failed to load subscription plans")

	// ErrLookupFailure marks a failed read from the subscription store or usage counter.
	// It must not be confused with a legitimate denial.
	ErrLookupFailure        = errors.New("entitlement lookup failed")
	ErrSubscriptionNotFound = errors.New("subscription not found")

	ErrUnknownLimit         = errors.New("unknown limit")
	ErrScopeRequired        = errors.New("limit requires a scope id")
	ErrNoCounterRegistered  = errors.New("no usage counter registered for limit")
	ErrLimitExceeded        = errors.New("plan limit exceeded")
	ErrFeatureNotAvailable  = errors.New("feature not available on current plan")
	ErrDowngradeNotPossible = errors.New("downgrade not possible with current usage")
)

// IsConfigurationError reports whether err was caused by a broken plan catalog.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsLookupFailure reports whether err was caused by a failed store or counter read.
func IsLookupFailure(err error) bool {
	return errors.Is(err, ErrLookupFailure)
}

// LimitError describes a denied creation. Stores raise it with Limit, Current
// and Cap set; callers that know the tenant's tier fill in the rest.
type LimitError struct {
	Limit       Limit
	Current     int64
	Cap         int64
	Tier        Tier
	UpgradeTier Tier
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %s (current %d, cap %d)", ErrLimitExceeded, e.Limit, e.Current, e.Cap)
}

// Is makes errors.Is(err, ErrLimitExceeded) match.
func (e *LimitError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// FeatureError describes a disabled feature flag.
type FeatureError struct {
	Feature     Feature
	Tier        Tier
	UpgradeTier Tier
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("%s: %s on %s", ErrFeatureNotAvailable, e.Feature, e.Tier)
}

// Is makes errors.Is(err, ErrFeatureNotAvailable) match.
func (e *FeatureError) Is(target error) bool {
	return target == ErrFeatureNotAvailable
}

func configError(err error, format string, args ...any) error {
	return errors.Join(ErrConfiguration, err, fmt.Errorf(format, args...))
}

func lookupError(err error) error {
	return errors.Join(ErrLookupFailure, err)
}
