package gating

import (
	"net/http"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/pkg/tenant"
)

// ErrorWriter writes the response for a failed or denied request.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// RequireFeature lets the request through only when the tenant's plan
// enables f. Denials are passed to onError as *entitlement.FeatureError;
// lookup and configuration failures are passed through unchanged.
func RequireFeature(eval entitlement.Evaluator, f entitlement.Feature, metrics *Metrics, onError ErrorWriter) func(http.Handler) http.Handler {
	if eval == nil {
		panic("gating: evaluator is required")
	}
	if onError == nil {
		panic("gating: error writer is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tenantID, ok := tenant.IDFromContext(ctx)
			if !ok {
				onError(w, r, tenant.ErrNoTenantInContext)
				return
			}

			enabled, err := eval.HasFeature(ctx, f, tenantID)
			if err != nil {
				metrics.feature(f, err)
				onError(w, r, err)
				return
			}
			if enabled {
				metrics.feature(f, nil)
				next.ServeHTTP(w, r)
				return
			}

			plan, err := eval.ResolvePlan(ctx, tenantID)
			if err != nil {
				metrics.feature(f, err)
				onError(w, r, err)
				return
			}
			denied := &entitlement.FeatureError{Feature: f, Tier: plan.Tier}
			metrics.feature(f, denied)
			onError(w, r, denied)
		})
	}
}
