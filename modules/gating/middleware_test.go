package gating_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/stratplan/modules/gating"
	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/pkg/tenant"
)

// planEvaluator serves a fixed plan to every tenant.
type planEvaluator struct {
	entitlement.Evaluator
	plan entitlement.Plan
	err  error
}

func (e planEvaluator) HasFeature(_ context.Context, f entitlement.Feature, _ uuid.UUID) (bool, error) {
	if e.err != nil {
		return false, e.err
	}
	return e.plan.Limits.Enabled(f), nil
}

func (e planEvaluator) ResolvePlan(context.Context, uuid.UUID) (entitlement.Plan, error) {
	return e.plan, e.err
}

func TestRequireFeature(t *testing.T) {
	t.Parallel()

	free := entitlement.Plan{Tier: entitlement.TierFree, Limits: entitlement.LimitSet{
		Features: map[entitlement.Feature]bool{entitlement.FeatureTemplates: true},
	}}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	run := func(eval entitlement.Evaluator, f entitlement.Feature, withTenant bool) (int, error) {
		var got error
		mw := gating.RequireFeature(eval, f, nil, func(w http.ResponseWriter, _ *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusTeapot)
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if withTenant {
			req = req.WithContext(tenant.WithID(req.Context(), uuid.New()))
		}
		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, req)
		return rec.Code, got
	}

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()
		code, err := run(planEvaluator{plan: free}, entitlement.FeatureTemplates, true)
		assert.Equal(t, http.StatusNoContent, code)
		assert.NoError(t, err)
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		code, err := run(planEvaluator{plan: free}, entitlement.FeatureICEScore, true)
		assert.Equal(t, http.StatusTeapot, code)

		var fe *entitlement.FeatureError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, entitlement.FeatureICEScore, fe.Feature)
		assert.Equal(t, entitlement.TierFree, fe.Tier)
	})

	t.Run("lookup failure is not a denial", func(t *testing.T) {
		t.Parallel()
		lookup := errors.Join(entitlement.ErrLookupFailure, errors.New("timeout"))
		code, err := run(planEvaluator{err: lookup}, entitlement.FeatureICEScore, true)
		assert.Equal(t, http.StatusTeapot, code)
		assert.True(t, entitlement.IsLookupFailure(err))
		assert.NotErrorIs(t, err, entitlement.ErrFeatureNotAvailable)
	})

	t.Run("no tenant", func(t *testing.T) {
		t.Parallel()
		_, err := run(planEvaluator{plan: free}, entitlement.FeatureTemplates, false)
		assert.ErrorIs(t, err, tenant.ErrNoTenantInContext)
	})

	t.Run("panics without dependencies", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { gating.RequireFeature(nil, entitlement.FeatureICEScore, nil, nil) })
	})
}
