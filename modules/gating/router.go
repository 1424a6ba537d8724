package gating

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/stratplan/handler"
	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/pkg/tenant"
	"github.com/dmitrymomot/stratplan/svc/billing"
	"github.com/dmitrymomot/stratplan/svc/planning"
)

// RouterOptions configures the gating module. Evaluator and Catalog are
// required; Planning and Billing are mounted only when provided.
type RouterOptions struct {
	Evaluator entitlement.Evaluator
	Catalog   *entitlement.Catalog
	Planning  planning.Service
	Billing   billing.Service
	Metrics   *Metrics
	Logger    *slog.Logger

	// TenantResolver defaults to the X-Tenant-ID header.
	TenantResolver tenant.Resolver

	// UpgradeURL is linked from upgrade prompts with ?tier=<tier> appended.
	UpgradeURL string
}

type module struct {
	eval     entitlement.Evaluator
	catalog  *entitlement.Catalog
	planning planning.Service
	billing  billing.Service
	metrics  *Metrics
	errors   *errorMapper
}

// Router builds the gating routes:
//
//	POST /webhooks/paddle
//	GET  /entitlements
//	GET  /entitlements/limits/{limit}?scope_id=
//	GET  /entitlements/features/{feature}
//	POST /companies
//	POST /objectives
//	POST /objectives/{id}/initiatives
//	GET  /objectives/{id}/initiatives/prioritized
//	POST /team-members
//	POST /ai-insights
//
// Everything but the webhook requires a tenant. Panics if a required
// option is missing.
func Router(opts RouterOptions) chi.Router {
	if opts.Evaluator == nil {
		panic("gating: evaluator is required")
	}
	if opts.Catalog == nil {
		panic("gating: plan catalog is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	resolver := opts.TenantResolver
	if resolver == nil {
		resolver = tenant.NewHeaderResolver(tenant.DefaultHeader)
	}

	m := &module{
		eval:     opts.Evaluator,
		catalog:  opts.Catalog,
		planning: opts.Planning,
		billing:  opts.Billing,
		metrics:  opts.Metrics,
		errors:   &errorMapper{catalog: opts.Catalog, upgradeURL: opts.UpgradeURL, log: log},
	}

	r := chi.NewRouter()

	if m.billing != nil {
		r.Post("/webhooks/paddle", wrap(m, m.paddleWebhook))
	}

	r.Group(func(r chi.Router) {
		r.Use(
			tenant.Middleware(resolver, tenant.WithErrorHandler(m.errors.write)),
			tenant.RequireTenant(m.errors.write),
		)

		r.Route("/entitlements", func(r chi.Router) {
			r.Get("/", wrap(m, m.entitlements))
			r.Get("/limits/{limit}", wrap(m, m.limitDecision))
			r.Get("/features/{feature}", wrap(m, m.featureFlag))
		})

		if m.planning == nil {
			return
		}
		r.Post("/companies", wrap(m, m.createCompany, jsonBody))
		r.Post("/objectives", wrap(m, m.createObjective, jsonBody))
		r.Post("/objectives/{id}/initiatives", wrap(m, m.createInitiative, jsonBody))
		r.With(RequireFeature(m.eval, entitlement.FeatureICEScore, m.metrics, m.errors.write)).
			Get("/objectives/{id}/initiatives/prioritized", wrap(m, m.prioritizedInitiatives))
		r.Post("/team-members", wrap(m, m.addTeamMember, jsonBody))
		r.Post("/ai-insights", wrap(m, m.recordAIInsight, jsonBody))
	})

	return r
}

func wrap[R any](m *module, h handler.HandlerFunc[handler.Context, R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](binders...),
		handler.WithErrorHandler[handler.Context, R](m.errors.handle),
	)
}

// errorResponse renders err through the gating error mapping.
type errorResponse struct {
	m   *errorMapper
	err error
}

func (e errorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	e.m.write(w, r, e.err)
	return nil
}

func (m *module) fail(err error) handler.Response {
	return errorResponse{m: m.errors, err: err}
}
