package gating

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/stratplan/handler"
	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/pkg/logger"
	"github.com/dmitrymomot/stratplan/pkg/requestid"
	"github.com/dmitrymomot/stratplan/pkg/tenant"
	"github.com/dmitrymomot/stratplan/svc/billing"
	"github.com/dmitrymomot/stratplan/svc/planning"
)

// Error codes written by the gating surface.
const (
	CodePlanLimitReached    = "plan_limit_reached"
	CodeFeatureNotAvailable = "feature_not_available"
	CodeTryAgain            = "try_again"
)

const tryAgainMessage = "We could not check your plan right now. Please try again shortly."

// ErrInvalidScope is returned for a malformed scope_id or path id.
var ErrInvalidScope = errors.New("invalid scope id")

// errorMapper turns domain errors into JSON error responses.
type errorMapper struct {
	catalog    *entitlement.Catalog
	upgradeURL string
	log        *slog.Logger
}

// detail maps err to a status and an error body. Infrastructure failures
// never surface as plan limits.
func (m *errorMapper) detail(err error) (int, *handler.ErrorDetail) {
	var (
		le *entitlement.LimitError
		fe *entitlement.FeatureError
	)
	switch {
	case entitlement.IsConfigurationError(err), entitlement.IsLookupFailure(err):
		return http.StatusServiceUnavailable, &handler.ErrorDetail{Code: CodeTryAgain, Message: tryAgainMessage}

	case errors.As(err, &le):
		p := m.limitPrompt(le)
		return http.StatusPaymentRequired, &handler.ErrorDetail{Code: CodePlanLimitReached, Message: p.message(), Details: p}

	case errors.As(err, &fe):
		p := m.featurePrompt(fe)
		return http.StatusPaymentRequired, &handler.ErrorDetail{Code: CodeFeatureNotAvailable, Message: p.message(), Details: p}

	case errors.Is(err, entitlement.ErrUnknownLimit),
		errors.Is(err, planning.ErrObjectiveNotFound),
		errors.Is(err, planning.ErrCompanyNotFound),
		errors.Is(err, billing.ErrWebhooksNotConfigured):
		return http.StatusNotFound, &handler.ErrorDetail{Code: handler.ErrNotFound.Key, Message: err.Error()}

	case errors.Is(err, entitlement.ErrScopeRequired),
		errors.Is(err, ErrInvalidScope),
		errors.Is(err, tenant.ErrInvalidIdentifier),
		errors.Is(err, billing.ErrMalformedWebhook),
		errors.Is(err, billing.ErrMissingTenantID),
		errors.Is(err, billing.ErrUnknownPrice),
		errors.Is(err, billing.ErrInvalidPeriod):
		return http.StatusBadRequest, &handler.ErrorDetail{Code: handler.ErrBadRequest.Key, Message: err.Error()}

	case errors.Is(err, tenant.ErrNoTenantInContext),
		errors.Is(err, billing.ErrWebhookVerificationFailed):
		return http.StatusUnauthorized, &handler.ErrorDetail{Code: handler.ErrUnauthorized.Key, Message: err.Error()}

	case errors.Is(err, planning.ErrDuplicateMember),
		errors.Is(err, billing.ErrSubscriptionConflict):
		return http.StatusConflict, &handler.ErrorDetail{Code: handler.ErrConflict.Key, Message: err.Error()}
	}
	return handler.ErrorToDetail(err)
}

func (m *errorMapper) limitPrompt(le *entitlement.LimitError) LimitPrompt {
	up := le.UpgradeTier
	if up == "" && m.catalog != nil {
		up = m.catalog.UpgradeTierFor(le.Tier, le.Limit, le.Current)
	}
	return LimitPrompt{
		Limit:       le.Limit,
		Current:     le.Current,
		Cap:         le.Cap,
		Tier:        le.Tier,
		UpgradeTier: up,
		UpgradeName: tierName(up),
		UpgradeURL:  upgradeURL(m.upgradeURL, up),
	}
}

func (m *errorMapper) featurePrompt(fe *entitlement.FeatureError) FeaturePrompt {
	up := fe.UpgradeTier
	if up == "" && m.catalog != nil {
		if t := m.catalog.FeatureTier(fe.Feature); t.Rank() > fe.Tier.Rank() {
			up = t
		}
	}
	return FeaturePrompt{
		Feature:     fe.Feature,
		Tier:        fe.Tier,
		UpgradeTier: up,
		UpgradeName: tierName(up),
		UpgradeURL:  upgradeURL(m.upgradeURL, up),
	}
}

// handle logs err and writes the mapped response.
func (m *errorMapper) handle(ctx handler.Context, err error) {
	m.write(ctx.ResponseWriter(), ctx.Request(), err)
}

func (m *errorMapper) write(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := m.detail(err)

	level, msg := slog.LevelWarn, "request failed"
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status == http.StatusPaymentRequired:
		level, msg = slog.LevelInfo, "upgrade required"
	}
	m.log.LogAttrs(r.Context(), level, msg,
		logger.RequestID(requestid.FromContext(r.Context())),
		logger.Error(err),
		slog.Int("status_code", status),
		slog.String("code", detail.Code),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		logger.Component("gating"),
	)

	if renderErr := handler.JSONError(detail, handler.WithJSONStatus(status)).Render(w, r); renderErr != nil {
		m.log.ErrorContext(r.Context(), "failed to render error response", logger.Error(renderErr))
	}
}
