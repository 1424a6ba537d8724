package gating

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/stratplan/handler"
	"github.com/dmitrymomot/stratplan/pkg/binder"
	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/pkg/tenant"
	"github.com/dmitrymomot/stratplan/svc/planning"
)

var jsonBody handler.Bind = binder.JSON()

// AIInsightRequest is the body of POST /ai-insights.
type AIInsightRequest struct {
	Kind string `json:"kind"`
}

// RankedInitiative is an initiative with its ICE score.
type RankedInitiative struct {
	planning.Initiative
	ICEScore int `json:"ice_score"`
}

func (m *module) createCompany(ctx handler.Context, in planning.CompanyInput) handler.Response {
	c, err := m.planning.CreateCompany(ctx, tenant.MustIDFromContext(ctx), in)
	return m.created(entitlement.LimitPlans, c, err)
}

func (m *module) createObjective(ctx handler.Context, in planning.ObjectiveInput) handler.Response {
	o, err := m.planning.CreateObjective(ctx, tenant.MustIDFromContext(ctx), in)
	return m.created(entitlement.LimitObjectives, o, err)
}

func (m *module) createInitiative(ctx handler.Context, in planning.InitiativeInput) handler.Response {
	objectiveID, err := pathID(ctx.Request())
	if err != nil {
		return m.fail(err)
	}
	i, err := m.planning.CreateInitiative(ctx, tenant.MustIDFromContext(ctx), objectiveID, in)
	return m.created(entitlement.LimitInitiativesPerObjective, i, err)
}

func (m *module) addTeamMember(ctx handler.Context, in planning.TeamMemberInput) handler.Response {
	tm, err := m.planning.AddTeamMember(ctx, tenant.MustIDFromContext(ctx), in)
	return m.created(entitlement.LimitTeamMembers, tm, err)
}

func (m *module) recordAIInsight(ctx handler.Context, in AIInsightRequest) handler.Response {
	a, err := m.planning.RecordAIInsight(ctx, tenant.MustIDFromContext(ctx), in.Kind)
	return m.created(entitlement.LimitAIInsightsPerMonth, a, err)
}

func (m *module) prioritizedInitiatives(ctx handler.Context, _ struct{}) handler.Response {
	objectiveID, err := pathID(ctx.Request())
	if err != nil {
		return m.fail(err)
	}
	initiatives, err := m.planning.PrioritizeInitiatives(ctx, tenant.MustIDFromContext(ctx), objectiveID)
	if err != nil {
		return m.fail(err)
	}

	ranked := make([]RankedInitiative, 0, len(initiatives))
	for _, i := range initiatives {
		ranked = append(ranked, RankedInitiative{Initiative: i, ICEScore: i.ICEScore()})
	}
	return handler.JSON(ranked)
}

// created records the gate outcome and renders v with 201.
func (m *module) created(l entitlement.Limit, v any, err error) handler.Response {
	if err == nil || gateOutcome(err) {
		m.metrics.limit(l, err)
	}
	if err != nil {
		return m.fail(err)
	}
	return handler.JSON(v, handler.WithJSONStatus(http.StatusCreated))
}

// gateOutcome reports whether err came from the entitlement check rather
// than from input validation or the store.
func gateOutcome(err error) bool {
	return outcomeOf(err) == outcomeDenied ||
		entitlement.IsConfigurationError(err) ||
		entitlement.IsLookupFailure(err)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, planning.ErrObjectiveNotFound
	}
	return id, nil
}
