package planning

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/pkg/logger"
	"github.com/dmitrymomot/stratplan/pkg/validator"
)

// Service creates planning rows behind entitlement checks.
//
// Each create asks the evaluator first and returns *entitlement.LimitError on
// denial without touching the store. An allowed create then goes through the
// store's guarded insert with the resolved cap, which rejects the row if a
// concurrent request used the last slot in the meantime.
type Service interface {
	CreateCompany(ctx context.Context, tenantID uuid.UUID, in CompanyInput) (*Company, error)
	CreateObjective(ctx context.Context, tenantID uuid.UUID, in ObjectiveInput) (*Objective, error)
	CreateInitiative(ctx context.Context, tenantID, objectiveID uuid.UUID, in InitiativeInput) (*Initiative, error)
	AddTeamMember(ctx context.Context, tenantID uuid.UUID, in TeamMemberInput) (*TeamMember, error)
	RecordAIInsight(ctx context.Context, tenantID uuid.UUID, kind string) (*AIInsight, error)

	// PrioritizeInitiatives ranks an objective's initiatives by ICE score.
	// Requires the ice_score feature.
	PrioritizeInitiatives(ctx context.Context, tenantID, objectiveID uuid.UUID) ([]Initiative, error)
}

type CompanyInput struct {
	Name    string `json:"name"`
	Mission string `json:"mission"`
	Vision  string `json:"vision"`
}

type ObjectiveInput struct {
	CompanyID   uuid.UUID   `json:"company_id"`
	Title       string      `json:"title"`
	Perspective Perspective `json:"perspective"`
}

type InitiativeInput struct {
	Title      string `json:"title"`
	Impact     int    `json:"impact"`
	Confidence int    `json:"confidence"`
	Ease       int    `json:"ease"`
}

type TeamMemberInput struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

const defaultMemberRole = "member"

type service struct {
	store Store
	eval  entitlement.Evaluator
	log   *slog.Logger
	now   func() time.Time
}

// ServiceOption configures the planning service.
type ServiceOption func(*service)

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source for CreatedAt and monthly quotas.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the planning service. Panics if store or eval is nil.
func NewService(store Store, eval entitlement.Evaluator, opts ...ServiceOption) Service {
	if store == nil {
		panic("planning: store is required")
	}
	if eval == nil {
		panic("planning: evaluator is required")
	}

	s := &service{
		store: store,
		eval:  eval,
		log:   slog.New(slog.DiscardHandler),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) CreateCompany(ctx context.Context, tenantID uuid.UUID, in CompanyInput) (*Company, error) {
	if err := validator.Apply(
		validator.Required("name", in.Name),
		validator.MaxLen("name", in.Name, 200),
		validator.MaxLen("mission", in.Mission, 2000),
		validator.MaxLen("vision", in.Vision, 2000),
	); err != nil {
		return nil, err
	}

	c := &Company{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      strings.TrimSpace(in.Name),
		Mission:   in.Mission,
		Vision:    in.Vision,
		CreatedAt: s.now().UTC(),
	}
	err := s.guarded(ctx, entitlement.LimitPlans, tenantID, uuid.Nil, func(limit int64) error {
		return s.store.CreateCompanyWithinCap(ctx, c, limit)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *service) CreateObjective(ctx context.Context, tenantID uuid.UUID, in ObjectiveInput) (*Objective, error) {
	if err := validator.Apply(
		validator.Required("title", in.Title),
		validator.MaxLen("title", in.Title, 200),
		validator.OneOf("perspective", in.Perspective, Perspectives),
	); err != nil {
		return nil, err
	}

	if in.CompanyID != uuid.Nil {
		if _, err := s.store.GetCompany(ctx, tenantID, in.CompanyID); err != nil {
			return nil, err
		}
	}

	o := &Objective{
		ID:          uuid.New(),
		TenantID:    tenantID,
		CompanyID:   in.CompanyID,
		Title:       strings.TrimSpace(in.Title),
		Perspective: in.Perspective,
		CreatedAt:   s.now().UTC(),
	}
	err := s.guarded(ctx, entitlement.LimitObjectives, tenantID, uuid.Nil, func(limit int64) error {
		return s.store.CreateObjectiveWithinCap(ctx, o, limit)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *service) CreateInitiative(ctx context.Context, tenantID, objectiveID uuid.UUID, in InitiativeInput) (*Initiative, error) {
	if err := validator.Apply(
		validator.Required("title", in.Title),
		validator.MaxLen("title", in.Title, 200),
		validator.Between("impact", in.Impact, 1, 10),
		validator.Between("confidence", in.Confidence, 1, 10),
		validator.Between("ease", in.Ease, 1, 10),
	); err != nil {
		return nil, err
	}

	// initiatives are counted per objective, so the objective must belong to the tenant
	if _, err := s.store.GetObjective(ctx, tenantID, objectiveID); err != nil {
		return nil, err
	}

	i := &Initiative{
		ID:          uuid.New(),
		TenantID:    tenantID,
		ObjectiveID: objectiveID,
		Title:       strings.TrimSpace(in.Title),
		Impact:      in.Impact,
		Confidence:  in.Confidence,
		Ease:        in.Ease,
		CreatedAt:   s.now().UTC(),
	}
	err := s.guarded(ctx, entitlement.LimitInitiativesPerObjective, tenantID, objectiveID, func(limit int64) error {
		return s.store.CreateInitiativeWithinCap(ctx, i, limit)
	})
	if err != nil {
		return nil, err
	}
	return i, nil
}

func (s *service) AddTeamMember(ctx context.Context, tenantID uuid.UUID, in TeamMemberInput) (*TeamMember, error) {
	role := cmp.Or(in.Role, defaultMemberRole)
	if err := validator.Apply(
		validator.Required("email", in.Email),
		validator.Email("email", in.Email),
		validator.OneOf("role", role, []string{"owner", "admin", defaultMemberRole}),
	); err != nil {
		return nil, err
	}

	m := &TeamMember{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Email:     strings.ToLower(in.Email),
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	err := s.guarded(ctx, entitlement.LimitTeamMembers, tenantID, uuid.Nil, func(limit int64) error {
		return s.store.AddTeamMemberWithinCap(ctx, m, limit)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *service) RecordAIInsight(ctx context.Context, tenantID uuid.UUID, kind string) (*AIInsight, error) {
	if err := validator.Apply(
		validator.Required("kind", kind),
		validator.MaxLen("kind", kind, 64),
	); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	a := &AIInsight{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Kind:      kind,
		CreatedAt: now,
	}
	err := s.guarded(ctx, entitlement.LimitAIInsightsPerMonth, tenantID, uuid.Nil, func(limit int64) error {
		return s.store.RecordAIInsightWithinCap(ctx, a, entitlement.MonthStart(now), limit)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *service) PrioritizeInitiatives(ctx context.Context, tenantID, objectiveID uuid.UUID) ([]Initiative, error) {
	ok, err := s.eval.HasFeature(ctx, entitlement.FeatureICEScore, tenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		plan, err := s.eval.ResolvePlan(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		return nil, &entitlement.FeatureError{Feature: entitlement.FeatureICEScore, Tier: plan.Tier}
	}

	if _, err := s.store.GetObjective(ctx, tenantID, objectiveID); err != nil {
		return nil, err
	}

	initiatives, err := s.store.ListInitiatives(ctx, tenantID, objectiveID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(initiatives, func(a, b Initiative) int {
		return cmp.Compare(b.ICEScore(), a.ICEScore())
	})
	return initiatives, nil
}

// guarded runs the advisory check, then insert with the resolved cap.
func (s *service) guarded(ctx context.Context, l entitlement.Limit, tenantID, scopeID uuid.UUID, insert func(limit int64) error) error {
	d, err := s.eval.CanCreate(ctx, l, tenantID, scopeID)
	if err != nil {
		s.log.ErrorContext(ctx, "entitlement check failed",
			logger.TenantID(tenantID), logger.Limit(string(l)), logger.Error(err))
		return err
	}
	if !d.Allowed {
		s.log.InfoContext(ctx, "plan limit reached",
			logger.TenantID(tenantID), logger.Limit(string(l)), logger.Tier(string(d.Tier)), logger.Usage(d.Current, d.Cap))
		return d.Err()
	}

	err = insert(d.Cap)

	var le *entitlement.LimitError
	if errors.As(err, &le) {
		// another request took the last slot between check and insert
		le.Tier = d.Tier
		s.log.WarnContext(ctx, "plan limit reached after check",
			logger.TenantID(tenantID), logger.Limit(string(l)), logger.Usage(le.Current, le.Cap))
	}
	return err
}
