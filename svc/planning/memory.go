package planning

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
)

var _ Seeder = (*memoryStore)(nil)

type memoryStore struct {
	mu          sync.RWMutex
	companies   []Company
	objectives  []Objective
	initiatives []Initiative
	members     []TeamMember
	insights    []AIInsight
}

// NewMemoryStore creates a Store kept in process memory.
// Guarded inserts hold the write lock across count and insert.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) CountOwnedPlans(_ context.Context, tenantID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countCompanies(tenantID), nil
}

func (s *memoryStore) CountObjectives(_ context.Context, tenantID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countObjectives(tenantID), nil
}

func (s *memoryStore) CountTeamMembers(_ context.Context, tenantID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countMembers(tenantID), nil
}

func (s *memoryStore) CountInitiatives(_ context.Context, tenantID, objectiveID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countInitiatives(tenantID, objectiveID), nil
}

func (s *memoryStore) CountAIInsights(_ context.Context, tenantID uuid.UUID, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countInsights(tenantID, since), nil
}

func (s *memoryStore) Snapshot(_ context.Context, tenantID uuid.UUID, insightsSince time.Time) (entitlement.UsageSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := entitlement.UsageSnapshot{
		Plans:                   s.countCompanies(tenantID),
		Objectives:              s.countObjectives(tenantID),
		TeamMembers:             s.countMembers(tenantID),
		AIInsights:              s.countInsights(tenantID, insightsSince),
		InitiativesPerObjective: make(map[uuid.UUID]int64),
	}
	for _, i := range s.initiatives {
		if i.TenantID == tenantID {
			snap.InitiativesPerObjective[i.ObjectiveID]++
		}
	}
	return snap, nil
}

func (s *memoryStore) InsertCompany(_ context.Context, c *Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies = append(s.companies, *c)
	return nil
}

func (s *memoryStore) InsertObjective(_ context.Context, o *Objective) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertObjective(o)
}

func (s *memoryStore) InsertInitiative(_ context.Context, i *Initiative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertInitiative(i)
}

func (s *memoryStore) InsertTeamMember(_ context.Context, m *TeamMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertMember(m)
}

func (s *memoryStore) InsertAIInsight(_ context.Context, a *AIInsight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights = append(s.insights, *a)
	return nil
}

func (s *memoryStore) CreateCompanyWithinCap(_ context.Context, c *Company, limit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.countCompanies(c.TenantID); exceeds(n, limit) {
		return limitError(entitlement.LimitPlans, n, limit)
	}
	s.companies = append(s.companies, *c)
	return nil
}

func (s *memoryStore) CreateObjectiveWithinCap(_ context.Context, o *Objective, limit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.countObjectives(o.TenantID); exceeds(n, limit) {
		return limitError(entitlement.LimitObjectives, n, limit)
	}
	return s.insertObjective(o)
}

func (s *memoryStore) CreateInitiativeWithinCap(_ context.Context, i *Initiative, limit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.countInitiatives(i.TenantID, i.ObjectiveID); exceeds(n, limit) {
		return limitError(entitlement.LimitInitiativesPerObjective, n, limit)
	}
	return s.insertInitiative(i)
}

func (s *memoryStore) AddTeamMemberWithinCap(_ context.Context, m *TeamMember, limit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.countMembers(m.TenantID); exceeds(n, limit) {
		return limitError(entitlement.LimitTeamMembers, n, limit)
	}
	return s.insertMember(m)
}

func (s *memoryStore) RecordAIInsightWithinCap(_ context.Context, a *AIInsight, since time.Time, limit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.countInsights(a.TenantID, since); exceeds(n, limit) {
		return limitError(entitlement.LimitAIInsightsPerMonth, n, limit)
	}
	s.insights = append(s.insights, *a)
	return nil
}

func (s *memoryStore) GetObjective(_ context.Context, tenantID, id uuid.UUID) (*Objective, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.objectives {
		if o.ID == id && o.TenantID == tenantID {
			return &o, nil
		}
	}
	return nil, ErrObjectiveNotFound
}

func (s *memoryStore) GetCompany(_ context.Context, tenantID, id uuid.UUID) (*Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.companies {
		if c.ID == id && c.TenantID == tenantID {
			return &c, nil
		}
	}
	return nil, ErrCompanyNotFound
}

func (s *memoryStore) ListInitiatives(_ context.Context, tenantID, objectiveID uuid.UUID) ([]Initiative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Initiative, 0)
	for _, i := range s.initiatives {
		if i.TenantID == tenantID && i.ObjectiveID == objectiveID {
			out = append(out, i)
		}
	}
	return out, nil
}

// helpers below expect s.mu to be held

func (s *memoryStore) insertObjective(o *Objective) error {
	if o.CompanyID != uuid.Nil && !slices.ContainsFunc(s.companies, func(c Company) bool { return c.ID == o.CompanyID }) {
		return ErrCompanyNotFound
	}
	s.objectives = append(s.objectives, *o)
	return nil
}

func (s *memoryStore) insertInitiative(i *Initiative) error {
	if !slices.ContainsFunc(s.objectives, func(o Objective) bool { return o.ID == i.ObjectiveID }) {
		return ErrObjectiveNotFound
	}
	s.initiatives = append(s.initiatives, *i)
	return nil
}

func (s *memoryStore) insertMember(m *TeamMember) error {
	for _, existing := range s.members {
		if existing.TenantID == m.TenantID && strings.EqualFold(existing.Email, m.Email) {
			return ErrDuplicateMember
		}
	}
	s.members = append(s.members, *m)
	return nil
}

func (s *memoryStore) countCompanies(tenantID uuid.UUID) int64 {
	var n int64
	for _, c := range s.companies {
		if c.TenantID == tenantID {
			n++
		}
	}
	return n
}

func (s *memoryStore) countObjectives(tenantID uuid.UUID) int64 {
	var n int64
	for _, o := range s.objectives {
		if o.TenantID == tenantID {
			n++
		}
	}
	return n
}

func (s *memoryStore) countInitiatives(tenantID, objectiveID uuid.UUID) int64 {
	var n int64
	for _, i := range s.initiatives {
		if i.TenantID == tenantID && i.ObjectiveID == objectiveID {
			n++
		}
	}
	return n
}

func (s *memoryStore) countMembers(tenantID uuid.UUID) int64 {
	var n int64
	for _, m := range s.members {
		if m.TenantID == tenantID {
			n++
		}
	}
	return n
}

func (s *memoryStore) countInsights(tenantID uuid.UUID, since time.Time) int64 {
	var n int64
	for _, a := range s.insights {
		if a.TenantID == tenantID && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n
}
