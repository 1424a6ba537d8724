package planning

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
)

// Store persists planning rows and counts them for entitlement checks.
//
// Rows are only written through the WithinCap methods, which count and
// insert atomically and return *entitlement.LimitError when the row would
// exceed limit; entitlement.Unlimited skips the count.
type Store interface {
	entitlement.UsageCounter
	entitlement.SnapshotReader

	CreateCompanyWithinCap(ctx context.Context, c *Company, limit int64) error
	CreateObjectiveWithinCap(ctx context.Context, o *Objective, limit int64) error
	CreateInitiativeWithinCap(ctx context.Context, i *Initiative, limit int64) error
	AddTeamMemberWithinCap(ctx context.Context, m *TeamMember, limit int64) error
	RecordAIInsightWithinCap(ctx context.Context, a *AIInsight, since time.Time, limit int64) error

	GetObjective(ctx context.Context, tenantID, id uuid.UUID) (*Objective, error)
	GetCompany(ctx context.Context, tenantID, id uuid.UUID) (*Company, error)
	ListInitiatives(ctx context.Context, tenantID, objectiveID uuid.UUID) ([]Initiative, error)
}

// Seeder writes rows without a cap check. Both stores implement it for test
// fixtures; Service never uses it.
type Seeder interface {
	InsertCompany(ctx context.Context, c *Company) error
	InsertObjective(ctx context.Context, o *Objective) error
	InsertInitiative(ctx context.Context, i *Initiative) error
	InsertTeamMember(ctx context.Context, m *TeamMember) error
	InsertAIInsight(ctx context.Context, a *AIInsight) error
}

// exceeds reports whether count leaves no room under limit.
// Negative limits other than Unlimited never admit a row.
func exceeds(count, limit int64) bool {
	if limit == entitlement.Unlimited {
		return false
	}
	return limit < 0 || count >= limit
}

func limitError(l entitlement.Limit, count, limit int64) error {
	return &entitlement.LimitError{Limit: l, Current: count, Cap: limit}
}
