package planning

import (
	"time"

	"github.com/google/uuid"
)

// Perspective is a Balanced Scorecard perspective of an objective.
type Perspective string

const (
	PerspectiveFinancial Perspective = "financial"
	PerspectiveCustomer  Perspective = "customer"
	PerspectiveInternal  Perspective = "internal"
	PerspectiveLearning  Perspective = "learning"
)

// Perspectives lists every valid perspective.
var Perspectives = []Perspective{
	PerspectiveFinancial,
	PerspectiveCustomer,
	PerspectiveInternal,
	PerspectiveLearning,
}

// Company is a strategic plan owned by a tenant. Counted against max_plans.
type Company struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Mission   string    `json:"mission,omitempty"`
	Vision    string    `json:"vision,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Objective is a strategic objective. CompanyID is uuid.Nil when unassigned.
type Objective struct {
	ID          uuid.UUID   `json:"id"`
	TenantID    uuid.UUID   `json:"tenant_id"`
	CompanyID   uuid.UUID   `json:"company_id"`
	Title       string      `json:"title"`
	Perspective Perspective `json:"perspective"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Initiative is an action under an objective, scored 1-10 on impact,
// confidence and ease.
type Initiative struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	ObjectiveID uuid.UUID `json:"objective_id"`
	Title       string    `json:"title"`
	Impact      int       `json:"impact"`
	Confidence  int       `json:"confidence"`
	Ease        int       `json:"ease"`
	CreatedAt   time.Time `json:"created_at"`
}

// ICEScore is impact × confidence × ease.
func (i Initiative) ICEScore() int {
	return i.Impact * i.Confidence * i.Ease
}

// TeamMember is a seat in the tenant's workspace.
type TeamMember struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// AIInsight records one generated insight for the monthly quota.
type AIInsight struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}
