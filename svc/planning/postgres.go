package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/pkg/pg"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Seeder = (*postgresStore)(nil)

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by PostgreSQL.
//
// Guarded inserts serialize on a transaction-scoped advisory lock keyed by
// tenant and limit (objective for initiatives), then count and insert in the
// same transaction. Under READ COMMITTED each statement sees rows committed by
// the previous lock holder, so at most cap rows are ever admitted.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	if pool == nil {
		panic("planning: pgx pool is required")
	}
	return &postgresStore{pool: pool}
}

const (
	countCompaniesSQL   = `SELECT count(*) FROM companies WHERE tenant_id = $1`
	countObjectivesSQL  = `SELECT count(*) FROM objectives WHERE tenant_id = $1`
	countMembersSQL     = `SELECT count(*) FROM team_members WHERE tenant_id = $1`
	countInitiativesSQL = `SELECT count(*) FROM initiatives WHERE tenant_id = $1 AND objective_id = $2`
	countInsightsSQL    = `SELECT count(*) FROM ai_insights WHERE tenant_id = $1 AND created_at >= $2`

	initiativesPerObjectiveSQL = `SELECT objective_id, count(*) FROM initiatives WHERE tenant_id = $1 GROUP BY objective_id`

	insertCompanySQL = `INSERT INTO companies (id, tenant_id, name, mission, vision, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	insertObjectiveSQL = `INSERT INTO objectives (id, tenant_id, company_id, title, perspective, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	insertInitiativeSQL = `INSERT INTO initiatives (id, tenant_id, objective_id, title, impact, confidence, ease, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	insertMemberSQL = `INSERT INTO team_members (id, tenant_id, email, role, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	insertInsightSQL = `INSERT INTO ai_insights (id, tenant_id, kind, created_at)
		VALUES ($1, $2, $3, $4)`

	getObjectiveSQL = `SELECT id, tenant_id, company_id, title, perspective, created_at
		FROM objectives WHERE tenant_id = $1 AND id = $2`
	getCompanySQL = `SELECT id, tenant_id, name, mission, vision, created_at
		FROM companies WHERE tenant_id = $1 AND id = $2`
	listInitiativesSQL = `SELECT id, tenant_id, objective_id, title, impact, confidence, ease, created_at
		FROM initiatives WHERE tenant_id = $1 AND objective_id = $2 ORDER BY created_at, id`
)

func (s *postgresStore) CountOwnedPlans(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return count(ctx, s.pool, countCompaniesSQL, tenantID)
}

func (s *postgresStore) CountObjectives(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return count(ctx, s.pool, countObjectivesSQL, tenantID)
}

func (s *postgresStore) CountTeamMembers(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return count(ctx, s.pool, countMembersSQL, tenantID)
}

func (s *postgresStore) CountInitiatives(ctx context.Context, tenantID, objectiveID uuid.UUID) (int64, error) {
	return count(ctx, s.pool, countInitiativesSQL, tenantID, objectiveID)
}

func (s *postgresStore) CountAIInsights(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error) {
	return count(ctx, s.pool, countInsightsSQL, tenantID, since)
}

// Snapshot reads every count from one REPEATABLE READ snapshot.
func (s *postgresStore) Snapshot(ctx context.Context, tenantID uuid.UUID, insightsSince time.Time) (entitlement.UsageSnapshot, error) {
	var snap entitlement.UsageSnapshot
	err := pg.WithTx(ctx, s.pool, pg.ReadOnlySnapshot, func(tx pgx.Tx) error {
		var err error
		if snap.Plans, err = count(ctx, tx, countCompaniesSQL, tenantID); err != nil {
			return err
		}
		if snap.Objectives, err = count(ctx, tx, countObjectivesSQL, tenantID); err != nil {
			return err
		}
		if snap.TeamMembers, err = count(ctx, tx, countMembersSQL, tenantID); err != nil {
			return err
		}
		if snap.AIInsights, err = count(ctx, tx, countInsightsSQL, tenantID, insightsSince); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, initiativesPerObjectiveSQL, tenantID)
		if err != nil {
			return fmt.Errorf("count initiatives per objective: %w", err)
		}
		snap.InitiativesPerObjective = make(map[uuid.UUID]int64)
		var (
			objectiveID uuid.UUID
			n           int64
		)
		_, err = pgx.ForEachRow(rows, []any{&objectiveID, &n}, func() error {
			snap.InitiativesPerObjective[objectiveID] = n
			return nil
		})
		return err
	})
	if err != nil {
		return entitlement.UsageSnapshot{}, err
	}
	return snap, nil
}

func (s *postgresStore) InsertCompany(ctx context.Context, c *Company) error {
	return insertCompany(ctx, s.pool, c)
}

func (s *postgresStore) InsertObjective(ctx context.Context, o *Objective) error {
	return insertObjective(ctx, s.pool, o)
}

func (s *postgresStore) InsertInitiative(ctx context.Context, i *Initiative) error {
	return insertInitiative(ctx, s.pool, i)
}

func (s *postgresStore) InsertTeamMember(ctx context.Context, m *TeamMember) error {
	return insertMember(ctx, s.pool, m)
}

func (s *postgresStore) InsertAIInsight(ctx context.Context, a *AIInsight) error {
	return insertInsight(ctx, s.pool, a)
}

func (s *postgresStore) CreateCompanyWithinCap(ctx context.Context, c *Company, limit int64) error {
	return s.withinCap(ctx, lockKey(c.TenantID, entitlement.LimitPlans), entitlement.LimitPlans, limit,
		func(tx pgx.Tx) (int64, error) { return count(ctx, tx, countCompaniesSQL, c.TenantID) },
		func(tx pgx.Tx) error { return insertCompany(ctx, tx, c) },
	)
}

func (s *postgresStore) CreateObjectiveWithinCap(ctx context.Context, o *Objective, limit int64) error {
	return s.withinCap(ctx, lockKey(o.TenantID, entitlement.LimitObjectives), entitlement.LimitObjectives, limit,
		func(tx pgx.Tx) (int64, error) { return count(ctx, tx, countObjectivesSQL, o.TenantID) },
		func(tx pgx.Tx) error { return insertObjective(ctx, tx, o) },
	)
}

func (s *postgresStore) CreateInitiativeWithinCap(ctx context.Context, i *Initiative, limit int64) error {
	return s.withinCap(ctx, lockKey(i.ObjectiveID, entitlement.LimitInitiativesPerObjective), entitlement.LimitInitiativesPerObjective, limit,
		func(tx pgx.Tx) (int64, error) { return count(ctx, tx, countInitiativesSQL, i.TenantID, i.ObjectiveID) },
		func(tx pgx.Tx) error { return insertInitiative(ctx, tx, i) },
	)
}

func (s *postgresStore) AddTeamMemberWithinCap(ctx context.Context, m *TeamMember, limit int64) error {
	return s.withinCap(ctx, lockKey(m.TenantID, entitlement.LimitTeamMembers), entitlement.LimitTeamMembers, limit,
		func(tx pgx.Tx) (int64, error) { return count(ctx, tx, countMembersSQL, m.TenantID) },
		func(tx pgx.Tx) error { return insertMember(ctx, tx, m) },
	)
}

func (s *postgresStore) RecordAIInsightWithinCap(ctx context.Context, a *AIInsight, since time.Time, limit int64) error {
	return s.withinCap(ctx, lockKey(a.TenantID, entitlement.LimitAIInsightsPerMonth), entitlement.LimitAIInsightsPerMonth, limit,
		func(tx pgx.Tx) (int64, error) { return count(ctx, tx, countInsightsSQL, a.TenantID, since) },
		func(tx pgx.Tx) error { return insertInsight(ctx, tx, a) },
	)
}

func (s *postgresStore) GetObjective(ctx context.Context, tenantID, id uuid.UUID) (*Objective, error) {
	var (
		o         Objective
		companyID *uuid.UUID
	)
	err := s.pool.QueryRow(ctx, getObjectiveSQL, tenantID, id).
		Scan(&o.ID, &o.TenantID, &companyID, &o.Title, &o.Perspective, &o.CreatedAt)
	if pg.IsNotFoundError(err) {
		return nil, ErrObjectiveNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get objective: %w", err)
	}
	if companyID != nil {
		o.CompanyID = *companyID
	}
	return &o, nil
}

func (s *postgresStore) GetCompany(ctx context.Context, tenantID, id uuid.UUID) (*Company, error) {
	var c Company
	err := s.pool.QueryRow(ctx, getCompanySQL, tenantID, id).
		Scan(&c.ID, &c.TenantID, &c.Name, &c.Mission, &c.Vision, &c.CreatedAt)
	if pg.IsNotFoundError(err) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

func (s *postgresStore) ListInitiatives(ctx context.Context, tenantID, objectiveID uuid.UUID) ([]Initiative, error) {
	rows, err := s.pool.Query(ctx, listInitiativesSQL, tenantID, objectiveID)
	if err != nil {
		return nil, fmt.Errorf("list initiatives: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Initiative, error) {
		var i Initiative
		err := row.Scan(&i.ID, &i.TenantID, &i.ObjectiveID, &i.Title, &i.Impact, &i.Confidence, &i.Ease, &i.CreatedAt)
		return i, err
	})
	if err != nil {
		return nil, fmt.Errorf("list initiatives: %w", err)
	}
	return out, nil
}

func (s *postgresStore) withinCap(
	ctx context.Context,
	key string,
	l entitlement.Limit,
	limit int64,
	countFn func(pgx.Tx) (int64, error),
	insertFn func(pgx.Tx) error,
) error {
	return pg.WithTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if limit != entitlement.Unlimited {
			if err := pg.LockKey(ctx, tx, key); err != nil {
				return fmt.Errorf("lock %s: %w", key, err)
			}
			n, err := countFn(tx)
			if err != nil {
				return err
			}
			if exceeds(n, limit) {
				return limitError(l, n, limit)
			}
		}
		return insertFn(tx)
	})
}

func lockKey(scope uuid.UUID, l entitlement.Limit) string {
	return scope.String() + ":" + string(l)
}

func count(ctx context.Context, q querier, sql string, args ...any) (int64, error) {
	var n int64
	if err := q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func insertCompany(ctx context.Context, q querier, c *Company) error {
	_, err := q.Exec(ctx, insertCompanySQL, c.ID, c.TenantID, c.Name, c.Mission, c.Vision, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

func insertObjective(ctx context.Context, q querier, o *Objective) error {
	var companyID *uuid.UUID
	if o.CompanyID != uuid.Nil {
		companyID = &o.CompanyID
	}
	_, err := q.Exec(ctx, insertObjectiveSQL, o.ID, o.TenantID, companyID, o.Title, o.Perspective, o.CreatedAt)
	if pg.IsForeignKeyViolationError(err) {
		return ErrCompanyNotFound
	}
	if err != nil {
		return fmt.Errorf("insert objective: %w", err)
	}
	return nil
}

func insertInitiative(ctx context.Context, q querier, i *Initiative) error {
	_, err := q.Exec(ctx, insertInitiativeSQL, i.ID, i.TenantID, i.ObjectiveID, i.Title, i.Impact, i.Confidence, i.Ease, i.CreatedAt)
	if pg.IsForeignKeyViolationError(err) {
		return ErrObjectiveNotFound
	}
	if err != nil {
		return fmt.Errorf("insert initiative: %w", err)
	}
	return nil
}

func insertMember(ctx context.Context, q querier, m *TeamMember) error {
	_, err := q.Exec(ctx, insertMemberSQL, m.ID, m.TenantID, m.Email, m.Role, m.CreatedAt)
	if pg.IsDuplicateKeyError(err) {
		return ErrDuplicateMember
	}
	if err != nil {
		return fmt.Errorf("insert team member: %w", err)
	}
	return nil
}

func insertInsight(ctx context.Context, q querier, a *AIInsight) error {
	if _, err := q.Exec(ctx, insertInsightSQL, a.ID, a.TenantID, a.Kind, a.CreatedAt); err != nil {
		return fmt.Errorf("insert ai insight: %w", err)
	}
	return nil
}
