package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/pkg/pg"
)

// Repository persists subscriptions.
type Repository interface {
	entitlement.SubscriptionStore

	// GetByProviderSubID returns the newest subscription created for a
	// provider subscription id. Returns entitlement.ErrSubscriptionNotFound.
	GetByProviderSubID(ctx context.Context, providerSubID string) (*entitlement.Subscription, error)

	// Save inserts or updates by ID. Returns ErrSubscriptionConflict when the
	// row would give its tenant a second active subscription.
	Save(ctx context.Context, sub *entitlement.Subscription) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a Repository backed by the subscriptions table.
func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	if pool == nil {
		panic("billing: pgx pool is required")
	}
	return &postgresRepository{pool: pool}
}

const (
	subscriptionColumns = `id, tenant_id, tier, status, provider_sub_id, period_start, period_end, created_at, updated_at, cancelled_at`

	getActiveSubscriptionSQL = `SELECT ` + subscriptionColumns + `
		FROM subscriptions WHERE tenant_id = $1 AND status = 'active'`
	getByProviderSubIDSQL = `SELECT ` + subscriptionColumns + `
		FROM subscriptions WHERE provider_sub_id = $1 ORDER BY created_at DESC LIMIT 1`
	saveSubscriptionSQL = `INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			provider_sub_id = EXCLUDED.provider_sub_id,
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			updated_at = EXCLUDED.updated_at,
			cancelled_at = EXCLUDED.cancelled_at`
)

func (r *postgresRepository) GetActiveSubscription(ctx context.Context, tenantID uuid.UUID) (*entitlement.Subscription, error) {
	return r.getOne(ctx, getActiveSubscriptionSQL, tenantID)
}

func (r *postgresRepository) GetByProviderSubID(ctx context.Context, providerSubID string) (*entitlement.Subscription, error) {
	if providerSubID == "" {
		return nil, entitlement.ErrSubscriptionNotFound
	}
	return r.getOne(ctx, getByProviderSubIDSQL, providerSubID)
}

func (r *postgresRepository) Save(ctx context.Context, s *entitlement.Subscription) error {
	_, err := r.pool.Exec(ctx, saveSubscriptionSQL,
		s.ID, s.TenantID, s.Tier, s.Status, s.ProviderSubID,
		s.PeriodStart, s.PeriodEnd, s.CreatedAt, s.UpdatedAt, s.CancelledAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return ErrSubscriptionConflict
	}
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

func (r *postgresRepository) getOne(ctx context.Context, sql string, arg any) (*entitlement.Subscription, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	sub, err := pgx.CollectOneRow(rows, scanSubscription)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entitlement.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func scanSubscription(row pgx.CollectableRow) (*entitlement.Subscription, error) {
	var s entitlement.Subscription
	err := row.Scan(
		&s.ID, &s.TenantID, &s.Tier, &s.Status, &s.ProviderSubID,
		&s.PeriodStart, &s.PeriodEnd, &s.CreatedAt, &s.UpdatedAt, &s.CancelledAt,
	)
	return &s, err
}
