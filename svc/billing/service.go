package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/pkg/logger"
)

// Service applies subscription lifecycle changes.
type Service interface {
	// Activate gives the tenant an active subscription on tier, creating one
	// or moving the existing one. A zero end defaults to one month after start.
	Activate(ctx context.Context, tenantID uuid.UUID, tier entitlement.Tier, providerSubID string, start, end time.Time) (*entitlement.Subscription, error)

	// Cancel flips the tenant's active subscription to cancelled.
	// Returns entitlement.ErrSubscriptionNotFound when there is none.
	Cancel(ctx context.Context, tenantID uuid.UUID) error

	// HandleWebhook verifies a provider notification and applies it.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type service struct {
	repo        Repository
	catalog     *entitlement.Catalog
	webhooks    WebhookParser
	invalidator Invalidator
	log         *slog.Logger
	now         func() time.Time
}

// ServiceOption configures the billing service.
type ServiceOption func(*service)

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithInvalidator drops cached subscriptions after every lifecycle change.
func WithInvalidator(inv Invalidator) ServiceOption {
	return func(s *service) {
		s.invalidator = inv
	}
}

// NewService creates the billing service. webhooks may be nil, in which case
// HandleWebhook returns ErrWebhooksNotConfigured. Panics if repo or catalog is nil.
func NewService(repo Repository, catalog *entitlement.Catalog, webhooks WebhookParser, opts ...ServiceOption) Service {
	if repo == nil {
		panic("billing: repository is required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}
	s := &service{
		repo:     repo,
		catalog:  catalog,
		webhooks: webhooks,
		log:      slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Activate(ctx context.Context, tenantID uuid.UUID, tier entitlement.Tier, providerSubID string, start, end time.Time) (*entitlement.Subscription, error) {
	if _, ok := s.catalog.Plan(tier); !ok {
		return nil, fmt.Errorf("%w: %q", entitlement.ErrUnknownTier, tier)
	}

	now := s.now().UTC()
	if start.IsZero() {
		start = now
	}
	if end.IsZero() {
		end = start.AddDate(0, 1, 0)
	}
	if end.Before(start) {
		return nil, ErrInvalidPeriod
	}

	sub, err := s.repo.GetActiveSubscription(ctx, tenantID)
	switch {
	case errors.Is(err, entitlement.ErrSubscriptionNotFound):
		sub = &entitlement.Subscription{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Status:    entitlement.StatusActive,
			CreatedAt: now,
		}
	case err != nil:
		return nil, err
	}

	previous := sub.Tier
	sub.Tier = tier
	sub.PeriodStart = start.UTC()
	sub.PeriodEnd = end.UTC()
	sub.UpdatedAt = now
	if providerSubID != "" {
		sub.ProviderSubID = providerSubID
	}

	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, err
	}
	s.invalidate(ctx, tenantID)

	s.log.InfoContext(ctx, "subscription activated",
		logger.TenantID(tenantID), logger.Tier(string(tier)), slog.String("previous_tier", string(previous)))
	return sub, nil
}

func (s *service) Cancel(ctx context.Context, tenantID uuid.UUID) error {
	sub, err := s.repo.GetActiveSubscription(ctx, tenantID)
	if err != nil {
		return err
	}
	return s.cancel(ctx, sub)
}

func (s *service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhooks == nil {
		return ErrWebhooksNotConfigured
	}
	event, err := s.webhooks.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return err
	}

	log := s.log.With(logger.EventType(event.ProviderEvent), slog.String("event_id", event.EventID))

	switch event.Type {
	case EventActivated:
		if event.TenantID == uuid.Nil {
			return ErrMissingTenantID
		}
		tier, ok := s.catalog.TierByPriceID(event.PriceID)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPrice, event.PriceID)
		}
		_, err := s.Activate(ctx, event.TenantID, tier, event.SubscriptionID, event.PeriodStart, event.PeriodEnd)
		return err

	case EventCancelled:
		sub, err := s.subscriptionFor(ctx, event)
		if errors.Is(err, entitlement.ErrSubscriptionNotFound) {
			log.InfoContext(ctx, "no active subscription to cancel", slog.String("provider_sub_id", event.SubscriptionID))
			return nil
		}
		if err != nil {
			return err
		}
		return s.cancel(ctx, sub)

	default:
		log.DebugContext(ctx, "webhook ignored")
		return nil
	}
}

// subscriptionFor finds the active subscription a cancellation targets.
// Refunds carry no custom_data, so those are matched by provider id.
func (s *service) subscriptionFor(ctx context.Context, e *WebhookEvent) (*entitlement.Subscription, error) {
	tenantID := e.TenantID
	if tenantID == uuid.Nil {
		sub, err := s.repo.GetByProviderSubID(ctx, e.SubscriptionID)
		if err != nil {
			return nil, err
		}
		tenantID = sub.TenantID
	}

	sub, err := s.repo.GetActiveSubscription(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	// a stale event for a replaced subscription must not cancel the new one
	if e.SubscriptionID != "" && sub.ProviderSubID != "" && sub.ProviderSubID != e.SubscriptionID {
		return nil, entitlement.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *service) cancel(ctx context.Context, sub *entitlement.Subscription) error {
	now := s.now().UTC()
	sub.Status = entitlement.StatusCancelled
	sub.CancelledAt = &now
	sub.UpdatedAt = now

	if err := s.repo.Save(ctx, sub); err != nil {
		return err
	}
	s.invalidate(ctx, sub.TenantID)

	s.log.InfoContext(ctx, "subscription cancelled",
		logger.TenantID(sub.TenantID), logger.Tier(string(sub.Tier)))
	return nil
}

// invalidate failures are logged; the entry expires with its TTL.
func (s *service) invalidate(ctx context.Context, tenantID uuid.UUID) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, tenantID); err != nil {
		s.log.WarnContext(ctx, "subscription cache invalidation failed", logger.TenantID(tenantID), logger.Error(err))
	}
}
