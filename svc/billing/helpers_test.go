package billing_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/svc/billing"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) GetActiveSubscription(ctx context.Context, tenantID uuid.UUID) (*entitlement.Subscription, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Subscription), args.Error(1)
}

func (m *mockRepository) GetByProviderSubID(ctx context.Context, providerSubID string) (*entitlement.Subscription, error) {
	args := m.Called(ctx, providerSubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Subscription), args.Error(1)
}

func (m *mockRepository) Save(ctx context.Context, sub *entitlement.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

type mockWebhooks struct {
	mock.Mock
}

func (m *mockWebhooks) ParseWebhook(ctx context.Context, payload []byte, signature string) (*billing.WebhookEvent, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.WebhookEvent), args.Error(1)
}

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	return m.Called(ctx, tenantID).Error(0)
}

// catalog loads the shipped plan catalog.
func catalog(t *testing.T) *entitlement.Catalog {
	t.Helper()
	c, err := entitlement.NewCatalog(context.Background(), entitlement.NewYAMLSource("../../configs/plans.yaml"))
	require.NoError(t, err)
	return c
}

const (
	proPriceID        = "pri_01stratplan_pro_monthly"
	enterprisePriceID = "pri_01stratplan_enterprise_monthly"
)
