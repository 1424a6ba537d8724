package gating_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/stratplan/modules/gating"
	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/pkg/tenant"
	"github.com/dmitrymomot/stratplan/svc/billing"
	"github.com/dmitrymomot/stratplan/svc/planning"
)

const (
	webhookSecret = "pdl_ntfset_test_secret"
	proPriceID    = "pri_01stratplan_pro_monthly"
	upgradeURL    = "https://app.example.com/billing/upgrade"
)

type fixture struct {
	catalog *entitlement.Catalog
	billing billing.Service
	metrics *gating.Metrics
	router  http.Handler
}

// failingSubscriptions simulates an unreachable subscription store.
type failingSubscriptions struct{}

func (failingSubscriptions) GetActiveSubscription(context.Context, uuid.UUID) (*entitlement.Subscription, error) {
	return nil, fmt.Errorf("dial tcp 10.0.0.5:5432: connection refused")
}

func setup(t *testing.T) *fixture {
	t.Helper()
	return setupWith(t, nil)
}

// setupWith builds the full stack on memory stores. A non-nil subs replaces
// the billing repository as the evaluator's subscription source.
func setupWith(t *testing.T, subs entitlement.SubscriptionStore) *fixture {
	t.Helper()

	cat, err := entitlement.NewCatalog(context.Background(), entitlement.NewYAMLSource("../../configs/plans.yaml"))
	require.NoError(t, err)

	repo := billing.NewMemoryRepository()
	if subs == nil {
		subs = repo
	}
	store := planning.NewMemoryStore()
	eval := entitlement.NewEvaluator(cat, subs, entitlement.WithUsageCounter(store))

	webhooks, err := billing.NewPaddleWebhooks(billing.PaddleConfig{WebhookSecret: webhookSecret})
	require.NoError(t, err)

	f := &fixture{
		catalog: cat,
		billing: billing.NewService(repo, cat, webhooks),
		metrics: gating.NewMetrics(prometheus.NewRegistry()),
	}
	f.router = gating.Router(gating.RouterOptions{
		Evaluator:  eval,
		Catalog:    cat,
		Planning:   planning.NewService(store, eval),
		Billing:    f.billing,
		Metrics:    f.metrics,
		UpgradeURL: upgradeURL,
	})
	return f
}

func (f *fixture) subscribe(t *testing.T, tenantID uuid.UUID, tier entitlement.Tier) {
	t.Helper()
	_, err := f.billing.Activate(context.Background(), tenantID, tier, "", time.Time{}, time.Time{})
	require.NoError(t, err)
}

func (f *fixture) do(t *testing.T, method, path string, tenantID uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tenantID != uuid.Nil {
		req.Header.Set(tenant.DefaultHeader, tenantID.String())
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) decisions(kind, name, outcome string) float64 {
	return testutil.ToFloat64(f.metrics.Decisions().WithLabelValues(kind, name, outcome))
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func data[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &v))
	return v
}

func sign(payload []byte) string {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(ts + ":"))
	mac.Write(payload)
	return fmt.Sprintf("ts=%s;h1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
