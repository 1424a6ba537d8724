package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"
)

// PaddleConfig holds the Paddle webhook settings.
type PaddleConfig struct {
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
}

// SignatureHeader carries the Paddle webhook signature.
const SignatureHeader = "Paddle-Signature"

// EventType is a normalized billing event.
type EventType string

const (
	// EventActivated starts or changes the tenant's paid plan.
	EventActivated EventType = "activated"
	// EventCancelled ends the tenant's paid plan.
	EventCancelled EventType = "cancelled"
	// EventIgnored needs no lifecycle change.
	EventIgnored EventType = "ignored"
)

// WebhookEvent is a verified provider notification reduced to what the
// subscription lifecycle needs.
type WebhookEvent struct {
	Type           EventType
	ProviderEvent  string
	EventID        string
	TenantID       uuid.UUID // uuid.Nil when the payload carries no custom_data
	SubscriptionID string
	PriceID        string
	Status         string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	OccurredAt     time.Time
}

// WebhookParser verifies and normalizes provider webhooks.
type WebhookParser interface {
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// PaddleWebhooks verifies Paddle signatures with the official SDK.
type PaddleWebhooks struct {
	verifier *paddle.WebhookVerifier
}

func NewPaddleWebhooks(cfg PaddleConfig) (*PaddleWebhooks, error) {
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	return &PaddleWebhooks{verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret)}, nil
}

func (p *PaddleWebhooks) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	// the verifier works on requests, so rebuild one around the payload
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhooks/paddle", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set(SignatureHeader, signature)

	ok, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !ok {
		return nil, ErrWebhookVerificationFailed
	}

	return parsePaddleEvent(payload)
}

type paddleNotification struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type paddlePeriod struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

type paddleItem struct {
	PriceID string `json:"price_id"`
	Price   *struct {
		ID string `json:"id"`
	} `json:"price"`
}

// paddleEntity covers the subscription, transaction and adjustment fields read here.
type paddleEntity struct {
	ID                   string         `json:"id"`
	Status               string         `json:"status"`
	Action               string         `json:"action"`
	SubscriptionID       string         `json:"subscription_id"`
	CustomData           map[string]any `json:"custom_data"`
	Items                []paddleItem   `json:"items"`
	CurrentBillingPeriod *paddlePeriod  `json:"current_billing_period"`
	BillingPeriod        *paddlePeriod  `json:"billing_period"`
}

func parsePaddleEvent(payload []byte) (*WebhookEvent, error) {
	var n paddleNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, errors.Join(ErrMalformedWebhook, err)
	}
	var data paddleEntity
	if len(n.Data) > 0 {
		if err := json.Unmarshal(n.Data, &data); err != nil {
			return nil, errors.Join(ErrMalformedWebhook, err)
		}
	}

	event := &WebhookEvent{
		Type:          EventIgnored,
		ProviderEvent: n.EventType,
		EventID:       n.EventID,
		Status:        data.Status,
		OccurredAt:    n.OccurredAt,
	}

	if raw, ok := data.CustomData["tenant_id"].(string); ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.Join(ErrMalformedWebhook, fmt.Errorf("custom_data.tenant_id: %w", err))
		}
		event.TenantID = id
	}
	if len(data.Items) > 0 {
		item := data.Items[0]
		event.PriceID = item.PriceID
		if event.PriceID == "" && item.Price != nil {
			event.PriceID = item.Price.ID
		}
	}

	switch n.EventType {
	case "subscription.created", "subscription.activated", "subscription.updated", "subscription.resumed":
		event.SubscriptionID = data.ID
		setPeriod(event, data.CurrentBillingPeriod)
		switch data.Status {
		case "active", "trialing":
			event.Type = EventActivated
		case "canceled":
			event.Type = EventCancelled
		}
	case "subscription.canceled":
		event.SubscriptionID = data.ID
		event.Type = EventCancelled
	case "transaction.completed":
		// one-off purchases carry no subscription and change no plan
		if data.SubscriptionID != "" {
			event.SubscriptionID = data.SubscriptionID
			setPeriod(event, data.BillingPeriod)
			event.Type = EventActivated
		}
	case "adjustment.created", "adjustment.updated":
		event.SubscriptionID = data.SubscriptionID
		if data.Action == "refund" && data.Status == "approved" && data.SubscriptionID != "" {
			event.Type = EventCancelled
		}
	}

	return event, nil
}

func setPeriod(e *WebhookEvent, p *paddlePeriod) {
	if p == nil {
		return
	}
	e.PeriodStart = p.StartsAt
	e.PeriodEnd = p.EndsAt
}
