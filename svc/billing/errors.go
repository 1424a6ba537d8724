package billing

import "errors"

var (
	ErrSubscriptionConflict = errors.New("tenant already has an active subscription")
	ErrUnknownPrice         = errors.New("price id does not map to a plan")
	ErrMissingTenantID      = errors.New("tenant id is missing from webhook")
	ErrInvalidPeriod        = errors.New("billing period ends before it starts")

	ErrMissingWebhookSecret      = errors.New("paddle webhook secret is required")
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
	ErrMalformedWebhook          = errors.New("malformed webhook payload")
	ErrWebhooksNotConfigured     = errors.New("billing webhooks are not configured")
)
