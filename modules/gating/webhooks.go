package gating

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrymomot/stratplan/handler"
	"github.com/dmitrymomot/stratplan/svc/billing"
)

const maxWebhookBody = 1 << 20

func (m *module) paddleWebhook(ctx handler.Context, _ struct{}) handler.Response {
	r := ctx.Request()
	payload, err := io.ReadAll(http.MaxBytesReader(ctx.ResponseWriter(), r.Body, maxWebhookBody))
	if err != nil {
		return m.fail(errors.Join(billing.ErrMalformedWebhook, err))
	}

	if err := m.billing.HandleWebhook(ctx, payload, r.Header.Get(billing.SignatureHeader)); err != nil {
		return m.fail(err)
	}
	return handler.JSON(map[string]bool{"received": true})
}
