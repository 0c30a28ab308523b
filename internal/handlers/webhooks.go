package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/launchpad/api/internal/platform/httpx"
	"github.com/launchpad/api/internal/platform/requestctx"
	"github.com/launchpad/api/internal/services"
)

const (
	maxWebhookBodySize    = 512 * 1024
	stripeSignatureHeader = "Stripe-Signature"
)

// WebhookHandlers receives payment provider callbacks.
type WebhookHandlers struct {
	sales services.SalesService
}

// NewWebhookHandlers constructs webhook handlers. Authenticity comes from the payload signature.
func NewWebhookHandlers(sales services.SalesService) *WebhookHandlers {
	return &WebhookHandlers{sales: sales}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.stripe)
}

type webhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"eventId,omitempty"`
	EventType string `json:"eventType,omitempty"`
	Applied   bool   `json:"applied"`
}

func (h *WebhookHandlers) stripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sales == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhooks_unavailable", "webhook processing unavailable", http.StatusServiceUnavailable))
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize+1))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
		return
	}
	if len(payload) > maxWebhookBodySize {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", errBodyTooLarge.Error(), http.StatusRequestEntityTooLarge))
		return
	}

	result, err := h.sales.HandleWebhook(ctx, payload, r.Header.Get(stripeSignatureHeader))
	if err != nil {
		logger := requestctx.Logger(ctx)
		switch {
		case errors.Is(err, services.ErrWebhookInvalidSignature):
			logger.Warn("stripe webhook rejected", zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		case errors.Is(err, services.ErrWebhookInvalidPayload):
			logger.Warn("stripe webhook payload invalid", zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", "webhook payload invalid", http.StatusBadRequest))
		default:
			// A 5xx makes Stripe redeliver.
			logger.Error("stripe webhook failed", zap.String("event_id", result.EventID), zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("webhook_failed", "webhook processing failed", http.StatusServiceUnavailable))
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, webhookResponse{
		Received:  true,
		EventID:   result.EventID,
		EventType: result.EventType,
		Applied:   result.Applied,
	})
}
