package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/launchpad/api/internal/platform/auth"
	"github.com/launchpad/api/internal/platform/httpx"
	"github.com/launchpad/api/internal/platform/requestctx"
	"github.com/launchpad/api/internal/services"
)

// ConnectHandlers exposes Stripe Connect onboarding to sellers.
type ConnectHandlers struct {
	authn   *auth.Authenticator
	connect services.ConnectService
}

// NewConnectHandlers constructs Connect handlers guarded by seller authentication.
func NewConnectHandlers(authn *auth.Authenticator, connect services.ConnectService) *ConnectHandlers {
	return &ConnectHandlers{authn: authn, connect: connect}
}

// Routes registers the /connect endpoints.
func (h *ConnectHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireSeller())
	}
	r.Post("/onboarding", h.onboard)
	r.Get("/status", h.status)
}

type onboardingResponse struct {
	AccountID string         `json:"accountId"`
	URL       string         `json:"url"`
	Seller    sellerResponse `json:"seller"`
}

func (h *ConnectHandlers) onboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.seller(w, r)
	if !ok {
		return
	}
	onboarding, err := h.connect.Onboard(ctx, services.OnboardCommand{
		SellerUID: identity.UID,
		Email:     identity.Email,
	})
	if err != nil {
		writeConnectError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, onboardingResponse{
		AccountID: onboarding.AccountID,
		URL:       onboarding.URL,
		Seller:    newSellerResponse(onboarding.Profile),
	})
}

func (h *ConnectHandlers) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.seller(w, r)
	if !ok {
		return
	}
	profile, err := h.connect.Status(ctx, identity.UID)
	if err != nil {
		writeConnectError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newSellerResponse(profile))
}

func (h *ConnectHandlers) seller(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	ctx := r.Context()
	if h.connect == nil {
		httpx.WriteError(ctx, w, httpx.NewError("connect_unavailable", "payout onboarding unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeConnectError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrConnectInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid onboarding request", http.StatusBadRequest))
	default:
		requestctx.Logger(ctx).Error("connect request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("connect_unavailable", "payout onboarding unavailable", http.StatusServiceUnavailable))
	}
}
