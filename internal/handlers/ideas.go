package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/launchpad/api/internal/platform/auth"
	"github.com/launchpad/api/internal/platform/httpx"
	"github.com/launchpad/api/internal/platform/requestctx"
	"github.com/launchpad/api/internal/services"
)

const (
	maxIdeaBodySize        = 128 * 1024
	defaultIdeaRateLimit   = 5
	defaultIdeaRateWindow  = time.Minute
	ideaGeneratedAtHeader  = "X-Generated-At"
	ideaResponseMediaType  = "application/json"
	ideaRateLimitedMessage = "too many idea requests, try again shortly"
)

// IdeaHandlers forwards the product idea questionnaire to the co-pilot.
type IdeaHandlers struct {
	authn   *auth.Authenticator
	ideas   services.IdeaService
	limiter rateLimiter
}

// NewIdeaHandlers constructs idea handlers guarded by seller authentication and a per-seller rate limit.
func NewIdeaHandlers(authn *auth.Authenticator, ideas services.IdeaService) *IdeaHandlers {
	return &IdeaHandlers{
		authn:   authn,
		ideas:   ideas,
		limiter: newWindowLimiter(defaultIdeaRateLimit, defaultIdeaRateWindow, nil),
	}
}

// Routes registers the /ideas endpoint.
func (h *IdeaHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireSeller())
	}
	r.Post("/", h.suggest)
}

type ideaRequest struct {
	Answers map[string]string `json:"answers"`
}

func (h *IdeaHandlers) suggest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.ideas == nil {
		httpx.WriteError(ctx, w, httpx.NewError("ideas_unavailable", "idea co-pilot unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	if !allow(h.limiter, sellerKey(identity.UID)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", ideaRateLimitedMessage, http.StatusTooManyRequests))
		return
	}

	var req ideaRequest
	if e := decodeJSONBody(r, maxIdeaBodySize, &req); e != nil {
		httpx.WriteError(ctx, w, *e)
		return
	}
	suggestion, err := h.ideas.SuggestIdeas(ctx, services.IdeaCommand{
		SellerUID: identity.UID,
		Answers:   req.Answers,
	})
	switch {
	case errors.Is(err, services.ErrIdeaInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "answer at least one question, keeping each answer short", http.StatusBadRequest))
		return
	case err != nil:
		requestctx.Logger(ctx).Warn("idea request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("ideas_unavailable", "idea co-pilot unavailable", http.StatusBadGateway))
		return
	}

	w.Header().Set("Content-Type", ideaResponseMediaType)
	w.Header().Set("Cache-Control", "no-store")
	if !suggestion.GeneratedAt.IsZero() {
		w.Header().Set(ideaGeneratedAtHeader, formatTime(suggestion.GeneratedAt))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(suggestion.Body)
}
