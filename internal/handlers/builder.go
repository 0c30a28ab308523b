package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/launchpad/api/internal/builder"
	"github.com/launchpad/api/internal/domain"
	"github.com/launchpad/api/internal/platform/auth"
	"github.com/launchpad/api/internal/platform/httpx"
	"github.com/launchpad/api/internal/platform/requestctx"
	"github.com/launchpad/api/internal/render"
	"github.com/launchpad/api/internal/services"
)

const maxBuilderBodySize = 256 * 1024

// BuilderHandlers exposes the sales page wizard to authenticated sellers.
type BuilderHandlers struct {
	authn     *auth.Authenticator
	builder   services.BuilderService
	renderer  *render.HTMLRenderer
	publishMW []func(http.Handler) http.Handler
}

// BuilderOption customises BuilderHandlers.
type BuilderOption func(*BuilderHandlers)

// WithBuilderRenderer enables the HTML fragment in preview responses.
func WithBuilderRenderer(renderer *render.HTMLRenderer) BuilderOption {
	return func(h *BuilderHandlers) {
		h.renderer = renderer
	}
}

// WithBuilderPublishMiddlewares wraps the publish endpoint, typically with idempotency.
func WithBuilderPublishMiddlewares(mw ...func(http.Handler) http.Handler) BuilderOption {
	return func(h *BuilderHandlers) {
		for _, m := range mw {
			if m != nil {
				h.publishMW = append(h.publishMW, m)
			}
		}
	}
}

// NewBuilderHandlers constructs wizard handlers guarded by seller authentication.
func NewBuilderHandlers(authn *auth.Authenticator, svc services.BuilderService, opts ...BuilderOption) *BuilderHandlers {
	h := &BuilderHandlers{authn: authn, builder: svc}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /builder endpoints.
func (h *BuilderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireSeller())
	}
	r.Post("/sessions", h.start)
	r.Route("/sessions/{sessionID}", func(s chi.Router) {
		s.Get("/", h.get)
		s.Patch("/", h.apply)
		s.Delete("/", h.discard)
		s.Post("/next", h.next)
		s.Post("/back", h.back)
		s.Post("/move", h.move)
		s.Put("/preview-mode", h.setPreviewMode)
		s.Get("/preview", h.preview)
		s.With(h.publishMW...).Post("/publish", h.publish)
		s.Get("/videos/{index}", h.videoState)
		s.Post("/videos/{index}/play", h.playVideo)
		s.Post("/videos/{index}/resume", h.resumeVideo)
	})
}

type builderPreviewResponse struct {
	Session snapshotResponse `json:"session"`
	Page    render.Page      `json:"page"`
	HTML    string           `json:"html,omitempty"`
}

type moveElementRequest struct {
	Kind      string `json:"kind"`
	Direction string `json:"direction"`
}

type previewModeRequest struct {
	Mode string `json:"mode"`
}

func (h *BuilderHandlers) start(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.seller(w, r)
	if !ok {
		return
	}
	snapshot, err := h.builder.Start(r.Context(), identity.UID)
	if err != nil {
		writeBuilderError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, newSnapshotResponse(snapshot))
}

func (h *BuilderHandlers) get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(ctx context.Context, ownerID, sessionID string) (services.BuilderSnapshot, error) {
		return h.builder.Get(ctx, ownerID, sessionID)
	})
}

func (h *BuilderHandlers) apply(w http.ResponseWriter, r *http.Request) {
	var req productPatchRequest
	if e := decodeJSONBody(r, maxBuilderBodySize, &req); e != nil {
		httpx.WriteError(r.Context(), w, *e)
		return
	}
	patch, fields := req.toPatch()
	if len(fields) > 0 {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "unsupported field values", http.StatusBadRequest).WithFields(fields))
		return
	}
	h.respond(w, r, func(ctx context.Context, ownerID, sessionID string) (services.BuilderSnapshot, error) {
		return h.builder.Apply(ctx, ownerID, sessionID, patch)
	})
}

func (h *BuilderHandlers) next(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(ctx context.Context, ownerID, sessionID string) (services.BuilderSnapshot, error) {
		return h.builder.Next(ctx, ownerID, sessionID)
	})
}

func (h *BuilderHandlers) back(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(ctx context.Context, ownerID, sessionID string) (services.BuilderSnapshot, error) {
		return h.builder.Back(ctx, ownerID, sessionID)
	})
}

func (h *BuilderHandlers) move(w http.ResponseWriter, r *http.Request) {
	var req moveElementRequest
	if e := decodeJSONBody(r, 0, &req); e != nil {
		httpx.WriteError(r.Context(), w, *e)
		return
	}
	kind, dir, fields := parseMove(req)
	if fields != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "invalid move", http.StatusBadRequest).WithFields(fields))
		return
	}
	h.respond(w, r, func(ctx context.Context, ownerID, sessionID string) (services.BuilderSnapshot, error) {
		return h.builder.MoveElement(ctx, services.MoveElementCommand{
			OwnerID:   ownerID,
			SessionID: sessionID,
			Kind:      kind,
			Direction: dir,
		})
	})
}

func (h *BuilderHandlers) setPreviewMode(w http.ResponseWriter, r *http.Request) {
	var req previewModeRequest
	if e := decodeJSONBody(r, 0, &req); e != nil {
		httpx.WriteError(r.Context(), w, *e)
		return
	}
	mode, ok := domain.ParseViewMode(req.Mode)
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "mode must be locked or unlocked", http.StatusBadRequest))
		return
	}
	h.respond(w, r, func(ctx context.Context, ownerID, sessionID string) (services.BuilderSnapshot, error) {
		return h.builder.SetPreviewMode(ctx, ownerID, sessionID, mode)
	})
}

func (h *BuilderHandlers) preview(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.seller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	preview, err := h.builder.Preview(ctx, identity.UID, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeBuilderError(ctx, w, err)
		return
	}
	resp := builderPreviewResponse{
		Session: newSnapshotResponse(preview.Snapshot),
		Page:    preview.Page,
	}
	if h.renderer != nil {
		fragment, err := h.renderer.Sections(preview.Page)
		if err != nil {
			requestctx.Logger(ctx).Error("builder preview render failed", zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("render_failed", "failed to render preview", http.StatusInternalServerError))
			return
		}
		resp.HTML = string(fragment)
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *BuilderHandlers) publish(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.seller(w, r)
	if !ok {
		return
	}
	snapshot, err := h.builder.Publish(r.Context(), identity.UID, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeBuilderError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, newSnapshotResponse(snapshot))
}

func (h *BuilderHandlers) discard(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.seller(w, r)
	if !ok {
		return
	}
	if err := h.builder.Discard(r.Context(), identity.UID, chi.URLParam(r, "sessionID")); err != nil {
		writeBuilderError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BuilderHandlers) videoState(w http.ResponseWriter, r *http.Request) {
	h.respondVideo(w, r, func(ctx context.Context, cmd services.VideoCommand) (services.PlayerView, error) {
		return h.builder.VideoState(ctx, cmd)
	})
}

func (h *BuilderHandlers) playVideo(w http.ResponseWriter, r *http.Request) {
	h.respondVideo(w, r, func(ctx context.Context, cmd services.VideoCommand) (services.PlayerView, error) {
		return h.builder.PlayVideo(ctx, cmd)
	})
}

func (h *BuilderHandlers) resumeVideo(w http.ResponseWriter, r *http.Request) {
	h.respondVideo(w, r, func(ctx context.Context, cmd services.VideoCommand) (services.PlayerView, error) {
		return h.builder.ResumeVideo(ctx, cmd)
	})
}

func (h *BuilderHandlers) respond(w http.ResponseWriter, r *http.Request, call func(ctx context.Context, ownerID, sessionID string) (services.BuilderSnapshot, error)) {
	identity, ok := h.seller(w, r)
	if !ok {
		return
	}
	snapshot, err := call(r.Context(), identity.UID, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeBuilderError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newSnapshotResponse(snapshot))
}

func (h *BuilderHandlers) respondVideo(w http.ResponseWriter, r *http.Request, call func(context.Context, services.VideoCommand) (services.PlayerView, error)) {
	identity, ok := h.seller(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "video index must be a non-negative integer", http.StatusBadRequest))
		return
	}
	view, err := call(r.Context(), services.VideoCommand{
		OwnerID:   identity.UID,
		SessionID: chi.URLParam(r, "sessionID"),
		Index:     index,
	})
	if err != nil {
		writeBuilderError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

func (h *BuilderHandlers) seller(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	ctx := r.Context()
	if h.builder == nil {
		httpx.WriteError(ctx, w, httpx.NewError("builder_unavailable", "builder service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func parseMove(req moveElementRequest) (domain.ElementKind, domain.Direction, map[string]string) {
	fields := map[string]string{}
	kind, ok := domain.ParseElementKind(req.Kind)
	if !ok {
		fields["kind"] = "unknown section"
	}
	dir, ok := domain.ParseDirection(req.Direction)
	if !ok {
		fields["direction"] = "must be up or down"
	}
	if len(fields) > 0 {
		return "", "", fields
	}
	return kind, dir, nil
}

func writeBuilderError(ctx context.Context, w http.ResponseWriter, err error) {
	if writeValidationError(ctx, w, err) {
		return
	}
	switch {
	case errors.Is(err, services.ErrBuilderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid builder request", http.StatusBadRequest))
	case errors.Is(err, services.ErrBuilderSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "builder session not found", http.StatusNotFound))
	case errors.Is(err, builder.ErrSessionClosed):
		httpx.WriteError(ctx, w, httpx.NewError("session_closed", "builder session is closed", http.StatusGone))
	case errors.Is(err, services.ErrBuilderSessionLimit):
		httpx.WriteError(ctx, w, httpx.NewError("session_limit", "too many open builder sessions", http.StatusTooManyRequests))
	case errors.Is(err, builder.ErrInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", "that step is not available from here", http.StatusConflict))
	case errors.Is(err, builder.ErrPublishInProgress):
		httpx.WriteError(ctx, w, httpx.NewError("publish_in_progress", "publish already in progress", http.StatusConflict))
	case errors.Is(err, builder.ErrSessionFinished):
		httpx.WriteError(ctx, w, httpx.NewError("session_finished", "sales page already published", http.StatusConflict))
	case errors.Is(err, builder.ErrReorderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("reorder_unavailable", err.Error(), http.StatusConflict))
	case errors.Is(err, builder.ErrPlayerNotPlayable):
		httpx.WriteError(ctx, w, httpx.NewError("video_not_playable", err.Error(), http.StatusConflict))
	case errors.Is(err, builder.ErrPlayerClosed):
		httpx.WriteError(ctx, w, httpx.NewError("session_closed", "video player closed", http.StatusGone))
	default:
		writeProductError(ctx, w, err)
	}
}
