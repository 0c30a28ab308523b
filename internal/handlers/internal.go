package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/launchpad/api/internal/platform/auth"
	"github.com/launchpad/api/internal/platform/httpx"
	"github.com/launchpad/api/internal/platform/requestctx"
	"github.com/launchpad/api/internal/services"
)

const defaultIdempotencyCleanupLimit = 500

// IdempotencyCleaner removes expired idempotency records.
type IdempotencyCleaner interface {
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// MaintenanceHandlers exposes scheduler driven maintenance tasks. The router guards them with OIDC.
type MaintenanceHandlers struct {
	builder      services.BuilderService
	idempotency  IdempotencyCleaner
	cleanupLimit int
	clock        func() time.Time
}

// MaintenanceOption customises MaintenanceHandlers.
type MaintenanceOption func(*MaintenanceHandlers)

// WithMaintenanceIdempotency enables the idempotency cleanup task.
func WithMaintenanceIdempotency(cleaner IdempotencyCleaner, limit int) MaintenanceOption {
	return func(h *MaintenanceHandlers) {
		h.idempotency = cleaner
		if limit > 0 {
			h.cleanupLimit = limit
		}
	}
}

// WithMaintenanceClock overrides the clock used for expiry comparisons.
func WithMaintenanceClock(clock func() time.Time) MaintenanceOption {
	return func(h *MaintenanceHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewMaintenanceHandlers constructs maintenance handlers.
func NewMaintenanceHandlers(builder services.BuilderService, opts ...MaintenanceOption) *MaintenanceHandlers {
	h := &MaintenanceHandlers{
		builder:      builder,
		cleanupLimit: defaultIdempotencyCleanupLimit,
		clock:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /internal maintenance endpoints.
func (h *MaintenanceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/maintenance/builder-sweep", h.sweepBuilder)
	r.Post("/maintenance/idempotency-cleanup", h.cleanupIdempotency)
}

type maintenanceResponse struct {
	Task    string `json:"task"`
	Removed int    `json:"removed"`
}

func (h *MaintenanceHandlers) sweepBuilder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.builder == nil {
		httpx.WriteError(ctx, w, httpx.NewError("builder_unavailable", "builder service unavailable", http.StatusServiceUnavailable))
		return
	}
	removed := h.builder.Sweep(ctx)
	logMaintenance(ctx, "builder-sweep", removed)
	writeJSONResponse(w, http.StatusOK, maintenanceResponse{Task: "builder-sweep", Removed: removed})
}

func (h *MaintenanceHandlers) cleanupIdempotency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.idempotency == nil {
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_unavailable", "idempotency store unavailable", http.StatusServiceUnavailable))
		return
	}
	removed, err := h.idempotency.CleanupExpired(ctx, h.clock().UTC(), h.cleanupLimit)
	if err != nil {
		requestctx.Logger(ctx).Error("idempotency cleanup failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("cleanup_failed", "idempotency cleanup failed", http.StatusServiceUnavailable))
		return
	}
	logMaintenance(ctx, "idempotency-cleanup", removed)
	writeJSONResponse(w, http.StatusOK, maintenanceResponse{Task: "idempotency-cleanup", Removed: removed})
}

func logMaintenance(ctx context.Context, task string, removed int) {
	fields := []zap.Field{zap.String("task", task), zap.Int("removed", removed)}
	if caller, ok := auth.ServiceIdentityFromContext(ctx); ok {
		fields = append(fields, zap.String("caller", caller.Email))
	}
	requestctx.Logger(ctx).Info("maintenance task finished", fields...)
}
