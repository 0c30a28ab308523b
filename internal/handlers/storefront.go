package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/launchpad/api/internal/domain"
	"github.com/launchpad/api/internal/platform/auth"
	"github.com/launchpad/api/internal/platform/httpx"
	"github.com/launchpad/api/internal/platform/requestctx"
	"github.com/launchpad/api/internal/render"
	"github.com/launchpad/api/internal/services"
)

const (
	purchasedParam            = "purchased"
	defaultCheckoutRateLimit  = 10
	defaultCheckoutRateWindow = time.Minute
	viewWriteTimeout          = 5 * time.Second

	notFoundTitle      = "Page not found"
	notFoundMessage    = "This page doesn't exist or is no longer available."
	unavailableTitle   = "Something went wrong"
	unavailableMessage = "We couldn't load this page. Please try again in a moment."
)

// StorefrontHandlers serves published sales pages, as HTML under /p and as JSON under the public API.
type StorefrontHandlers struct {
	products   services.ProductService
	checkout   services.CheckoutService
	renderer   *render.HTMLRenderer
	checkoutMW []func(http.Handler) http.Handler
	limiter    rateLimiter
	views      sync.WaitGroup
}

// StorefrontOption customises StorefrontHandlers.
type StorefrontOption func(*StorefrontHandlers)

// WithStorefrontCheckout wires checkout creation.
func WithStorefrontCheckout(svc services.CheckoutService) StorefrontOption {
	return func(h *StorefrontHandlers) {
		h.checkout = svc
	}
}

// WithStorefrontRenderer sets the HTML renderer for /p pages.
func WithStorefrontRenderer(renderer *render.HTMLRenderer) StorefrontOption {
	return func(h *StorefrontHandlers) {
		h.renderer = renderer
	}
}

// WithStorefrontCheckoutMiddlewares wraps the JSON checkout endpoint.
func WithStorefrontCheckoutMiddlewares(mw ...func(http.Handler) http.Handler) StorefrontOption {
	return func(h *StorefrontHandlers) {
		for _, m := range mw {
			if m != nil {
				h.checkoutMW = append(h.checkoutMW, m)
			}
		}
	}
}

// WithStorefrontCheckoutRateLimit caps checkout attempts per client address. A zero limit disables it.
func WithStorefrontCheckoutRateLimit(limit int, window time.Duration, clock func() time.Time) StorefrontOption {
	return func(h *StorefrontHandlers) {
		h.limiter = newWindowLimiter(limit, window, clock)
	}
}

// NewStorefrontHandlers constructs storefront handlers for published products.
func NewStorefrontHandlers(products services.ProductService, opts ...StorefrontOption) *StorefrontHandlers {
	h := &StorefrontHandlers{
		products: products,
		limiter:  newWindowLimiter(defaultCheckoutRateLimit, defaultCheckoutRateWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the HTML pages. Mount at /p.
func (h *StorefrontHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{ownerID}/{productID}", h.page)
	r.Post("/{ownerID}/{productID}/checkout", h.pageCheckout)
}

// APIRoutes registers the JSON endpoints. Mount under the public API group.
func (h *StorefrontHandlers) APIRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products/{ownerID}/{productID}", h.getPublic)
	r.With(h.checkoutMW...).Post("/products/{ownerID}/{productID}/checkout", h.createCheckout)
}

type publicProductResponse struct {
	Page        render.Page `json:"page"`
	PublicURL   string      `json:"publicUrl"`
	CheckoutURL string      `json:"checkoutUrl,omitempty"`
}

type checkoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

func (h *StorefrontHandlers) page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil || h.renderer == nil {
		http.Error(w, "Storefront unavailable", http.StatusServiceUnavailable)
		return
	}
	product, ok := h.loadPage(w, r)
	if !ok {
		return
	}
	h.writeDocument(w, r, http.StatusOK, product, isPurchased(r), "")
	h.recordView(ctx, product)
}

func (h *StorefrontHandlers) pageCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil || h.renderer == nil {
		http.Error(w, "Storefront unavailable", http.StatusServiceUnavailable)
		return
	}
	if h.checkout == nil {
		h.renderCheckoutFailure(w, r, http.StatusServiceUnavailable, "Checkout is unavailable right now.")
		return
	}
	if !allow(h.limiter, buyerKey(r)) {
		h.renderCheckoutFailure(w, r, http.StatusTooManyRequests, "Too many checkout attempts. Please wait a moment and try again.")
		return
	}
	session, err := h.checkout.CreateCheckout(ctx, h.checkoutCommand(r))
	if err != nil {
		status, _, message := checkoutFailure(err)
		if status == http.StatusNotFound {
			h.writeNotice(w, r, http.StatusNotFound, notFoundTitle, notFoundMessage)
			return
		}
		requestctx.Logger(ctx).Warn("storefront checkout failed", zap.Error(err))
		h.renderCheckoutFailure(w, r, status, message)
		return
	}
	http.Redirect(w, r, session.URL, http.StatusSeeOther)
}

func (h *StorefrontHandlers) getPublic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		httpx.WriteError(ctx, w, httpx.NewError("products_unavailable", "product service unavailable", http.StatusServiceUnavailable))
		return
	}
	product, err := h.products.GetPublic(ctx, chi.URLParam(r, "ownerID"), chi.URLParam(r, "productID"))
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	mode := domain.ModeLocked
	if isPurchased(r) {
		mode = domain.ModeUnlocked
	}
	writeJSONResponse(w, http.StatusOK, publicProductResponse{
		Page:      render.Render(product, mode),
		PublicURL: h.products.PublicURL(product.OwnerID, product.ID),
	})
	h.recordView(ctx, product)
}

func (h *StorefrontHandlers) createCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}
	if !allow(h.limiter, buyerKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts", http.StatusTooManyRequests))
		return
	}
	session, err := h.checkout.CreateCheckout(ctx, h.checkoutCommand(r))
	if err != nil {
		status, code, message := checkoutFailure(err)
		if status >= http.StatusInternalServerError {
			requestctx.Logger(ctx).Error("checkout failed", zap.Error(err))
		}
		httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
		return
	}
	writeJSONResponse(w, http.StatusCreated, checkoutResponse{
		SessionID: session.ID,
		URL:       session.URL,
		ExpiresAt: formatTime(session.ExpiresAt),
	})
}

func (h *StorefrontHandlers) checkoutCommand(r *http.Request) services.CheckoutCommand {
	return services.CheckoutCommand{
		OwnerID:        chi.URLParam(r, "ownerID"),
		ProductID:      chi.URLParam(r, "productID"),
		Origin:         strings.TrimSpace(r.Header.Get("Origin")),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	}
}

func (h *StorefrontHandlers) loadPage(w http.ResponseWriter, r *http.Request) (domain.Product, bool) {
	ctx := r.Context()
	product, err := h.products.GetPublic(ctx, chi.URLParam(r, "ownerID"), chi.URLParam(r, "productID"))
	switch {
	case err == nil:
		return product, true
	case errors.Is(err, services.ErrProductNotFound), errors.Is(err, services.ErrProductInvalidInput):
		h.writeNotice(w, r, http.StatusNotFound, notFoundTitle, notFoundMessage)
	default:
		requestctx.Logger(ctx).Error("storefront load failed", zap.Error(err))
		h.writeNotice(w, r, http.StatusServiceUnavailable, unavailableTitle, unavailableMessage)
	}
	return domain.Product{}, false
}

// writeNotice renders a read-only themed page in place of a product.
func (h *StorefrontHandlers) writeNotice(w http.ResponseWriter, r *http.Request, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := h.renderer.Document(w, render.NoticePage(title, message), render.DocumentMeta{NoIndex: true}); err != nil {
		requestctx.Logger(r.Context()).Error("storefront render failed", zap.Error(err))
	}
}

func (h *StorefrontHandlers) renderCheckoutFailure(w http.ResponseWriter, r *http.Request, status int, message string) {
	product, ok := h.loadPage(w, r)
	if !ok {
		return
	}
	h.writeDocument(w, r, status, product, false, message)
}

func (h *StorefrontHandlers) writeDocument(w http.ResponseWriter, r *http.Request, status int, product domain.Product, purchased bool, checkoutError string) {
	mode := domain.ModeLocked
	if purchased {
		mode = domain.ModeUnlocked
	}
	meta := render.DocumentMeta{
		CanonicalURL:  h.products.PublicURL(product.OwnerID, product.ID),
		CheckoutError: checkoutError,
		Purchased:     purchased,
	}
	if h.checkout != nil && !purchased {
		meta.CheckoutAction = r.URL.EscapedPath()
		if !strings.HasSuffix(meta.CheckoutAction, "/checkout") {
			meta.CheckoutAction = strings.TrimSuffix(meta.CheckoutAction, "/") + "/checkout"
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := h.renderer.Document(w, render.Render(product, mode), meta); err != nil {
		requestctx.Logger(r.Context()).Error("storefront render failed", zap.Error(err))
	}
}

// recordView counts a visit in the background unless the viewer owns the page. The write never
// delays the response and a client disconnect does not cancel it.
func (h *StorefrontHandlers) recordView(ctx context.Context, product domain.Product) {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity.Owns(product.OwnerID) {
		return
	}
	detached := requestctx.Detach(ctx)
	h.views.Add(1)
	go func() {
		defer h.views.Done()
		ctx, cancel := context.WithTimeout(detached, viewWriteTimeout)
		defer cancel()
		if err := h.products.RecordView(ctx, product.OwnerID, product.ID); err != nil {
			requestctx.Logger(ctx).Warn("record view failed", zap.String("product_id", product.ID), zap.Error(err))
		}
	}()
}

// WaitForViews blocks until background view writes finish. Call it after the server stops
// accepting requests.
func (h *StorefrontHandlers) WaitForViews() {
	h.views.Wait()
}

func isPurchased(r *http.Request) bool {
	return strings.TrimSpace(r.URL.Query().Get(purchasedParam)) == "1"
}

func checkoutFailure(err error) (int, string, string) {
	switch {
	case errors.Is(err, services.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found", "product not found"
	case errors.Is(err, services.ErrCheckoutInvalidInput), errors.Is(err, services.ErrProductInvalidInput):
		return http.StatusBadRequest, "invalid_request", "This product cannot be purchased right now."
	case errors.Is(err, services.ErrCheckoutSellerNotReady):
		return http.StatusConflict, "seller_not_ready", "The seller is not accepting payments yet."
	case errors.Is(err, services.ErrCheckoutPaymentFailed):
		return http.StatusBadGateway, "payment_failed", "We could not start checkout. Please try again."
	default:
		return http.StatusServiceUnavailable, "checkout_unavailable", "Checkout is unavailable right now."
	}
}
