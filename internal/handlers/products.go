package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/launchpad/api/internal/builder"
	"github.com/launchpad/api/internal/platform/auth"
	"github.com/launchpad/api/internal/platform/httpx"
	"github.com/launchpad/api/internal/platform/pagination"
	"github.com/launchpad/api/internal/services"
)

const (
	defaultProductPageSize = 20
	maxProductPageSize     = 100
)

// ProductHandlers exposes the seller dashboard: listing, stats and edit in place.
type ProductHandlers struct {
	authn    *auth.Authenticator
	products services.ProductService
}

// NewProductHandlers constructs dashboard handlers guarded by seller authentication.
func NewProductHandlers(authn *auth.Authenticator, products services.ProductService) *ProductHandlers {
	return &ProductHandlers{authn: authn, products: products}
}

// Routes registers the /products endpoints.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireSeller())
	}
	r.Get("/", h.list)
	r.Get("/{productID}", h.get)
	r.Patch("/{productID}", h.save)
	r.Post("/{productID}/move", h.move)
}

type productListResponse struct {
	Products      []productResponse `json:"products"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
}

func (h *ProductHandlers) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.seller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultProductPageSize,
		MaxPageSize:     maxProductPageSize,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.products.List(ctx, identity.UID, services.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	resp := productListResponse{
		Products:      make([]productResponse, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, product := range page.Items {
		resp.Products = append(resp.Products, newProductResponse(product, h.publicURL(product)))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *ProductHandlers) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.seller(w, r)
	if !ok {
		return
	}
	product, err := h.products.Get(r.Context(), identity.UID, chi.URLParam(r, "productID"))
	if err != nil {
		writeProductError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newProductResponse(product, h.publicURL(product)))
}

func (h *ProductHandlers) save(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.seller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	var req productPatchRequest
	if e := decodeJSONBody(r, maxBuilderBodySize, &req); e != nil {
		httpx.WriteError(ctx, w, *e)
		return
	}
	patch, fields := req.toPatch()
	if len(fields) > 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unsupported field values", http.StatusBadRequest).WithFields(fields))
		return
	}
	product, err := h.products.Save(ctx, services.SaveProductCommand{
		OwnerID:   identity.UID,
		ProductID: chi.URLParam(r, "productID"),
		Patch:     patch,
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newProductResponse(product, h.publicURL(product)))
}

func (h *ProductHandlers) move(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.seller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	var req moveElementRequest
	if e := decodeJSONBody(r, 0, &req); e != nil {
		httpx.WriteError(ctx, w, *e)
		return
	}
	kind, dir, fields := parseMove(req)
	if fields != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid move", http.StatusBadRequest).WithFields(fields))
		return
	}
	product, err := h.products.MoveElement(ctx, services.MoveElementCommand{
		OwnerID:   identity.UID,
		ProductID: chi.URLParam(r, "productID"),
		Kind:      kind,
		Direction: dir,
	})
	if err != nil {
		writeProductError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newProductResponse(product, h.publicURL(product)))
}

func (h *ProductHandlers) publicURL(product services.Product) string {
	if !product.Published || product.ID == "" {
		return ""
	}
	return h.products.PublicURL(product.OwnerID, product.ID)
}

func (h *ProductHandlers) seller(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	ctx := r.Context()
	if h.products == nil {
		httpx.WriteError(ctx, w, httpx.NewError("products_unavailable", "product service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeProductError(ctx context.Context, w http.ResponseWriter, err error) {
	if writeValidationError(ctx, w, err) {
		return
	}
	switch {
	case errors.Is(err, services.ErrProductInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid product request", http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductSaveInProgress):
		httpx.WriteError(ctx, w, httpx.NewError("save_in_progress", "a save for this product is already running", http.StatusConflict))
	case errors.Is(err, services.ErrProductConflict):
		httpx.WriteError(ctx, w, httpx.NewError("product_conflict", "product was modified concurrently", http.StatusConflict))
	case errors.Is(err, builder.ErrReorderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("reorder_unavailable", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("products_unavailable", "product storage unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}

