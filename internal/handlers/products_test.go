package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/launchpad/api/internal/builder"
	"github.com/launchpad/api/internal/domain"
	"github.com/launchpad/api/internal/platform/pagination"
	"github.com/launchpad/api/internal/services"
)

func newProductRouter(svc services.ProductService) chi.Router {
	router := chi.NewRouter()
	NewProductHandlers(nil, svc).Routes(router)
	return router
}

func TestProductHandlersList(t *testing.T) {
	var pager services.Pagination
	draft := publishedProduct()
	draft.ID = "prod-2"
	draft.Published = false
	svc := &stubProductService{
		listFunc: func(_ context.Context, ownerID string, p services.Pagination) (domain.CursorPage[services.Product], error) {
			if ownerID != "owner-1" {
				t.Fatalf("unexpected owner %s", ownerID)
			}
			pager = p
			return domain.CursorPage[services.Product]{Items: []services.Product{publishedProduct(), draft}, NextPageToken: "next"}, nil
		},
	}
	router := newProductRouter(svc)
	token := pagination.EncodeToken(pagination.Cursor{CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), ID: "prod-0"})

	req := asSeller(httptest.NewRequest(http.MethodGet, "/?pageSize=500&pageToken="+token, nil), "owner-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if pager.PageSize != maxProductPageSize || pager.PageToken != token {
		t.Fatalf("unexpected pager %+v", pager)
	}
	var resp productListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Products) != 2 || resp.NextPageToken != "next" {
		t.Fatalf("unexpected list %+v", resp)
	}
	if resp.Products[0].PublicURL != "https://launchpad.test/p/owner-1/prod-1" {
		t.Fatalf("expected public url for published product, got %q", resp.Products[0].PublicURL)
	}
	if resp.Products[1].PublicURL != "" {
		t.Fatalf("drafts must not expose a public url")
	}
	if resp.Products[0].Price != "$19.00" || resp.Products[0].PriceInput != "19.00" {
		t.Fatalf("unexpected price formatting %q %q", resp.Products[0].Price, resp.Products[0].PriceInput)
	}
}

func TestProductHandlersListRejectsBadPaging(t *testing.T) {
	router := newProductRouter(&stubProductService{})
	for _, query := range []string{"?pageSize=zero", "?pageSize=-1", "?pageToken=not-a-cursor"} {
		req := asSeller(httptest.NewRequest(http.MethodGet, "/"+query, nil), "owner-1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", query, rr.Code)
		}
	}
}

func TestProductHandlersGetNotFound(t *testing.T) {
	router := newProductRouter(&stubProductService{})
	req := asSeller(httptest.NewRequest(http.MethodGet, "/missing", nil), "owner-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestProductHandlersSave(t *testing.T) {
	var captured services.SaveProductCommand
	svc := &stubProductService{
		saveFunc: func(_ context.Context, cmd services.SaveProductCommand) (services.Product, error) {
			captured = cmd
			product := publishedProduct()
			product.Title = *cmd.Patch.Title
			return product, nil
		},
	}
	router := newProductRouter(svc)

	req := asSeller(httptest.NewRequest(http.MethodPatch, "/prod-1", strings.NewReader(`{"title":"Renamed","gradient":true}`)), "owner-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OwnerID != "owner-1" || captured.ProductID != "prod-1" || captured.Patch.Gradient == nil || !*captured.Patch.Gradient {
		t.Fatalf("unexpected command %+v", captured)
	}
	var resp productResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Title != "Renamed" {
		t.Fatalf("expected updated title, got %q", resp.Title)
	}
}

func TestProductHandlersSaveErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "in flight", err: services.ErrProductSaveInProgress, status: http.StatusConflict},
		{name: "validation", err: builder.ValidationErrors{"title": "Title is required"}, status: http.StatusUnprocessableEntity},
		{name: "unavailable", err: services.ErrProductUnavailable, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubProductService{
				saveFunc: func(context.Context, services.SaveProductCommand) (services.Product, error) {
					return services.Product{}, tc.err
				},
			}
			router := newProductRouter(svc)
			req := asSeller(httptest.NewRequest(http.MethodPatch, "/prod-1", strings.NewReader(`{"title":""}`)), "owner-1")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestProductHandlersMoveReorderUnavailable(t *testing.T) {
	svc := &stubProductService{
		moveFunc: func(context.Context, services.MoveElementCommand) (services.Product, error) {
			return services.Product{}, builder.ErrReorderUnavailable
		},
	}
	router := newProductRouter(svc)

	req := asSeller(httptest.NewRequest(http.MethodPost, "/prod-1/move", strings.NewReader(`{"kind":"hero","direction":"down"}`)), "owner-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "reorder_unavailable" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}
