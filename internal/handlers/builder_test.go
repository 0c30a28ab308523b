package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/launchpad/api/internal/builder"
	"github.com/launchpad/api/internal/domain"
	"github.com/launchpad/api/internal/render"
	"github.com/launchpad/api/internal/services"
)

func newBuilderRouter(t *testing.T, svc services.BuilderService, opts ...BuilderOption) chi.Router {
	t.Helper()
	router := chi.NewRouter()
	NewBuilderHandlers(nil, svc, opts...).Routes(router)
	return router
}

func TestBuilderHandlersStart(t *testing.T) {
	svc := &stubBuilderService{
		startFunc: func(_ context.Context, ownerID string) (services.BuilderSnapshot, error) {
			if ownerID != "seller-1" {
				t.Fatalf("expected owner seller-1, got %s", ownerID)
			}
			return services.BuilderSnapshot{
				ID:          "sess-1",
				OwnerID:     ownerID,
				Step:        builder.StepBasics,
				Product:     domain.NewProduct(ownerID),
				PreviewMode: domain.ModeLocked,
			}, nil
		},
	}
	router := newBuilderRouter(t, svc)

	req := asSeller(httptest.NewRequest(http.MethodPost, "/sessions", nil), "seller-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp snapshotResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "sess-1" || resp.Step != "basics" || resp.PreviewMode != "locked" {
		t.Fatalf("unexpected snapshot %+v", resp)
	}
	if resp.Players == nil {
		t.Fatalf("expected players to encode as an empty list")
	}
}

func TestBuilderHandlersRequireIdentity(t *testing.T) {
	router := newBuilderRouter(t, &stubBuilderService{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sessions", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestBuilderHandlersApplyConvertsPatch(t *testing.T) {
	var captured services.ProductPatch
	svc := &stubBuilderService{
		applyFunc: func(_ context.Context, ownerID, sessionID string, patch services.ProductPatch) (services.BuilderSnapshot, error) {
			if sessionID != "sess-1" {
				t.Fatalf("unexpected session %s", sessionID)
			}
			captured = patch
			return services.BuilderSnapshot{ID: sessionID, Step: builder.StepBasics}, nil
		},
	}
	router := newBuilderRouter(t, svc)

	body := `{"title":"Guide","price":"19.00","contentType":"both","theme":"ocean","video":{"url":"https://youtu.be/x","policy":"separate"},"elementOrder":["content","hero"],"sectionTitles":{"features":"What you get"}}`
	req := asSeller(httptest.NewRequest(http.MethodPatch, "/sessions/sess-1", strings.NewReader(body)), "seller-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Title == nil || *captured.Title != "Guide" || *captured.Price != "19.00" {
		t.Fatalf("basics not propagated: %+v", captured)
	}
	if *captured.ContentType != domain.ContentTypeBoth || *captured.Theme != domain.ThemeOcean {
		t.Fatalf("enums not parsed: %+v", captured)
	}
	if *captured.VideoURL != "https://youtu.be/x" || *captured.VideoPolicy != domain.VideoPolicySeparate {
		t.Fatalf("video not propagated: %+v", captured)
	}
	if diff := cmp.Diff([]domain.ElementKind{domain.ElementContent, domain.ElementHero}, *captured.ElementOrder); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	if captured.SectionTitles[domain.ElementFeatures] != "What you get" {
		t.Fatalf("section titles not propagated: %+v", captured.SectionTitles)
	}
	if captured.Description != nil {
		t.Fatalf("absent fields must stay nil")
	}
}

func TestBuilderHandlersApplyRejectsUnknownValues(t *testing.T) {
	router := newBuilderRouter(t, &stubBuilderService{})

	cases := map[string]string{
		"bad content type": `{"contentType":"audio"}`,
		"bad section":      `{"elementOrder":["hero","footer"]}`,
		"unknown field":    `{"titel":"typo"}`,
		"empty body":       ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := asSeller(httptest.NewRequest(http.MethodPatch, "/sessions/sess-1", strings.NewReader(body)), "seller-1")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestBuilderHandlersNextValidationErrors(t *testing.T) {
	svc := &stubBuilderService{
		nextFunc: func(context.Context, string, string) (services.BuilderSnapshot, error) {
			return services.BuilderSnapshot{}, builder.ValidationErrors{"title": "Title is required", "price": "Enter a valid price"}
		},
	}
	router := newBuilderRouter(t, svc)

	req := asSeller(httptest.NewRequest(http.MethodPost, "/sessions/sess-1/next", nil), "seller-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "validation_failed" || body.Fields["title"] != "Title is required" {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestBuilderHandlersErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "not found", err: services.ErrBuilderSessionNotFound, status: http.StatusNotFound, code: "session_not_found"},
		{name: "transition", err: builder.ErrInvalidTransition, status: http.StatusConflict, code: "invalid_transition"},
		{name: "finished", err: builder.ErrSessionFinished, status: http.StatusConflict, code: "session_finished"},
		{name: "closed", err: builder.ErrSessionClosed, status: http.StatusGone, code: "session_closed"},
		{name: "store down", err: services.ErrProductUnavailable, status: http.StatusServiceUnavailable, code: "products_unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubBuilderService{
				nextFunc: func(context.Context, string, string) (services.BuilderSnapshot, error) {
					return services.BuilderSnapshot{}, tc.err
				},
			}
			router := newBuilderRouter(t, svc)
			req := asSeller(httptest.NewRequest(http.MethodPost, "/sessions/sess-1/next", nil), "seller-1")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, body["error"])
			}
		})
	}
}

func TestBuilderHandlersMove(t *testing.T) {
	var captured services.MoveElementCommand
	svc := &stubBuilderService{
		moveFunc: func(_ context.Context, cmd services.MoveElementCommand) (services.BuilderSnapshot, error) {
			captured = cmd
			return services.BuilderSnapshot{ID: cmd.SessionID}, nil
		},
	}
	router := newBuilderRouter(t, svc)

	req := asSeller(httptest.NewRequest(http.MethodPost, "/sessions/sess-1/move", strings.NewReader(`{"kind":"Content","direction":"up"}`)), "seller-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	want := services.MoveElementCommand{OwnerID: "seller-1", SessionID: "sess-1", Kind: domain.ElementContent, Direction: domain.DirectionUp}
	if captured != want {
		t.Fatalf("unexpected command %+v", captured)
	}

	req = asSeller(httptest.NewRequest(http.MethodPost, "/sessions/sess-1/move", strings.NewReader(`{"kind":"content","direction":"sideways"}`)), "seller-1")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad direction, got %d", rr.Code)
	}
}

func TestBuilderHandlersPreviewIncludesHTML(t *testing.T) {
	renderer, err := render.NewHTMLRenderer()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	product := publishedProduct()
	svc := &stubBuilderService{
		previewFunc: func(context.Context, string, string) (services.BuilderPreview, error) {
			return services.BuilderPreview{
				Snapshot: services.BuilderSnapshot{ID: "sess-1", Product: product, PreviewMode: domain.ModeLocked},
				Page:     render.Render(product, domain.ModeLocked),
			}, nil
		},
	}
	router := newBuilderRouter(t, svc, WithBuilderRenderer(renderer))

	req := asSeller(httptest.NewRequest(http.MethodGet, "/sessions/sess-1/preview", nil), "seller-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp builderPreviewResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Page.Mode != domain.ModeLocked || len(resp.Page.Sections) == 0 {
		t.Fatalf("unexpected page %+v", resp.Page)
	}
	if !strings.Contains(resp.HTML, render.NoticeFullContent) {
		t.Fatalf("expected locked preview markup, got %s", resp.HTML)
	}
}

func TestBuilderHandlersPreviewModeValidation(t *testing.T) {
	var got domain.ViewMode
	svc := &stubBuilderService{
		modeFunc: func(_ context.Context, _, _ string, mode domain.ViewMode) (services.BuilderSnapshot, error) {
			got = mode
			return services.BuilderSnapshot{PreviewMode: mode}, nil
		},
	}
	router := newBuilderRouter(t, svc)

	req := asSeller(httptest.NewRequest(http.MethodPut, "/sessions/sess-1/preview-mode", strings.NewReader(`{"mode":"unlocked"}`)), "seller-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || got != domain.ModeUnlocked {
		t.Fatalf("expected unlocked mode applied, got %d %q", rr.Code, got)
	}

	req = asSeller(httptest.NewRequest(http.MethodPut, "/sessions/sess-1/preview-mode", strings.NewReader(`{"mode":"buyer"}`)), "seller-1")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestBuilderHandlersVideo(t *testing.T) {
	svc := &stubBuilderService{
		playFunc: func(_ context.Context, cmd services.VideoCommand) (services.PlayerView, error) {
			if cmd.Index == 1 {
				return services.PlayerView{}, builder.ErrPlayerNotPlayable
			}
			return services.PlayerView{Index: cmd.Index, State: domain.PlayerPlaying, RemainingSeconds: 300, DurationSeconds: 300}, nil
		},
	}
	router := newBuilderRouter(t, svc)

	req := asSeller(httptest.NewRequest(http.MethodPost, "/sessions/sess-1/videos/0/play", nil), "seller-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var view services.PlayerView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.State != domain.PlayerPlaying || view.RemainingSeconds != 300 {
		t.Fatalf("unexpected view %+v", view)
	}

	req = asSeller(httptest.NewRequest(http.MethodPost, "/sessions/sess-1/videos/1/play", nil), "seller-1")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}

	req = asSeller(httptest.NewRequest(http.MethodPost, "/sessions/sess-1/videos/x/play", nil), "seller-1")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestBuilderHandlersPublishRunsMiddleware(t *testing.T) {
	var wrapped bool
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped = true
			next.ServeHTTP(w, r)
		})
	}
	svc := &stubBuilderService{
		publishFunc: func(_ context.Context, ownerID, sessionID string) (services.BuilderSnapshot, error) {
			return services.BuilderSnapshot{ID: sessionID, Step: builder.StepSuccess, PublicURL: "https://launchpad.test/p/" + ownerID + "/prod-1"}, nil
		},
	}
	router := newBuilderRouter(t, svc, WithBuilderPublishMiddlewares(mw, nil))

	req := asSeller(httptest.NewRequest(http.MethodPost, "/sessions/sess-1/publish", bytes.NewReader(nil)), "seller-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if !wrapped {
		t.Fatalf("expected publish middleware to run")
	}
	var resp snapshotResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Step != "success" || resp.PublicURL != "https://launchpad.test/p/seller-1/prod-1" {
		t.Fatalf("unexpected snapshot %+v", resp)
	}
}

func TestBuilderHandlersDiscard(t *testing.T) {
	var discarded string
	svc := &stubBuilderService{
		discardFunc: func(_ context.Context, _, sessionID string) error {
			discarded = sessionID
			return nil
		},
	}
	router := newBuilderRouter(t, svc)

	req := asSeller(httptest.NewRequest(http.MethodDelete, "/sessions/sess-9", nil), "seller-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent || discarded != "sess-9" {
		t.Fatalf("expected 204 discarding sess-9, got %d %q", rr.Code, discarded)
	}
}
