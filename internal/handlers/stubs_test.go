package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/launchpad/api/internal/domain"
	"github.com/launchpad/api/internal/payments"
	"github.com/launchpad/api/internal/platform/auth"
	"github.com/launchpad/api/internal/services"
)

func asSeller(req *http.Request, uid string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid, Email: uid + "@example.com"}))
}

func publishedProduct() domain.Product {
	product := domain.NewProduct("owner-1")
	product.ID = "prod-1"
	product.Title = "Pricing Playbook"
	product.PriceMinor = 1900
	product.Description = "Charge what you are worth"
	product.Features = []string{"Worksheets"}
	product.Content = "Chapter one covers anchoring and chapter two covers bundles."
	product.PreviewLength = 11
	product.Published = true
	return product
}

type stubBuilderService struct {
	startFunc   func(ctx context.Context, ownerID string) (services.BuilderSnapshot, error)
	getFunc     func(ctx context.Context, ownerID, sessionID string) (services.BuilderSnapshot, error)
	applyFunc   func(ctx context.Context, ownerID, sessionID string, patch services.ProductPatch) (services.BuilderSnapshot, error)
	nextFunc    func(ctx context.Context, ownerID, sessionID string) (services.BuilderSnapshot, error)
	moveFunc    func(ctx context.Context, cmd services.MoveElementCommand) (services.BuilderSnapshot, error)
	modeFunc    func(ctx context.Context, ownerID, sessionID string, mode domain.ViewMode) (services.BuilderSnapshot, error)
	previewFunc func(ctx context.Context, ownerID, sessionID string) (services.BuilderPreview, error)
	playFunc    func(ctx context.Context, cmd services.VideoCommand) (services.PlayerView, error)
	publishFunc func(ctx context.Context, ownerID, sessionID string) (services.BuilderSnapshot, error)
	discardFunc func(ctx context.Context, ownerID, sessionID string) error
	swept       int
}

func (s *stubBuilderService) Start(ctx context.Context, ownerID string) (services.BuilderSnapshot, error) {
	if s.startFunc != nil {
		return s.startFunc(ctx, ownerID)
	}
	return services.BuilderSnapshot{}, nil
}

func (s *stubBuilderService) Get(ctx context.Context, ownerID, sessionID string) (services.BuilderSnapshot, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, ownerID, sessionID)
	}
	return services.BuilderSnapshot{}, services.ErrBuilderSessionNotFound
}

func (s *stubBuilderService) Apply(ctx context.Context, ownerID, sessionID string, patch services.ProductPatch) (services.BuilderSnapshot, error) {
	if s.applyFunc != nil {
		return s.applyFunc(ctx, ownerID, sessionID, patch)
	}
	return services.BuilderSnapshot{}, nil
}

func (s *stubBuilderService) Next(ctx context.Context, ownerID, sessionID string) (services.BuilderSnapshot, error) {
	if s.nextFunc != nil {
		return s.nextFunc(ctx, ownerID, sessionID)
	}
	return services.BuilderSnapshot{}, nil
}

func (s *stubBuilderService) Back(context.Context, string, string) (services.BuilderSnapshot, error) {
	return services.BuilderSnapshot{}, nil
}

func (s *stubBuilderService) MoveElement(ctx context.Context, cmd services.MoveElementCommand) (services.BuilderSnapshot, error) {
	if s.moveFunc != nil {
		return s.moveFunc(ctx, cmd)
	}
	return services.BuilderSnapshot{}, nil
}

func (s *stubBuilderService) SetPreviewMode(ctx context.Context, ownerID, sessionID string, mode domain.ViewMode) (services.BuilderSnapshot, error) {
	if s.modeFunc != nil {
		return s.modeFunc(ctx, ownerID, sessionID, mode)
	}
	return services.BuilderSnapshot{}, nil
}

func (s *stubBuilderService) Preview(ctx context.Context, ownerID, sessionID string) (services.BuilderPreview, error) {
	if s.previewFunc != nil {
		return s.previewFunc(ctx, ownerID, sessionID)
	}
	return services.BuilderPreview{}, nil
}

func (s *stubBuilderService) PlayVideo(ctx context.Context, cmd services.VideoCommand) (services.PlayerView, error) {
	if s.playFunc != nil {
		return s.playFunc(ctx, cmd)
	}
	return services.PlayerView{}, nil
}

func (s *stubBuilderService) ResumeVideo(ctx context.Context, cmd services.VideoCommand) (services.PlayerView, error) {
	return s.PlayVideo(ctx, cmd)
}

func (s *stubBuilderService) VideoState(context.Context, services.VideoCommand) (services.PlayerView, error) {
	return services.PlayerView{}, nil
}

func (s *stubBuilderService) Publish(ctx context.Context, ownerID, sessionID string) (services.BuilderSnapshot, error) {
	if s.publishFunc != nil {
		return s.publishFunc(ctx, ownerID, sessionID)
	}
	return services.BuilderSnapshot{}, nil
}

func (s *stubBuilderService) Discard(ctx context.Context, ownerID, sessionID string) error {
	if s.discardFunc != nil {
		return s.discardFunc(ctx, ownerID, sessionID)
	}
	return nil
}

func (s *stubBuilderService) Sweep(context.Context) int    { return s.swept }
func (s *stubBuilderService) Stats() services.BuilderStats { return services.BuilderStats{} }
func (s *stubBuilderService) Run(context.Context)          {}
func (s *stubBuilderService) Close()                       {}

type stubProductService struct {
	getFunc       func(ctx context.Context, ownerID, productID string) (services.Product, error)
	listFunc      func(ctx context.Context, ownerID string, pager services.Pagination) (domain.CursorPage[services.Product], error)
	saveFunc      func(ctx context.Context, cmd services.SaveProductCommand) (services.Product, error)
	moveFunc      func(ctx context.Context, cmd services.MoveElementCommand) (services.Product, error)
	getPublicFunc func(ctx context.Context, ownerID, productID string) (services.Product, error)
	viewErr       error
	views         []string
	viewCtxErrs   []error
	viewGate      chan struct{}
}

func (s *stubProductService) Publish(context.Context, services.Product) (services.PublishedProduct, error) {
	return services.PublishedProduct{}, nil
}

func (s *stubProductService) Get(ctx context.Context, ownerID, productID string) (services.Product, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, ownerID, productID)
	}
	return services.Product{}, services.ErrProductNotFound
}

func (s *stubProductService) List(ctx context.Context, ownerID string, pager services.Pagination) (domain.CursorPage[services.Product], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, ownerID, pager)
	}
	return domain.CursorPage[services.Product]{}, nil
}

func (s *stubProductService) Save(ctx context.Context, cmd services.SaveProductCommand) (services.Product, error) {
	if s.saveFunc != nil {
		return s.saveFunc(ctx, cmd)
	}
	return services.Product{}, nil
}

func (s *stubProductService) MoveElement(ctx context.Context, cmd services.MoveElementCommand) (services.Product, error) {
	if s.moveFunc != nil {
		return s.moveFunc(ctx, cmd)
	}
	return services.Product{}, nil
}

func (s *stubProductService) GetPublic(ctx context.Context, ownerID, productID string) (services.Product, error) {
	if s.getPublicFunc != nil {
		return s.getPublicFunc(ctx, ownerID, productID)
	}
	return services.Product{}, services.ErrProductNotFound
}

func (s *stubProductService) RecordView(ctx context.Context, ownerID, productID string) error {
	if s.viewGate != nil {
		<-s.viewGate
	}
	s.views = append(s.views, ownerID+"/"+productID)
	s.viewCtxErrs = append(s.viewCtxErrs, ctx.Err())
	return s.viewErr
}

func (s *stubProductService) PublicURL(ownerID, productID string) string {
	return "https://launchpad.test/p/" + ownerID + "/" + productID
}

type stubCheckoutService struct {
	createFunc func(ctx context.Context, cmd services.CheckoutCommand) (payments.CheckoutSession, error)
}

func (s *stubCheckoutService) CreateCheckout(ctx context.Context, cmd services.CheckoutCommand) (payments.CheckoutSession, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return payments.CheckoutSession{ID: "cs_test", URL: "https://checkout.stripe.test/cs_test", ExpiresAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}, nil
}

type stubConnectService struct {
	onboardFunc func(ctx context.Context, cmd services.OnboardCommand) (services.ConnectOnboarding, error)
	statusFunc  func(ctx context.Context, uid string) (services.SellerProfile, error)
}

func (s *stubConnectService) Onboard(ctx context.Context, cmd services.OnboardCommand) (services.ConnectOnboarding, error) {
	if s.onboardFunc != nil {
		return s.onboardFunc(ctx, cmd)
	}
	return services.ConnectOnboarding{}, nil
}

func (s *stubConnectService) Status(ctx context.Context, uid string) (services.SellerProfile, error) {
	if s.statusFunc != nil {
		return s.statusFunc(ctx, uid)
	}
	return services.SellerProfile{UID: uid}, nil
}

type stubSalesService struct {
	handleFunc func(ctx context.Context, payload []byte, signature string) (services.WebhookResult, error)
}

func (s *stubSalesService) HandleWebhook(ctx context.Context, payload []byte, signature string) (services.WebhookResult, error) {
	if s.handleFunc != nil {
		return s.handleFunc(ctx, payload, signature)
	}
	return services.WebhookResult{}, nil
}

type stubIdeaService struct {
	suggestFunc func(ctx context.Context, cmd services.IdeaCommand) (services.IdeaSuggestion, error)
}

func (s *stubIdeaService) SuggestIdeas(ctx context.Context, cmd services.IdeaCommand) (services.IdeaSuggestion, error) {
	if s.suggestFunc != nil {
		return s.suggestFunc(ctx, cmd)
	}
	return services.IdeaSuggestion{}, nil
}

type stubCleaner struct {
	removed int
	err     error
	now     time.Time
	limit   int
}

func (s *stubCleaner) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	s.now = now
	s.limit = limit
	return s.removed, s.err
}

var (
	_ services.BuilderService  = (*stubBuilderService)(nil)
	_ services.ProductService  = (*stubProductService)(nil)
	_ services.CheckoutService = (*stubCheckoutService)(nil)
	_ services.ConnectService  = (*stubConnectService)(nil)
	_ services.SalesService    = (*stubSalesService)(nil)
	_ services.IdeaService     = (*stubIdeaService)(nil)
)
