package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/launchpad/api/internal/builder"
	"github.com/launchpad/api/internal/domain"
	"github.com/launchpad/api/internal/payments"
	"github.com/launchpad/api/internal/render"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Product            = domain.Product
	ProductPatch       = domain.ProductPatch
	SellerProfile      = domain.SellerProfile
	SystemHealthReport = domain.SystemHealthReport
	BuilderSnapshot    = builder.Snapshot
	PlayerView         = builder.PlayerView
)

// BuilderService hosts the seller's in-progress wizard sessions. Every call is scoped to the
// owning seller; sessions belonging to someone else are reported as not found.
type BuilderService interface {
	Start(ctx context.Context, ownerID string) (BuilderSnapshot, error)
	Get(ctx context.Context, ownerID, sessionID string) (BuilderSnapshot, error)
	Apply(ctx context.Context, ownerID, sessionID string, patch ProductPatch) (BuilderSnapshot, error)
	Next(ctx context.Context, ownerID, sessionID string) (BuilderSnapshot, error)
	Back(ctx context.Context, ownerID, sessionID string) (BuilderSnapshot, error)
	MoveElement(ctx context.Context, cmd MoveElementCommand) (BuilderSnapshot, error)
	SetPreviewMode(ctx context.Context, ownerID, sessionID string, mode domain.ViewMode) (BuilderSnapshot, error)
	Preview(ctx context.Context, ownerID, sessionID string) (BuilderPreview, error)
	PlayVideo(ctx context.Context, cmd VideoCommand) (PlayerView, error)
	ResumeVideo(ctx context.Context, cmd VideoCommand) (PlayerView, error)
	VideoState(ctx context.Context, cmd VideoCommand) (PlayerView, error)
	Publish(ctx context.Context, ownerID, sessionID string) (BuilderSnapshot, error)
	Discard(ctx context.Context, ownerID, sessionID string) error
	// Sweep closes expired sessions and returns how many were removed.
	Sweep(ctx context.Context) int
	Stats() BuilderStats
	// Run sweeps on the configured interval until ctx is cancelled.
	Run(ctx context.Context)
	Close()
}

// BuilderStats summarises the sessions held in memory.
type BuilderStats struct {
	OpenSessions int
	Owners       int
	Closed       bool
}

// ProductService manages stored sales pages.
type ProductService interface {
	Publish(ctx context.Context, product Product) (PublishedProduct, error)
	Get(ctx context.Context, ownerID, productID string) (Product, error)
	List(ctx context.Context, ownerID string, pager Pagination) (domain.CursorPage[Product], error)
	Save(ctx context.Context, cmd SaveProductCommand) (Product, error)
	MoveElement(ctx context.Context, cmd MoveElementCommand) (Product, error)
	GetPublic(ctx context.Context, ownerID, productID string) (Product, error)
	RecordView(ctx context.Context, ownerID, productID string) error
	PublicURL(ownerID, productID string) string
}

// CheckoutService starts hosted checkout for a public product page.
type CheckoutService interface {
	CreateCheckout(ctx context.Context, cmd CheckoutCommand) (payments.CheckoutSession, error)
}

// ConnectService onboards sellers onto Stripe Connect.
type ConnectService interface {
	Onboard(ctx context.Context, cmd OnboardCommand) (ConnectOnboarding, error)
	Status(ctx context.Context, sellerUID string) (SellerProfile, error)
}

// SalesService applies verified payment webhooks.
type SalesService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error)
}

// IdeaService forwards product-idea questionnaires to the AI co-pilot.
type IdeaService interface {
	SuggestIdeas(ctx context.Context, cmd IdeaCommand) (IdeaSuggestion, error)
}

// SystemService exposes health information.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// ProductEventPublisher emits product lifecycle events.
type ProductEventPublisher interface {
	PublishProductEvent(ctx context.Context, event domain.ProductEvent) (string, error)
}

// MoveElementCommand moves one section up or down. SessionID targets a builder session;
// ProductID targets a stored product.
type MoveElementCommand struct {
	OwnerID   string
	SessionID string
	ProductID string
	Kind      domain.ElementKind
	Direction domain.Direction
}

// VideoCommand addresses one preview player inside a builder session.
type VideoCommand struct {
	OwnerID   string
	SessionID string
	Index     int
}

// BuilderPreview is the editor preview for a session in its current preview mode.
type BuilderPreview struct {
	Snapshot BuilderSnapshot
	Page     render.Page
}

// PublishedProduct is a stored product together with its public URL.
type PublishedProduct struct {
	Product   Product
	PublicURL string
}

// SaveProductCommand edits a stored product in place.
type SaveProductCommand struct {
	OwnerID   string
	ProductID string
	Patch     ProductPatch
}

// CheckoutCommand asks for a checkout session for a published product.
type CheckoutCommand struct {
	OwnerID        string
	ProductID      string
	Origin         string
	IdempotencyKey string
}

// OnboardCommand starts or resumes Connect onboarding.
type OnboardCommand struct {
	SellerUID string
	Email     string
}

// ConnectOnboarding is the hosted onboarding link for a seller account.
type ConnectOnboarding struct {
	AccountID string
	URL       string
	Profile   SellerProfile
}

// WebhookResult reports what a webhook delivery changed.
type WebhookResult struct {
	EventID   string
	EventType string
	Applied   bool
}

// IdeaCommand carries questionnaire answers keyed by question identifier.
type IdeaCommand struct {
	SellerUID string
	Answers   map[string]string
}

// IdeaSuggestion is the co-pilot response, passed through untouched.
type IdeaSuggestion struct {
	Body        json.RawMessage
	GeneratedAt time.Time
}
