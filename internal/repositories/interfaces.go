package repositories

import (
	"context"

	"github.com/launchpad/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ProductRepository persists sales page documents under users/{ownerID}/products.
type ProductRepository interface {
	// Create stores a new document and returns it with the store assigned ID.
	Create(ctx context.Context, product domain.Product) (domain.Product, error)
	Get(ctx context.Context, ownerID, productID string) (domain.Product, error)
	// Update writes the editable fields of an existing document. Counters and publication
	// fields are left untouched. Missing documents return a not found RepositoryError.
	Update(ctx context.Context, product domain.Product) (domain.Product, error)
	UpdateElementOrder(ctx context.Context, ownerID, productID string, order []domain.ElementKind) error
	ListByOwner(ctx context.Context, ownerID string, pager domain.Pagination) (domain.CursorPage[domain.Product], error)
	IncrementViews(ctx context.Context, ownerID, productID string) error
	// RecordSale applies a completed sale once per checkout session; replays are ignored.
	RecordSale(ctx context.Context, sale domain.SaleRecord) (bool, error)
}

// SellerRepository persists seller payout profiles at users/{ownerID}.
type SellerRepository interface {
	Get(ctx context.Context, uid string) (domain.SellerProfile, error)
	// ClaimStripeAccount stores accountID unless the profile already holds one, in which case the
	// existing profile is returned unchanged.
	ClaimStripeAccount(ctx context.Context, uid, email, accountID string) (domain.SellerProfile, error)
	UpdateStripeStatus(ctx context.Context, uid string, chargesEnabled, detailsSubmitted bool) (domain.SellerProfile, error)
}

// HealthRepository returns dependency health information for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
