package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// SellerProfile stores the payout configuration for a product owner.
type SellerProfile struct {
	UID                    string
	Email                  string
	StripeAccountID        string
	StripeChargesEnabled   bool
	StripeDetailsSubmitted bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// PayoutsReady reports whether the seller can receive checkout payments.
func (s SellerProfile) PayoutsReady() bool {
	return s.StripeAccountID != "" && s.StripeChargesEnabled
}

// ProductEvent is emitted when a product changes publication state.
type ProductEvent struct {
	Type       string
	OwnerID    string
	ProductID  string
	PublicURL  string
	OccurredAt time.Time
}

// ProductEventPublished identifies newly published products.
const ProductEventPublished = "product.published"

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but the service still runs.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates a dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of a single dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for readiness probes.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}

// SaleRecord is a completed checkout reported by the payment provider.
type SaleRecord struct {
	SessionID   string
	OwnerID     string
	ProductID   string
	AmountMinor int64
	Currency    string
	CompletedAt time.Time
}
