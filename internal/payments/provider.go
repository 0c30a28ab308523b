package payments

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidSignature is returned when a webhook payload fails signature verification.
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	// ErrUnhandledEvent is returned for webhook event types the service ignores.
	ErrUnhandledEvent = errors.New("payments: unhandled webhook event")
)

// Metadata keys stamped on checkout sessions so webhooks can find the product again.
const (
	MetadataOwnerID   = "owner_id"
	MetadataProductID = "product_id"
	MetadataSellerUID = "seller_uid"
)

// CheckoutRequest describes a one-item checkout paid out to a connected seller account.
type CheckoutRequest struct {
	OwnerID            string
	ProductID          string
	Title              string
	Description        string
	AmountMinor        int64
	Currency           string
	DestinationAccount string
	ApplicationFee     int64
	SuccessURL         string
	CancelURL          string
	IdempotencyKey     string
}

// CheckoutSession is the hosted checkout the buyer is redirected to.
type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// ConnectAccount mirrors the capability flags of a connected account.
type ConnectAccount struct {
	ID               string
	ChargesEnabled   bool
	DetailsSubmitted bool
	SellerUID        string
}

// AccountLinkRequest asks for a hosted onboarding link.
type AccountLinkRequest struct {
	AccountID  string
	RefreshURL string
	ReturnURL  string
}

// CompletedCheckout is a paid checkout session reported by webhook.
type CompletedCheckout struct {
	SessionID   string
	OwnerID     string
	ProductID   string
	AmountMinor int64
	Currency    string
	Paid        bool
	CompletedAt time.Time
}

// WebhookEvent is a verified provider event. Exactly one payload field is set.
type WebhookEvent struct {
	ID       string
	Type     string
	Checkout *CompletedCheckout
	Account  *ConnectAccount
}

// Provider is the payment service provider contract.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	CreateConnectAccount(ctx context.Context, sellerUID, email, country string) (ConnectAccount, error)
	GetConnectAccount(ctx context.Context, accountID string) (ConnectAccount, error)
	CreateAccountLink(ctx context.Context, req AccountLinkRequest) (string, error)
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}

// PlatformFee returns the platform's share of amount in basis points, rounded down.
func PlatformFee(amount int64, bps int) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	if bps >= 10000 {
		return amount
	}
	return amount * int64(bps) / 10000
}
