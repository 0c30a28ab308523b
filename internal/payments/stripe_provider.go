package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"

	"github.com/launchpad/api/internal/platform/requestctx"
)

const (
	eventCheckoutCompleted = "checkout.session.completed"
	eventAccountUpdated    = "account.updated"
)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeAccountAPI interface {
	New(params *stripe.AccountParams) (*stripe.Account, error)
	GetByID(id string, params *stripe.AccountParams) (*stripe.Account, error)
}

type stripeAccountLinkAPI interface {
	New(params *stripe.AccountLinkParams) (*stripe.AccountLink, error)
}

type stripeClients struct {
	sessions     stripeSessionAPI
	accounts     stripeAccountAPI
	accountLinks stripeAccountLinkAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey        string
	WebhookSecret string
	Backends      *stripe.Backends
	Clock         func() time.Time
	Clients       *stripeClients
}

// StripeProvider implements Provider with Stripe Checkout and Connect Express accounts.
type StripeProvider struct {
	api           stripeClients
	webhookSecret string
	clock         func() time.Time
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider constructs a StripeProvider.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			sessions:     sc.CheckoutSessions,
			accounts:     sc.Accounts,
			accountLinks: sc.AccountLinks,
		}
	}
	if clients.sessions == nil || clients.accounts == nil || clients.accountLinks == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &StripeProvider{
		api:           clients,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		clock:         func() time.Time { return clock().UTC() },
	}, nil
}

// CreateCheckoutSession creates a hosted payment page with a destination charge to the seller.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if strings.TrimSpace(req.DestinationAccount) == "" {
		return CheckoutSession{}, errors.New("stripe: destination account is required")
	}
	metadata := map[string]string{
		MetadataOwnerID:   req.OwnerID,
		MetadataProductID: req.ProductID,
	}

	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(req.Title)}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		product.Description = stripe.String(truncate(desc, 500))
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(strings.ToLower(req.Currency)),
				UnitAmount:  stripe.Int64(req.AmountMinor),
				ProductData: product,
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(req.DestinationAccount),
			},
			Metadata: metadata,
		},
		Metadata: metadata,
	}
	if req.ApplicationFee > 0 {
		params.PaymentIntentData.ApplicationFeeAmount = stripe.Int64(req.ApplicationFee)
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}

	session, err := p.api.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	requestctx.Logger(ctx).Info("stripe checkout session created",
		zap.String("session_id", session.ID),
		zap.String("product_id", req.ProductID),
		zap.Int64("application_fee", req.ApplicationFee),
	)

	expiresAt := p.clock().Add(24 * time.Hour)
	if session.ExpiresAt != 0 {
		expiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	return CheckoutSession{ID: session.ID, URL: session.URL, ExpiresAt: expiresAt}, nil
}

// CreateConnectAccount opens an Express account for the seller.
func (p *StripeProvider) CreateConnectAccount(ctx context.Context, sellerUID, email, country string) (ConnectAccount, error) {
	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String(country),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	if email = strings.TrimSpace(email); email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata(MetadataSellerUID, sellerUID)
	params.Context = ctx
	params.SetIdempotencyKey("connect-account-" + sellerUID)

	account, err := p.api.accounts.New(params)
	if err != nil {
		return ConnectAccount{}, fmt.Errorf("stripe: create connect account: %w", err)
	}
	requestctx.Logger(ctx).Info("stripe connect account created", zap.String("account_id", account.ID))
	return toConnectAccount(account), nil
}

// GetConnectAccount fetches current capability flags.
func (p *StripeProvider) GetConnectAccount(ctx context.Context, accountID string) (ConnectAccount, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx
	account, err := p.api.accounts.GetByID(accountID, params)
	if err != nil {
		return ConnectAccount{}, fmt.Errorf("stripe: get connect account: %w", err)
	}
	return toConnectAccount(account), nil
}

// CreateAccountLink returns a single-use onboarding URL.
func (p *StripeProvider) CreateAccountLink(ctx context.Context, req AccountLinkRequest) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(req.AccountID),
		RefreshURL: stripe.String(req.RefreshURL),
		ReturnURL:  stripe.String(req.ReturnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx
	link, err := p.api.accountLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create account link: %w", err)
	}
	return link.URL, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the events the service handles.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	if p.webhookSecret == "" {
		return WebhookEvent{}, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{Tolerance: webhook.DefaultTolerance, IgnoreAPIVersionMismatch: true})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := WebhookEvent{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case eventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return WebhookEvent{}, fmt.Errorf("stripe: decode checkout session: %w", err)
		}
		completedAt := p.clock()
		if event.Created != 0 {
			completedAt = time.Unix(event.Created, 0).UTC()
		}
		out.Checkout = &CompletedCheckout{
			SessionID:   session.ID,
			OwnerID:     session.Metadata[MetadataOwnerID],
			ProductID:   session.Metadata[MetadataProductID],
			AmountMinor: session.AmountTotal,
			Currency:    string(session.Currency),
			Paid:        session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
			CompletedAt: completedAt,
		}
	case eventAccountUpdated:
		var account stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
			return WebhookEvent{}, fmt.Errorf("stripe: decode account: %w", err)
		}
		connect := toConnectAccount(&account)
		out.Account = &connect
	default:
		return out, ErrUnhandledEvent
	}
	return out, nil
}

func toConnectAccount(account *stripe.Account) ConnectAccount {
	if account == nil {
		return ConnectAccount{}
	}
	return ConnectAccount{
		ID:               account.ID,
		ChargesEnabled:   account.ChargesEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
		SellerUID:        account.Metadata[MetadataSellerUID],
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
