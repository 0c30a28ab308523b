package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/launchpad/api/internal/payments"
	"github.com/launchpad/api/internal/platform/requestctx"
	"github.com/launchpad/api/internal/repositories"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
	// ErrCheckoutSellerNotReady indicates the seller has not finished Stripe onboarding.
	ErrCheckoutSellerNotReady = errors.New("checkout: seller cannot accept payments")
	// ErrCheckoutPaymentFailed indicates the PSP session could not be created.
	ErrCheckoutPaymentFailed = errors.New("checkout: payment failed")
)

type checkoutSessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (payments.CheckoutSession, error)
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Products       ProductService
	Sellers        repositories.SellerRepository
	Payments       checkoutSessionCreator
	PublicOrigin   string
	AllowedOrigins []string
	PlatformFeeBps int
}

type checkoutService struct {
	products ProductService
	sellers  repositories.SellerRepository
	payments checkoutSessionCreator
	origin   string
	allowed  map[string]struct{}
	feeBps   int
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Products == nil {
		return nil, errors.New("checkout service: product service is required")
	}
	if deps.Sellers == nil {
		return nil, errors.New("checkout service: seller repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment provider is required")
	}
	origin := normaliseOrigin(deps.PublicOrigin)
	if origin == "" {
		return nil, errors.New("checkout service: public origin is required")
	}
	allowed := map[string]struct{}{origin: {}}
	for _, candidate := range deps.AllowedOrigins {
		if o := normaliseOrigin(candidate); o != "" {
			allowed[o] = struct{}{}
		}
	}
	return &checkoutService{
		products: deps.Products,
		sellers:  deps.Sellers,
		payments: deps.Payments,
		origin:   origin,
		allowed:  allowed,
		feeBps:   deps.PlatformFeeBps,
	}, nil
}

// CreateCheckout creates a hosted checkout for a published product. The buyer returns to the
// product page, with purchased=1 on success. Free products skip the payment provider and return
// the unlocked page URL.
func (s *checkoutService) CreateCheckout(ctx context.Context, cmd CheckoutCommand) (payments.CheckoutSession, error) {
	ownerID := strings.TrimSpace(cmd.OwnerID)
	productID := strings.TrimSpace(cmd.ProductID)
	if ownerID == "" || productID == "" {
		return payments.CheckoutSession{}, ErrCheckoutInvalidInput
	}

	product, err := s.products.GetPublic(ctx, ownerID, productID)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return payments.CheckoutSession{}, ErrProductNotFound
		}
		return payments.CheckoutSession{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}
	pageURL := s.resolveOrigin(cmd.Origin) + "/p/" + url.PathEscape(ownerID) + "/" + url.PathEscape(productID)
	if product.PriceMinor <= 0 {
		// Free pages unlock directly; the seller needs no payout account.
		return payments.CheckoutSession{URL: pageURL + "?purchased=1"}, nil
	}

	seller, err := s.sellers.Get(ctx, ownerID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return payments.CheckoutSession{}, ErrCheckoutSellerNotReady
		}
		return payments.CheckoutSession{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}
	if !seller.PayoutsReady() {
		return payments.CheckoutSession{}, ErrCheckoutSellerNotReady
	}

	session, err := s.payments.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		OwnerID:            ownerID,
		ProductID:          productID,
		Title:              product.Title,
		Description:        product.Description,
		AmountMinor:        product.PriceMinor,
		Currency:           product.Currency,
		DestinationAccount: seller.StripeAccountID,
		ApplicationFee:     payments.PlatformFee(product.PriceMinor, s.feeBps),
		SuccessURL:         pageURL + "?purchased=1",
		CancelURL:          pageURL,
		IdempotencyKey:     strings.TrimSpace(cmd.IdempotencyKey),
	})
	if err != nil {
		requestctx.Logger(ctx).Error("checkout session creation failed",
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return payments.CheckoutSession{}, fmt.Errorf("%w: %v", ErrCheckoutPaymentFailed, err)
	}
	return session, nil
}

// resolveOrigin returns origin when it is allow-listed, otherwise the configured public origin.
func (s *checkoutService) resolveOrigin(origin string) string {
	if o := normaliseOrigin(origin); o != "" {
		if _, ok := s.allowed[o]; ok {
			return o
		}
	}
	return s.origin
}

func normaliseOrigin(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return ""
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return ""
	}
	return strings.ToLower(parsed.Scheme + "://" + parsed.Host)
}
