package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/launchpad/api/internal/domain"
	"github.com/launchpad/api/internal/payments"
	"github.com/launchpad/api/internal/platform/requestctx"
	"github.com/launchpad/api/internal/repositories"
)

var (
	// ErrWebhookInvalidSignature indicates the payload failed signature verification.
	ErrWebhookInvalidSignature = errors.New("sales: invalid webhook signature")
	// ErrWebhookInvalidPayload indicates a verified event could not be applied because it is malformed.
	ErrWebhookInvalidPayload = errors.New("sales: invalid webhook payload")
	// ErrSalesUnavailable indicates the document store failed; the provider should redeliver.
	ErrSalesUnavailable = errors.New("sales: unavailable")
)

type webhookParser interface {
	ParseWebhook(payload []byte, signature string) (payments.WebhookEvent, error)
}

// SalesServiceDeps wires the webhook handler.
type SalesServiceDeps struct {
	Webhooks webhookParser
	Products repositories.ProductRepository
	Sellers  repositories.SellerRepository
}

type salesService struct {
	webhooks webhookParser
	products repositories.ProductRepository
	sellers  repositories.SellerRepository
}

var _ SalesService = (*salesService)(nil)

// NewSalesService constructs a SalesService.
func NewSalesService(deps SalesServiceDeps) (SalesService, error) {
	if deps.Webhooks == nil {
		return nil, errors.New("sales service: webhook parser is required")
	}
	if deps.Products == nil {
		return nil, errors.New("sales service: product repository is required")
	}
	if deps.Sellers == nil {
		return nil, errors.New("sales service: seller repository is required")
	}
	return &salesService{webhooks: deps.Webhooks, products: deps.Products, sellers: deps.Sellers}, nil
}

// HandleWebhook verifies and applies a provider event. Redelivered checkout events are no-ops.
func (s *salesService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	event, err := s.webhooks.ParseWebhook(payload, signature)
	switch {
	case errors.Is(err, payments.ErrUnhandledEvent):
		return WebhookResult{EventID: event.ID, EventType: event.Type}, nil
	case errors.Is(err, payments.ErrInvalidSignature):
		return WebhookResult{}, ErrWebhookInvalidSignature
	case err != nil:
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrWebhookInvalidPayload, err)
	}

	result := WebhookResult{EventID: event.ID, EventType: event.Type}
	logger := requestctx.Logger(ctx).With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	switch {
	case event.Checkout != nil:
		applied, err := s.applyCheckout(ctx, *event.Checkout)
		if err != nil {
			return result, err
		}
		result.Applied = applied
		logger.Info("checkout webhook processed", zap.Bool("applied", applied))
	case event.Account != nil:
		applied, err := s.applyAccount(ctx, *event.Account)
		if err != nil {
			return result, err
		}
		result.Applied = applied
		logger.Info("account webhook processed", zap.Bool("applied", applied))
	}
	return result, nil
}

func (s *salesService) applyCheckout(ctx context.Context, checkout payments.CompletedCheckout) (bool, error) {
	if !checkout.Paid {
		return false, nil
	}
	ownerID := strings.TrimSpace(checkout.OwnerID)
	productID := strings.TrimSpace(checkout.ProductID)
	if ownerID == "" || productID == "" || strings.TrimSpace(checkout.SessionID) == "" {
		return false, fmt.Errorf("%w: checkout session missing product metadata", ErrWebhookInvalidPayload)
	}
	applied, err := s.products.RecordSale(ctx, domain.SaleRecord{
		SessionID:   checkout.SessionID,
		OwnerID:     ownerID,
		ProductID:   productID,
		AmountMinor: checkout.AmountMinor,
		Currency:    checkout.Currency,
		CompletedAt: checkout.CompletedAt,
	})
	if err != nil {
		if isRepositoryNotFound(err) {
			requestctx.Logger(ctx).Warn("sale for unknown product ignored", zap.String("product_id", productID))
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrSalesUnavailable, err)
	}
	return applied, nil
}

func (s *salesService) applyAccount(ctx context.Context, account payments.ConnectAccount) (bool, error) {
	uid := strings.TrimSpace(account.SellerUID)
	if uid == "" {
		return false, nil
	}
	if _, err := s.sellers.UpdateStripeStatus(ctx, uid, account.ChargesEnabled, account.DetailsSubmitted); err != nil {
		if isRepositoryNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrSalesUnavailable, err)
	}
	return true, nil
}
