package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/launchpad/api/internal/payments"
	"github.com/launchpad/api/internal/platform/requestctx"
	"github.com/launchpad/api/internal/repositories"
)

const (
	defaultConnectCountry     = "US"
	defaultConnectReturnPath  = "/dashboard/payouts?connected=1"
	defaultConnectRefreshPath = "/dashboard/payouts?refresh=1"
)

var (
	// ErrConnectInvalidInput indicates the seller identifier is missing.
	ErrConnectInvalidInput = errors.New("connect: invalid input")
	// ErrConnectUnavailable indicates Stripe or the document store failed.
	ErrConnectUnavailable = errors.New("connect: unavailable")
)

type connectAccountProvider interface {
	CreateConnectAccount(ctx context.Context, sellerUID, email, country string) (payments.ConnectAccount, error)
	GetConnectAccount(ctx context.Context, accountID string) (payments.ConnectAccount, error)
	CreateAccountLink(ctx context.Context, req payments.AccountLinkRequest) (string, error)
}

// ConnectServiceDeps wires the Connect onboarding service.
type ConnectServiceDeps struct {
	Sellers      repositories.SellerRepository
	Payments     connectAccountProvider
	PublicOrigin string
	Country      string
	ReturnPath   string
	RefreshPath  string
}

type connectService struct {
	sellers     repositories.SellerRepository
	payments    connectAccountProvider
	origin      string
	country     string
	returnPath  string
	refreshPath string
}

var _ ConnectService = (*connectService)(nil)

// NewConnectService constructs a ConnectService.
func NewConnectService(deps ConnectServiceDeps) (ConnectService, error) {
	if deps.Sellers == nil {
		return nil, errors.New("connect service: seller repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("connect service: payment provider is required")
	}
	origin := normaliseOrigin(deps.PublicOrigin)
	if origin == "" {
		return nil, errors.New("connect service: public origin is required")
	}
	return &connectService{
		sellers:     deps.Sellers,
		payments:    deps.Payments,
		origin:      origin,
		country:     firstNonEmpty(strings.ToUpper(strings.TrimSpace(deps.Country)), defaultConnectCountry),
		returnPath:  ensureLeadingSlash(firstNonEmpty(deps.ReturnPath, defaultConnectReturnPath)),
		refreshPath: ensureLeadingSlash(firstNonEmpty(deps.RefreshPath, defaultConnectRefreshPath)),
	}, nil
}

// Onboard creates the seller's Express account once and returns a fresh onboarding link.
func (s *connectService) Onboard(ctx context.Context, cmd OnboardCommand) (ConnectOnboarding, error) {
	uid := strings.TrimSpace(cmd.SellerUID)
	if uid == "" {
		return ConnectOnboarding{}, ErrConnectInvalidInput
	}

	profile, err := s.sellers.Get(ctx, uid)
	if err != nil && !isRepositoryNotFound(err) {
		return ConnectOnboarding{}, fmt.Errorf("%w: %v", ErrConnectUnavailable, err)
	}

	if profile.StripeAccountID == "" {
		account, err := s.payments.CreateConnectAccount(ctx, uid, cmd.Email, s.country)
		if err != nil {
			return ConnectOnboarding{}, fmt.Errorf("%w: %v", ErrConnectUnavailable, err)
		}
		profile, err = s.sellers.ClaimStripeAccount(ctx, uid, cmd.Email, account.ID)
		if err != nil {
			return ConnectOnboarding{}, fmt.Errorf("%w: %v", ErrConnectUnavailable, err)
		}
		if profile.StripeAccountID != account.ID {
			requestctx.Logger(ctx).Warn("connect account already claimed",
				zap.String("existing_account", profile.StripeAccountID),
				zap.String("orphan_account", account.ID),
			)
		}
	}

	link, err := s.payments.CreateAccountLink(ctx, payments.AccountLinkRequest{
		AccountID:  profile.StripeAccountID,
		RefreshURL: s.origin + s.refreshPath,
		ReturnURL:  s.origin + s.returnPath,
	})
	if err != nil {
		return ConnectOnboarding{}, fmt.Errorf("%w: %v", ErrConnectUnavailable, err)
	}
	return ConnectOnboarding{AccountID: profile.StripeAccountID, URL: link, Profile: profile}, nil
}

// Status returns the payout profile, refreshing capability flags from Stripe until charges are enabled.
func (s *connectService) Status(ctx context.Context, sellerUID string) (SellerProfile, error) {
	uid := strings.TrimSpace(sellerUID)
	if uid == "" {
		return SellerProfile{}, ErrConnectInvalidInput
	}
	profile, err := s.sellers.Get(ctx, uid)
	if err != nil {
		if isRepositoryNotFound(err) {
			return SellerProfile{UID: uid}, nil
		}
		return SellerProfile{}, fmt.Errorf("%w: %v", ErrConnectUnavailable, err)
	}
	if profile.StripeAccountID == "" || profile.PayoutsReady() {
		return profile, nil
	}

	account, err := s.payments.GetConnectAccount(ctx, profile.StripeAccountID)
	if err != nil {
		requestctx.Logger(ctx).Warn("connect status refresh failed", zap.Error(err))
		return profile, nil
	}
	if account.ChargesEnabled == profile.StripeChargesEnabled && account.DetailsSubmitted == profile.StripeDetailsSubmitted {
		return profile, nil
	}
	updated, err := s.sellers.UpdateStripeStatus(ctx, uid, account.ChargesEnabled, account.DetailsSubmitted)
	if err != nil {
		return SellerProfile{}, fmt.Errorf("%w: %v", ErrConnectUnavailable, err)
	}
	return updated, nil
}

func isRepositoryNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
	}
	return ""
}

func ensureLeadingSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}
