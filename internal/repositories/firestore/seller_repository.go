package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/launchpad/api/internal/domain"
	pfirestore "github.com/launchpad/api/internal/platform/firestore"
	"github.com/launchpad/api/internal/repositories"
)

var usersPath = pfirestore.Path{usersCollection}

// SellerRepository keeps Stripe Connect payout state on the seller's user document.
type SellerRepository struct {
	provider *pfirestore.Provider
	users    *pfirestore.Collection[sellerDocument]
	now      func() time.Time
}

var _ repositories.SellerRepository = (*SellerRepository)(nil)

// NewSellerRepository constructs a Firestore-backed seller repository.
func NewSellerRepository(provider *pfirestore.Provider) (*SellerRepository, error) {
	if provider == nil {
		return nil, errors.New("seller repository requires firestore provider")
	}
	return &SellerRepository{
		provider: provider,
		users:    pfirestore.NewCollection[sellerDocument](provider, usersCollection, nil, nil),
		now:      time.Now,
	}, nil
}

// Get loads the seller profile.
func (r *SellerRepository) Get(ctx context.Context, uid string) (domain.SellerProfile, error) {
	doc, err := r.users.Get(ctx, usersPath, uid)
	if err != nil {
		return domain.SellerProfile{}, err
	}
	return toDomainSeller(doc), nil
}

// ClaimStripeAccount attaches accountID to the profile inside a transaction so two concurrent
// onboarding requests cannot both attach an account.
func (r *SellerRepository) ClaimStripeAccount(ctx context.Context, uid, email, accountID string) (domain.SellerProfile, error) {
	if strings.TrimSpace(accountID) == "" {
		return domain.SellerProfile{}, errors.New("stripe account id is required")
	}
	ref, err := r.users.Doc(ctx, usersPath, uid)
	if err != nil {
		return domain.SellerProfile{}, err
	}

	var profile domain.SellerProfile
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := r.now().UTC()
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			doc := sellerDocument{Email: email, StripeAccountID: accountID, CreatedAt: now, UpdatedAt: now}
			profile = toDomainSeller(pfirestore.Document[sellerDocument]{ID: uid, Data: doc})
			return tx.Create(ref, doc)
		case err != nil:
			return err
		}

		existing, err := r.users.Decode(snap)
		if err != nil {
			return err
		}
		if existing.Data.StripeAccountID != "" {
			profile = toDomainSeller(existing)
			return nil
		}
		existing.Data.StripeAccountID = accountID
		existing.Data.UpdatedAt = now
		if existing.Data.Email == "" {
			existing.Data.Email = email
		}
		profile = toDomainSeller(existing)
		return tx.Set(ref, map[string]any{
			"email":           existing.Data.Email,
			"stripeAccountId": accountID,
			"updatedAt":       now,
		}, firestore.MergeAll)
	})
	if err != nil {
		return domain.SellerProfile{}, pfirestore.WrapError("users.claimStripeAccount", err)
	}
	return profile, nil
}

// UpdateStripeStatus records the capability flags reported by Stripe.
func (r *SellerRepository) UpdateStripeStatus(ctx context.Context, uid string, chargesEnabled, detailsSubmitted bool) (domain.SellerProfile, error) {
	err := r.users.Update(ctx, usersPath, uid, []firestore.Update{
		{Path: "stripeChargesEnabled", Value: chargesEnabled},
		{Path: "stripeDetailsSubmitted", Value: detailsSubmitted},
		{Path: "updatedAt", Value: r.now().UTC()},
	}, firestore.Exists)
	if err != nil {
		return domain.SellerProfile{}, err
	}
	return r.Get(ctx, uid)
}

type sellerDocument struct {
	Email                  string    `firestore:"email,omitempty"`
	StripeAccountID        string    `firestore:"stripeAccountId,omitempty"`
	StripeChargesEnabled   bool      `firestore:"stripeChargesEnabled"`
	StripeDetailsSubmitted bool      `firestore:"stripeDetailsSubmitted"`
	CreatedAt              time.Time `firestore:"createdAt"`
	UpdatedAt              time.Time `firestore:"updatedAt"`
}

func toDomainSeller(doc pfirestore.Document[sellerDocument]) domain.SellerProfile {
	profile := domain.SellerProfile{
		UID:                    doc.ID,
		Email:                  doc.Data.Email,
		StripeAccountID:        doc.Data.StripeAccountID,
		StripeChargesEnabled:   doc.Data.StripeChargesEnabled,
		StripeDetailsSubmitted: doc.Data.StripeDetailsSubmitted,
		CreatedAt:              doc.Data.CreatedAt,
		UpdatedAt:              doc.Data.UpdatedAt,
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = doc.CreateTime
	}
	return profile
}
