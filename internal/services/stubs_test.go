package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/launchpad/api/internal/domain"
	"github.com/launchpad/api/internal/payments"
)

type fakeRepositoryError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e fakeRepositoryError) Error() string {
	parts := []string{"repository error"}
	if e.notFound {
		parts = append(parts, "(not found)")
	}
	if e.unavailable {
		parts = append(parts, "(unavailable)")
	}
	return strings.Join(parts, " ")
}

func (e fakeRepositoryError) IsNotFound() bool    { return e.notFound }
func (e fakeRepositoryError) IsConflict() bool    { return e.conflict }
func (e fakeRepositoryError) IsUnavailable() bool { return e.unavailable }

type stubProductRepository struct {
	mu        sync.Mutex
	products  map[string]domain.Product
	sales     map[string]domain.SaleRecord
	nextID    int
	createErr error
	getErr    error
	updateErr error
	creates   int
	updates   int
	views     int
	// updateHook runs inside Update before the write, with the lock released.
	updateHook func()
}

func newStubProductRepository() *stubProductRepository {
	return &stubProductRepository{
		products: make(map[string]domain.Product),
		sales:    make(map[string]domain.SaleRecord),
	}
}

func productKeyOf(ownerID, productID string) string { return ownerID + "/" + productID }

func (r *stubProductRepository) put(product domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[productKeyOf(product.OwnerID, product.ID)] = product.Clone()
}

func (r *stubProductRepository) Create(_ context.Context, product domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createErr != nil {
		return domain.Product{}, r.createErr
	}
	r.nextID++
	product.ID = fmt.Sprintf("prod-%d", r.nextID)
	r.products[productKeyOf(product.OwnerID, product.ID)] = product.Clone()
	return product, nil
}

func (r *stubProductRepository) Get(_ context.Context, ownerID, productID string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return domain.Product{}, r.getErr
	}
	product, ok := r.products[productKeyOf(ownerID, productID)]
	if !ok {
		return domain.Product{}, fakeRepositoryError{notFound: true}
	}
	return product.Clone(), nil
}

func (r *stubProductRepository) Update(_ context.Context, product domain.Product) (domain.Product, error) {
	if r.updateHook != nil {
		r.updateHook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.updateErr != nil {
		return domain.Product{}, r.updateErr
	}
	key := productKeyOf(product.OwnerID, product.ID)
	if _, ok := r.products[key]; !ok {
		return domain.Product{}, fakeRepositoryError{notFound: true}
	}
	r.products[key] = product.Clone()
	return product, nil
}

func (r *stubProductRepository) UpdateElementOrder(_ context.Context, ownerID, productID string, order []domain.ElementKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := productKeyOf(ownerID, productID)
	product, ok := r.products[key]
	if !ok {
		return fakeRepositoryError{notFound: true}
	}
	product.ElementOrder = append([]domain.ElementKind(nil), order...)
	r.products[key] = product
	return nil
}

func (r *stubProductRepository) ListByOwner(_ context.Context, ownerID string, _ domain.Pagination) (domain.CursorPage[domain.Product], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var page domain.CursorPage[domain.Product]
	for _, product := range r.products {
		if product.OwnerID == ownerID {
			page.Items = append(page.Items, product.Clone())
		}
	}
	return page, nil
}

func (r *stubProductRepository) IncrementViews(_ context.Context, ownerID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := productKeyOf(ownerID, productID)
	product, ok := r.products[key]
	if !ok {
		return fakeRepositoryError{notFound: true}
	}
	product.Views++
	r.products[key] = product
	r.views++
	return nil
}

func (r *stubProductRepository) RecordSale(_ context.Context, sale domain.SaleRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := productKeyOf(sale.OwnerID, sale.ProductID)
	product, ok := r.products[key]
	if !ok {
		return false, fakeRepositoryError{notFound: true}
	}
	if _, seen := r.sales[sale.SessionID]; seen {
		return false, nil
	}
	r.sales[sale.SessionID] = sale
	product.Sales++
	product.RevenueMinor += sale.AmountMinor
	r.products[key] = product
	return true, nil
}

type stubSellerRepository struct {
	profiles  map[string]domain.SellerProfile
	getErr    error
	claims    int
	statusErr error
}

func newStubSellerRepository(profiles ...domain.SellerProfile) *stubSellerRepository {
	repo := &stubSellerRepository{profiles: make(map[string]domain.SellerProfile)}
	for _, profile := range profiles {
		repo.profiles[profile.UID] = profile
	}
	return repo
}

func (r *stubSellerRepository) Get(_ context.Context, uid string) (domain.SellerProfile, error) {
	if r.getErr != nil {
		return domain.SellerProfile{}, r.getErr
	}
	profile, ok := r.profiles[uid]
	if !ok {
		return domain.SellerProfile{}, fakeRepositoryError{notFound: true}
	}
	return profile, nil
}

func (r *stubSellerRepository) ClaimStripeAccount(_ context.Context, uid, email, accountID string) (domain.SellerProfile, error) {
	r.claims++
	profile := r.profiles[uid]
	if profile.StripeAccountID != "" {
		return profile, nil
	}
	profile.UID = uid
	profile.Email = email
	profile.StripeAccountID = accountID
	r.profiles[uid] = profile
	return profile, nil
}

func (r *stubSellerRepository) UpdateStripeStatus(_ context.Context, uid string, chargesEnabled, detailsSubmitted bool) (domain.SellerProfile, error) {
	if r.statusErr != nil {
		return domain.SellerProfile{}, r.statusErr
	}
	profile, ok := r.profiles[uid]
	if !ok {
		return domain.SellerProfile{}, fakeRepositoryError{notFound: true}
	}
	profile.StripeChargesEnabled = chargesEnabled
	profile.StripeDetailsSubmitted = detailsSubmitted
	r.profiles[uid] = profile
	return profile, nil
}

type stubEventPublisher struct {
	events []domain.ProductEvent
	err    error
}

func (p *stubEventPublisher) PublishProductEvent(_ context.Context, event domain.ProductEvent) (string, error) {
	p.events = append(p.events, event)
	if p.err != nil {
		return "", p.err
	}
	return "msg-1", nil
}

type stubPaymentProvider struct {
	checkoutReq  payments.CheckoutRequest
	checkoutErr  error
	accounts     int
	account      payments.ConnectAccount
	linkReq      payments.AccountLinkRequest
	event        payments.WebhookEvent
	webhookErr   error
	getAccount   payments.ConnectAccount
	getAccountEr error
}

func (p *stubPaymentProvider) CreateCheckoutSession(_ context.Context, req payments.CheckoutRequest) (payments.CheckoutSession, error) {
	p.checkoutReq = req
	if p.checkoutErr != nil {
		return payments.CheckoutSession{}, p.checkoutErr
	}
	return payments.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.test/cs_1"}, nil
}

func (p *stubPaymentProvider) CreateConnectAccount(_ context.Context, sellerUID, _, _ string) (payments.ConnectAccount, error) {
	p.accounts++
	account := p.account
	if account.ID == "" {
		account.ID = "acct_new"
	}
	account.SellerUID = sellerUID
	return account, nil
}

func (p *stubPaymentProvider) GetConnectAccount(_ context.Context, accountID string) (payments.ConnectAccount, error) {
	if p.getAccountEr != nil {
		return payments.ConnectAccount{}, p.getAccountEr
	}
	account := p.getAccount
	account.ID = accountID
	return account, nil
}

func (p *stubPaymentProvider) CreateAccountLink(_ context.Context, req payments.AccountLinkRequest) (string, error) {
	p.linkReq = req
	return "https://connect.stripe.test/setup/" + req.AccountID, nil
}

func (p *stubPaymentProvider) ParseWebhook([]byte, string) (payments.WebhookEvent, error) {
	return p.event, p.webhookErr
}

var _ payments.Provider = (*stubPaymentProvider)(nil)

var errBoom = errors.New("boom")

func publishableProduct(ownerID string) domain.Product {
	product := domain.NewProduct(ownerID)
	product.Title = "Launch Guide"
	product.Description = "Everything you need"
	product.Features = []string{"Templates", "Checklists"}
	product.Content = "Chapter one"
	product.PriceMinor = 1900
	return product
}
