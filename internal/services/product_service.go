package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/launchpad/api/internal/builder"
	"github.com/launchpad/api/internal/domain"
	"github.com/launchpad/api/internal/platform/requestctx"
	"github.com/launchpad/api/internal/repositories"
)

// ProductServiceDeps bundles collaborators required by the product service.
type ProductServiceDeps struct {
	Products     repositories.ProductRepository
	Events       ProductEventPublisher
	PublicOrigin string
	Clock        func() time.Time
}

type productService struct {
	products repositories.ProductRepository
	events   ProductEventPublisher
	origin   string
	clock    func() time.Time

	mu     sync.Mutex
	saving map[string]struct{}
}

var _ ProductService = (*productService)(nil)

// NewProductService constructs a ProductService.
func NewProductService(deps ProductServiceDeps) (ProductService, error) {
	if deps.Products == nil {
		return nil, errors.New("product service: product repository is required")
	}
	origin := strings.TrimRight(strings.TrimSpace(deps.PublicOrigin), "/")
	if origin == "" {
		return nil, errors.New("product service: public origin is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &productService{
		products: deps.Products,
		events:   deps.Events,
		origin:   origin,
		clock: func() time.Time {
			return clock().UTC()
		},
		saving: make(map[string]struct{}),
	}, nil
}

// Publish stores product with a single create call and returns its public URL. Counters start at
// zero and publication fields are stamped here regardless of what the caller sent.
func (s *productService) Publish(ctx context.Context, product Product) (PublishedProduct, error) {
	ownerID := strings.TrimSpace(product.OwnerID)
	if ownerID == "" {
		return PublishedProduct{}, ErrProductInvalidInput
	}
	if errs := builder.ValidatePublish(product, domain.FormatPriceInput(product.PriceMinor, product.Currency)); len(errs) > 0 {
		return PublishedProduct{}, errs
	}

	now := s.clock()
	doc := product.Clone()
	doc.ID = ""
	doc.OwnerID = ownerID
	doc.Published = true
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Views = 0
	doc.Sales = 0
	doc.RevenueMinor = 0
	doc.ElementOrder = domain.NormalizeOrder(doc.ElementOrder)

	stored, err := s.products.Create(ctx, doc)
	if err != nil {
		return PublishedProduct{}, mapRepositoryError(err, nil, ErrProductUnavailable, ErrProductConflict)
	}
	publicURL := s.PublicURL(ownerID, stored.ID)

	logger := requestctx.Logger(ctx)
	logger.Info("product published", zap.String("owner_id", ownerID), zap.String("product_id", stored.ID))

	if s.events != nil {
		event := domain.ProductEvent{
			Type:       domain.ProductEventPublished,
			OwnerID:    ownerID,
			ProductID:  stored.ID,
			PublicURL:  publicURL,
			OccurredAt: now,
		}
		if _, err := s.events.PublishProductEvent(ctx, event); err != nil {
			logger.Warn("product event publish failed", zap.String("product_id", stored.ID), zap.Error(err))
		}
	}

	return PublishedProduct{Product: stored, PublicURL: publicURL}, nil
}

func (s *productService) Get(ctx context.Context, ownerID, productID string) (Product, error) {
	ownerID, productID, err := productKey(ownerID, productID)
	if err != nil {
		return Product{}, err
	}
	product, err := s.products.Get(ctx, ownerID, productID)
	if err != nil {
		return Product{}, mapProductError(err)
	}
	return product, nil
}

func (s *productService) List(ctx context.Context, ownerID string, pager Pagination) (domain.CursorPage[Product], error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.CursorPage[Product]{}, ErrProductInvalidInput
	}
	page, err := s.products.ListByOwner(ctx, ownerID, pager)
	if err != nil {
		return domain.CursorPage[Product]{}, mapProductError(err)
	}
	return page, nil
}

// Save applies cmd.Patch to the stored product and writes it back with a single update.
// Overlapping saves of the same product are rejected rather than queued.
func (s *productService) Save(ctx context.Context, cmd SaveProductCommand) (Product, error) {
	ownerID, productID, err := productKey(cmd.OwnerID, cmd.ProductID)
	if err != nil {
		return Product{}, err
	}
	release, ok := s.beginSave(ownerID + "/" + productID)
	if !ok {
		return Product{}, ErrProductSaveInProgress
	}
	defer release()

	product, err := s.products.Get(ctx, ownerID, productID)
	if err != nil {
		return Product{}, mapProductError(err)
	}
	if cmd.Patch.Empty() {
		return product, nil
	}

	cmd.Patch.Apply(&product)
	priceInput := domain.FormatPriceInput(product.PriceMinor, product.Currency)
	if cmd.Patch.Price != nil {
		priceInput = *cmd.Patch.Price
	}
	if errs := builder.ValidatePublish(product, priceInput); len(errs) > 0 {
		return Product{}, errs
	}
	product.UpdatedAt = s.clock()

	updated, err := s.products.Update(ctx, product)
	if err != nil {
		return Product{}, mapProductError(err)
	}
	requestctx.Logger(ctx).Info("product saved", zap.String("owner_id", ownerID), zap.String("product_id", productID))
	return updated, nil
}

func (s *productService) MoveElement(ctx context.Context, cmd MoveElementCommand) (Product, error) {
	ownerID, productID, err := productKey(cmd.OwnerID, cmd.ProductID)
	if err != nil {
		return Product{}, err
	}
	product, err := s.products.Get(ctx, ownerID, productID)
	if err != nil {
		return Product{}, mapProductError(err)
	}
	if !domain.CanReorder(product) {
		return Product{}, builder.ErrReorderUnavailable
	}
	product.MoveElement(cmd.Kind, cmd.Direction)
	if err := s.products.UpdateElementOrder(ctx, ownerID, productID, product.ElementOrder); err != nil {
		return Product{}, mapProductError(err)
	}
	return product, nil
}

// GetPublic returns a published product. Drafts are indistinguishable from missing products.
func (s *productService) GetPublic(ctx context.Context, ownerID, productID string) (Product, error) {
	product, err := s.Get(ctx, ownerID, productID)
	if err != nil {
		return Product{}, err
	}
	if !product.Published {
		return Product{}, ErrProductNotFound
	}
	return product, nil
}

func (s *productService) RecordView(ctx context.Context, ownerID, productID string) error {
	ownerID, productID, err := productKey(ownerID, productID)
	if err != nil {
		return err
	}
	if err := s.products.IncrementViews(ctx, ownerID, productID); err != nil {
		return mapProductError(err)
	}
	return nil
}

// PublicURL derives the storefront URL <origin>/p/<owner>/<id>.
func (s *productService) PublicURL(ownerID, productID string) string {
	return s.origin + "/p/" + url.PathEscape(ownerID) + "/" + url.PathEscape(productID)
}

func (s *productService) beginSave(key string) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.saving[key]; busy {
		return nil, false
	}
	s.saving[key] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.saving, key)
		s.mu.Unlock()
	}, true
}

func productKey(ownerID, productID string) (string, string, error) {
	ownerID = strings.TrimSpace(ownerID)
	productID = strings.TrimSpace(productID)
	if ownerID == "" || productID == "" {
		return "", "", ErrProductInvalidInput
	}
	return ownerID, productID, nil
}
