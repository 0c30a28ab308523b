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
	"github.com/launchpad/api/internal/platform/pagination"
	"github.com/launchpad/api/internal/repositories"
)

const (
	usersCollection    = "users"
	productsCollection = "products"
	salesCollection    = "sales"
)

// ProductRepository stores sales pages at users/{ownerID}/products/{productID}.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[productDocument]
	sales    *pfirestore.Collection[saleDocument]
	now      func() time.Time
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewCollection[productDocument](provider, productsCollection, nil, nil),
		sales:    pfirestore.NewCollection[saleDocument](provider, salesCollection, nil, nil),
		now:      time.Now,
	}, nil
}

func productsPath(ownerID string) pfirestore.Path {
	return pfirestore.Path{usersCollection, ownerID, productsCollection}
}

func salesPath(ownerID, productID string) pfirestore.Path {
	return pfirestore.Path{usersCollection, ownerID, productsCollection, productID, salesCollection}
}

// Create stores product under a Firestore generated ID.
func (r *ProductRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ownerID := strings.TrimSpace(product.OwnerID)
	if ownerID == "" {
		return domain.Product{}, errors.New("product owner id is required")
	}
	id, err := r.products.Create(ctx, productsPath(ownerID), fromDomainProduct(product))
	if err != nil {
		return domain.Product{}, err
	}
	stored := product.Clone()
	stored.ID = id
	return stored, nil
}

// Get loads one product.
func (r *ProductRepository) Get(ctx context.Context, ownerID, productID string) (domain.Product, error) {
	doc, err := r.products.Get(ctx, productsPath(ownerID), productID)
	if err != nil {
		return domain.Product{}, err
	}
	return toDomainProduct(ownerID, doc), nil
}

// Update writes editable fields with an exists precondition, leaving counters to the store.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	doc := fromDomainProduct(product)
	doc.UpdatedAt = r.now().UTC()
	updates := []firestore.Update{
		{Path: "title", Value: doc.Title},
		{Path: "priceMinor", Value: doc.PriceMinor},
		{Path: "currency", Value: doc.Currency},
		{Path: "description", Value: doc.Description},
		{Path: "content", Value: doc.Content},
		{Path: "contentType", Value: doc.ContentType},
		{Path: "previewLength", Value: doc.PreviewLength},
		{Path: "previewOffset", Value: doc.PreviewOffset},
		{Path: "customPreview", Value: doc.CustomPreview},
		{Path: "features", Value: doc.Features},
		{Path: "testimonial", Value: doc.Testimonial},
		{Path: "guarantees", Value: doc.Guarantees},
		{Path: "urgency", Value: doc.Urgency},
		{Path: "resources", Value: doc.Resources},
		{Path: "theme", Value: doc.Theme},
		{Path: "customTheme", Value: doc.CustomTheme},
		{Path: "buttonColor", Value: doc.ButtonColor},
		{Path: "gradient", Value: doc.Gradient},
		{Path: "sectionTitles", Value: doc.SectionTitles},
		{Path: "video", Value: doc.Video},
		{Path: "elementOrder", Value: doc.ElementOrder},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	}
	if err := r.products.Update(ctx, productsPath(product.OwnerID), product.ID, updates, firestore.Exists); err != nil {
		return domain.Product{}, err
	}
	return r.Get(ctx, product.OwnerID, product.ID)
}

// UpdateElementOrder persists the full permutation.
func (r *ProductRepository) UpdateElementOrder(ctx context.Context, ownerID, productID string, order []domain.ElementKind) error {
	updates := []firestore.Update{
		{Path: "elementOrder", Value: elementOrderStrings(order)},
		{Path: "updatedAt", Value: r.now().UTC()},
	}
	return r.products.Update(ctx, productsPath(ownerID), productID, updates, firestore.Exists)
}

// ListByOwner pages through an owner's products, newest first.
func (r *ProductRepository) ListByOwner(ctx context.Context, ownerID string, pager domain.Pagination) (domain.CursorPage[domain.Product], error) {
	size := pager.PageSize
	if size <= 0 {
		size = pagination.DefaultPageSize
	}
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	docs, err := r.products.Query(ctx, productsPath(ownerID), func(q firestore.Query) firestore.Query {
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if !cursor.IsZero() {
			q = q.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return q.Limit(size + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	page := domain.CursorPage[domain.Product]{Items: make([]domain.Product, 0, min(len(docs), size))}
	for i, doc := range docs {
		if i == size {
			last := page.Items[len(page.Items)-1]
			page.NextPageToken = pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			break
		}
		page.Items = append(page.Items, toDomainProduct(ownerID, doc))
	}
	return page, nil
}

// IncrementViews bumps the view counter.
func (r *ProductRepository) IncrementViews(ctx context.Context, ownerID, productID string) error {
	return r.products.Update(ctx, productsPath(ownerID), productID, []firestore.Update{
		{Path: "views", Value: firestore.Increment(1)},
	}, firestore.Exists)
}

// RecordSale writes a sale marker keyed by checkout session and bumps the counters in one
// transaction. It returns false when the session was already recorded.
func (r *ProductRepository) RecordSale(ctx context.Context, sale domain.SaleRecord) (bool, error) {
	productRef, err := r.products.Doc(ctx, productsPath(sale.OwnerID), sale.ProductID)
	if err != nil {
		return false, err
	}
	saleRef, err := r.sales.Doc(ctx, salesPath(sale.OwnerID, sale.ProductID), sale.SessionID)
	if err != nil {
		return false, err
	}

	recorded := false
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		recorded = false
		if _, err := tx.Get(saleRef); err == nil {
			return nil
		} else if status.Code(err) != codes.NotFound {
			return err
		}
		if _, err := tx.Get(productRef); err != nil {
			return err
		}
		if err := tx.Create(saleRef, saleDocument{
			AmountMinor: sale.AmountMinor,
			Currency:    sale.Currency,
			CompletedAt: sale.CompletedAt.UTC(),
		}); err != nil {
			return err
		}
		recorded = true
		return tx.Update(productRef, []firestore.Update{
			{Path: "sales", Value: firestore.Increment(1)},
			{Path: "revenueMinor", Value: firestore.Increment(sale.AmountMinor)},
		})
	})
	if err != nil {
		return false, pfirestore.WrapError("products.recordSale", err)
	}
	return recorded, nil
}

type productDocument struct {
	Title         string            `firestore:"title"`
	PriceMinor    int64             `firestore:"priceMinor"`
	Currency      string            `firestore:"currency"`
	Description   string            `firestore:"description"`
	Content       string            `firestore:"content"`
	ContentType   string            `firestore:"contentType"`
	PreviewLength int               `firestore:"previewLength"`
	PreviewOffset int               `firestore:"previewOffset"`
	CustomPreview string            `firestore:"customPreview,omitempty"`
	Features      []string          `firestore:"features"`
	Testimonial   string            `firestore:"testimonial,omitempty"`
	Guarantees    []string          `firestore:"guarantees"`
	Urgency       urgencyDocument   `firestore:"urgency"`
	Resources     []resourceDoc     `firestore:"resources"`
	Theme         string            `firestore:"theme"`
	CustomTheme   customThemeDoc    `firestore:"customTheme"`
	ButtonColor   string            `firestore:"buttonColor"`
	Gradient      bool              `firestore:"gradient"`
	SectionTitles map[string]string `firestore:"sectionTitles,omitempty"`
	Video         videoDocument     `firestore:"video"`
	ElementOrder  []string          `firestore:"elementOrder"`
	Published     bool              `firestore:"published"`
	CreatedAt     time.Time         `firestore:"createdAt"`
	UpdatedAt     time.Time         `firestore:"updatedAt"`
	Views         int64             `firestore:"views"`
	Sales         int64             `firestore:"sales"`
	RevenueMinor  int64             `firestore:"revenueMinor"`
}

type urgencyDocument struct {
	Kind       string `firestore:"kind"`
	CustomText string `firestore:"customText,omitempty"`
}

type resourceDoc struct {
	Title string `firestore:"title"`
	URL   string `firestore:"url"`
}

type customThemeDoc struct {
	Background string `firestore:"background,omitempty"`
	Text       string `firestore:"text,omitempty"`
	Subtext    string `firestore:"subtext,omitempty"`
}

type videoDocument struct {
	URL            string   `firestore:"url,omitempty"`
	AdditionalURLs []string `firestore:"additionalUrls,omitempty"`
	Title          string   `firestore:"title,omitempty"`
	Policy         string   `firestore:"policy"`
	PreviewSeconds int      `firestore:"previewSeconds"`
	SalesURL       string   `firestore:"salesUrl,omitempty"`
	ThumbnailURL   string   `firestore:"thumbnailUrl,omitempty"`
}

type saleDocument struct {
	AmountMinor int64     `firestore:"amountMinor"`
	Currency    string    `firestore:"currency"`
	CompletedAt time.Time `firestore:"completedAt"`
}

func fromDomainProduct(p domain.Product) productDocument {
	doc := productDocument{
		Title:         p.Title,
		PriceMinor:    p.PriceMinor,
		Currency:      p.Currency,
		Description:   p.Description,
		Content:       p.Content,
		ContentType:   string(p.ContentType),
		PreviewLength: p.PreviewLength,
		PreviewOffset: p.PreviewOffset,
		CustomPreview: p.CustomPreview,
		Features:      nonNil(p.Features),
		Testimonial:   p.Testimonial,
		Guarantees:    nonNil(p.Guarantees),
		Urgency:       urgencyDocument{Kind: string(p.Urgency.Kind), CustomText: p.Urgency.CustomText},
		Resources:     make([]resourceDoc, 0, len(p.Resources)),
		Theme:         string(p.Theme),
		CustomTheme:   customThemeDoc(p.CustomTheme),
		ButtonColor:   string(p.ButtonColor),
		Gradient:      p.Gradient,
		Video: videoDocument{
			URL:            p.Video.URL,
			AdditionalURLs: p.Video.AdditionalURLs,
			Title:          p.Video.Title,
			Policy:         string(p.Video.Policy),
			PreviewSeconds: p.Video.PreviewSeconds,
			SalesURL:       p.Video.SalesURL,
			ThumbnailURL:   p.Video.ThumbnailURL,
		},
		ElementOrder: elementOrderStrings(p.ElementOrder),
		Published:    p.Published,
		CreatedAt:    p.CreatedAt.UTC(),
		UpdatedAt:    p.UpdatedAt.UTC(),
		Views:        p.Views,
		Sales:        p.Sales,
		RevenueMinor: p.RevenueMinor,
	}
	for _, resource := range p.Resources {
		doc.Resources = append(doc.Resources, resourceDoc(resource))
	}
	if len(p.SectionTitles) > 0 {
		doc.SectionTitles = make(map[string]string, len(p.SectionTitles))
		for kind, title := range p.SectionTitles {
			doc.SectionTitles[string(kind)] = title
		}
	}
	return doc
}

func toDomainProduct(ownerID string, doc pfirestore.Document[productDocument]) domain.Product {
	data := doc.Data
	product := domain.NewProduct(ownerID)
	product.ID = doc.ID
	product.Title = data.Title
	product.PriceMinor = data.PriceMinor
	if data.Currency != "" {
		product.Currency = data.Currency
	}
	product.Description = data.Description
	product.Content = data.Content
	if contentType, ok := domain.ParseContentType(data.ContentType); ok {
		product.ContentType = contentType
	}
	product.PreviewLength = data.PreviewLength
	product.PreviewOffset = data.PreviewOffset
	product.CustomPreview = data.CustomPreview
	product.Features = data.Features
	product.Testimonial = data.Testimonial
	product.Guarantees = data.Guarantees
	product.Urgency = domain.Urgency{Kind: domain.ParseUrgencyKind(data.Urgency.Kind), CustomText: data.Urgency.CustomText}
	for _, resource := range data.Resources {
		product.Resources = append(product.Resources, domain.Resource(resource))
	}
	product.Theme = domain.ParseThemePreset(data.Theme)
	product.CustomTheme = domain.CustomTheme(data.CustomTheme)
	product.ButtonColor = domain.ParseButtonColor(data.ButtonColor)
	product.Gradient = data.Gradient
	if len(data.SectionTitles) > 0 {
		product.SectionTitles = make(map[domain.ElementKind]string, len(data.SectionTitles))
		for raw, title := range data.SectionTitles {
			if kind, ok := domain.ParseElementKind(raw); ok {
				product.SectionTitles[kind] = title
			}
		}
	}
	product.Video = domain.Video{
		URL:            data.Video.URL,
		AdditionalURLs: data.Video.AdditionalURLs,
		Title:          data.Video.Title,
		Policy:         domain.ParseVideoPolicy(data.Video.Policy),
		PreviewSeconds: data.Video.PreviewSeconds,
		SalesURL:       data.Video.SalesURL,
		ThumbnailURL:   data.Video.ThumbnailURL,
	}

	order := make([]domain.ElementKind, 0, len(data.ElementOrder))
	for _, raw := range data.ElementOrder {
		if kind, ok := domain.ParseElementKind(raw); ok {
			order = append(order, kind)
		}
	}
	product.ElementOrder = domain.NormalizeOrder(order)

	product.Published = data.Published
	product.CreatedAt = data.CreatedAt
	if product.CreatedAt.IsZero() {
		product.CreatedAt = doc.CreateTime
	}
	product.UpdatedAt = data.UpdatedAt
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = doc.UpdateTime
	}
	product.Views = data.Views
	product.Sales = data.Sales
	product.RevenueMinor = data.RevenueMinor
	return product
}

func elementOrderStrings(order []domain.ElementKind) []string {
	normalized := domain.NormalizeOrder(order)
	out := make([]string, len(normalized))
	for i, kind := range normalized {
		out[i] = string(kind)
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
