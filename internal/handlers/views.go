package handlers

import (
	"fmt"
	"time"

	"github.com/launchpad/api/internal/builder"
	"github.com/launchpad/api/internal/domain"
	"github.com/launchpad/api/internal/services"
)

type urgencyPayload struct {
	Kind       string `json:"kind"`
	CustomText string `json:"customText,omitempty"`
}

type resourcePayload struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type customThemePayload struct {
	Background string `json:"background,omitempty"`
	Text       string `json:"text,omitempty"`
	Subtext    string `json:"subtext,omitempty"`
}

type videoPatchPayload struct {
	URL            *string   `json:"url"`
	AdditionalURLs *[]string `json:"additionalUrls"`
	Title          *string   `json:"title"`
	Policy         *string   `json:"policy"`
	PreviewSeconds *int      `json:"previewSeconds"`
	SalesURL       *string   `json:"salesUrl"`
	ThumbnailURL   *string   `json:"thumbnailUrl"`
}

// productPatchRequest is the wire form of a partial product edit. Absent fields are untouched.
type productPatchRequest struct {
	Title         *string             `json:"title"`
	Price         *string             `json:"price"`
	Currency      *string             `json:"currency"`
	Description   *string             `json:"description"`
	Content       *string             `json:"content"`
	ImportText    *string             `json:"importText"`
	ContentType   *string             `json:"contentType"`
	PreviewLength *int                `json:"previewLength"`
	PreviewOffset *int                `json:"previewOffset"`
	CustomPreview *string             `json:"customPreview"`
	Features      *[]string           `json:"features"`
	Testimonial   *string             `json:"testimonial"`
	Guarantees    *[]string           `json:"guarantees"`
	Urgency       *urgencyPayload     `json:"urgency"`
	Resources     *[]resourcePayload  `json:"resources"`
	Theme         *string             `json:"theme"`
	CustomTheme   *customThemePayload `json:"customTheme"`
	ButtonColor   *string             `json:"buttonColor"`
	Gradient      *bool               `json:"gradient"`
	SectionTitles map[string]string   `json:"sectionTitles"`
	Video         *videoPatchPayload  `json:"video"`
	ElementOrder  *[]string           `json:"elementOrder"`
}

// toPatch converts the request, collecting field errors for values that cannot be parsed.
func (req productPatchRequest) toPatch() (domain.ProductPatch, map[string]string) {
	fields := map[string]string{}
	patch := domain.ProductPatch{
		Title:         req.Title,
		Price:         req.Price,
		Currency:      req.Currency,
		Description:   req.Description,
		Content:       req.Content,
		ImportText:    req.ImportText,
		PreviewLength: req.PreviewLength,
		PreviewOffset: req.PreviewOffset,
		CustomPreview: req.CustomPreview,
		Features:      req.Features,
		Testimonial:   req.Testimonial,
		Guarantees:    req.Guarantees,
		Gradient:      req.Gradient,
	}
	if req.ContentType != nil {
		if ct, ok := domain.ParseContentType(*req.ContentType); ok {
			patch.ContentType = &ct
		} else {
			fields["contentType"] = "must be one of text, video or both"
		}
	}
	if req.Urgency != nil {
		urgency := domain.Urgency{Kind: domain.ParseUrgencyKind(req.Urgency.Kind), CustomText: req.Urgency.CustomText}
		patch.Urgency = &urgency
	}
	if req.Resources != nil {
		resources := make([]domain.Resource, 0, len(*req.Resources))
		for _, r := range *req.Resources {
			resources = append(resources, domain.Resource{Title: r.Title, URL: r.URL})
		}
		patch.Resources = &resources
	}
	if req.Theme != nil {
		theme := domain.ParseThemePreset(*req.Theme)
		patch.Theme = &theme
	}
	if req.CustomTheme != nil {
		custom := domain.CustomTheme{Background: req.CustomTheme.Background, Text: req.CustomTheme.Text, Subtext: req.CustomTheme.Subtext}
		patch.CustomTheme = &custom
	}
	if req.ButtonColor != nil {
		color := domain.ParseButtonColor(*req.ButtonColor)
		patch.ButtonColor = &color
	}
	if len(req.SectionTitles) > 0 {
		patch.SectionTitles = make(map[domain.ElementKind]string, len(req.SectionTitles))
		for raw, title := range req.SectionTitles {
			kind, ok := domain.ParseElementKind(raw)
			if !ok {
				fields["sectionTitles."+raw] = "unknown section"
				continue
			}
			patch.SectionTitles[kind] = title
		}
	}
	if v := req.Video; v != nil {
		patch.VideoURL = v.URL
		patch.VideoAdditionalURLs = v.AdditionalURLs
		patch.VideoTitle = v.Title
		patch.VideoPreviewSeconds = v.PreviewSeconds
		patch.VideoSalesURL = v.SalesURL
		patch.VideoThumbnailURL = v.ThumbnailURL
		if v.Policy != nil {
			policy := domain.ParseVideoPolicy(*v.Policy)
			patch.VideoPolicy = &policy
		}
	}
	if req.ElementOrder != nil {
		order := make([]domain.ElementKind, 0, len(*req.ElementOrder))
		for i, raw := range *req.ElementOrder {
			kind, ok := domain.ParseElementKind(raw)
			if !ok {
				fields[fmt.Sprintf("elementOrder[%d]", i)] = "unknown section"
				continue
			}
			order = append(order, kind)
		}
		patch.ElementOrder = &order
	}
	if len(fields) == 0 {
		fields = nil
	}
	return patch, fields
}

type videoPayload struct {
	URL            string   `json:"url,omitempty"`
	AdditionalURLs []string `json:"additionalUrls,omitempty"`
	Title          string   `json:"title,omitempty"`
	Policy         string   `json:"policy"`
	PreviewSeconds int      `json:"previewSeconds"`
	SalesURL       string   `json:"salesUrl,omitempty"`
	ThumbnailURL   string   `json:"thumbnailUrl,omitempty"`
}

type productResponse struct {
	ID             string              `json:"id,omitempty"`
	OwnerID        string              `json:"ownerId"`
	Title          string              `json:"title"`
	Price          string              `json:"price"`
	PriceInput     string              `json:"priceInput"`
	PriceMinor     int64               `json:"priceMinor"`
	Currency       string              `json:"currency"`
	Description    string              `json:"description"`
	Content        string              `json:"content"`
	ContentType    string              `json:"contentType"`
	PreviewLength  int                 `json:"previewLength"`
	PreviewOffset  int                 `json:"previewOffset"`
	CustomPreview  string              `json:"customPreview,omitempty"`
	Features       []string            `json:"features"`
	Testimonial    string              `json:"testimonial,omitempty"`
	Guarantees     []string            `json:"guarantees"`
	Urgency        urgencyPayload      `json:"urgency"`
	Resources      []resourcePayload   `json:"resources"`
	Theme          string              `json:"theme"`
	CustomTheme    *customThemePayload `json:"customTheme,omitempty"`
	Palette        domain.Palette      `json:"palette"`
	ButtonColor    string              `json:"buttonColor"`
	Gradient       bool                `json:"gradient"`
	SectionTitles  map[string]string   `json:"sectionTitles,omitempty"`
	Video          videoPayload        `json:"video"`
	ElementOrder   []string            `json:"elementOrder"`
	ActiveElements []string            `json:"activeElements"`
	CanReorder     bool                `json:"canReorder"`
	Published      bool                `json:"published"`
	PublicURL      string              `json:"publicUrl,omitempty"`
	Views          int64               `json:"views"`
	Sales          int64               `json:"sales"`
	Revenue        string              `json:"revenue"`
	RevenueMinor   int64               `json:"revenueMinor"`
	CreatedAt      string              `json:"createdAt,omitempty"`
	UpdatedAt      string              `json:"updatedAt,omitempty"`
}

func newProductResponse(product domain.Product, publicURL string) productResponse {
	resp := productResponse{
		ID:             product.ID,
		OwnerID:        product.OwnerID,
		Title:          product.Title,
		Price:          domain.FormatPrice(product.PriceMinor, product.Currency),
		PriceInput:     domain.FormatPriceInput(product.PriceMinor, product.Currency),
		PriceMinor:     product.PriceMinor,
		Currency:       product.Currency,
		Description:    product.Description,
		Content:        product.Content,
		ContentType:    string(product.ContentType),
		PreviewLength:  product.PreviewLength,
		PreviewOffset:  product.PreviewOffset,
		CustomPreview:  product.CustomPreview,
		Features:       nonNilStrings(product.Features),
		Testimonial:    product.Testimonial,
		Guarantees:     nonNilStrings(product.Guarantees),
		Urgency:        urgencyPayload{Kind: string(product.Urgency.Kind), CustomText: product.Urgency.CustomText},
		Resources:      make([]resourcePayload, 0, len(product.Resources)),
		Theme:          string(product.Theme),
		Palette:        domain.ResolveTheme(product.Theme, product.CustomTheme),
		ButtonColor:    string(product.ButtonColor),
		Gradient:       product.Gradient,
		ElementOrder:   kindStrings(domain.NormalizeOrder(product.ElementOrder)),
		ActiveElements: kindStrings(domain.ActiveElements(product)),
		CanReorder:     domain.CanReorder(product),
		Published:      product.Published,
		PublicURL:      publicURL,
		Views:          product.Views,
		Sales:          product.Sales,
		Revenue:        domain.FormatPrice(product.RevenueMinor, product.Currency),
		RevenueMinor:   product.RevenueMinor,
		CreatedAt:      formatTime(product.CreatedAt),
		UpdatedAt:      formatTime(product.UpdatedAt),
		Video: videoPayload{
			URL:            product.Video.URL,
			AdditionalURLs: product.Video.AdditionalURLs,
			Title:          product.Video.Title,
			Policy:         string(product.Video.Policy),
			PreviewSeconds: product.Video.PreviewSeconds,
			SalesURL:       product.Video.SalesURL,
			ThumbnailURL:   product.Video.ThumbnailURL,
		},
	}
	for _, r := range product.Resources {
		resp.Resources = append(resp.Resources, resourcePayload{Title: r.Title, URL: r.URL})
	}
	if product.Theme == domain.ThemeCustom {
		resp.CustomTheme = &customThemePayload{
			Background: product.CustomTheme.Background,
			Text:       product.CustomTheme.Text,
			Subtext:    product.CustomTheme.Subtext,
		}
	}
	if len(product.SectionTitles) > 0 {
		resp.SectionTitles = make(map[string]string, len(product.SectionTitles))
		for kind, title := range product.SectionTitles {
			resp.SectionTitles[string(kind)] = title
		}
	}
	return resp
}

type snapshotResponse struct {
	ID             string               `json:"id"`
	Step           string               `json:"step"`
	Product        productResponse      `json:"product"`
	PriceInput     string               `json:"priceInput"`
	ActiveElements []string             `json:"activeElements"`
	CanReorder     bool                 `json:"canReorder"`
	Publishing     bool                 `json:"publishing"`
	PublicURL      string               `json:"publicUrl,omitempty"`
	PreviewMode    string               `json:"previewMode"`
	Players        []builder.PlayerView `json:"players"`
	UpdatedAt      string               `json:"updatedAt"`
	ExpiresAt      string               `json:"expiresAt"`
}

func newSnapshotResponse(s services.BuilderSnapshot) snapshotResponse {
	product := newProductResponse(s.Product, s.PublicURL)
	product.PriceInput = s.PriceInput
	players := s.Players
	if players == nil {
		players = []builder.PlayerView{}
	}
	return snapshotResponse{
		ID:             s.ID,
		Step:           string(s.Step),
		Product:        product,
		PriceInput:     s.PriceInput,
		ActiveElements: kindStrings(s.ActiveElements),
		CanReorder:     s.CanReorder,
		Publishing:     s.Publishing,
		PublicURL:      s.PublicURL,
		PreviewMode:    string(s.PreviewMode),
		Players:        players,
		UpdatedAt:      formatTime(s.UpdatedAt),
		ExpiresAt:      formatTime(s.ExpiresAt),
	}
}

type sellerResponse struct {
	UID              string `json:"uid"`
	StripeAccountID  string `json:"stripeAccountId,omitempty"`
	ChargesEnabled   bool   `json:"chargesEnabled"`
	DetailsSubmitted bool   `json:"detailsSubmitted"`
	PayoutsReady     bool   `json:"payoutsReady"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
}

func newSellerResponse(profile domain.SellerProfile) sellerResponse {
	return sellerResponse{
		UID:              profile.UID,
		StripeAccountID:  profile.StripeAccountID,
		ChargesEnabled:   profile.StripeChargesEnabled,
		DetailsSubmitted: profile.StripeDetailsSubmitted,
		PayoutsReady:     profile.PayoutsReady(),
		UpdatedAt:        formatTime(profile.UpdatedAt),
	}
}

func kindStrings(kinds []domain.ElementKind) []string {
	out := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, string(kind))
	}
	return out
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
