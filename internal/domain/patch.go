package domain

import (
	"regexp"
	"strings"
)

// ProductPatch is a partial update applied uniformly by builder steps, customize controls and
// edit-in-place saves. Nil fields are left untouched. No validation happens here.
type ProductPatch struct {
	Title         *string
	Price         *string
	Currency      *string
	Description   *string
	Content       *string
	ImportText    *string
	ContentType   *ContentType
	PreviewLength *int
	PreviewOffset *int
	CustomPreview *string
	Features      *[]string
	Testimonial   *string
	Guarantees    *[]string
	Urgency       *Urgency
	Resources     *[]Resource

	Theme         *ThemePreset
	CustomTheme   *CustomTheme
	ButtonColor   *ButtonColor
	Gradient      *bool
	SectionTitles map[ElementKind]string

	VideoURL            *string
	VideoAdditionalURLs *[]string
	VideoTitle          *string
	VideoPolicy         *VideoPolicy
	VideoPreviewSeconds *int
	VideoSalesURL       *string
	VideoThumbnailURL   *string

	ElementOrder *[]ElementKind
}

// Empty reports whether the patch carries no changes.
func (p ProductPatch) Empty() bool {
	return p.Title == nil && p.Price == nil && p.Currency == nil && p.Description == nil &&
		p.Content == nil && p.ImportText == nil && p.ContentType == nil && p.PreviewLength == nil &&
		p.PreviewOffset == nil && p.CustomPreview == nil && p.Features == nil && p.Testimonial == nil &&
		p.Guarantees == nil && p.Urgency == nil && p.Resources == nil && p.Theme == nil &&
		p.CustomTheme == nil && p.ButtonColor == nil && p.Gradient == nil && len(p.SectionTitles) == 0 &&
		p.VideoURL == nil && p.VideoAdditionalURLs == nil && p.VideoTitle == nil && p.VideoPolicy == nil &&
		p.VideoPreviewSeconds == nil && p.VideoSalesURL == nil && p.VideoThumbnailURL == nil &&
		p.ElementOrder == nil
}

// Apply mutates product with the patch. Price is applied only when it parses; callers that need
// to reject a bad price validate it separately. A currency change without a new price keeps the
// decimal amount.
func (p ProductPatch) Apply(product *Product) {
	if product == nil {
		return
	}
	if p.Title != nil {
		product.Title = *p.Title
	}
	if p.Currency != nil {
		if code := strings.ToLower(strings.TrimSpace(*p.Currency)); ValidCurrency(code) && code != product.Currency {
			if p.Price == nil {
				product.PriceMinor = RescalePrice(product.PriceMinor, product.Currency, code)
			}
			product.Currency = code
		}
	}
	if p.Price != nil {
		if minor, err := ParsePrice(*p.Price, product.Currency); err == nil {
			product.PriceMinor = minor
		}
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Content != nil {
		product.Content = *p.Content
	}
	if p.ContentType != nil {
		product.ContentType = *p.ContentType
	}
	if p.PreviewLength != nil {
		product.PreviewLength = max(*p.PreviewLength, 0)
	}
	if p.PreviewOffset != nil {
		product.PreviewOffset = max(*p.PreviewOffset, 0)
	}
	if p.CustomPreview != nil {
		product.CustomPreview = *p.CustomPreview
	}
	if p.Features != nil {
		product.Features = append([]string(nil), (*p.Features)...)
	}
	if p.Testimonial != nil {
		product.Testimonial = *p.Testimonial
	}
	if p.Guarantees != nil {
		product.Guarantees = append([]string(nil), (*p.Guarantees)...)
	}
	if p.Urgency != nil {
		product.Urgency = *p.Urgency
	}
	if p.Resources != nil {
		product.Resources = append([]Resource(nil), (*p.Resources)...)
	}
	if p.Theme != nil {
		product.Theme = *p.Theme
	}
	if p.CustomTheme != nil {
		product.CustomTheme = *p.CustomTheme
	}
	if p.ButtonColor != nil {
		product.ButtonColor = *p.ButtonColor
	}
	if p.Gradient != nil {
		product.Gradient = *p.Gradient
	}
	if len(p.SectionTitles) > 0 {
		if product.SectionTitles == nil {
			product.SectionTitles = make(map[ElementKind]string, len(p.SectionTitles))
		}
		for kind, title := range p.SectionTitles {
			if strings.TrimSpace(title) == "" {
				delete(product.SectionTitles, kind)
				continue
			}
			product.SectionTitles[kind] = title
		}
	}
	if p.VideoURL != nil {
		product.Video.URL = strings.TrimSpace(*p.VideoURL)
	}
	if p.VideoAdditionalURLs != nil {
		product.Video.AdditionalURLs = append([]string(nil), (*p.VideoAdditionalURLs)...)
	}
	if p.VideoTitle != nil {
		product.Video.Title = *p.VideoTitle
	}
	if p.VideoPolicy != nil {
		product.Video.Policy = *p.VideoPolicy
	}
	if p.VideoPreviewSeconds != nil {
		product.Video.PreviewSeconds = max(*p.VideoPreviewSeconds, 0)
	}
	if p.VideoSalesURL != nil {
		product.Video.SalesURL = strings.TrimSpace(*p.VideoSalesURL)
	}
	if p.VideoThumbnailURL != nil {
		product.Video.ThumbnailURL = strings.TrimSpace(*p.VideoThumbnailURL)
	}
	if p.ElementOrder != nil {
		product.ElementOrder = NormalizeOrder(*p.ElementOrder)
	}
	if p.ImportText != nil {
		ImportText(product, *p.ImportText)
	}
}

var videoURLPattern = regexp.MustCompile(`https?://(?:www\.)?(?:youtube\.com/watch\?v=[\w-]+|youtu\.be/[\w-]+|vimeo\.com/\d+|loom\.com/share/[\w-]+|[^\s"'<>]+\.(?:mp4|webm|mov))[^\s"'<>]*`)

// DetectVideoURL returns the first embeddable video URL found in text.
func DetectVideoURL(text string) (string, bool) {
	match := videoURLPattern.FindString(text)
	if match == "" {
		return "", false
	}
	return strings.TrimRight(match, ".,);"), true
}

// ImportText stores pasted text as the content body. When the text embeds a video URL and the
// product has no video yet, the URL becomes the main video and the content type flips to both.
func ImportText(product *Product, text string) {
	if product == nil {
		return
	}
	product.Content = text
	if strings.TrimSpace(product.Video.URL) != "" {
		return
	}
	if url, ok := DetectVideoURL(text); ok {
		product.Video.URL = url
		product.ContentType = ContentTypeBoth
	}
}
