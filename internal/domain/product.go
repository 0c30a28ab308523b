package domain

import (
	"maps"
	"slices"
	"strings"
	"time"
)

const (
	// DefaultCurrency is applied to new products when the seller has not chosen one.
	DefaultCurrency = "usd"
	// DefaultPreviewLength is the number of content characters shown before purchase.
	DefaultPreviewLength = 300
	// DefaultPreviewSeconds is the time box applied to limited video previews.
	DefaultPreviewSeconds = 30
)

// ContentType selects what the buyer receives after purchase.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeVideo ContentType = "video"
	ContentTypeBoth  ContentType = "both"
)

// ParseContentType normalises a raw content type, reporting whether it was recognised.
func ParseContentType(raw string) (ContentType, bool) {
	switch ContentType(strings.ToLower(strings.TrimSpace(raw))) {
	case ContentTypeText:
		return ContentTypeText, true
	case ContentTypeVideo:
		return ContentTypeVideo, true
	case ContentTypeBoth:
		return ContentTypeBoth, true
	}
	return "", false
}

// UrgencyKind enumerates the persuasion banners available on a sales page.
type UrgencyKind string

const (
	UrgencyNone    UrgencyKind = "none"
	UrgencyLimited UrgencyKind = "limited"
	UrgencyPrice   UrgencyKind = "price"
	UrgencyBonus   UrgencyKind = "bonus"
	UrgencyCustom  UrgencyKind = "custom"
)

// ParseUrgencyKind normalises a raw urgency value. Unknown values map to none.
func ParseUrgencyKind(raw string) UrgencyKind {
	switch UrgencyKind(strings.ToLower(strings.TrimSpace(raw))) {
	case UrgencyLimited:
		return UrgencyLimited
	case UrgencyPrice:
		return UrgencyPrice
	case UrgencyBonus:
		return UrgencyBonus
	case UrgencyCustom:
		return UrgencyCustom
	}
	return UrgencyNone
}

// Urgency is the urgency banner configuration. CustomText is only meaningful for UrgencyCustom.
type Urgency struct {
	Kind       UrgencyKind
	CustomText string
}

// Active reports whether the urgency banner has anything to show.
func (u Urgency) Active() bool {
	switch u.Kind {
	case UrgencyLimited, UrgencyPrice, UrgencyBonus:
		return true
	case UrgencyCustom:
		return strings.TrimSpace(u.CustomText) != ""
	default:
		return false
	}
}

// Message returns the banner text shown for the urgency kind.
func (u Urgency) Message() string {
	switch u.Kind {
	case UrgencyLimited:
		return "Limited time offer - get it before it's gone!"
	case UrgencyPrice:
		return "Price goes up soon - lock in today's price."
	case UrgencyBonus:
		return "Order today and get exclusive bonus content."
	case UrgencyCustom:
		return strings.TrimSpace(u.CustomText)
	default:
		return ""
	}
}

// VideoPolicy governs what a buyer may watch before purchase.
type VideoPolicy string

const (
	VideoPolicyLimited  VideoPolicy = "limited"
	VideoPolicySeparate VideoPolicy = "separate"
	VideoPolicyNone     VideoPolicy = "none"
)

// ParseVideoPolicy normalises a raw preview policy. Unknown values map to none.
func ParseVideoPolicy(raw string) VideoPolicy {
	switch VideoPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case VideoPolicyLimited:
		return VideoPolicyLimited
	case VideoPolicySeparate:
		return VideoPolicySeparate
	}
	return VideoPolicyNone
}

// Video holds the video settings of a sales page.
type Video struct {
	URL            string
	AdditionalURLs []string
	Title          string
	Policy         VideoPolicy
	PreviewSeconds int
	SalesURL       string
	ThumbnailURL   string
}

// URLs returns the main video followed by any non-empty additional videos.
func (v Video) URLs() []string {
	out := make([]string, 0, 1+len(v.AdditionalURLs))
	if url := strings.TrimSpace(v.URL); url != "" {
		out = append(out, url)
	}
	for _, extra := range v.AdditionalURLs {
		if url := strings.TrimSpace(extra); url != "" {
			out = append(out, url)
		}
	}
	return out
}

// Resource is a bonus download link delivered after purchase.
type Resource struct {
	Title string
	URL   string
}

// CustomTheme carries user supplied colors for the custom theme preset.
type CustomTheme struct {
	Background string
	Text       string
	Subtext    string
}

// Product is a single sales page document.
type Product struct {
	ID      string
	OwnerID string

	Title         string
	PriceMinor    int64
	Currency      string
	Description   string
	Content       string
	ContentType   ContentType
	PreviewLength int
	PreviewOffset int
	CustomPreview string
	Features      []string
	Testimonial   string
	Guarantees    []string
	Urgency       Urgency
	Resources     []Resource

	Theme         ThemePreset
	CustomTheme   CustomTheme
	ButtonColor   ButtonColor
	Gradient      bool
	SectionTitles map[ElementKind]string

	Video Video

	ElementOrder []ElementKind

	Published    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Views        int64
	Sales        int64
	RevenueMinor int64
}

// NewProduct returns an empty document populated with builder defaults.
func NewProduct(ownerID string) Product {
	return Product{
		OwnerID:       strings.TrimSpace(ownerID),
		Currency:      DefaultCurrency,
		ContentType:   ContentTypeText,
		PreviewLength: DefaultPreviewLength,
		Urgency:       Urgency{Kind: UrgencyNone},
		Theme:         ThemeDark,
		ButtonColor:   ButtonColorBlue,
		Video: Video{
			Policy:         VideoPolicyNone,
			PreviewSeconds: DefaultPreviewSeconds,
		},
		ElementOrder: DefaultElementOrder(),
	}
}

// Clone returns a deep copy so callers can mutate without aliasing slices or maps.
func (p Product) Clone() Product {
	out := p
	out.Features = slices.Clone(p.Features)
	out.Guarantees = slices.Clone(p.Guarantees)
	out.Resources = slices.Clone(p.Resources)
	out.Video.AdditionalURLs = slices.Clone(p.Video.AdditionalURLs)
	out.ElementOrder = slices.Clone(p.ElementOrder)
	if p.SectionTitles != nil {
		out.SectionTitles = maps.Clone(p.SectionTitles)
	}
	return out
}

// ActiveFeatures returns the trimmed, non-empty feature bullets.
func (p Product) ActiveFeatures() []string {
	return nonEmpty(p.Features)
}

// ActiveGuarantees returns the trimmed, non-empty guarantee items.
func (p Product) ActiveGuarantees() []string {
	return nonEmpty(p.Guarantees)
}

// RedirectURL reports whether the content is a redirect sentinel and its external delivery URL.
// The URL is empty when the sentinel is malformed.
func (p Product) RedirectURL() (string, bool) {
	return ParseRedirect(p.Content)
}

// SectionTitle returns the seller override for a section title or its default.
func (p Product) SectionTitle(kind ElementKind) string {
	if title := strings.TrimSpace(p.SectionTitles[kind]); title != "" {
		return title
	}
	return kind.DefaultTitle()
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
