// Package render projects a product document into the ordered sections shown on a sales page.
// The editor preview and the public product page both go through Render so they stay identical.
package render

import (
	"strings"

	"github.com/launchpad/api/internal/domain"
)

const (
	// NoticeFullContent is shown under a truncated locked preview.
	NoticeFullContent = "Full content available after purchase."
	// NoticeRedirectLocked is shown for redirect content before purchase.
	NoticeRedirectLocked = "After purchase you'll be sent to the content on an external site."
	// NoticeRedirectUnlocked is shown for redirect content after purchase.
	NoticeRedirectUnlocked = "This content is hosted on an external site."
	// DefaultButtonLabel is the purchase call to action.
	DefaultButtonLabel = "Buy now"
	// FreeButtonLabel replaces it on pages priced at zero.
	FreeButtonLabel = "Get instant access"
)

// Page is the rendered projection of one product in one mode.
type Page struct {
	ProductID   string               `json:"productId,omitempty"`
	OwnerID     string               `json:"ownerId,omitempty"`
	Title       string               `json:"title"`
	Mode        domain.ViewMode      `json:"mode"`
	Palette     domain.Palette       `json:"palette"`
	ButtonColor string               `json:"buttonColor"`
	Gradient    bool                 `json:"gradient"`
	Sections    []Section            `json:"sections"`
	Order       []domain.ElementKind `json:"order"`
}

// Section is one rendered element. Exactly one of the kind specific fields is set.
type Section struct {
	Kind        domain.ElementKind  `json:"kind"`
	Title       string              `json:"title,omitempty"`
	Hero        *HeroSection        `json:"hero,omitempty"`
	Video       *VideoSection       `json:"video,omitempty"`
	Urgency     *UrgencySection     `json:"urgency,omitempty"`
	Features    *FeaturesSection    `json:"features,omitempty"`
	Testimonial *TestimonialSection `json:"testimonial,omitempty"`
	Content     *ContentSection     `json:"content,omitempty"`
	Purchase    *PurchaseSection    `json:"purchase,omitempty"`
}

// HeroSection is the page header built from the title and description.
type HeroSection struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// VideoSection lists the player slots the video policy allows in the current mode.
type VideoSection struct {
	Title  string             `json:"title,omitempty"`
	Policy domain.VideoPolicy `json:"policy"`
	Items  []VideoItem        `json:"items"`
}

// VideoItem is a single player slot. URL is empty when nothing may be shown.
type VideoItem struct {
	Index          int                `json:"index"`
	State          domain.PlayerState `json:"state"`
	URL            string             `json:"url,omitempty"`
	ThumbnailURL   string             `json:"thumbnailUrl,omitempty"`
	PreviewSeconds int                `json:"previewSeconds,omitempty"`
}

// UrgencySection is the banner for the chosen urgency kind. Locked mode only.
type UrgencySection struct {
	Kind    domain.UrgencyKind `json:"kind"`
	Message string             `json:"message"`
}

// FeaturesSection holds the trimmed, non-empty feature items.
type FeaturesSection struct {
	Items []string `json:"items"`
}

// TestimonialSection carries a single buyer quote. Locked mode only.
type TestimonialSection struct {
	Quote string `json:"quote"`
}

// ContentSection carries either hosted text or a redirect notice, never both.
type ContentSection struct {
	ContentType domain.ContentType `json:"contentType"`
	Text        string             `json:"text,omitempty"`
	Truncated   bool               `json:"truncated"`
	Notice      string             `json:"notice,omitempty"`
	Redirect    *RedirectNotice    `json:"redirect,omitempty"`
	Resources   []domain.Resource  `json:"resources,omitempty"`
}

// RedirectNotice marks content delivered on an external site. URL is only set once the page is
// unlocked and the sentinel carries a valid target.
type RedirectNotice struct {
	URL      string `json:"url,omitempty"`
	TestLink bool   `json:"testLink"`
}

// PurchaseSection is the price and call to action. Locked mode only.
type PurchaseSection struct {
	Price       string   `json:"price"`
	PriceMinor  int64    `json:"priceMinor"`
	Currency    string   `json:"currency"`
	ButtonLabel string   `json:"buttonLabel"`
	ButtonColor string   `json:"buttonColor"`
	Guarantees  []string `json:"guarantees,omitempty"`
}

type options struct {
	videoStates map[int]domain.PlayerState
}

// Option customises a render call.
type Option func(*options)

// WithVideoStates overrides the player state per video index, e.g. from a live editor session.
func WithVideoStates(states map[int]domain.PlayerState) Option {
	return func(o *options) {
		o.videoStates = states
	}
}

// Render produces one section per active element in element order, filtered by mode.
func Render(product domain.Product, mode domain.ViewMode, opts ...Option) Page {
	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if mode != domain.ModeUnlocked {
		mode = domain.ModeLocked
	}

	page := Page{
		ProductID:   product.ID,
		OwnerID:     product.OwnerID,
		Title:       product.Title,
		Mode:        mode,
		Palette:     product.Palette(),
		ButtonColor: domain.ResolveButtonColor(product.ButtonColor),
		Gradient:    product.Gradient,
		Order:       domain.NormalizeOrder(product.ElementOrder),
	}
	for _, kind := range Elements(product, mode) {
		page.Sections = append(page.Sections, renderSection(product, mode, kind, cfg))
	}
	return page
}

// NoticePage is a read-only page in the default theme carrying a single message, used when no
// product can be shown.
func NoticePage(title, message string) Page {
	return Page{
		Title:       title,
		Mode:        domain.ModeLocked,
		Palette:     domain.ResolveTheme(domain.ThemeDark, domain.CustomTheme{}),
		ButtonColor: domain.ResolveButtonColor(""),
		Sections: []Section{{
			Kind: domain.ElementHero,
			Hero: &HeroSection{Title: title, Description: message},
		}},
	}
}

// Elements returns the active elements that render in mode.
func Elements(product domain.Product, mode domain.ViewMode) []domain.ElementKind {
	active := domain.ActiveElements(product)
	if mode != domain.ModeUnlocked {
		return active
	}
	out := make([]domain.ElementKind, 0, len(active))
	for _, kind := range active {
		if kind.LockedOnly() {
			continue
		}
		out = append(out, kind)
	}
	return out
}

func renderSection(product domain.Product, mode domain.ViewMode, kind domain.ElementKind, cfg options) Section {
	section := Section{Kind: kind, Title: product.SectionTitle(kind)}
	switch kind {
	case domain.ElementHero:
		section.Hero = &HeroSection{Title: product.Title, Description: product.Description}
	case domain.ElementVideo:
		section.Video = renderVideo(product.Video, mode, cfg.videoStates)
	case domain.ElementUrgency:
		section.Urgency = &UrgencySection{Kind: product.Urgency.Kind, Message: product.Urgency.Message()}
	case domain.ElementFeatures:
		section.Features = &FeaturesSection{Items: product.ActiveFeatures()}
	case domain.ElementTestimonial:
		section.Testimonial = &TestimonialSection{Quote: strings.TrimSpace(product.Testimonial)}
	case domain.ElementContent:
		section.Content = renderContent(product, mode)
	case domain.ElementPurchase:
		label := DefaultButtonLabel
		if product.PriceMinor <= 0 {
			label = FreeButtonLabel
		}
		section.Purchase = &PurchaseSection{
			Price:       domain.FormatPrice(product.PriceMinor, product.Currency),
			PriceMinor:  product.PriceMinor,
			Currency:    product.Currency,
			ButtonLabel: label,
			ButtonColor: domain.ResolveButtonColor(product.ButtonColor),
			Guarantees:  product.ActiveGuarantees(),
		}
	}
	return section
}

func renderVideo(video domain.Video, mode domain.ViewMode, states map[int]domain.PlayerState) *VideoSection {
	section := &VideoSection{Title: strings.TrimSpace(video.Title), Policy: video.Policy}
	urls := video.URLs()
	if mode == domain.ModeLocked && video.Policy != domain.VideoPolicyLimited && len(urls) > 1 {
		// Trailer and placeholder slots stand in for the whole set.
		urls = urls[:1]
	}
	for i, url := range urls {
		state, ok := states[i]
		if !ok || !stateAllowed(video, mode, state) {
			state = video.InitialState(mode)
		}
		item := VideoItem{
			Index:        i,
			State:        state,
			URL:          video.PlayableURL(state, url),
			ThumbnailURL: strings.TrimSpace(video.ThumbnailURL),
		}
		if mode == domain.ModeLocked && video.Policy == domain.VideoPolicyLimited {
			item.PreviewSeconds = video.PreviewDuration()
		}
		section.Items = append(section.Items, item)
	}
	return section
}

// stateAllowed rejects overrides that the policy could never reach in mode.
func stateAllowed(video domain.Video, mode domain.ViewMode, state domain.PlayerState) bool {
	if mode == domain.ModeUnlocked {
		return state == domain.PlayerFull
	}
	if video.Policy == domain.VideoPolicyLimited {
		return state == domain.PlayerIdle || state == domain.PlayerPlaying || state == domain.PlayerEnded
	}
	return state == video.InitialState(mode)
}

func renderContent(product domain.Product, mode domain.ViewMode) *ContentSection {
	section := &ContentSection{ContentType: product.ContentType}
	if url, ok := product.RedirectURL(); ok {
		section.Redirect = &RedirectNotice{}
		section.Notice = NoticeRedirectLocked
		if mode == domain.ModeUnlocked {
			section.Notice = NoticeRedirectUnlocked
			section.Redirect.URL = url
			section.Redirect.TestLink = url != ""
		}
		return section
	}
	if mode == domain.ModeUnlocked {
		section.Text = product.Content
		section.Resources = activeResources(product.Resources)
		return section
	}
	section.Text, section.Truncated = PreviewText(product)
	if section.Truncated {
		section.Notice = NoticeFullContent
	}
	return section
}

// PreviewText computes the locked preview of hosted content and whether it hides anything.
// A custom preview wins over the offset window. Lengths count characters, not bytes.
func PreviewText(product domain.Product) (string, bool) {
	if _, ok := product.RedirectURL(); ok {
		return "", false
	}
	if custom := strings.TrimSpace(product.CustomPreview); custom != "" {
		return custom, custom != strings.TrimSpace(product.Content)
	}
	runes := []rune(product.Content)
	length := product.PreviewLength
	if length <= 0 {
		length = domain.DefaultPreviewLength
	}
	start := min(max(product.PreviewOffset, 0), len(runes))
	end := min(start+length, len(runes))
	return string(runes[start:end]), start > 0 || end < len(runes)
}

func activeResources(resources []domain.Resource) []domain.Resource {
	out := make([]domain.Resource, 0, len(resources))
	for _, resource := range resources {
		url := strings.TrimSpace(resource.URL)
		if url == "" {
			continue
		}
		title := strings.TrimSpace(resource.Title)
		if title == "" {
			title = url
		}
		out = append(out, domain.Resource{Title: title, URL: url})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
