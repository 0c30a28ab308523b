package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// DocumentMeta carries page level data that is not part of the product projection.
type DocumentMeta struct {
	CanonicalURL   string
	CheckoutAction string
	CheckoutError  string
	Purchased      bool
	NoIndex        bool
}

// HTMLRenderer turns a rendered Page into markup. It is safe for concurrent use.
type HTMLRenderer struct {
	tmpl     *template.Template
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

// NewHTMLRenderer parses the embedded templates.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	r := &HTMLRenderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
		policy: newContentPolicy(),
	}
	tmpl, err := template.New("render").Funcs(template.FuncMap{
		"markdown": r.Markdown,
		"embed":    embedFor,
		"hasState": func(item VideoItem, state string) bool { return string(item.State) == state },
		"style":    paletteStyle,
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("render: parse templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Markdown converts seller content to sanitised HTML.
func (r *HTMLRenderer) Markdown(source string) template.HTML {
	if strings.TrimSpace(source) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(source), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(source))
	}
	return template.HTML(r.policy.Sanitize(buf.String()))
}

// Sections renders the section list as an HTML fragment for the editor preview.
func (r *HTMLRenderer) Sections(page Page) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "sections", documentData{Page: page}); err != nil {
		return "", fmt.Errorf("render: sections: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// Document writes a complete HTML page for the public storefront.
func (r *HTMLRenderer) Document(w io.Writer, page Page, meta DocumentMeta) error {
	if err := r.tmpl.ExecuteTemplate(w, "document", documentData{Page: page, Meta: meta}); err != nil {
		return fmt.Errorf("render: document: %w", err)
	}
	return nil
}

type documentData struct {
	Page Page
	Meta DocumentMeta
}

func embedFor(raw string) Embed {
	e, _ := EmbedFor(raw)
	return e
}

func paletteStyle(page Page) template.CSS {
	p := page.Palette
	background := cssColor(p.Background)
	if page.Gradient {
		background = fmt.Sprintf("linear-gradient(180deg, %s 0%%, %s 100%%)", cssColor(p.Background), cssColor(p.CardBackground))
	}
	return template.CSS(fmt.Sprintf(
		"--lp-bg:%s;--lp-text:%s;--lp-subtext:%s;--lp-card:%s;--lp-border:%s;--lp-button:%s;",
		background, cssColor(p.Text), cssColor(p.Subtext), cssColor(p.CardBackground), cssColor(p.Border), cssColor(page.ButtonColor),
	))
}

// cssColor admits only hex and rgb()/hsl() notations; anything else falls back to inherit.
func cssColor(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return "inherit"
	}
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r == '#', r == '(', r == ')', r == ',', r == '.', r == '%', r == ' ':
		default:
			return "inherit"
		}
	}
	return v
}

func newContentPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("code", "pre", "span")
	policy.AllowAttrs("loading").OnElements("img")
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return policy
}
