package domain

import "strings"

// ThemePreset names an entry of the theme table.
type ThemePreset string

const (
	ThemeDark     ThemePreset = "dark"
	ThemeLight    ThemePreset = "light"
	ThemeMidnight ThemePreset = "midnight"
	ThemeOcean    ThemePreset = "ocean"
	ThemeForest   ThemePreset = "forest"
	ThemeSunset   ThemePreset = "sunset"
	ThemeLavender ThemePreset = "lavender"
	ThemeRose     ThemePreset = "rose"
	ThemeSlate    ThemePreset = "slate"
	ThemeCustom   ThemePreset = "custom"
)

// Palette is the resolved set of colors used by the renderer.
type Palette struct {
	Background     string `json:"background"`
	Text           string `json:"text"`
	Subtext        string `json:"subtext"`
	CardBackground string `json:"cardBackground"`
	Border         string `json:"border"`
}

var themeTable = map[ThemePreset]Palette{
	ThemeDark:     {Background: "#0a0a0a", Text: "#ffffff", Subtext: "#a3a3a3", CardBackground: "#171717", Border: "#262626"},
	ThemeLight:    {Background: "#ffffff", Text: "#111827", Subtext: "#4b5563", CardBackground: "#f9fafb", Border: "#e5e7eb"},
	ThemeMidnight: {Background: "#0f172a", Text: "#f8fafc", Subtext: "#94a3b8", CardBackground: "#1e293b", Border: "#334155"},
	ThemeOcean:    {Background: "#082f49", Text: "#f0f9ff", Subtext: "#7dd3fc", CardBackground: "#0c4a6e", Border: "#075985"},
	ThemeForest:   {Background: "#052e16", Text: "#f0fdf4", Subtext: "#86efac", CardBackground: "#14532d", Border: "#166534"},
	ThemeSunset:   {Background: "#431407", Text: "#fff7ed", Subtext: "#fdba74", CardBackground: "#7c2d12", Border: "#9a3412"},
	ThemeLavender: {Background: "#2e1065", Text: "#faf5ff", Subtext: "#c4b5fd", CardBackground: "#4c1d95", Border: "#5b21b6"},
	ThemeRose:     {Background: "#4c0519", Text: "#fff1f2", Subtext: "#fda4af", CardBackground: "#881337", Border: "#9f1239"},
	ThemeSlate:    {Background: "#f1f5f9", Text: "#0f172a", Subtext: "#475569", CardBackground: "#ffffff", Border: "#cbd5e1"},
}

// ThemePresets lists the selectable presets in display order.
func ThemePresets() []ThemePreset {
	return []ThemePreset{
		ThemeDark, ThemeLight, ThemeMidnight, ThemeOcean, ThemeForest,
		ThemeSunset, ThemeLavender, ThemeRose, ThemeSlate, ThemeCustom,
	}
}

// ParseThemePreset normalises a raw preset name. Unknown names map to dark.
func ParseThemePreset(raw string) ThemePreset {
	preset := ThemePreset(strings.ToLower(strings.TrimSpace(raw)))
	if preset == ThemeCustom {
		return preset
	}
	if _, ok := themeTable[preset]; ok {
		return preset
	}
	return ThemeDark
}

// ResolveTheme maps a preset (or custom override) to a palette. It never fails.
func ResolveTheme(preset ThemePreset, custom CustomTheme) Palette {
	fallback := themeTable[ThemeDark]
	if preset == ThemeCustom {
		return Palette{
			Background:     colorOr(custom.Background, fallback.Background),
			Text:           colorOr(custom.Text, fallback.Text),
			Subtext:        colorOr(custom.Subtext, fallback.Subtext),
			CardBackground: fallback.CardBackground,
			Border:         fallback.Border,
		}
	}
	if palette, ok := themeTable[preset]; ok {
		return palette
	}
	return fallback
}

// Palette resolves the product's theme.
func (p Product) Palette() Palette {
	return ResolveTheme(p.Theme, p.CustomTheme)
}

// ButtonColor enumerates the purchase button colors.
type ButtonColor string

const (
	ButtonColorBlue   ButtonColor = "blue"
	ButtonColorGreen  ButtonColor = "green"
	ButtonColorPurple ButtonColor = "purple"
	ButtonColorRed    ButtonColor = "red"
	ButtonColorOrange ButtonColor = "orange"
	ButtonColorBlack  ButtonColor = "black"
)

var buttonColors = map[ButtonColor]string{
	ButtonColorBlue:   "#2563eb",
	ButtonColorGreen:  "#16a34a",
	ButtonColorPurple: "#9333ea",
	ButtonColorRed:    "#dc2626",
	ButtonColorOrange: "#ea580c",
	ButtonColorBlack:  "#111111",
}

// ParseButtonColor normalises a raw button color. Unknown values map to blue.
func ParseButtonColor(raw string) ButtonColor {
	color := ButtonColor(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := buttonColors[color]; ok {
		return color
	}
	return ButtonColorBlue
}

// ResolveButtonColor returns the hex value for a button color.
func ResolveButtonColor(color ButtonColor) string {
	if hex, ok := buttonColors[color]; ok {
		return hex
	}
	return buttonColors[ButtonColorBlue]
}

func colorOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
