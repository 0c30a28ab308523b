package render

import (
	"net/url"
	"path"
	"strings"
)

// Embed describes how a video URL is placed on the page.
type Embed struct {
	Src  string
	File bool
}

// EmbedFor converts a share URL into an embeddable player URL. Direct media files are played with
// a <video> element. Unknown hosts are returned unchanged as iframe sources.
func EmbedFor(raw string) (Embed, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Embed{}, false
	}
	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return Embed{}, false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".mp4", ".webm", ".mov":
		return Embed{Src: u.String(), File: true}, true
	}

	switch host {
	case "youtube.com", "m.youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return Embed{Src: "https://www.youtube.com/embed/" + url.PathEscape(id)}, true
		}
		if len(segments) == 2 && segments[0] == "embed" {
			return Embed{Src: u.String()}, true
		}
	case "youtu.be":
		if len(segments) >= 1 && segments[0] != "" {
			return Embed{Src: "https://www.youtube.com/embed/" + url.PathEscape(segments[0])}, true
		}
	case "vimeo.com":
		if len(segments) >= 1 && segments[0] != "" {
			return Embed{Src: "https://player.vimeo.com/video/" + url.PathEscape(segments[0])}, true
		}
	case "player.vimeo.com":
		return Embed{Src: u.String()}, true
	case "loom.com":
		if len(segments) == 2 && (segments[0] == "share" || segments[0] == "embed") {
			return Embed{Src: "https://www.loom.com/embed/" + url.PathEscape(segments[1])}, true
		}
	}
	return Embed{Src: u.String()}, true
}
