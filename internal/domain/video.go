package domain

import "strings"

// ViewMode selects the pre-purchase or post-purchase projection of a product.
type ViewMode string

const (
	ModeLocked   ViewMode = "locked"
	ModeUnlocked ViewMode = "unlocked"
)

// ParseViewMode accepts locked or unlocked, case-insensitively.
func ParseViewMode(raw string) (ViewMode, bool) {
	switch mode := ViewMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case ModeLocked, ModeUnlocked:
		return mode, true
	}
	return "", false
}

// PlayerState is the state of a single video element under the preview policy.
type PlayerState string

const (
	PlayerIdle    PlayerState = "idle"
	PlayerPlaying PlayerState = "playing"
	PlayerEnded   PlayerState = "ended"
	PlayerLocked  PlayerState = "locked"
	PlayerTrailer PlayerState = "trailer"
	PlayerFull    PlayerState = "full"
)

// PreviewDuration returns the limited preview length in seconds.
func (v Video) PreviewDuration() int {
	if v.PreviewSeconds <= 0 {
		return DefaultPreviewSeconds
	}
	return v.PreviewSeconds
}

// InitialState is the state a freshly mounted player starts in for the given mode.
func (v Video) InitialState(mode ViewMode) PlayerState {
	if mode == ModeUnlocked {
		return PlayerFull
	}
	switch v.Policy {
	case VideoPolicyLimited:
		return PlayerIdle
	case VideoPolicySeparate:
		if strings.TrimSpace(v.SalesURL) != "" {
			return PlayerTrailer
		}
		return PlayerLocked
	default:
		return PlayerLocked
	}
}

// PlayableURL returns the URL a player in state may show for the given source, or empty when
// nothing may be shown.
func (v Video) PlayableURL(state PlayerState, source string) string {
	switch state {
	case PlayerFull, PlayerIdle, PlayerPlaying, PlayerEnded:
		return strings.TrimSpace(source)
	case PlayerTrailer:
		return strings.TrimSpace(v.SalesURL)
	default:
		return ""
	}
}
