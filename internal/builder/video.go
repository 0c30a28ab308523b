package builder

import (
	"errors"
	"sync"
	"time"

	"github.com/launchpad/api/internal/domain"
)

var (
	// ErrPlayerNotPlayable indicates the player's policy or mode does not allow playback control.
	ErrPlayerNotPlayable = errors.New("builder: video preview is not playable")
	// ErrPlayerClosed indicates the player has been released.
	ErrPlayerClosed = errors.New("builder: video player closed")
)

// Ticker is the one-second source driving a preview countdown.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc constructs a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type stdTicker struct {
	t *time.Ticker
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewTimeTicker is the production TickerFunc backed by time.Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// PlayerView is a point-in-time snapshot of a player.
type PlayerView struct {
	Index            int                `json:"index"`
	State            domain.PlayerState `json:"state"`
	RemainingSeconds int                `json:"remainingSeconds"`
	DurationSeconds  int                `json:"durationSeconds"`
	URL              string             `json:"url,omitempty"`
	ThumbnailURL     string             `json:"thumbnailUrl,omitempty"`
}

// Player is the preview state machine for one video element.
type Player struct {
	mu        sync.Mutex
	index     int
	source    string
	video     domain.Video
	mode      domain.ViewMode
	state     domain.PlayerState
	remaining int
	newTicker TickerFunc
	closed    bool

	gen  uint64
	stop chan struct{}
	done chan struct{}
}

// NewPlayer returns a player for the video at index (0 is the main video) in the given mode.
func NewPlayer(index int, source string, video domain.Video, mode domain.ViewMode, newTicker TickerFunc) *Player {
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	p := &Player{
		index:     index,
		source:    source,
		video:     video,
		mode:      mode,
		newTicker: newTicker,
	}
	p.resetLocked()
	return p
}

// View returns the current snapshot.
func (p *Player) View() PlayerView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

// Activate starts a limited preview from idle.
func (p *Player) Activate() (PlayerView, error) {
	p.mu.Lock()
	if err := p.playableLocked(); err != nil {
		view := p.viewLocked()
		p.mu.Unlock()
		return view, err
	}
	var wait func()
	if p.state == domain.PlayerIdle {
		wait = p.startLocked()
	}
	view := p.viewLocked()
	p.mu.Unlock()
	if wait != nil {
		wait()
	}
	return view, nil
}

// Resume resets the countdown and returns to playing. The previous ticker is replaced.
func (p *Player) Resume() (PlayerView, error) {
	p.mu.Lock()
	if err := p.playableLocked(); err != nil {
		view := p.viewLocked()
		p.mu.Unlock()
		return view, err
	}
	wait := p.startLocked()
	view := p.viewLocked()
	p.mu.Unlock()
	wait()
	return view, nil
}

// Tick advances the countdown by one second. It is a no-op outside the playing state.
func (p *Player) Tick() PlayerView {
	p.mu.Lock()
	p.tickLocked()
	wait := func() {}
	if p.state != domain.PlayerPlaying {
		wait = p.stopLocked()
	}
	view := p.viewLocked()
	p.mu.Unlock()
	wait()
	return view
}

// SetMode switches between locked and unlocked projections, stopping any running countdown.
func (p *Player) SetMode(mode domain.ViewMode) PlayerView {
	p.mu.Lock()
	wait := p.stopLocked()
	p.mode = mode
	p.resetLocked()
	view := p.viewLocked()
	p.mu.Unlock()
	wait()
	return view
}

// Configure replaces the video settings and resets the player.
func (p *Player) Configure(source string, video domain.Video) PlayerView {
	p.mu.Lock()
	wait := p.stopLocked()
	p.source = source
	p.video = video
	p.resetLocked()
	view := p.viewLocked()
	p.mu.Unlock()
	wait()
	return view
}

// Close stops the countdown and releases the player. Close is idempotent.
func (p *Player) Close() {
	p.mu.Lock()
	wait := p.stopLocked()
	p.closed = true
	p.mu.Unlock()
	wait()
}

func (p *Player) playableLocked() error {
	if p.closed {
		return ErrPlayerClosed
	}
	if p.mode != domain.ModeLocked || p.video.Policy != domain.VideoPolicyLimited {
		return ErrPlayerNotPlayable
	}
	return nil
}

func (p *Player) resetLocked() {
	p.state = p.video.InitialState(p.mode)
	p.remaining = p.video.PreviewDuration()
}

func (p *Player) tickLocked() {
	if p.state != domain.PlayerPlaying {
		return
	}
	if p.remaining > 0 {
		p.remaining--
	}
	if p.remaining == 0 {
		p.state = domain.PlayerEnded
	}
}

// startLocked moves to playing with a fresh countdown and a new ticker goroutine.
// The returned func waits for the previous goroutine and must be called after unlocking.
func (p *Player) startLocked() func() {
	wait := p.stopLocked()
	p.state = domain.PlayerPlaying
	p.remaining = p.video.PreviewDuration()

	ticker := p.newTicker(time.Second)
	stop := make(chan struct{})
	done := make(chan struct{})
	p.gen++
	gen := p.gen
	p.stop, p.done = stop, done

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				if !p.advance(gen) {
					return
				}
			}
		}
	}()
	return wait
}

// advance applies a tick from the goroutine identified by gen and reports whether it should
// keep running.
func (p *Player) advance(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || p.stop == nil {
		return false
	}
	p.tickLocked()
	if p.state == domain.PlayerPlaying {
		return true
	}
	p.stop, p.done = nil, nil
	return false
}

// stopLocked signals the running goroutine, if any. The returned func blocks until it exits.
func (p *Player) stopLocked() func() {
	if p.stop == nil {
		return func() {}
	}
	close(p.stop)
	done := p.done
	p.stop, p.done = nil, nil
	p.gen++
	return func() { <-done }
}

func (p *Player) running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

func (p *Player) viewLocked() PlayerView {
	return PlayerView{
		Index:            p.index,
		State:            p.state,
		RemainingSeconds: p.remaining,
		DurationSeconds:  p.video.PreviewDuration(),
		URL:              p.video.PlayableURL(p.state, p.source),
		ThumbnailURL:     p.video.ThumbnailURL,
	}
}
