package builder

import (
	"fmt"
	"sync"
	"time"

	"github.com/launchpad/api/internal/domain"
)

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ID             string
	OwnerID        string
	Step           Step
	Product        domain.Product
	PriceInput     string
	ActiveElements []domain.ElementKind
	CanReorder     bool
	Publishing     bool
	PublicURL      string
	PreviewMode    domain.ViewMode
	Players        []PlayerView
	UpdatedAt      time.Time
	ExpiresAt      time.Time
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithClock overrides the session clock.
func WithClock(clock func() time.Time) SessionOption {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTicker overrides the countdown source used by video players.
func WithTicker(fn TickerFunc) SessionOption {
	return func(s *Session) {
		if fn != nil {
			s.newTicker = fn
		}
	}
}

// WithTTL sets how long the session stays alive after its last touch.
func WithTTL(ttl time.Duration) SessionOption {
	return func(s *Session) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// Session owns one in-memory document, its wizard step and its video players.
type Session struct {
	id      string
	ownerID string

	mu          sync.Mutex
	product     domain.Product
	step        Step
	priceInput  string
	publishing  bool
	publicURL   string
	previewMode domain.ViewMode
	players     []*Player
	closed      bool

	clock     func() time.Time
	newTicker TickerFunc
	ttl       time.Duration
	updatedAt time.Time
}

// NewSession starts a wizard at basics with an empty default document.
func NewSession(id, ownerID string, opts ...SessionOption) *Session {
	s := &Session{
		id:          id,
		ownerID:     ownerID,
		product:     domain.NewProduct(ownerID),
		step:        StepBasics,
		previewMode: domain.ModeLocked,
		clock:       time.Now,
		newTicker:   NewTimeTicker,
		ttl:         time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.updatedAt = s.clock()
	s.syncPlayersLocked()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// OwnerID returns the seller that owns the session.
func (s *Session) OwnerID() string { return s.ownerID }

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Expired reports whether the session has been idle longer than its TTL.
func (s *Session) Expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || !now.Before(s.updatedAt.Add(s.ttl))
}

// Apply merges patch into the document. Rejected once the session reached success.
func (s *Session) Apply(patch domain.ProductPatch) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return s.snapshotLocked(), err
	}
	if patch.Price != nil {
		s.priceInput = *patch.Price
	}
	before := s.product.Video
	patch.Apply(&s.product)
	if !videoEqual(before, s.product.Video) {
		s.syncPlayersLocked()
	}
	s.touchLocked()
	return s.snapshotLocked(), nil
}

// Next advances the wizard if the current step's guard passes. A failed guard returns
// ValidationErrors and leaves the session untouched.
func (s *Session) Next() (Snapshot, error) {
	return s.transition(ActionNext)
}

// Back moves to the previous step.
func (s *Session) Back() (Snapshot, error) {
	return s.transition(ActionBack)
}

func (s *Session) transition(action Action) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishing {
		return s.snapshotLocked(), ErrPublishInProgress
	}
	to, err := Transition(s.step, action)
	if err != nil {
		return s.snapshotLocked(), err
	}
	if action == ActionNext {
		if err := guard(s.step, s.product, s.priceInput); err != nil {
			return s.snapshotLocked(), err
		}
	}
	s.step = to
	s.touchLocked()
	return s.snapshotLocked(), nil
}

// MoveElement reorders a section within the active sections.
func (s *Session) MoveElement(kind domain.ElementKind, dir domain.Direction) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return s.snapshotLocked(), err
	}
	if !domain.CanReorder(s.product) {
		return s.snapshotLocked(), ErrReorderUnavailable
	}
	s.product.MoveElement(kind, dir)
	s.touchLocked()
	return s.snapshotLocked(), nil
}

// BeginPublish validates the document and marks a publish as in flight. The returned product is
// the document to persist. Exactly one of CompletePublish or AbortPublish must follow.
func (s *Session) BeginPublish() (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishing {
		return domain.Product{}, ErrPublishInProgress
	}
	if _, err := Transition(s.step, ActionPublish); err != nil {
		return domain.Product{}, err
	}
	if errs := ValidatePublish(s.product, s.priceInput); len(errs) > 0 {
		return domain.Product{}, errs
	}
	if minor, err := domain.ParsePrice(s.priceInput, s.product.Currency); err == nil {
		s.product.PriceMinor = minor
	}
	s.publishing = true
	s.touchLocked()
	return s.product.Clone(), nil
}

// CompletePublish records the stored document and moves to success.
func (s *Session) CompletePublish(stored domain.Product, publicURL string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishing = false
	s.product = stored.Clone()
	s.publicURL = publicURL
	s.step = StepSuccess
	s.touchLocked()
	return s.snapshotLocked()
}

// AbortPublish clears the in-flight flag and leaves the step unchanged.
func (s *Session) AbortPublish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishing = false
}

// SetPreviewMode switches the editor preview between locked and unlocked and resets players.
func (s *Session) SetPreviewMode(mode domain.ViewMode) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previewMode = mode
	for _, player := range s.players {
		player.SetMode(mode)
	}
	s.touchLocked()
	return s.snapshotLocked()
}

// Player returns the video player at index.
func (s *Session) Player(index int) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if index < 0 || index >= len(s.players) {
		return nil, fmt.Errorf("%w: no video at index %d", ErrPlayerNotPlayable, index)
	}
	s.touchLocked()
	return s.players[index], nil
}

// Close stops every player. The session rejects further edits.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, player := range s.players {
		player.Close()
	}
	s.players = nil
}

func (s *Session) editableLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.step == StepSuccess {
		return ErrSessionFinished
	}
	if s.publishing {
		return ErrPublishInProgress
	}
	return nil
}

// syncPlayersLocked rebuilds the player list from the current video settings.
func (s *Session) syncPlayersLocked() {
	urls := s.product.Video.URLs()
	for i, player := range s.players {
		if i >= len(urls) {
			player.Close()
		}
	}
	next := make([]*Player, 0, len(urls))
	for i, url := range urls {
		if i < len(s.players) {
			s.players[i].Configure(url, s.product.Video)
			next = append(next, s.players[i])
			continue
		}
		next = append(next, NewPlayer(i, url, s.product.Video, s.previewMode, s.newTicker))
	}
	s.players = next
}

func (s *Session) touchLocked() {
	s.updatedAt = s.clock()
}

func (s *Session) snapshotLocked() Snapshot {
	views := make([]PlayerView, 0, len(s.players))
	for _, player := range s.players {
		views = append(views, player.View())
	}
	return Snapshot{
		ID:             s.id,
		OwnerID:        s.ownerID,
		Step:           s.step,
		Product:        s.product.Clone(),
		PriceInput:     s.priceInput,
		ActiveElements: domain.ActiveElements(s.product),
		CanReorder:     domain.CanReorder(s.product),
		Publishing:     s.publishing,
		PublicURL:      s.publicURL,
		PreviewMode:    s.previewMode,
		Players:        views,
		UpdatedAt:      s.updatedAt,
		ExpiresAt:      s.updatedAt.Add(s.ttl),
	}
}

func videoEqual(a, b domain.Video) bool {
	if a.URL != b.URL || a.Title != b.Title || a.Policy != b.Policy ||
		a.PreviewSeconds != b.PreviewSeconds || a.SalesURL != b.SalesURL || a.ThumbnailURL != b.ThumbnailURL {
		return false
	}
	if len(a.AdditionalURLs) != len(b.AdditionalURLs) {
		return false
	}
	for i := range a.AdditionalURLs {
		if a.AdditionalURLs[i] != b.AdditionalURLs[i] {
			return false
		}
	}
	return true
}
