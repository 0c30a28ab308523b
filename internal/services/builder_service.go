package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/launchpad/api/internal/builder"
	"github.com/launchpad/api/internal/domain"
	"github.com/launchpad/api/internal/platform/requestctx"
	"github.com/launchpad/api/internal/render"
)

const (
	defaultBuilderSessionTTL    = time.Hour
	defaultBuilderSweepInterval = time.Minute
	defaultBuilderSessionCap    = 5
)

var (
	// ErrBuilderInvalidInput indicates missing identifiers or unsupported values.
	ErrBuilderInvalidInput = errors.New("builder service: invalid input")
	// ErrBuilderSessionNotFound indicates the session does not exist, expired, or belongs to another seller.
	ErrBuilderSessionNotFound = errors.New("builder service: session not found")
	// ErrBuilderSessionLimit indicates the seller already holds the maximum number of open sessions.
	ErrBuilderSessionLimit = errors.New("builder service: too many open sessions")
)

type productPublisher interface {
	Publish(ctx context.Context, product Product) (PublishedProduct, error)
}

// BuilderServiceDeps wires the builder service.
type BuilderServiceDeps struct {
	Products            productPublisher
	SessionTTL          time.Duration
	SweepInterval       time.Duration
	MaxSessionsPerOwner int
	Clock               func() time.Time
	Ticker              builder.TickerFunc
	IDGenerator         func() string
	Logger              *zap.Logger
}

type builderService struct {
	products  productPublisher
	ttl       time.Duration
	interval  time.Duration
	maxPerOwn int
	clock     func() time.Time
	ticker    builder.TickerFunc
	newID     func() string
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*builder.Session
	closed   bool
	done     chan struct{}
}

var _ BuilderService = (*builderService)(nil)

// NewBuilderService constructs the builder session registry.
func NewBuilderService(deps BuilderServiceDeps) (BuilderService, error) {
	if deps.Products == nil {
		return nil, errors.New("builder service: product publisher is required")
	}
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = defaultBuilderSessionTTL
	}
	interval := deps.SweepInterval
	if interval <= 0 {
		interval = defaultBuilderSweepInterval
	}
	maxPerOwner := deps.MaxSessionsPerOwner
	if maxPerOwner <= 0 {
		maxPerOwner = defaultBuilderSessionCap
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &builderService{
		products:  deps.Products,
		ttl:       ttl,
		interval:  interval,
		maxPerOwn: maxPerOwner,
		clock: func() time.Time {
			return clock().UTC()
		},
		ticker:   deps.Ticker,
		newID:    newID,
		logger:   logger,
		sessions: make(map[string]*builder.Session),
		done:     make(chan struct{}),
	}, nil
}

func (s *builderService) Start(ctx context.Context, ownerID string) (BuilderSnapshot, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return BuilderSnapshot{}, ErrBuilderInvalidInput
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return BuilderSnapshot{}, builder.ErrSessionClosed
	}
	now := s.clock()
	open := 0
	for _, session := range s.sessions {
		if session.OwnerID() == ownerID && !session.Expired(now) {
			open++
		}
	}
	if open >= s.maxPerOwn {
		s.mu.Unlock()
		return BuilderSnapshot{}, ErrBuilderSessionLimit
	}
	session := builder.NewSession(s.newID(), ownerID,
		builder.WithClock(s.clock),
		builder.WithTTL(s.ttl),
		builder.WithTicker(s.ticker),
	)
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	requestctx.Logger(ctx).Debug("builder session started", zap.String("session_id", session.ID()))
	return session.Snapshot(), nil
}

func (s *builderService) Get(_ context.Context, ownerID, sessionID string) (BuilderSnapshot, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return BuilderSnapshot{}, err
	}
	return session.Snapshot(), nil
}

func (s *builderService) Apply(_ context.Context, ownerID, sessionID string, patch ProductPatch) (BuilderSnapshot, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return BuilderSnapshot{}, err
	}
	return session.Apply(patch)
}

func (s *builderService) Next(_ context.Context, ownerID, sessionID string) (BuilderSnapshot, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return BuilderSnapshot{}, err
	}
	return session.Next()
}

func (s *builderService) Back(_ context.Context, ownerID, sessionID string) (BuilderSnapshot, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return BuilderSnapshot{}, err
	}
	return session.Back()
}

func (s *builderService) MoveElement(_ context.Context, cmd MoveElementCommand) (BuilderSnapshot, error) {
	if _, ok := domain.ParseElementKind(string(cmd.Kind)); !ok {
		return BuilderSnapshot{}, ErrBuilderInvalidInput
	}
	if _, ok := domain.ParseDirection(string(cmd.Direction)); !ok {
		return BuilderSnapshot{}, ErrBuilderInvalidInput
	}
	session, err := s.lookup(cmd.OwnerID, cmd.SessionID)
	if err != nil {
		return BuilderSnapshot{}, err
	}
	return session.MoveElement(cmd.Kind, cmd.Direction)
}

func (s *builderService) SetPreviewMode(_ context.Context, ownerID, sessionID string, mode domain.ViewMode) (BuilderSnapshot, error) {
	if mode != domain.ModeLocked && mode != domain.ModeUnlocked {
		return BuilderSnapshot{}, ErrBuilderInvalidInput
	}
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return BuilderSnapshot{}, err
	}
	return session.SetPreviewMode(mode), nil
}

// Preview renders the session document in its current preview mode, with live player states.
func (s *builderService) Preview(_ context.Context, ownerID, sessionID string) (BuilderPreview, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return BuilderPreview{}, err
	}
	snapshot := session.Snapshot()
	states := make(map[int]domain.PlayerState, len(snapshot.Players))
	for _, player := range snapshot.Players {
		states[player.Index] = player.State
	}
	page := render.Render(snapshot.Product, snapshot.PreviewMode, render.WithVideoStates(states))
	return BuilderPreview{Snapshot: snapshot, Page: page}, nil
}

func (s *builderService) PlayVideo(_ context.Context, cmd VideoCommand) (PlayerView, error) {
	player, err := s.player(cmd)
	if err != nil {
		return PlayerView{}, err
	}
	return player.Activate()
}

func (s *builderService) ResumeVideo(_ context.Context, cmd VideoCommand) (PlayerView, error) {
	player, err := s.player(cmd)
	if err != nil {
		return PlayerView{}, err
	}
	return player.Resume()
}

func (s *builderService) VideoState(_ context.Context, cmd VideoCommand) (PlayerView, error) {
	player, err := s.player(cmd)
	if err != nil {
		return PlayerView{}, err
	}
	return player.View(), nil
}

// Publish persists the session document. On failure the session keeps its step so the seller
// can retry; on success it moves to the terminal success step.
func (s *builderService) Publish(ctx context.Context, ownerID, sessionID string) (BuilderSnapshot, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return BuilderSnapshot{}, err
	}
	product, err := session.BeginPublish()
	if err != nil {
		return session.Snapshot(), err
	}

	published, err := s.products.Publish(ctx, product)
	if err != nil {
		session.AbortPublish()
		requestctx.Logger(ctx).Warn("builder publish failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return session.Snapshot(), err
	}
	return session.CompletePublish(published.Product, published.PublicURL), nil
}

func (s *builderService) Discard(_ context.Context, ownerID, sessionID string) error {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, session.ID())
	s.mu.Unlock()
	session.Close()
	return nil
}

func (s *builderService) Sweep(ctx context.Context) int {
	now := s.clock()
	var expired []*builder.Session
	s.mu.Lock()
	for id, session := range s.sessions {
		if session.Expired(now) {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range expired {
		session.Close()
	}
	if len(expired) > 0 {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = s.logger
		}
		logger.Info("builder sessions expired", zap.Int("count", len(expired)))
	}
	return len(expired)
}

func (s *builderService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Stats reports session counts for readiness checks.
func (s *builderService) Stats() BuilderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	owners := make(map[string]struct{}, len(s.sessions))
	for _, session := range s.sessions {
		owners[session.OwnerID()] = struct{}{}
	}
	return BuilderStats{OpenSessions: len(s.sessions), Owners: len(owners), Closed: s.closed}
}

// Close stops the janitor and releases every session.
func (s *builderService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	sessions := s.sessions
	s.sessions = make(map[string]*builder.Session)
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

func (s *builderService) lookup(ownerID, sessionID string) (*builder.Session, error) {
	ownerID = strings.TrimSpace(ownerID)
	sessionID = strings.TrimSpace(sessionID)
	if ownerID == "" || sessionID == "" {
		return nil, ErrBuilderInvalidInput
	}
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok || session.OwnerID() != ownerID || session.Expired(s.clock()) {
		return nil, ErrBuilderSessionNotFound
	}
	return session, nil
}

func (s *builderService) player(cmd VideoCommand) (*builder.Player, error) {
	session, err := s.lookup(cmd.OwnerID, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	return session.Player(cmd.Index)
}
