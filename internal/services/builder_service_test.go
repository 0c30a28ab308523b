package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/launchpad/api/internal/builder"
	"github.com/launchpad/api/internal/domain"
)

type manualTicker struct {
	ch       chan time.Time
	stopOnce sync.Once
	stopped  chan struct{}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }

func (m *manualTicker) Stop() { m.stopOnce.Do(func() { close(m.stopped) }) }

type tickerSource struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (s *tickerSource) New(time.Duration) builder.Ticker {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	s.tickers = append(s.tickers, t)
	return t
}

type stubPublisher struct {
	product Product
	err     error
	calls   int
}

func (p *stubPublisher) Publish(_ context.Context, product Product) (PublishedProduct, error) {
	p.calls++
	p.product = product
	if p.err != nil {
		return PublishedProduct{}, p.err
	}
	product.ID = "prod-1"
	product.Published = true
	return PublishedProduct{Product: product, PublicURL: "https://launchpad.test/p/" + product.OwnerID + "/prod-1"}, nil
}

type mutableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mutableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBuilderService(t *testing.T, publisher *stubPublisher, clock *mutableClock, tickers *tickerSource) BuilderService {
	t.Helper()
	ids := 0
	svc, err := NewBuilderService(BuilderServiceDeps{
		Products:            publisher,
		SessionTTL:          30 * time.Minute,
		MaxSessionsPerOwner: 2,
		Clock:               clock.Now,
		Ticker:              tickers.New,
		IDGenerator: func() string {
			ids++
			return "session-" + string(rune('0'+ids))
		},
	})
	if err != nil {
		t.Fatalf("NewBuilderService: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func strRef(v string) *string { return &v }

func fillBasics(t *testing.T, svc BuilderService, owner, id string) {
	t.Helper()
	features := []string{"Templates"}
	_, err := svc.Apply(context.Background(), owner, id, ProductPatch{
		Title:       strRef("Launch Guide"),
		Description: strRef("Everything you need"),
		Price:       strRef("19"),
		Features:    &features,
		Content:     strRef("Chapter one"),
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func TestBuilderServicePublishFlow(t *testing.T) {
	clock := &mutableClock{now: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
	publisher := &stubPublisher{}
	svc := newTestBuilderService(t, publisher, clock, &tickerSource{})
	ctx := context.Background()

	snap, err := svc.Start(ctx, "seller-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if snap.Step != builder.StepBasics {
		t.Fatalf("expected basics, got %s", snap.Step)
	}

	if _, err := svc.Next(ctx, "seller-1", snap.ID); err == nil {
		t.Fatal("expected guard failure on empty basics")
	}
	fillBasics(t, svc, "seller-1", snap.ID)
	for _, want := range []builder.Step{builder.StepContent, builder.StepPreview} {
		next, err := svc.Next(ctx, "seller-1", snap.ID)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if next.Step != want {
			t.Fatalf("expected %s, got %s", want, next.Step)
		}
	}

	done, err := svc.Publish(ctx, "seller-1", snap.ID)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if done.Step != builder.StepSuccess || done.PublicURL != "https://launchpad.test/p/seller-1/prod-1" {
		t.Fatalf("unexpected snapshot %+v", done)
	}
	if publisher.product.PriceMinor != 1900 {
		t.Fatalf("expected parsed price to be published, got %d", publisher.product.PriceMinor)
	}
	if _, err := svc.Apply(ctx, "seller-1", snap.ID, ProductPatch{Title: strRef("late")}); !errors.Is(err, builder.ErrSessionFinished) {
		t.Fatalf("expected finished session to reject edits, got %v", err)
	}
}

func TestBuilderServicePublishFailureKeepsStep(t *testing.T) {
	clock := &mutableClock{now: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
	publisher := &stubPublisher{err: ErrProductUnavailable}
	svc := newTestBuilderService(t, publisher, clock, &tickerSource{})
	ctx := context.Background()

	snap, _ := svc.Start(ctx, "seller-1")
	fillBasics(t, svc, "seller-1", snap.ID)
	svc.Next(ctx, "seller-1", snap.ID)
	svc.Next(ctx, "seller-1", snap.ID)

	after, err := svc.Publish(ctx, "seller-1", snap.ID)
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
	if after.Step != builder.StepPreview || after.Publishing {
		t.Fatalf("expected session to stay in preview, got %+v", after)
	}

	publisher.err = nil
	if _, err := svc.Publish(ctx, "seller-1", snap.ID); err != nil {
		t.Fatalf("retry publish: %v", err)
	}
	if publisher.calls != 2 {
		t.Fatalf("expected two publish attempts, got %d", publisher.calls)
	}
}

func TestBuilderServiceScopesSessionsToOwner(t *testing.T) {
	clock := &mutableClock{now: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestBuilderService(t, &stubPublisher{}, clock, &tickerSource{})
	ctx := context.Background()

	snap, _ := svc.Start(ctx, "seller-1")
	if _, err := svc.Get(ctx, "seller-2", snap.ID); !errors.Is(err, ErrBuilderSessionNotFound) {
		t.Fatalf("expected other sellers to get not found, got %v", err)
	}
	if _, err := svc.Start(ctx, "seller-1"); err != nil {
		t.Fatalf("second session: %v", err)
	}
	if _, err := svc.Start(ctx, "seller-1"); !errors.Is(err, ErrBuilderSessionLimit) {
		t.Fatalf("expected session limit, got %v", err)
	}
	if _, err := svc.Start(ctx, "seller-2"); err != nil {
		t.Fatalf("other seller unaffected: %v", err)
	}
}

func TestBuilderServiceSweepExpiresIdleSessions(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := &mutableClock{now: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
	tickers := &tickerSource{}
	svc := newTestBuilderService(t, &stubPublisher{}, clock, tickers)
	ctx := context.Background()

	snap, _ := svc.Start(ctx, "seller-1")
	policy := domain.VideoPolicyLimited
	if _, err := svc.Apply(ctx, "seller-1", snap.ID, ProductPatch{VideoURL: strRef("https://vimeo.com/1"), VideoPolicy: &policy}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	view, err := svc.PlayVideo(ctx, VideoCommand{OwnerID: "seller-1", SessionID: snap.ID})
	if err != nil {
		t.Fatalf("PlayVideo: %v", err)
	}
	if view.State != domain.PlayerPlaying {
		t.Fatalf("expected playing, got %s", view.State)
	}

	if n := svc.Sweep(ctx); n != 0 {
		t.Fatalf("expected nothing to expire yet, got %d", n)
	}
	clock.Advance(31 * time.Minute)
	if n := svc.Sweep(ctx); n != 1 {
		t.Fatalf("expected one expired session, got %d", n)
	}
	select {
	case <-tickers.tickers[0].stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("expired session left its countdown running")
	}
	if _, err := svc.Get(ctx, "seller-1", snap.ID); !errors.Is(err, ErrBuilderSessionNotFound) {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
}

func TestBuilderServicePreviewUsesPlayerStates(t *testing.T) {
	clock := &mutableClock{now: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestBuilderService(t, &stubPublisher{}, clock, &tickerSource{})
	ctx := context.Background()

	snap, _ := svc.Start(ctx, "seller-1")
	fillBasics(t, svc, "seller-1", snap.ID)
	policy := domain.VideoPolicyLimited
	svc.Apply(ctx, "seller-1", snap.ID, ProductPatch{VideoURL: strRef("https://vimeo.com/1"), VideoPolicy: &policy})
	if _, err := svc.PlayVideo(ctx, VideoCommand{OwnerID: "seller-1", SessionID: snap.ID}); err != nil {
		t.Fatalf("PlayVideo: %v", err)
	}

	preview, err := svc.Preview(ctx, "seller-1", snap.ID)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	var found bool
	for _, section := range preview.Page.Sections {
		if section.Kind == domain.ElementVideo {
			found = true
			if section.Video.Items[0].State != domain.PlayerPlaying {
				t.Fatalf("expected playing state in preview, got %s", section.Video.Items[0].State)
			}
		}
	}
	if !found {
		t.Fatal("expected video section in preview")
	}

	unlocked, err := svc.SetPreviewMode(ctx, "seller-1", snap.ID, domain.ModeUnlocked)
	if err != nil {
		t.Fatalf("SetPreviewMode: %v", err)
	}
	if unlocked.Players[0].State != domain.PlayerFull {
		t.Fatalf("expected full state when unlocked, got %s", unlocked.Players[0].State)
	}
	if _, err := svc.SetPreviewMode(ctx, "seller-1", snap.ID, domain.ViewMode("bogus")); !errors.Is(err, ErrBuilderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestBuilderServiceDiscard(t *testing.T) {
	clock := &mutableClock{now: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestBuilderService(t, &stubPublisher{}, clock, &tickerSource{})
	ctx := context.Background()

	snap, _ := svc.Start(ctx, "seller-1")
	if err := svc.Discard(ctx, "seller-1", snap.ID); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if err := svc.Discard(ctx, "seller-1", snap.ID); !errors.Is(err, ErrBuilderSessionNotFound) {
		t.Fatalf("expected not found after discard, got %v", err)
	}
}

func TestBuilderServiceRunStopsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := &mutableClock{now: time.Now()}
	svc, err := NewBuilderService(BuilderServiceDeps{Products: &stubPublisher{}, SweepInterval: time.Millisecond, Clock: clock.Now})
	if err != nil {
		t.Fatalf("NewBuilderService: %v", err)
	}
	done := make(chan struct{})
	go func() {
		svc.Run(context.Background())
		close(done)
	}()
	svc.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
