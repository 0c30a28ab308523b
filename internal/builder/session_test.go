package builder

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/launchpad/api/internal/domain"
)

func strPtr(v string) *string { return &v }

func basicsPatch(price string) domain.ProductPatch {
	features := []string{"Chapter one"}
	return domain.ProductPatch{
		Title:       strPtr("Ebook"),
		Price:       strPtr(price),
		Description: strPtr("desc"),
		Features:    &features,
	}
}

func TestSessionBasicsGuard(t *testing.T) {
	session := NewSession("s1", "owner-1")
	defer session.Close()

	if _, err := session.Apply(basicsPatch("-5")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	snap, err := session.Next()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || verrs["price"] == "" {
		t.Fatalf("expected price validation error, got %v", err)
	}
	if snap.Step != StepBasics {
		t.Fatalf("failed guard must not move the wizard, got %s", snap.Step)
	}
	if snap.Product.Title != "Ebook" {
		t.Fatalf("failed guard must not touch the document")
	}

	if _, err := session.Apply(domain.ProductPatch{Price: strPtr("0")}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	snap, err = session.Next()
	if err != nil {
		t.Fatalf("expected zero price to pass, got %v", err)
	}
	if snap.Step != StepContent {
		t.Fatalf("expected content step, got %s", snap.Step)
	}
}

func TestSessionBothPublishPathsReachSuccess(t *testing.T) {
	for _, viaCustomize := range []bool{false, true} {
		session := NewSession("s1", "owner-1")
		if _, err := session.Apply(basicsPatch("10")); err != nil {
			t.Fatalf("apply basics: %v", err)
		}
		mustStep(t, session.Next, StepContent)
		if _, err := session.Apply(domain.ProductPatch{Content: strPtr("hello world")}); err != nil {
			t.Fatalf("apply content: %v", err)
		}
		mustStep(t, session.Next, StepPreview)
		if viaCustomize {
			mustStep(t, session.Next, StepCustomize)
		}

		product, err := session.BeginPublish()
		if err != nil {
			t.Fatalf("begin publish: %v", err)
		}
		if product.PriceMinor != 1000 {
			t.Fatalf("expected 1000 minor units, got %d", product.PriceMinor)
		}
		if _, err := session.BeginPublish(); !errors.Is(err, ErrPublishInProgress) {
			t.Fatalf("expected in-progress guard, got %v", err)
		}
		if _, err := session.Apply(domain.ProductPatch{Title: strPtr("changed")}); !errors.Is(err, ErrPublishInProgress) {
			t.Fatalf("edits during publish must be rejected, got %v", err)
		}

		product.ID = "p1"
		product.Published = true
		snap := session.CompletePublish(product, "https://launchpad.test/p/owner-1/p1")
		if snap.Step != StepSuccess || snap.PublicURL == "" {
			t.Fatalf("expected success with URL, got %+v", snap)
		}
		if _, err := session.Back(); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("success must be terminal, got %v", err)
		}
		if _, err := session.Apply(domain.ProductPatch{Title: strPtr("late")}); !errors.Is(err, ErrSessionFinished) {
			t.Fatalf("expected finished error, got %v", err)
		}
		session.Close()
	}
}

func TestSessionAbortPublishKeepsStep(t *testing.T) {
	session := NewSession("s1", "owner-1")
	defer session.Close()
	session.Apply(basicsPatch("10"))
	mustStep(t, session.Next, StepContent)
	session.Apply(domain.ProductPatch{Content: strPtr("hello")})
	mustStep(t, session.Next, StepPreview)

	if _, err := session.BeginPublish(); err != nil {
		t.Fatalf("begin publish: %v", err)
	}
	session.AbortPublish()
	snap := session.Snapshot()
	if snap.Step != StepPreview || snap.Publishing {
		t.Fatalf("abort must leave the wizard at preview, got %+v", snap)
	}
}

func TestSessionPublishNotAllowedFromBasics(t *testing.T) {
	session := NewSession("s1", "owner-1")
	defer session.Close()
	if _, err := session.BeginPublish(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestSessionMoveElementRequiresThreeActive(t *testing.T) {
	session := NewSession("s1", "owner-1")
	defer session.Close()

	if _, err := session.MoveElement(domain.ElementPurchase, domain.DirectionUp); !errors.Is(err, ErrReorderUnavailable) {
		t.Fatalf("expected reorder unavailable, got %v", err)
	}
	session.Apply(domain.ProductPatch{Content: strPtr("body")})
	snap, err := session.MoveElement(domain.ElementContent, domain.DirectionUp)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if snap.ActiveElements[0] != domain.ElementContent {
		t.Fatalf("expected content first, got %v", snap.ActiveElements)
	}
	if !domain.IsPermutation(snap.Product.ElementOrder) {
		t.Fatalf("order must stay a permutation")
	}
}

func TestSessionPlayersFollowVideoSettings(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := &fakeClock{}
	session := NewSession("s1", "owner-1", WithTicker(clock.NewTicker))

	if snap := session.Snapshot(); len(snap.Players) != 0 {
		t.Fatalf("expected no players without video, got %d", len(snap.Players))
	}
	policy := domain.VideoPolicyLimited
	extra := []string{"https://youtu.be/x"}
	session.Apply(domain.ProductPatch{
		VideoURL:            strPtr("https://vimeo.com/1"),
		VideoAdditionalURLs: &extra,
		VideoPolicy:         &policy,
	})
	snap := session.Snapshot()
	if len(snap.Players) != 2 || snap.Players[1].Index != 1 {
		t.Fatalf("expected two players, got %+v", snap.Players)
	}

	player, err := session.Player(0)
	if err != nil {
		t.Fatalf("player: %v", err)
	}
	if _, err := player.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	ticker := clock.last(t)

	snap = session.SetPreviewMode(domain.ModeUnlocked)
	waitStopped(t, ticker)
	if snap.Players[0].State != domain.PlayerFull {
		t.Fatalf("expected full in unlocked preview, got %s", snap.Players[0].State)
	}

	if _, err := session.Player(5); !errors.Is(err, ErrPlayerNotPlayable) {
		t.Fatalf("expected missing player error, got %v", err)
	}

	session.SetPreviewMode(domain.ModeLocked)
	if _, err := player.Activate(); err != nil {
		t.Fatalf("activate again: %v", err)
	}
	session.Close()
	waitStopped(t, clock.last(t))
	if _, err := session.Player(0); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected closed session, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	session := NewSession("s1", "owner-1", WithTTL(time.Minute), WithClock(func() time.Time { return now }))
	defer session.Close()

	if session.Expired(now.Add(59 * time.Second)) {
		t.Fatalf("session expired early")
	}
	if !session.Expired(now.Add(time.Minute)) {
		t.Fatalf("session should expire after ttl")
	}
	if snap := session.Snapshot(); !snap.ExpiresAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected expiry %s", snap.ExpiresAt)
	}
}

func mustStep(t *testing.T, fn func() (Snapshot, error), want Step) {
	t.Helper()
	snap, err := fn()
	if err != nil {
		t.Fatalf("transition to %s: %v", want, err)
	}
	if snap.Step != want {
		t.Fatalf("expected %s, got %s", want, snap.Step)
	}
}
