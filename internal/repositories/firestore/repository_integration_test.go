//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/launchpad/api/internal/domain"
	pconfig "github.com/launchpad/api/internal/platform/config"
	pfirestore "github.com/launchpad/api/internal/platform/firestore"
)

func newEmulatorProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	if err := exec.Command("docker", "info").Run(); err != nil {
		t.Skip("docker daemon unavailable: " + err.Error())
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("allocate port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()

	out, err := exec.Command("docker", "run", "-d", "--rm", "-p", fmt.Sprintf("%d:8080", port),
		"gcr.io/google.com/cloudsdktool/cloud-sdk:emulators",
		"gcloud", "beta", "emulators", "firestore", "start", "--host-port=0.0.0.0:8080", "--quiet").CombinedOutput()
	if err != nil {
		t.Fatalf("start emulator: %v - %s", err, out)
	}
	containerID := strings.TrimSpace(string(out))
	t.Cleanup(func() { _ = exec.Command("docker", "stop", containerID).Run() })

	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	deadline := time.Now().Add(30 * time.Second)
	for {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("emulator not ready: %v", err)
		}
		time.Sleep(250 * time.Millisecond)
	}

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "launchpad-test", EmulatorHost: endpoint})
	t.Cleanup(func() { _ = provider.Close() })
	return provider
}

func TestProductRepositoryIntegration(t *testing.T) {
	provider := newEmulatorProvider(t)
	repo, err := NewProductRepository(provider)
	if err != nil {
		t.Fatalf("new product repository: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	product := domain.NewProduct("seller-1")
	product.Title = "Ebook"
	product.PriceMinor = 1000
	product.Description = "desc"
	product.Features = []string{"Chapter one"}
	product.Content = domain.FormatRedirect("https://example.com/course")
	product.Testimonial = "Great"
	product.MoveElement(domain.ElementTestimonial, domain.DirectionUp)
	product.Published = true
	product.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	created, err := repo.Create(ctx, product)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}

	loaded, err := repo.Get(ctx, "seller-1", created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !loaded.Published || loaded.Content != product.Content {
		t.Fatalf("unexpected loaded product %+v", loaded)
	}
	if diff := cmp.Diff(product.ElementOrder, loaded.ElementOrder); diff != "" {
		t.Fatalf("element order changed (-want +got):\n%s", diff)
	}

	loaded.Title = "Ebook v2"
	updated, err := repo.Update(ctx, loaded)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Ebook v2" || !updated.Published {
		t.Fatalf("update lost fields: %+v", updated)
	}

	missing := loaded
	missing.ID = "does-not-exist"
	_, err = repo.Update(ctx, missing)
	var repoErr *pfirestore.Error
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found repository error, got %v", err)
	}

	if err := repo.IncrementViews(ctx, "seller-1", created.ID); err != nil {
		t.Fatalf("increment views: %v", err)
	}
	sale := domain.SaleRecord{SessionID: "cs_1", OwnerID: "seller-1", ProductID: created.ID, AmountMinor: 1000, Currency: "usd", CompletedAt: time.Now()}
	for i, want := range []bool{true, false} {
		recorded, err := repo.RecordSale(ctx, sale)
		if err != nil || recorded != want {
			t.Fatalf("record sale #%d: got %v (%v), want %v", i, recorded, err, want)
		}
	}
	counted, err := repo.Get(ctx, "seller-1", created.ID)
	if err != nil {
		t.Fatalf("get counters: %v", err)
	}
	if counted.Views != 1 || counted.Sales != 1 || counted.RevenueMinor != 1000 {
		t.Fatalf("unexpected counters views=%d sales=%d revenue=%d", counted.Views, counted.Sales, counted.RevenueMinor)
	}

	second := product
	second.CreatedAt = product.CreatedAt.Add(time.Hour)
	if _, err := repo.Create(ctx, second); err != nil {
		t.Fatalf("create second: %v", err)
	}
	page, err := repo.ListByOwner(ctx, "seller-1", domain.Pagination{PageSize: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.NextPageToken == "" {
		t.Fatalf("expected first page with token, got %+v", page)
	}
	next, err := repo.ListByOwner(ctx, "seller-1", domain.Pagination{PageSize: 1, PageToken: page.NextPageToken})
	if err != nil {
		t.Fatalf("list next: %v", err)
	}
	if len(next.Items) != 1 || next.Items[0].ID != created.ID || next.NextPageToken != "" {
		t.Fatalf("unexpected second page %+v", next)
	}
}

func TestSellerRepositoryClaimIntegration(t *testing.T) {
	provider := newEmulatorProvider(t)
	repo, err := NewSellerRepository(provider)
	if err != nil {
		t.Fatalf("new seller repository: %v", err)
	}
	ctx := context.Background()

	first, err := repo.ClaimStripeAccount(ctx, "seller-1", "a@example.com", "acct_1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	second, err := repo.ClaimStripeAccount(ctx, "seller-1", "a@example.com", "acct_2")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if first.StripeAccountID != "acct_1" || second.StripeAccountID != "acct_1" {
		t.Fatalf("account must be claimed once, got %q then %q", first.StripeAccountID, second.StripeAccountID)
	}

	profile, err := repo.UpdateStripeStatus(ctx, "seller-1", true, true)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if !profile.PayoutsReady() {
		t.Fatalf("expected payouts ready, got %+v", profile)
	}
}
