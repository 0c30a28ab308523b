package di

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/launchpad/api/internal/payments"
	"github.com/launchpad/api/internal/platform/config"
	"github.com/launchpad/api/internal/repositories"
	"github.com/launchpad/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Products services.ProductService
	Builder  services.BuilderService
	Checkout services.CheckoutService
	Connect  services.ConnectService
	Sales    services.SalesService
	Ideas    services.IdeaService
	System   services.SystemService
}

// Infrastructure carries the clients the services are built on. Products, Sellers and Payments
// are required; the rest are optional.
type Infrastructure struct {
	Products repositories.ProductRepository
	Sellers  repositories.SellerRepository
	Payments payments.Provider
	Events   services.ProductEventPublisher
	Health   repositories.HealthRepository
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config   config.Config
	Services Services

	mu      sync.Mutex
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// NewContainer constructs the runtime dependencies. Tests can supply in-memory repositories and a
// fake payment provider.
func NewContainer(ctx context.Context, cfg config.Config, infra Infrastructure) (*Container, error) {
	if infra.Products == nil {
		return nil, errors.New("product repository is required")
	}
	if infra.Sellers == nil {
		return nil, errors.New("seller repository is required")
	}
	if infra.Payments == nil {
		return nil, errors.New("payment provider is required")
	}

	svc, err := buildServices(ctx, cfg, infra)
	if err != nil {
		return nil, err
	}
	return &Container{Config: cfg, Services: svc}, nil
}

// Start launches background workers. It is safe to call once; later calls are ignored.
func (c *Container) Start(ctx context.Context) {
	if c == nil || c.Services.Builder == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		c.Services.Builder.Run(runCtx)
	}()
}

// Close stops background workers and releases open builder sessions.
func (c *Container) Close(_ context.Context) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.workers.Wait()
	if c.Services.Builder != nil {
		c.Services.Builder.Close()
	}
	return nil
}

func buildServices(_ context.Context, cfg config.Config, infra Infrastructure) (Services, error) {
	var svc Services
	clock := infra.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := infra.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	products, err := services.NewProductService(services.ProductServiceDeps{
		Products:     infra.Products,
		Events:       infra.Events,
		PublicOrigin: cfg.Site.PublicOrigin,
		Clock:        clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build product service: %w", err)
	}
	svc.Products = products

	builderSvc, err := services.NewBuilderService(services.BuilderServiceDeps{
		Products:            products,
		SessionTTL:          cfg.Builder.SessionTTL,
		SweepInterval:       cfg.Builder.SweepInterval,
		MaxSessionsPerOwner: cfg.Builder.MaxSessionsPerOwner,
		Clock:               clock,
		Logger:              logger.Named("builder"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build builder service: %w", err)
	}
	svc.Builder = builderSvc

	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Products:       products,
		Sellers:        infra.Sellers,
		Payments:       infra.Payments,
		PublicOrigin:   cfg.Site.PublicOrigin,
		AllowedOrigins: cfg.Site.AllowedOrigins,
		PlatformFeeBps: cfg.PSP.PlatformFeeBps,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkout

	connect, err := services.NewConnectService(services.ConnectServiceDeps{
		Sellers:      infra.Sellers,
		Payments:     infra.Payments,
		PublicOrigin: cfg.Site.PublicOrigin,
		Country:      cfg.PSP.ConnectCountry,
		ReturnPath:   cfg.PSP.ConnectReturnPath,
		RefreshPath:  cfg.PSP.ConnectRefreshPath,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build connect service: %w", err)
	}
	svc.Connect = connect

	sales, err := services.NewSalesService(services.SalesServiceDeps{
		Webhooks: infra.Payments,
		Products: infra.Products,
		Sellers:  infra.Sellers,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build sales service: %w", err)
	}
	svc.Sales = sales

	svc.Ideas = services.NewIdeaService(services.IdeaServiceDeps{
		Endpoint:  cfg.AI.IdeaEndpoint,
		AuthToken: cfg.AI.AuthToken,
		Timeout:   cfg.AI.Timeout,
		Clock:     clock,
	})

	if infra.Health != nil {
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: infra.Health,
			Builder:          builderSvc,
			Clock:            clock,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = system
	}

	return svc, nil
}
