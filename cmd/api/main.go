package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/launchpad/api/internal/di"
	"github.com/launchpad/api/internal/handlers"
	"github.com/launchpad/api/internal/payments"
	"github.com/launchpad/api/internal/platform/auth"
	"github.com/launchpad/api/internal/platform/config"
	pfirestore "github.com/launchpad/api/internal/platform/firestore"
	"github.com/launchpad/api/internal/platform/idempotency"
	"github.com/launchpad/api/internal/platform/jobs"
	"github.com/launchpad/api/internal/platform/observability"
	"github.com/launchpad/api/internal/platform/secrets"
	"github.com/launchpad/api/internal/render"
	"github.com/launchpad/api/internal/repositories"
	firestoreRepo "github.com/launchpad/api/internal/repositories/firestore"
	"github.com/launchpad/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets("PSP.StripeAPIKey", "PSP.StripeWebhookSecret"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	var firestoreOpts []pfirestore.ProviderOption
	if cfg.Firebase.CredentialsFile != "" {
		firestoreOpts = append(firestoreOpts, pfirestore.WithClientOptions(option.WithCredentialsFile(cfg.Firebase.CredentialsFile)))
	}
	firestoreProvider := pfirestore.NewProvider(cfg.Firestore, firestoreOpts...)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		if err := firestoreProvider.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	sellerRepo, err := firestoreRepo.NewSellerRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise seller repository", zap.Error(err))
	}

	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey:        cfg.PSP.StripeAPIKey,
		WebhookSecret: cfg.PSP.StripeWebhookSecret,
		Clock:         time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe provider", zap.Error(err))
	}

	events, closeEvents, err := newProductEventPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise product event publisher", zap.Error(err))
	}
	defer closeEvents()

	// Without a Secret Manager project every lookup comes from the local file, so there is nothing to probe.
	probeFetcher := fetcher
	if secretProject(envValues) == "" {
		probeFetcher = nil
	}
	healthRepo, err := newHealthRepository(firestoreClient, probeFetcher)
	if err != nil {
		logger.Warn("health: dependency checks unavailable", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, di.Infrastructure{
		Products: productRepo,
		Sellers:  sellerRepo,
		Payments: stripeProvider,
		Events:   events,
		Health:   healthRepo,
		Logger:   logger,
		Clock:    time.Now,
	})
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	container.Start(ctx)
	svc := container.Services

	renderer, err := render.NewHTMLRenderer()
	if err != nil {
		logger.Fatal("failed to parse page templates", zap.Error(err))
	}

	var (
		verifierOpts []auth.FirebaseOption
		authOpts     []auth.Option
	)
	if cfg.Security.Environment == "prod" {
		verifierOpts = append(verifierOpts, auth.WithRevocationCheck())
		authOpts = append(authOpts, auth.WithVerifiedEmail())
	}
	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase, verifierOpts...)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, authOpts...)

	idempotencyStore := idempotency.NewFirestoreStore(firestoreProvider)
	publishIdempotency := idempotency.Middleware(idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
	)
	checkoutIdempotency := idempotency.Middleware(idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithOptionalKey(),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		runIdempotencyCleanup(cleanupCtx, logger.Named("idempotency"), idempotencyStore, cfg.Idempotency)
	}()

	storefrontHandlers := handlers.NewStorefrontHandlers(svc.Products,
		handlers.WithStorefrontCheckout(svc.Checkout),
		handlers.WithStorefrontRenderer(renderer),
		handlers.WithStorefrontCheckoutMiddlewares(checkoutIdempotency),
	)
	builderHandlers := handlers.NewBuilderHandlers(authenticator, svc.Builder,
		handlers.WithBuilderRenderer(renderer),
		handlers.WithBuilderPublishMiddlewares(publishIdempotency),
	)
	productHandlers := handlers.NewProductHandlers(authenticator, svc.Products)
	connectHandlers := handlers.NewConnectHandlers(authenticator, svc.Connect)
	ideaHandlers := handlers.NewIdeaHandlers(authenticator, svc.Ideas)
	webhookHandlers := handlers.NewWebhookHandlers(svc.Sales)
	maintenanceHandlers := handlers.NewMaintenanceHandlers(svc.Builder,
		handlers.WithMaintenanceIdempotency(idempotencyStore, cfg.Idempotency.CleanupBatchSize),
	)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithStorefrontRoutes(storefrontHandlers.Routes),
		handlers.WithPublicRoutes(storefrontHandlers.APIRoutes),
		handlers.WithPublicMiddlewares(authenticator.OptionalSeller()),
		handlers.WithBuilderRoutes(builderHandlers.Routes),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithConnectRoutes(connectHandlers.Routes),
		handlers.WithIdeaRoutes(ideaHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithInternalRoutes(maintenanceHandlers.Routes),
	}
	if oidcMiddleware := buildOIDCMiddleware(logger.Named("auth"), cfg); oidcMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(oidcMiddleware))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("launchpad api listening", zap.String("version", buildInfo.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	storefrontHandlers.WaitForViews()
	cleanupCancel()
	cleanupWG.Wait()
	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("container close error", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newHealthRepository(client *firestore.Client, fetcher *secrets.Fetcher) (repositories.HealthRepository, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://launchpad-healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil || status.Code(err) == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	return repositories.NewDependencyHealthRepository(checks)
}

func newProductEventPublisher(ctx context.Context, cfg config.Config) (services.ProductEventPublisher, func(), error) {
	noop := func() {}
	if !cfg.Events.Enabled {
		return nil, noop, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		return nil, noop, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(cfg.Events.ProductTopic)
	publisher, err := jobs.NewPubSubProductEventPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	return publisher, func() {
		topic.Stop()
		_ = client.Close()
	}, nil
}

func runIdempotencyCleanup(ctx context.Context, logger *zap.Logger, store *idempotency.FirestoreStore, cfg config.IdempotencyConfig) {
	if cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, time.Minute)
			removed, err := store.CleanupExpired(runCtx, time.Now().UTC(), cfg.CleanupBatchSize)
			cancel()
			if err != nil {
				logger.Error("idempotency cleanup error", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Info("idempotency cleanup removed records", zap.Int("count", removed))
			}
		case <-ctx.Done():
			return
		}
	}
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL,
		auth.WithJWKSLogger(logger),
		auth.WithJWKSHTTPClient(&http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	)
	validator := auth.NewOIDCValidator(cache, audience, cfg.Security.OIDC.Issuers, logger)
	return validator.RequireOIDC()
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func secretProject(env map[string]string) string {
	if project := strings.TrimSpace(env["API_SECRET_DEFAULT_PROJECT_ID"]); project != "" {
		return project
	}
	return strings.TrimSpace(env["API_FIREBASE_PROJECT_ID"])
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	defaultProject := secretProject(env)
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}
