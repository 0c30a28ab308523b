package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultPublicOrigin         = "http://localhost:8080"
	defaultConnectCountry       = "US"
	defaultConnectReturnPath    = "/dashboard/payouts?connected=1"
	defaultConnectRefreshPath   = "/dashboard/payouts?refresh=1"
	defaultAITimeout            = 30 * time.Second
	defaultSessionTTL           = 2 * time.Hour
	defaultSessionSweepInterval = 5 * time.Minute
	defaultMaxSessionsPerOwner  = 5
	defaultProductTopic         = "launchpad-product-events"
	defaultSecurityEnvironment  = "local"
	defaultOIDCJWKSURL          = "https://www.googleapis.com/oauth2/v3/certs"
	defaultSecurityIssuer       = "https://accounts.google.com"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Site        SiteConfig
	PSP         PSPConfig
	AI          AIConfig
	Builder     BuilderConfig
	Events      EventsConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// SiteConfig describes the public storefront.
type SiteConfig struct {
	// PublicOrigin is the scheme and host used to build product URLs.
	PublicOrigin string
	// AllowedOrigins lists extra origins a checkout request may name for its return URLs.
	AllowedOrigins []string
}

// PSPConfig holds Stripe Checkout and Connect settings.
type PSPConfig struct {
	StripeAPIKey        string
	StripeWebhookSecret string
	PlatformFeeBps      int
	ConnectCountry      string
	ConnectReturnPath   string
	ConnectRefreshPath  string
}

// AIConfig points at the product idea co-pilot.
type AIConfig struct {
	IdeaEndpoint string
	AuthToken    string
	Timeout      time.Duration
}

// BuilderConfig bounds server held wizard sessions.
type BuilderConfig struct {
	SessionTTL          time.Duration
	SweepInterval       time.Duration
	MaxSessionsPerOwner int
}

// EventsConfig configures Pub/Sub publication of product events.
type EventsConfig struct {
	ProjectID    string
	ProductTopic string
	Enabled      bool
}

// SecurityConfig groups server-to-server authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
}

// OIDCConfig controls Google-signed token verification for scheduler calls.
type OIDCConfig struct {
	JWKSURL  string
	Audience string
	Issuers  []string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// ValidationError lists config fields that are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending field names in check order.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

// EnvironmentValues returns the merged environment Load would read (dotenv < OS env < explicit
// map) so callers can configure the secret fetcher before loading.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	env, err := collectEnv(newLoaderOptions(opts))
	if err != nil {
		return nil, err
	}
	return map[string]string(env), nil
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks the provided secret identifiers as mandatory.
// Identifiers should match the config field names recorded by the loader
// (e.g. "PSP.StripeAPIKey" or "AI.AuthToken").
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// WithPanicOnMissingSecrets causes Load to panic when required secrets are missing.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) {
		o.panicOnMissingSecrets = true
	}
}

// Load builds the configuration from defaults and the merged environment, resolves secret
// references, then validates the result.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	env, err := collectEnv(options)
	if err != nil {
		return Config{}, err
	}

	cfg := fromEnv(env)
	empty, err := resolveSecrets(ctx, &cfg, options.secret)
	if err != nil {
		return Config{}, err
	}
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	if missing := findMissingSecrets(options.requiredSecrets, empty); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}
	return cfg, nil
}

func fromEnv(env envSource) Config {
	firebaseProject := env.str("API_FIREBASE_PROJECT_ID", "")
	cfg := Config{
		Server: ServerConfig{
			Port:         env.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:  env.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: env.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  env.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       firebaseProject,
			CredentialsFile: env.str("API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		// Firestore and Pub/Sub live in the Firebase project unless told otherwise.
		Firestore: FirestoreConfig{
			ProjectID:    env.str("API_FIRESTORE_PROJECT_ID", firebaseProject),
			EmulatorHost: env.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Site: SiteConfig{
			PublicOrigin:   strings.TrimRight(env.str("API_SITE_PUBLIC_ORIGIN", defaultPublicOrigin), "/"),
			AllowedOrigins: env.list("API_SITE_ALLOWED_ORIGINS"),
		},
		PSP: PSPConfig{
			StripeAPIKey:        env.str("API_PSP_STRIPE_API_KEY", ""),
			StripeWebhookSecret: env.str("API_PSP_STRIPE_WEBHOOK_SECRET", ""),
			PlatformFeeBps:      env.integer("API_PSP_PLATFORM_FEE_BPS", 0),
			ConnectCountry:      strings.ToUpper(env.str("API_PSP_CONNECT_COUNTRY", defaultConnectCountry)),
			ConnectReturnPath:   env.str("API_PSP_CONNECT_RETURN_PATH", defaultConnectReturnPath),
			ConnectRefreshPath:  env.str("API_PSP_CONNECT_REFRESH_PATH", defaultConnectRefreshPath),
		},
		AI: AIConfig{
			IdeaEndpoint: env.str("API_AI_IDEA_ENDPOINT", ""),
			AuthToken:    env.str("API_AI_AUTH_TOKEN", ""),
			Timeout:      env.duration("API_AI_TIMEOUT", defaultAITimeout),
		},
		Builder: BuilderConfig{
			SessionTTL:          env.duration("API_BUILDER_SESSION_TTL", defaultSessionTTL),
			SweepInterval:       env.duration("API_BUILDER_SWEEP_INTERVAL", defaultSessionSweepInterval),
			MaxSessionsPerOwner: env.integer("API_BUILDER_MAX_SESSIONS_PER_OWNER", defaultMaxSessionsPerOwner),
		},
		Events: EventsConfig{
			ProjectID:    env.str("API_EVENTS_PROJECT_ID", firebaseProject),
			ProductTopic: env.str("API_EVENTS_PRODUCT_TOPIC", defaultProductTopic),
			Enabled:      env.flag("API_EVENTS_ENABLED", false),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(env.str("API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			OIDC: OIDCConfig{
				JWKSURL:  env.str("API_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience: env.str("API_SECURITY_OIDC_AUDIENCE", ""),
				Issuers:  env.list("API_SECURITY_OIDC_ISSUERS"),
			},
		},
		Idempotency: IdempotencyConfig{
			Header:           env.str("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              env.duration("API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  env.duration("API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: env.integer("API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}
	if len(cfg.Security.OIDC.Issuers) == 0 {
		cfg.Security.OIDC.Issuers = []string{defaultSecurityIssuer}
	}
	return cfg
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firebase.ProjectID == "" {
		missing = append(missing, "Firebase.ProjectID")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if !isAbsoluteOrigin(cfg.Site.PublicOrigin) {
		missing = append(missing, "Site.PublicOrigin")
	}
	for _, origin := range cfg.Site.AllowedOrigins {
		if !isAbsoluteOrigin(origin) {
			missing = append(missing, "Site.AllowedOrigins")
			break
		}
	}
	if cfg.PSP.PlatformFeeBps < 0 || cfg.PSP.PlatformFeeBps > 10000 {
		missing = append(missing, "PSP.PlatformFeeBps")
	}
	if cfg.Builder.SessionTTL <= 0 {
		missing = append(missing, "Builder.SessionTTL")
	}
	if cfg.Builder.SweepInterval <= 0 {
		missing = append(missing, "Builder.SweepInterval")
	}
	if cfg.Builder.MaxSessionsPerOwner <= 0 {
		missing = append(missing, "Builder.MaxSessionsPerOwner")
	}
	if cfg.Events.Enabled && strings.TrimSpace(cfg.Events.ProductTopic) == "" {
		missing = append(missing, "Events.ProductTopic")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		missing = append(missing, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		missing = append(missing, "Idempotency.CleanupBatchSize")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isAbsoluteOrigin(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" && (u.Path == "" || u.Path == "/")
}
