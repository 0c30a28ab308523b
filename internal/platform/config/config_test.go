package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "lp-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "lp-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Events.ProjectID != "lp-dev" {
		t.Errorf("expected events project to default to firebase project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Events.Enabled {
		t.Errorf("expected events disabled by default")
	}
	if cfg.Site.PublicOrigin != defaultPublicOrigin {
		t.Errorf("unexpected public origin %s", cfg.Site.PublicOrigin)
	}
	if cfg.PSP.PlatformFeeBps != 0 {
		t.Errorf("expected no platform fee, got %d", cfg.PSP.PlatformFeeBps)
	}
	if cfg.PSP.ConnectCountry != "US" {
		t.Errorf("unexpected connect country %s", cfg.PSP.ConnectCountry)
	}
	if cfg.Builder.SessionTTL != defaultSessionTTL {
		t.Errorf("unexpected session ttl %s", cfg.Builder.SessionTTL)
	}
	if cfg.Builder.MaxSessionsPerOwner != defaultMaxSessionsPerOwner {
		t.Errorf("unexpected session cap %d", cfg.Builder.MaxSessionsPerOwner)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
	if cfg.Security.OIDC.JWKSURL != defaultOIDCJWKSURL {
		t.Errorf("expected default jwks url %s, got %s", defaultOIDCJWKSURL, cfg.Security.OIDC.JWKSURL)
	}
	if len(cfg.Security.OIDC.Issuers) != 1 || cfg.Security.OIDC.Issuers[0] != defaultSecurityIssuer {
		t.Errorf("expected default issuer, got %v", cfg.Security.OIDC.Issuers)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
	if cfg.Idempotency.CleanupBatchSize != defaultIdempotencyBatchSize {
		t.Errorf("unexpected default cleanup batch size: %d", cfg.Idempotency.CleanupBatchSize)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                    "9090",
		"API_SERVER_IDLE_TIMEOUT":            "2m",
		"API_FIREBASE_PROJECT_ID":            "lp-prod",
		"API_FIRESTORE_PROJECT_ID":           "lp-fire",
		"API_SITE_PUBLIC_ORIGIN":             "https://launchpad.example.com/",
		"API_SITE_ALLOWED_ORIGINS":           "https://app.launchpad.example.com, http://localhost:3000",
		"API_PSP_STRIPE_API_KEY":             "secret://stripe/api",
		"API_PSP_STRIPE_WEBHOOK_SECRET":      "secret://stripe/webhook",
		"API_PSP_PLATFORM_FEE_BPS":           "500",
		"API_PSP_CONNECT_COUNTRY":            "jp",
		"API_AI_IDEA_ENDPOINT":               "https://ai.example.com/ideas",
		"API_AI_AUTH_TOKEN":                  "secret://ai/token",
		"API_AI_TIMEOUT":                     "10s",
		"API_BUILDER_SESSION_TTL":            "30m",
		"API_BUILDER_SWEEP_INTERVAL":         "1m",
		"API_BUILDER_MAX_SESSIONS_PER_OWNER": "2",
		"API_EVENTS_ENABLED":                 "true",
		"API_EVENTS_PRODUCT_TOPIC":           "products",
		"API_SECURITY_ENVIRONMENT":           "PROD",
		"API_SECURITY_OIDC_AUDIENCE":         "https://api.launchpad.example.com",
		"API_SECURITY_OIDC_ISSUERS":          "https://accounts.google.com, accounts.google.com",
		"API_IDEMPOTENCY_HEADER":             "X-Idem-Key",
		"API_IDEMPOTENCY_CLEANUP_BATCH":      "500",
	}

	secrets := map[string]string{
		"secret://stripe/api":     "stripe-key",
		"secret://stripe/webhook": "stripe-webhook",
		"secret://ai/token":       "ai-token",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Firestore.ProjectID != "lp-fire" {
		t.Errorf("unexpected firestore project %s", cfg.Firestore.ProjectID)
	}
	if cfg.Site.PublicOrigin != "https://launchpad.example.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.Site.PublicOrigin)
	}
	if len(cfg.Site.AllowedOrigins) != 2 {
		t.Fatalf("expected 2 allowed origins, got %v", cfg.Site.AllowedOrigins)
	}
	if cfg.PSP.StripeAPIKey != "stripe-key" || cfg.PSP.StripeWebhookSecret != "stripe-webhook" {
		t.Errorf("expected resolved stripe secrets, got %+v", cfg.PSP)
	}
	if cfg.PSP.PlatformFeeBps != 500 {
		t.Errorf("unexpected platform fee %d", cfg.PSP.PlatformFeeBps)
	}
	if cfg.PSP.ConnectCountry != "JP" {
		t.Errorf("expected upper-cased country, got %s", cfg.PSP.ConnectCountry)
	}
	if cfg.AI.AuthToken != "ai-token" || cfg.AI.Timeout != 10*time.Second {
		t.Errorf("unexpected ai config %+v", cfg.AI)
	}
	if cfg.Builder.SessionTTL != 30*time.Minute || cfg.Builder.SweepInterval != time.Minute || cfg.Builder.MaxSessionsPerOwner != 2 {
		t.Errorf("unexpected builder config %+v", cfg.Builder)
	}
	if !cfg.Events.Enabled || cfg.Events.ProductTopic != "products" || cfg.Events.ProjectID != "lp-prod" {
		t.Errorf("unexpected events config %+v", cfg.Events)
	}
	if cfg.Security.Environment != "prod" {
		t.Errorf("expected security environment prod, got %s", cfg.Security.Environment)
	}
	if cfg.Security.OIDC.Audience != "https://api.launchpad.example.com" {
		t.Errorf("unexpected oidc audience %s", cfg.Security.OIDC.Audience)
	}
	if len(cfg.Security.OIDC.Issuers) != 2 {
		t.Errorf("unexpected issuers %v", cfg.Security.OIDC.Issuers)
	}
	if cfg.Idempotency.Header != "X-Idem-Key" || cfg.Idempotency.CleanupBatchSize != 500 {
		t.Errorf("unexpected idempotency config %+v", cfg.Idempotency)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "# local overrides\nAPI_SERVER_PORT=7070\nexport API_FIREBASE_PROJECT_ID=\"lp-dot\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "lp-dot" {
		t.Errorf("expected firebase project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if fields := validation.Fields(); len(fields) != 2 || fields[0] != "Firebase.ProjectID" || fields[1] != "Firestore.ProjectID" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]struct {
		key   string
		value string
		field string
	}{
		"fee above 100%":   {key: "API_PSP_PLATFORM_FEE_BPS", value: "10001", field: "PSP.PlatformFeeBps"},
		"negative fee":     {key: "API_PSP_PLATFORM_FEE_BPS", value: "-1", field: "PSP.PlatformFeeBps"},
		"relative origin":  {key: "API_SITE_PUBLIC_ORIGIN", value: "launchpad.example.com", field: "Site.PublicOrigin"},
		"origin with path": {key: "API_SITE_PUBLIC_ORIGIN", value: "https://launchpad.example.com/app", field: "Site.PublicOrigin"},
		"allowed origin":   {key: "API_SITE_ALLOWED_ORIGINS", value: "https://ok.example.com,ftp://bad", field: "Site.AllowedOrigins"},
		"session cap":      {key: "API_BUILDER_MAX_SESSIONS_PER_OWNER", value: "0", field: "Builder.MaxSessionsPerOwner"},
		"session ttl":      {key: "API_BUILDER_SESSION_TTL", value: "-1m", field: "Builder.SessionTTL"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			env := map[string]string{
				"API_FIREBASE_PROJECT_ID": "lp-dev",
				tc.key:                    tc.value,
			}
			_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if fields := validation.Fields(); len(fields) != 1 || fields[0] != tc.field {
				t.Fatalf("expected field %s, got %v", tc.field, fields)
			}
		})
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "lp-dev",
		"API_PSP_STRIPE_API_KEY":  "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	overrides := map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["API_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "lp-dev",
	}

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("PSP.StripeWebhookSecret"),
	)
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	expectedRedacted := redactSecretName("PSP.StripeWebhookSecret")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "lp-dev",
	}

	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic when required secrets missing")
		}
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if len(missing.Names()) != 1 || missing.Names()[0] != "PSP.StripeAPIKey" {
			t.Fatalf("unexpected missing secrets %v", missing.Names())
		}
	}()

	Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("PSP.StripeAPIKey"),
		WithPanicOnMissingSecrets(),
	)
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":       "lp-dev",
		"API_PSP_STRIPE_WEBHOOK_SECRET": "sm://stripe/webhook",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref == "secret://stripe/webhook" {
			return "legacy-secret", nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PSP.StripeWebhookSecret != "legacy-secret" {
		t.Fatalf("expected legacy secret, got %s", cfg.PSP.StripeWebhookSecret)
	}
}
