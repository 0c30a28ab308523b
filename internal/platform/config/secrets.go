package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// SecretResolver resolves secret:// references, typically against Secret Manager.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret calls f.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// SecretError describes a failed secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError lists required secrets that resolved to nothing. Error() only prints
// redacted identifiers so the message is safe to log.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// Names returns the config field names, sorted.
func (e *MissingSecretsError) Names() []string {
	if e == nil || len(e.names) == 0 {
		return nil
	}
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

// RedactedNames returns a short hash per missing field, sorted.
func (e *MissingSecretsError) RedactedNames() []string {
	names := e.Names()
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, redactSecretName(name))
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// secretField is a config string that may hold a secret reference.
type secretField struct {
	name  string
	value *string
}

func (c *Config) secretFields() []secretField {
	return []secretField{
		{"PSP.StripeAPIKey", &c.PSP.StripeAPIKey},
		{"PSP.StripeWebhookSecret", &c.PSP.StripeWebhookSecret},
		{"AI.AuthToken", &c.AI.AuthToken},
	}
}

// resolveSecrets replaces references in place and returns the fields left empty.
func resolveSecrets(ctx context.Context, cfg *Config, resolver SecretResolver) (map[string]bool, error) {
	empty := make(map[string]bool)
	for _, field := range cfg.secretFields() {
		raw := strings.TrimSpace(*field.value)
		if ref, ok := secretReference(raw); ok {
			if resolver == nil {
				return nil, &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
			}
			value, err := resolver.ResolveSecret(ctx, ref)
			if err != nil {
				return nil, &SecretError{Ref: ref, Err: err}
			}
			*field.value = value
		}
		empty[field.name] = strings.TrimSpace(*field.value) == ""
	}
	return empty, nil
}

// secretReference normalises the legacy sm:// scheme to secret://.
func secretReference(value string) (string, bool) {
	switch {
	case strings.HasPrefix(value, "secret://"):
		return value, true
	case strings.HasPrefix(value, "sm://"):
		return "secret://" + strings.TrimPrefix(value, "sm://"), true
	}
	return "", false
}

func findMissingSecrets(required []string, empty map[string]bool) *MissingSecretsError {
	seen := make(map[string]bool)
	var missing []string
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if isEmpty, known := empty[name]; isEmpty || !known {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{names: missing}
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}
