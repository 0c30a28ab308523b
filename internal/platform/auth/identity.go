package auth

import (
	"context"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Identity is the seller behind a verified Firebase ID token. The UID doubles as the owner ID
// for every product the seller creates.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
	DisplayName   string
	Provider      string

	token *firebaseauth.Token
}

// Token exposes the decoded Firebase ID token associated with this identity.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// Owns reports whether the identity is the owner with the given ID.
func (i *Identity) Owns(ownerID string) bool {
	if i == nil {
		return false
	}
	ownerID = strings.TrimSpace(ownerID)
	return ownerID != "" && ownerID == i.UID
}

type contextKey string

const identityContextKey contextKey = "github.com/launchpad/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

func identityFromToken(token *firebaseauth.Token) *Identity {
	identity := &Identity{
		UID:           token.UID,
		Email:         claimAsString(token.Claims, "email"),
		EmailVerified: claimAsBool(token.Claims, "email_verified"),
		DisplayName:   claimAsString(token.Claims, "name"),
		token:         token,
	}
	identity.Provider = token.Firebase.SignInProvider
	return identity
}

func claimAsString(claims map[string]interface{}, key string) string {
	raw, ok := claims[key]
	if !ok {
		return ""
	}
	if v, ok := raw.(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func claimAsBool(claims map[string]interface{}, key string) bool {
	v, _ := claims[key].(bool)
	return v
}
