package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"github.com/launchpad/api/internal/platform/httpx"
	"github.com/launchpad/api/internal/platform/requestctx"
)

const defaultVerifyTimeout = 5 * time.Second

var (
	// ErrTokenExpired signals that the provided Firebase ID token has expired.
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	// ErrTokenInvalid signals that the provided Firebase ID token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
	// ErrTokenRevoked signals that the seller signed out everywhere or was disabled.
	ErrTokenRevoked = errors.New("auth: firebase id token revoked")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator wires Firebase token verification into HTTP middleware.
type Authenticator struct {
	verifier        TokenVerifier
	timeout         time.Duration
	requireVerified bool
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithVerifiedEmail rejects sellers whose email address has not been verified.
func WithVerifiedEmail() Option {
	return func(a *Authenticator) {
		a.requireVerified = true
	}
}

// NewAuthenticator constructs a Firebase Authenticator for middleware composition.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier: verifier,
		timeout:  defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireSeller verifies the Authorization bearer token and stores the seller identity on the context.
func (a *Authenticator) RequireSeller() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, status, code, message := a.authenticate(r)
			if identity == nil {
				httpx.WriteError(r.Context(), w, httpx.NewError(code, message, status))
				return
			}
			next.ServeHTTP(w, r.WithContext(withSeller(r.Context(), identity)))
		})
	}
}

// OptionalSeller attaches the seller identity when a valid token is present and otherwise
// lets the request through anonymously. Public product pages use it to recognise owners.
func (a *Authenticator) OptionalSeller() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := extractBearerToken(r.Header.Get("Authorization")); ok {
				if identity, _, _, _ := a.authenticate(r); identity != nil {
					r = r.WithContext(withSeller(r.Context(), identity))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authenticator) authenticate(r *http.Request) (*Identity, int, string, string) {
	tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid"
	}
	if a == nil || a.verifier == nil {
		return nil, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable"
	}

	ctx := r.Context()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	token, err := a.verifier.VerifyIDToken(ctx, tokenStr)
	if err != nil {
		code, message := verificationError(err)
		return nil, http.StatusUnauthorized, code, message
	}
	if token == nil || strings.TrimSpace(token.UID) == "" {
		return nil, http.StatusUnauthorized, "invalid_token", "firebase id token has no subject"
	}

	identity := identityFromToken(token)
	if a.requireVerified && !identity.EmailVerified {
		return nil, http.StatusForbidden, "email_unverified", "verify your email address to continue"
	}
	return identity, 0, "", ""
}

func withSeller(ctx context.Context, identity *Identity) context.Context {
	logger := requestctx.Logger(ctx).With(zap.String("seller_id", identity.UID))
	return WithIdentity(requestctx.WithLogger(ctx, logger), identity)
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func verificationError(err error) (string, string) {
	switch {
	case errors.Is(err, ErrTokenRevoked):
		return "token_revoked", "firebase id token revoked"
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		return "token_expired", "firebase id token expired"
	case errors.Is(err, ErrTokenInvalid), firebaseauth.IsIDTokenInvalid(err):
		return "invalid_token", "firebase id token invalid"
	default:
		return "invalid_token", "firebase id token verification failed"
	}
}
