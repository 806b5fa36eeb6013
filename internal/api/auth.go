package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/crypto/bcrypt"
)

// contextKey is a private type for context keys in this package.
type contextKey string

// principalContextKey is the context key for the authenticated principal name.
const principalContextKey contextKey = "scim_principal"

// AuthConfig configures request authentication.
type AuthConfig struct {
	// StaticTokens maps a principal name to its bearer token. Values
	// starting with "$2" are treated as bcrypt hashes; anything else is
	// compared in constant time.
	StaticTokens map[string]string
	// OIDCIssuer enables JWT bearer auth against the issuer's keys when
	// set. Static tokens remain valid alongside it.
	OIDCIssuer string
	// OIDCAudience is the audience a JWT must carry. Empty skips the
	// audience check.
	OIDCAudience string
	// RateLimit and RateWindow bound requests per principal.
	RateLimit  int
	RateWindow time.Duration
}

// Authenticator verifies bearer tokens on SCIM requests.
type Authenticator struct {
	tokens   map[string]string
	verifier *oidc.IDTokenVerifier
	limiter  *RateLimiter
	logger   *slog.Logger
}

// NewAuthenticator builds the authenticator. With an OIDC issuer
// configured, discovery runs against it once at startup.
func NewAuthenticator(ctx context.Context, cfg AuthConfig, logger *slog.Logger) (*Authenticator, error) {
	a := &Authenticator{
		tokens:  cfg.StaticTokens,
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		logger:  logger,
	}
	if cfg.OIDCIssuer != "" {
		provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
		if err != nil {
			return nil, fmt.Errorf("discover OIDC issuer: %w", err)
		}
		oc := &oidc.Config{ClientID: cfg.OIDCAudience}
		if cfg.OIDCAudience == "" {
			oc.SkipClientIDCheck = true
		}
		a.verifier = provider.Verifier(oc)
	}
	return a, nil
}

// Close releases the authenticator's rate limiter.
func (a *Authenticator) Close() {
	a.limiter.Stop()
}

// authenticate resolves a bearer token to a principal name.
func (a *Authenticator) authenticate(ctx context.Context, token string) (string, bool) {
	for name, stored := range a.tokens {
		if strings.HasPrefix(stored, "$2") {
			if bcrypt.CompareHashAndPassword([]byte(stored), []byte(token)) == nil {
				return name, true
			}
			continue
		}
		if len(stored) == len(token) && subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1 {
			return name, true
		}
	}

	if a.verifier != nil {
		idToken, err := a.verifier.Verify(ctx, token)
		if err != nil {
			a.logger.Debug("JWT verification failed", "error", err)
			return "", false
		}
		return "jwt:" + idToken.Subject, true
	}

	return "", false
}

// withAuth wraps a handler with bearer token authentication, per-principal
// rate limiting and Content-Type validation on requests with a body.
func (a *Authenticator) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "", "missing authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "", "authorization header must use Bearer scheme")
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "", "bearer token is empty")
			return
		}

		principal, ok := a.authenticate(r.Context(), token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "", "invalid bearer token")
			return
		}

		if !a.limiter.Allow(principal) {
			writeError(w, http.StatusTooManyRequests, "", "rate limit exceeded")
			return
		}

		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/scim+json") && !strings.HasPrefix(ct, "application/json") {
				writeError(w, http.StatusUnsupportedMediaType, "", "Content-Type must be application/scim+json or application/json")
				return
			}
		}

		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// principalFromContext extracts the authenticated principal name.
func principalFromContext(ctx context.Context) (string, bool) {
	principal, ok := ctx.Value(principalContextKey).(string)
	return principal, ok
}
