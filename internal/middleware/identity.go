package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/shelfkeep/shelfkeep/internal/auth"
	"github.com/shelfkeep/shelfkeep/internal/model"
)

// Verifier turns a bearer token into a verified identity.
type Verifier interface {
	Verify(token string) (*model.Identity, error)
}

// IdentityConfig holds configuration for the identity middleware.
type IdentityConfig struct {
	Logger   *slog.Logger
	Verifier Verifier
	// CookieName is consulted when no Authorization header is present.
	CookieName string
}

// Identity returns a middleware that attaches the caller's verified
// identity to the request context. It never rejects a request: a missing
// or invalid token leaves the request anonymous and resolvers decide.
func Identity(cfg IdentityConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r, cfg.CookieName)
			if token == "" || cfg.Verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := cfg.Verifier.Verify(token)
			if err != nil {
				logger.DebugContext(r.Context(), "identity token rejected",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken reads "Authorization: Bearer <token>", falling back to the
// session cookie.
func extractToken(r *http.Request, cookieName string) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}

	if cookieName == "" {
		return ""
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
