// Package http provides HTTP middleware that resolves the caller identity
// once per request: a verified bearer session becomes an authenticated
// identity, anything else an anonymous session backed by a signed cookie.
package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/replyforge/replyforge/pkg/identity"
	"github.com/replyforge/replyforge/pkg/quota"
)

// DefaultCookieName carries the signed anonymous session token.
const DefaultCookieName = "rf_session"

// Config holds middleware configuration.
type Config struct {
	// Resolver derives the caller identity (required).
	Resolver *identity.Resolver

	// CookieName overrides the anonymous session cookie name.
	CookieName string

	// SecureCookies marks minted cookies Secure; enable behind TLS.
	SecureCookies bool

	// OnError is called when identity resolution fails entirely.
	// If nil, returns 500 Internal Server Error.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware resolves the caller identity and stores it in the request
// context. When a new anonymous session is minted, the signed token is set
// as an httpOnly cookie on the response.
func Middleware(config Config) func(http.Handler) http.Handler {
	if config.CookieName == "" {
		config.CookieName = DefaultCookieName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, minted, err := config.Resolver.Resolve(r.Context(), BearerToken(r), cookieValue(r, config.CookieName))
			if err != nil {
				if config.OnError != nil {
					config.OnError(w, r, err)
				} else {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
				return
			}

			if minted != nil {
				http.SetCookie(w, SessionCookie(config.CookieName, minted, config.SecureCookies))
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// SessionCookie builds the httpOnly cookie carrying a minted session token.
func SessionCookie(name string, minted *identity.MintedSession, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    minted.Token,
		Path:     "/",
		Expires:  minted.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// BearerToken extracts the bearer credential from the Authorization header,
// or "" when absent.
func BearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// contextKey is a type for context keys.
type contextKey string

// identityKey is the context key for the resolved caller identity.
const identityKey contextKey = "replyforge:identity"

// WithIdentity adds the resolved identity to a context.
func WithIdentity(ctx context.Context, id quota.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the resolved identity, or nil when the
// middleware did not run.
func IdentityFromContext(ctx context.Context) quota.Identity {
	if id, ok := ctx.Value(identityKey).(quota.Identity); ok {
		return id
	}
	return nil
}

// FromRequest is a convenience extractor for handler configs.
func FromRequest(r *http.Request) quota.Identity {
	return IdentityFromContext(r.Context())
}
