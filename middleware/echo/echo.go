// Package echo provides Echo middleware for caller identity resolution.
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	httpmw "github.com/replyforge/replyforge/middleware/http"
	"github.com/replyforge/replyforge/pkg/identity"
	"github.com/replyforge/replyforge/pkg/quota"
)

// IdentityKey is the Echo context key holding the resolved identity.
const IdentityKey = "replyforge:identity"

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
	OnError func(c echo.Context, err error) error
}

// Middleware resolves the caller identity and stores it both in the Echo
// context and in the underlying request context.
func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.Resolver == nil {
		panic("replyforge/echo: Config.Resolver is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = httpmw.DefaultCookieName
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var anonToken string
			if cookie, err := c.Cookie(cfg.CookieName); err == nil {
				anonToken = cookie.Value
			}

			id, minted, err := cfg.Resolver.Resolve(c.Request().Context(), httpmw.BearerToken(c.Request()), anonToken)
			if err != nil {
				if cfg.OnError != nil {
					return cfg.OnError(c, err)
				}
				return c.JSON(http.StatusInternalServerError,
					map[string]string{"error": "internal error"})
			}

			if minted != nil {
				c.SetCookie(httpmw.SessionCookie(cfg.CookieName, minted, cfg.SecureCookies))
			}

			c.Set(IdentityKey, id)
			c.SetRequest(c.Request().WithContext(httpmw.WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}

// FromContext returns the resolved identity from an Echo context, or nil.
func FromContext(c echo.Context) quota.Identity {
	if id, ok := c.Get(IdentityKey).(quota.Identity); ok {
		return id
	}
	return nil
}
