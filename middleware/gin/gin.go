// Package gin provides Gin middleware for caller identity resolution.
package gin

import (
	"net/http"

	gongin "github.com/gin-gonic/gin"

	httpmw "github.com/replyforge/replyforge/middleware/http"
	"github.com/replyforge/replyforge/pkg/identity"
	"github.com/replyforge/replyforge/pkg/quota"
)

// IdentityKey is the Gin context key holding the resolved identity.
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
	// If nil, aborts with 500 Internal Server Error.
	OnError func(c *gongin.Context, err error)
}

// Middleware resolves the caller identity and stores it both in the Gin
// context and in the underlying request context, so net/http handlers
// mounted behind Gin see it too.
func Middleware(cfg Config) gongin.HandlerFunc {
	if cfg.Resolver == nil {
		panic("replyforge/gin: Config.Resolver is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = httpmw.DefaultCookieName
	}

	return func(c *gongin.Context) {
		anonToken, _ := c.Cookie(cfg.CookieName)

		id, minted, err := cfg.Resolver.Resolve(c.Request.Context(), httpmw.BearerToken(c.Request), anonToken)
		if err != nil {
			if cfg.OnError != nil {
				cfg.OnError(c, err)
			} else {
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					gongin.H{"error": "internal error"})
			}
			return
		}

		if minted != nil {
			http.SetCookie(c.Writer, httpmw.SessionCookie(cfg.CookieName, minted, cfg.SecureCookies))
		}

		c.Set(IdentityKey, id)
		c.Request = c.Request.WithContext(httpmw.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// FromContext returns the resolved identity from a Gin context, or nil.
func FromContext(c *gongin.Context) quota.Identity {
	if v, ok := c.Get(IdentityKey); ok {
		if id, ok := v.(quota.Identity); ok {
			return id
		}
	}
	return nil
}
