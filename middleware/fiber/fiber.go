// Package fiber provides Fiber middleware for caller identity resolution.
package fiber

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	httpmw "github.com/replyforge/replyforge/middleware/http"
	"github.com/replyforge/replyforge/pkg/identity"
	"github.com/replyforge/replyforge/pkg/quota"
)

// IdentityKey is the Fiber locals key holding the resolved identity.
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
	OnError func(c *fiber.Ctx, err error) error
}

// Middleware resolves the caller identity and stores it in Fiber locals.
func Middleware(cfg Config) fiber.Handler {
	if cfg.Resolver == nil {
		panic("replyforge/fiber: Config.Resolver is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = httpmw.DefaultCookieName
	}

	return func(c *fiber.Ctx) error {
		id, minted, err := cfg.Resolver.Resolve(c.UserContext(), bearerToken(c), c.Cookies(cfg.CookieName))
		if err != nil {
			if cfg.OnError != nil {
				return cfg.OnError(c, err)
			}
			return c.Status(fiber.StatusInternalServerError).
				JSON(fiber.Map{"error": "internal error"})
		}

		if minted != nil {
			c.Cookie(&fiber.Cookie{
				Name:     cfg.CookieName,
				Value:    minted.Token,
				Path:     "/",
				Expires:  minted.ExpiresAt,
				HTTPOnly: true,
				Secure:   cfg.SecureCookies,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}

		c.Locals(IdentityKey, id)
		c.SetUserContext(httpmw.WithIdentity(c.UserContext(), id))
		return c.Next()
	}
}

// FromContext returns the resolved identity from a Fiber context, or nil.
func FromContext(c *fiber.Ctx) quota.Identity {
	if id, ok := c.Locals(IdentityKey).(quota.Identity); ok {
		return id
	}
	return nil
}

func bearerToken(c *fiber.Ctx) string {
	const prefix = "Bearer "
	h := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(h, prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
