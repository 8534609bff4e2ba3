package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/replyforge/replyforge/pkg/quota"
)

// ErrUnauthorized is returned when an authentication token does not verify.
var ErrUnauthorized = errors.New("unauthorized")

// UserClaims are the fields the resolver needs from a verified session.
type UserClaims struct {
	UserID string
	Email  string
}

// SessionVerifier validates a provider-issued session credential. The
// authentication provider itself (sign-up, sign-in) is an external
// collaborator; only verification happens here.
type SessionVerifier interface {
	VerifyToken(tokenString string) (*UserClaims, error)
}

type providerClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// JWKSVerifier implements SessionVerifier against the auth provider's JWKS
// endpoint. Keys are cached and refreshed by keyfunc based on HTTP cache
// headers.
type JWKSVerifier struct {
	jwks   keyfunc.Keyfunc
	logger quota.Logger
}

// NewJWKSVerifier creates a verifier that fetches public keys from jwksURL.
func NewJWKSVerifier(ctx context.Context, jwksURL string, logger quota.Logger) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}
	if logger == nil {
		logger = &quota.NoopLogger{}
	}

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("session verifier initialized", quota.Field{Key: "jwks_url", Value: jwksURL})

	return &JWKSVerifier{jwks: jwks, logger: logger}, nil
}

// VerifyToken validates a provider session JWT and extracts the user claims.
func (v *JWKSVerifier) VerifyToken(tokenString string) (*UserClaims, error) {
	claims := &providerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc)
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}

	// Asymmetric algorithms only, to rule out algorithm confusion.
	switch token.Method.Alg() {
	case "RS256", "ES256":
	default:
		v.logger.Warn("token uses unexpected algorithm",
			quota.Field{Key: "algorithm", Value: token.Method.Alg()})
		return nil, ErrUnauthorized
	}

	if claims.Subject == "" {
		return nil, ErrUnauthorized
	}

	return &UserClaims{UserID: claims.Subject, Email: claims.Email}, nil
}
