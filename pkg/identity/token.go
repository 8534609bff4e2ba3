package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a minted anonymous session stays valid.
const DefaultSessionTTL = 30 * 24 * time.Hour

// ErrInvalidSession is returned when an anonymous session token does not
// verify. Callers treat it as "mint a new session", never as a hard failure.
var ErrInvalidSession = errors.New("invalid session token")

// Session is a verified anonymous session.
type Session struct {
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// MintedSession is a freshly issued session plus its signed token. The
// transport layer persists Token on the caller (an httpOnly cookie).
type MintedSession struct {
	Session
	Token string
}

// SessionSigner mints and verifies signed anonymous session tokens.
// Tokens are HMAC-signed JWTs with the session id as subject.
type SessionSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// SignerOption configures a SessionSigner.
type SignerOption func(*SessionSigner)

// WithSessionTTL overrides the default 30-day session lifetime.
func WithSessionTTL(ttl time.Duration) SignerOption {
	return func(s *SessionSigner) { s.ttl = ttl }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) SignerOption {
	return func(s *SessionSigner) { s.now = now }
}

// NewSessionSigner creates a signer over the server secret.
func NewSessionSigner(secret []byte, opts ...SignerOption) (*SessionSigner, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is required")
	}

	s := &SessionSigner{
		secret: secret,
		ttl:    DefaultSessionTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mint issues a new session with a random, globally unique id.
func (s *SessionSigner) Mint() (*MintedSession, error) {
	now := s.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sess.ID,
		IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &MintedSession{Session: sess, Token: signed}, nil
}

// Verify checks the signature and expiry of an anonymous session token.
func (s *SessionSigner) Verify(tokenString string) (*Session, error) {
	if tokenString == "" {
		return nil, ErrInvalidSession
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidSession
	}

	sess := &Session{ID: claims.Subject}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}
