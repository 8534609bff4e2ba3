// Package identity resolves the caller of a request into a quota identity:
// an anonymous session derived from a signed cookie, or an authenticated
// user derived from a verified provider session.
package identity

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/replyforge/replyforge/pkg/quota"
)

// Resolver derives a fresh quota.Identity per request.
type Resolver struct {
	verifier SessionVerifier
	signer   *SessionSigner
	profiles quota.ProfileStore
	logger   quota.Logger

	// group collapses concurrent first-time profile loads for one user.
	group singleflight.Group
}

// NewResolver creates a resolver. verifier may be nil, in which case every
// caller resolves as anonymous.
func NewResolver(verifier SessionVerifier, signer *SessionSigner, profiles quota.ProfileStore, logger quota.Logger) (*Resolver, error) {
	if signer == nil {
		return nil, errors.New("session signer is required")
	}
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if logger == nil {
		logger = &quota.NoopLogger{}
	}

	return &Resolver{
		verifier: verifier,
		signer:   signer,
		profiles: profiles,
		logger:   logger,
	}, nil
}

// Resolve classifies the caller. bearerToken is the provider session
// credential (empty when absent), anonToken the signed session cookie value.
// When a new anonymous session is minted the second return value is non-nil
// and the transport layer must persist it on the caller.
//
// Verification failures are never fatal: a bad bearer token or a bad cookie
// both degrade to a fresh anonymous session.
func (r *Resolver) Resolve(ctx context.Context, bearerToken, anonToken string) (quota.Identity, *MintedSession, error) {
	if bearerToken != "" && r.verifier != nil {
		claims, err := r.verifier.VerifyToken(bearerToken)
		if err == nil {
			id, err := r.authenticated(ctx, claims)
			if err != nil {
				return nil, nil, err
			}
			return id, nil, nil
		}
		r.logger.Debug("bearer token rejected, falling back to anonymous")
	}

	if anonToken != "" {
		sess, err := r.signer.Verify(anonToken)
		if err == nil {
			return quota.Anonymous{
				SessionID: sess.ID,
				IssuedAt:  sess.IssuedAt,
				ExpiresAt: sess.ExpiresAt,
			}, nil, nil
		}
		r.logger.Debug("anonymous session rejected, minting a new one")
	}

	minted, err := r.signer.Mint()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to mint anonymous session: %w", err)
	}
	return quota.Anonymous{
		SessionID: minted.ID,
		IssuedAt:  minted.IssuedAt,
		ExpiresAt: minted.ExpiresAt,
	}, minted, nil
}

// authenticated loads the caller's profile, creating a default free-tier
// profile on first contact. Concurrent firsts for the same user share one
// load via singleflight; the storage-level duplicate-key handling covers
// races across instances.
func (r *Resolver) authenticated(ctx context.Context, claims *UserClaims) (quota.Identity, error) {
	v, err, _ := r.group.Do(claims.UserID, func() (interface{}, error) {
		return r.loadOrCreateProfile(ctx, claims)
	})
	if err != nil {
		return nil, err
	}

	profile := v.(*quota.Profile)
	tier := quota.TierFree
	if profile.Pro {
		tier = quota.TierPro
	}
	return quota.Authenticated{
		UserID: profile.UserID,
		Email:  profile.Email,
		Tier:   tier,
	}, nil
}

func (r *Resolver) loadOrCreateProfile(ctx context.Context, claims *UserClaims) (*quota.Profile, error) {
	profile, err := r.profiles.GetProfile(ctx, claims.UserID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, quota.ErrProfileNotFound) {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if err := r.profiles.CreateProfile(ctx, claims.UserID, claims.Email); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	r.logger.Info("profile created",
		quota.Field{Key: "user_id", Value: claims.UserID})

	// Re-read: a duplicate-key conflict above means another request won the
	// race, and its row is the source of truth.
	profile, err = r.profiles.GetProfile(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read profile: %w", err)
	}
	return profile, nil
}
