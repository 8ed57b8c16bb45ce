package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gate/domain"
	"github.com/aussiebroadwan/tokengate/pkg/blacklist"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

var (
	ErrInvalidRefresh = errors.New("invalid_refresh_token")

	// ErrRevocationDisabled reports a revocation operation on a service
	// running without a blacklist (driver "none").
	ErrRevocationDisabled = errors.New("revocation_disabled")
)

// TokenService implements the credential lifecycle: issue a pair, exchange a
// refresh token for a fresh access token, revoke, and inspect the blacklist.
type TokenService struct {
	Issuer    *jwtx.Issuer
	Verifier  *jwtx.Verifier
	Blacklist *blacklist.Client
	AccessTTL time.Duration
}

// IssuePair mints an access/refresh pair carrying the given business claims.
// Reserved claims supplied by the caller are discarded.
func (s *TokenService) IssuePair(ctx context.Context, claims jwtx.Claims) (*domain.TokenPair, error) {
	pair, err := s.Issuer.IssuePair(claims.Business())
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("token pair issued", slog.String("sub", claims.Subject()))

	return &domain.TokenPair{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    domain.BearerTokenType,
		ExpiresIn:    int64(s.AccessTTL.Seconds()),
	}, nil
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token is fully verified first (signature, expiry, type, revocation), then
// its business claims are carried into the new access token. The refresh
// token itself is not rotated.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*domain.AccessGrant, error) {
	claims, err := s.Verifier.VerifyTyped(ctx, refreshToken, jwtx.TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, jwtx.ErrRevocationUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefresh, err)
	}

	access, err := s.Issuer.IssueAccess(claims.Business())
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("access token refreshed", slog.String("sub", claims.Subject()))

	return &domain.AccessGrant{
		AccessToken: access,
		TokenType:   domain.BearerTokenType,
		ExpiresIn:   int64(s.AccessTTL.Seconds()),
	}, nil
}

// Revoke blacklists a single token. The token is not verified first: callers
// may revoke tokens that are already expired or were never issued here, and
// the operation still succeeds.
func (s *TokenService) Revoke(ctx context.Context, token, reason string) error {
	if s.Blacklist == nil {
		return ErrRevocationDisabled
	}
	return s.Blacklist.Revoke(ctx, token, reason)
}

// RevokePair blacklists an access/refresh pair in one call, the usual logout
// shape.
func (s *TokenService) RevokePair(ctx context.Context, accessToken, refreshToken, reason string) error {
	if s.Blacklist == nil {
		return ErrRevocationDisabled
	}
	return s.Blacklist.RevokePair(ctx, accessToken, refreshToken, reason)
}

// Verify runs full access-token verification and returns the claims.
func (s *TokenService) Verify(ctx context.Context, token string) (jwtx.Claims, error) {
	return s.Verifier.VerifyTyped(ctx, token, jwtx.TokenTypeAccess)
}

// Unrevoke removes a token from the blacklist.
func (s *TokenService) Unrevoke(ctx context.Context, token string) (int, error) {
	if s.Blacklist == nil {
		return 0, ErrRevocationDisabled
	}
	return s.Blacklist.Unrevoke(ctx, token)
}

// SweepExpired removes blacklist records for tokens that have expired on
// their own.
func (s *TokenService) SweepExpired(ctx context.Context) (int, error) {
	if s.Blacklist == nil {
		return 0, ErrRevocationDisabled
	}
	return s.Blacklist.SweepExpired(ctx)
}

// Stats reports blacklist totals.
func (s *TokenService) Stats(ctx context.Context) (blacklist.Stats, error) {
	if s.Blacklist == nil {
		return blacklist.Stats{}, ErrRevocationDisabled
	}
	return s.Blacklist.Stats(ctx)
}
