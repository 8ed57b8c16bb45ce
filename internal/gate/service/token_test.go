package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokengate/internal/gate/domain"
	"github.com/aussiebroadwan/tokengate/internal/gate/service"
	"github.com/aussiebroadwan/tokengate/pkg/blacklist"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
)

// memStore is an in-memory blacklist.Store for service tests.
type memStore struct {
	recs []blacklist.Record
	err  error
}

func (m *memStore) Insert(_ context.Context, rec blacklist.Record) error {
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memStore) FindByFingerprint(_ context.Context, fp string) ([]blacklist.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []blacklist.Record
	for _, r := range m.recs {
		if r.Fingerprint == fp {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) DeleteByFingerprint(_ context.Context, fp string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	var kept []blacklist.Record
	deleted := 0
	for _, r := range m.recs {
		if r.Fingerprint == fp {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.recs = kept
	return deleted, nil
}

func (m *memStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	var kept []blacklist.Record
	deleted := 0
	for _, r := range m.recs {
		if r.ExpiresAt != nil && r.ExpiresAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.recs = kept
	return deleted, nil
}

func (m *memStore) Count(_ context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(m.recs), nil
}

func (m *memStore) CountExpiredBefore(_ context.Context, cutoff time.Time) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	n := 0
	for _, r := range m.recs {
		if r.ExpiresAt != nil && r.ExpiresAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Ping(_ context.Context) error { return m.err }

type fixture struct {
	codec jwtx.Codec
	store *memStore
	svc   *service.TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	codec, err := jwtx.NewCodec("HS256", []byte("service-test-secret"))
	require.NoError(t, err)

	issuer, err := jwtx.NewIssuer(codec, 30*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	store := &memStore{}
	bl, err := blacklist.New(store, jwtx.ExpiryOf(codec))
	require.NoError(t, err)

	verifier, err := jwtx.NewVerifier(codec, bl, jwtx.FailClosed)
	require.NoError(t, err)

	return &fixture{
		codec: codec,
		store: store,
		svc: &service.TokenService{
			Issuer:    issuer,
			Verifier:  verifier,
			Blacklist: bl,
			AccessTTL: 30 * time.Minute,
		},
	}
}

func TestIssuePair(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.svc.IssuePair(ctx, jwtx.Claims{"user_id": 7, "roles": []string{"user"}})
	require.NoError(t, err)

	require.Equal(t, domain.BearerTokenType, pair.TokenType)
	require.Equal(t, int64(1800), pair.ExpiresIn)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	access, err := f.codec.Decode(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, jwtx.TokenTypeAccess, access.Type())
	require.Equal(t, float64(7), access["user_id"])

	refresh, err := f.codec.Decode(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, jwtx.TokenTypeRefresh, refresh.Type())

	t.Run("caller-supplied reserved claims are discarded", func(t *testing.T) {
		pair, err := f.svc.IssuePair(ctx, jwtx.Claims{"user_id": 7, "type": "refresh", "exp": int64(1)})
		require.NoError(t, err)

		claims, err := f.codec.Decode(pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, jwtx.TokenTypeAccess, claims.Type())
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.svc.IssuePair(ctx, jwtx.Claims{"user_id": 7})
	require.NoError(t, err)

	t.Run("live refresh token yields a fresh access token", func(t *testing.T) {
		grant, err := f.svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.Equal(t, domain.BearerTokenType, grant.TokenType)

		claims, err := f.codec.Decode(grant.AccessToken)
		require.NoError(t, err)
		require.Equal(t, jwtx.TokenTypeAccess, claims.Type())
		require.Equal(t, float64(7), claims["user_id"])
	})

	t.Run("refresh token is not rotated", func(t *testing.T) {
		_, err := f.svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		_, err = f.svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("access token is refused", func(t *testing.T) {
		_, err := f.svc.Refresh(ctx, pair.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidRefresh)
	})

	t.Run("garbage is refused", func(t *testing.T) {
		_, err := f.svc.Refresh(ctx, "not.a.token")
		require.ErrorIs(t, err, service.ErrInvalidRefresh)
	})

	t.Run("revoked refresh token is refused", func(t *testing.T) {
		require.NoError(t, f.svc.Revoke(ctx, pair.RefreshToken, "logout"))

		_, err := f.svc.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, service.ErrInvalidRefresh)
	})

	t.Run("store outage surfaces as unavailable, not invalid", func(t *testing.T) {
		f.store.err = blacklist.ErrUnavailable

		_, err := f.svc.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, jwtx.ErrRevocationUnavailable)
		require.NotErrorIs(t, err, service.ErrInvalidRefresh)

		f.store.err = nil
	})
}

func TestRevokeAndVerify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.svc.IssuePair(ctx, jwtx.Claims{"sub": "u1"})
	require.NoError(t, err)

	claims, err := f.svc.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject())

	require.NoError(t, f.svc.Revoke(ctx, pair.AccessToken, "compromised"))

	_, err = f.svc.Verify(ctx, pair.AccessToken)
	require.ErrorIs(t, err, jwtx.ErrRevoked)

	t.Run("revoking an unknown token still succeeds", func(t *testing.T) {
		require.NoError(t, f.svc.Revoke(ctx, "never-issued-here", ""))
	})

	t.Run("unrevoke restores the token", func(t *testing.T) {
		n, err := f.svc.Unrevoke(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		_, err = f.svc.Verify(ctx, pair.AccessToken)
		require.NoError(t, err)
	})
}

func TestRevokePair(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.svc.IssuePair(ctx, jwtx.Claims{"sub": "u1"})
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokePair(ctx, pair.AccessToken, pair.RefreshToken, "logout"))

	_, err = f.svc.Verify(ctx, pair.AccessToken)
	require.ErrorIs(t, err, jwtx.ErrRevoked)

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrInvalidRefresh)
}

func TestStatsAndSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.svc.IssuePair(ctx, jwtx.Claims{"sub": "u1"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, pair.AccessToken, ""))
	require.NoError(t, f.svc.Revoke(ctx, "opaque-token", ""))

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, blacklist.Stats{Total: 2, Expired: 0, Active: 2}, stats)

	t.Run("sweep removes nothing while tokens are live", func(t *testing.T) {
		n, err := f.svc.SweepExpired(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("sweep removes records once tokens expire", func(t *testing.T) {
		f.svc.Blacklist.Now = func() time.Time { return time.Now().Add(48 * time.Hour) }

		n, err := f.svc.SweepExpired(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n, "the opaque token's record is immortal")
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHousekeepingLifecycle(t *testing.T) {
	f := newFixture(t)

	hk := service.NewHousekeepingService(f.svc.Blacklist, discardLogger(), 50*time.Millisecond)
	hk.Start()
	time.Sleep(120 * time.Millisecond)
	hk.Stop()
}

func TestRevocationDisabled(t *testing.T) {
	ctx := context.Background()

	codec, err := jwtx.NewCodec("HS256", []byte("service-test-secret"))
	require.NoError(t, err)

	issuer, err := jwtx.NewIssuer(codec, 30*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	verifier, err := jwtx.NewVerifier(codec, nil, jwtx.FailClosed)
	require.NoError(t, err)

	svc := &service.TokenService{
		Issuer:    issuer,
		Verifier:  verifier,
		AccessTTL: 30 * time.Minute,
	}

	t.Run("issue, refresh, and verify still work", func(t *testing.T) {
		pair, err := svc.IssuePair(ctx, jwtx.Claims{"sub": "u1"})
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		claims, err := svc.Verify(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "u1", claims.Subject())
	})

	t.Run("revocation operations error instead of panicking", func(t *testing.T) {
		err := svc.Revoke(ctx, "some.token.here", "")
		require.ErrorIs(t, err, service.ErrRevocationDisabled)

		err = svc.RevokePair(ctx, "a.b.c", "d.e.f", "logout")
		require.ErrorIs(t, err, service.ErrRevocationDisabled)

		_, err = svc.Unrevoke(ctx, "some.token.here")
		require.ErrorIs(t, err, service.ErrRevocationDisabled)

		_, err = svc.SweepExpired(ctx)
		require.ErrorIs(t, err, service.ErrRevocationDisabled)

		_, err = svc.Stats(ctx)
		require.ErrorIs(t, err, service.ErrRevocationDisabled)
	})
}

func TestRefreshErrorWrapping(t *testing.T) {
	// ErrInvalidRefresh must stay inspectable alongside the underlying cause.
	f := newFixture(t)

	_, err := f.svc.Refresh(context.Background(), "junk")
	require.ErrorIs(t, err, service.ErrInvalidRefresh)
	require.ErrorIs(t, err, jwtx.ErrMalformed)
	require.False(t, errors.Is(err, jwtx.ErrRevoked))
}
