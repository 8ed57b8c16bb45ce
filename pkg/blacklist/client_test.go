package blacklist_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/blacklist"
	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store for client tests.
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

func newClient(t *testing.T, store blacklist.Store, expiryOf func(string) *time.Time) *blacklist.Client {
	t.Helper()
	c, err := blacklist.New(store, expiryOf)
	require.NoError(t, err)
	return c
}

func TestRevokeAndIsRevoked(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	c := newClient(t, store, nil)

	require.NoError(t, c.Revoke(ctx, "token-a", "logout"))

	t.Run("revoked token is found", func(t *testing.T) {
		revoked, err := c.IsRevoked(ctx, "token-a")
		require.NoError(t, err)
		require.True(t, revoked)
	})

	t.Run("other tokens are unaffected", func(t *testing.T) {
		revoked, err := c.IsRevoked(ctx, "token-b")
		require.NoError(t, err)
		require.False(t, revoked)
	})

	t.Run("record holds the fingerprint, never the token", func(t *testing.T) {
		require.Len(t, store.recs, 1)
		rec := store.recs[0]
		require.Equal(t, cryptox.FingerprintToken("token-a"), rec.Fingerprint)
		require.NotContains(t, rec.Fingerprint, "token-a")
		require.Equal(t, "logout", rec.Reason)
		require.Nil(t, rec.ExpiresAt)
	})

	t.Run("double revoke still reads as revoked", func(t *testing.T) {
		require.NoError(t, c.Revoke(ctx, "token-a", ""))
		require.Len(t, store.recs, 2)
		require.Equal(t, blacklist.DefaultReason, store.recs[1].Reason)

		revoked, err := c.IsRevoked(ctx, "token-a")
		require.NoError(t, err)
		require.True(t, revoked)
	})
}

func TestRevokeExpiryHook(t *testing.T) {
	ctx := context.Background()
	exp := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)

	store := &memStore{}
	c := newClient(t, store, func(token string) *time.Time {
		if token == "decodable" {
			return &exp
		}
		return nil
	})

	require.NoError(t, c.Revoke(ctx, "decodable", ""))
	require.NoError(t, c.Revoke(ctx, "opaque", ""))

	require.Len(t, store.recs, 2)
	require.NotNil(t, store.recs[0].ExpiresAt)
	require.Equal(t, exp, *store.recs[0].ExpiresAt)
	require.Nil(t, store.recs[1].ExpiresAt, "undecodable tokens get immortal records")
}

func TestRevokePair(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	c := newClient(t, store, nil)

	require.NoError(t, c.RevokePair(ctx, "access-tok", "refresh-tok", "logout"))

	require.Len(t, store.recs, 2)
	require.Equal(t, "logout_access", store.recs[0].Reason)
	require.Equal(t, "logout_refresh", store.recs[1].Reason)

	for _, tok := range []string{"access-tok", "refresh-tok"} {
		revoked, err := c.IsRevoked(ctx, tok)
		require.NoError(t, err)
		require.True(t, revoked)
	}
}

func TestUnrevoke(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	c := newClient(t, store, nil)

	require.NoError(t, c.Revoke(ctx, "token-a", ""))
	require.NoError(t, c.Revoke(ctx, "token-a", ""))

	n, err := c.Unrevoke(ctx, "token-a")
	require.NoError(t, err)
	require.Equal(t, 2, n, "every duplicate record is removed")

	revoked, err := c.IsRevoked(ctx, "token-a")
	require.NoError(t, err)
	require.False(t, revoked)

	t.Run("unknown token deletes nothing", func(t *testing.T) {
		n, err := c.Unrevoke(ctx, "never-seen")
		require.NoError(t, err)
		require.Zero(t, n)
	})
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	store := &memStore{}
	c := newClient(t, store, func(token string) *time.Time {
		switch token {
		case "dead":
			return &past
		case "alive":
			return &future
		}
		return nil
	})
	c.Now = func() time.Time { return now }

	require.NoError(t, c.Revoke(ctx, "dead", ""))
	require.NoError(t, c.Revoke(ctx, "alive", ""))
	require.NoError(t, c.Revoke(ctx, "opaque", ""))

	n, err := c.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	t.Run("live and immortal records survive", func(t *testing.T) {
		for _, tok := range []string{"alive", "opaque"} {
			revoked, err := c.IsRevoked(ctx, tok)
			require.NoError(t, err)
			require.True(t, revoked)
		}
	})

	t.Run("sweep is idempotent", func(t *testing.T) {
		n, err := c.SweepExpired(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	store := &memStore{}
	c := newClient(t, store, func(token string) *time.Time {
		if token == "dead" {
			return &past
		}
		return nil
	})
	c.Now = func() time.Time { return now }

	require.NoError(t, c.Revoke(ctx, "dead", ""))
	require.NoError(t, c.Revoke(ctx, "opaque-1", ""))
	require.NoError(t, c.Revoke(ctx, "opaque-2", ""))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, blacklist.Stats{Total: 3, Expired: 1, Active: 2}, stats)
}

func TestClientStoreFailures(t *testing.T) {
	ctx := context.Background()
	store := &memStore{err: blacklist.ErrUnavailable}
	c := newClient(t, store, nil)

	_, err := c.IsRevoked(ctx, "token-a")
	require.ErrorIs(t, err, blacklist.ErrUnavailable)

	require.Error(t, c.Revoke(ctx, "token-a", ""))

	_, err = c.Stats(ctx)
	require.ErrorIs(t, err, blacklist.ErrUnavailable)

	require.ErrorIs(t, c.Ping(ctx), blacklist.ErrUnavailable)
}

func TestNewClientValidation(t *testing.T) {
	_, err := blacklist.New(nil, nil)
	require.Error(t, err)
	require.False(t, errors.Is(err, blacklist.ErrUnavailable))
}
