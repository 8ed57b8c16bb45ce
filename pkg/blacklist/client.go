package blacklist

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
)

// DefaultReason is recorded when the caller does not supply one.
const DefaultReason = "revoked"

// Stats is a point-in-time snapshot of the revocation store. Total and
// Expired come from two separate queries, so Active is approximate under
// concurrent writes.
type Stats struct {
	Total   int `json:"total"`
	Expired int `json:"expired"`
	Active  int `json:"active"`
}

// Client is the revocation blacklist client. It fingerprints tokens before
// they touch the store and implements the RevocationChecker contract the
// token verifier consumes.
type Client struct {
	store Store

	// expiryOf recovers the expiry of a token so the record can be swept
	// once the token would have died anyway. Optional; when nil (or when it
	// returns nil) the record is written without an expiry.
	expiryOf func(token string) *time.Time

	// Now is the clock, replaceable in tests.
	Now func() time.Time
}

// New builds a Client over the given store. expiryOf may be nil.
func New(store Store, expiryOf func(token string) *time.Time) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("blacklist: nil store")
	}
	return &Client{
		store:    store,
		expiryOf: expiryOf,
		Now:      time.Now,
	}, nil
}

// Revoke records the token's fingerprint in the store. Revoking an already
// revoked token simply writes another record; IsRevoked treats any number of
// matching records as revoked.
func (c *Client) Revoke(ctx context.Context, token, reason string) error {
	if reason == "" {
		reason = DefaultReason
	}

	rec := Record{
		Fingerprint: cryptox.FingerprintToken(token),
		Reason:      reason,
		RevokedAt:   c.Now().UTC().Truncate(time.Second),
	}
	if c.expiryOf != nil {
		rec.ExpiresAt = c.expiryOf(token)
	}

	return c.store.Insert(ctx, rec)
}

// RevokePair revokes an access/refresh token pair in one call, tagging each
// record with which half of the pair it was.
func (c *Client) RevokePair(ctx context.Context, accessToken, refreshToken, reason string) error {
	if reason == "" {
		reason = DefaultReason
	}
	if err := c.Revoke(ctx, accessToken, reason+"_access"); err != nil {
		return err
	}
	return c.Revoke(ctx, refreshToken, reason+"_refresh")
}

// IsRevoked reports whether any record exists for the token's fingerprint.
// Store failures are returned as-is (wrapped in ErrUnavailable by the
// drivers) so the verifier can apply its fail mode.
func (c *Client) IsRevoked(ctx context.Context, token string) (bool, error) {
	recs, err := c.store.FindByFingerprint(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		return false, err
	}
	return len(recs) > 0, nil
}

// Unrevoke removes every record for the token's fingerprint and reports how
// many were deleted. Zero deletions is not an error.
func (c *Client) Unrevoke(ctx context.Context, token string) (int, error) {
	return c.store.DeleteByFingerprint(ctx, cryptox.FingerprintToken(token))
}

// SweepExpired deletes records whose expiry has passed. Records without an
// expiry are never swept. Idempotent; a second sweep deletes nothing.
func (c *Client) SweepExpired(ctx context.Context) (int, error) {
	return c.store.DeleteExpiredBefore(ctx, c.Now().UTC())
}

// Stats counts total and expired records. The two counts are separate store
// calls, not a transaction.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	total, err := c.store.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	expired, err := c.store.CountExpiredBefore(ctx, c.Now().UTC())
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Total:   total,
		Expired: expired,
		Active:  total - expired,
	}, nil
}

// Ping reports whether the underlying store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}
