// Package blacklist implements the token revocation client. Tokens are never
// transmitted or stored raw: every operation keys on a SHA-256 fingerprint of
// the token string. The actual storage is behind the Store interface so the
// same client works against either historical wire shape of the remote
// document store, a redis instance, or a local sqlite file.
package blacklist

import (
	"context"
	"errors"
	"time"
)

// Record is one revocation entry in the store.
type Record struct {
	// ID is the store-assigned document identifier, where the backend has
	// one. Empty for backends that key purely on fingerprint.
	ID string

	// Fingerprint is the hex SHA-256 digest of the revoked token.
	Fingerprint string

	// Reason is a free-form label recorded at revocation time.
	Reason string

	// RevokedAt is when the revocation was recorded.
	RevokedAt time.Time

	// ExpiresAt mirrors the token's exp claim. Nil when the token could not
	// be decoded at revocation time; such records are immortal until
	// removed by hand.
	ExpiresAt *time.Time
}

// ErrUnavailable wraps any transport or storage failure talking to the
// revocation store. Callers translate it into their fail-open/fail-closed
// policy; the store drivers themselves never decide that.
var ErrUnavailable = errors.New("blacklist: store unavailable")

// Store is the adapter contract the client programs against. The verb set is
// deliberately small: insert a record, find/delete/count by fingerprint, and
// delete/count by an expired-before cutoff. Filter semantics never go beyond
// equality and less-than over the expiry timestamp.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	FindByFingerprint(ctx context.Context, fingerprint string) ([]Record, error)
	DeleteByFingerprint(ctx context.Context, fingerprint string) (int, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int, error)
	Count(ctx context.Context) (int, error)
	CountExpiredBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Ping verifies the store is reachable, for readiness checks.
	Ping(ctx context.Context) error
}
