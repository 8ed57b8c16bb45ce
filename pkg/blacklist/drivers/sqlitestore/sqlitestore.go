// Package sqlitestore is the blacklist store driver backed by a local
// sqlite database. Useful for single-node deployments and tests where no
// remote revocation service exists.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aussiebroadwan/tokengate/pkg/blacklist"
)

// Store keeps revocation records in a sqlite table. Implements
// blacklist.Store.
type Store struct {
	db  *sql.DB
	dsn string
}

// NewStore opens (or creates) the sqlite database at dsn. Call
// ApplyMigrations before first use.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Insert(ctx context.Context, rec blacklist.Record) error {
	var expiresAt sql.NullTime
	if rec.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: rec.ExpiresAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revocations (fingerprint, reason, revoked_at, expires_at)
		 VALUES (?, ?, ?, ?)`,
		rec.Fingerprint, rec.Reason, rec.RevokedAt.UTC(), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) ([]blacklist.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fingerprint, reason, revoked_at, expires_at
		 FROM revocations WHERE fingerprint = ?`,
		fingerprint,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	defer rows.Close()

	var recs []blacklist.Record
	for rows.Next() {
		var (
			id        int64
			rec       blacklist.Record
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&id, &rec.Fingerprint, &rec.Reason, &rec.RevokedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
		}
		rec.ID = fmt.Sprintf("%d", id)
		if expiresAt.Valid {
			t := expiresAt.Time
			rec.ExpiresAt = &t
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	return recs, nil
}

func (s *Store) DeleteByFingerprint(ctx context.Context, fingerprint string) (int, error) {
	return s.delete(ctx, `DELETE FROM revocations WHERE fingerprint = ?`, fingerprint)
}

func (s *Store) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return s.delete(ctx,
		`DELETE FROM revocations WHERE expires_at IS NOT NULL AND expires_at < ?`,
		cutoff.UTC(),
	)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM revocations`)
}

func (s *Store) CountExpiredBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM revocations WHERE expires_at IS NOT NULL AND expires_at < ?`,
		cutoff.UTC(),
	)
}

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, query string, args ...any) (int, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	return int(n), nil
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	return n, nil
}
