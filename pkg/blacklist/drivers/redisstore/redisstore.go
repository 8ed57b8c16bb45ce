// Package redisstore is the blacklist store driver for redis. Each
// fingerprint holds one JSON record, and a sorted set scored by expiry
// (unix seconds, +Inf for immortal records) drives the sweep and count
// verbs without scanning the keyspace.
//
// A repeat revocation of the same fingerprint overwrites the existing
// record rather than duplicating it; revocation checks only care about
// existence, so the collapse is observationally equivalent.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/tokengate/pkg/blacklist"
)

// DefaultPrefix namespaces all keys this driver writes.
const DefaultPrefix = "tokengate:blacklist"

// Store keeps revocation records in redis. Implements blacklist.Store.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New builds a Store over an existing redis client. An empty prefix falls
// back to DefaultPrefix.
func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

type record struct {
	Fingerprint string     `json:"fingerprint"`
	Reason      string     `json:"reason"`
	RevokedAt   time.Time  `json:"revoked_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (s *Store) recKey(fingerprint string) string {
	return s.prefix + ":rec:" + fingerprint
}

func (s *Store) expKey() string {
	return s.prefix + ":exp"
}

func expiryScore(rec blacklist.Record) float64 {
	if rec.ExpiresAt == nil {
		return math.Inf(1)
	}
	return float64(rec.ExpiresAt.Unix())
}

// cutoffMax formats an exclusive ZRANGEBYSCORE upper bound so only records
// expiring strictly before the cutoff match.
func cutoffMax(cutoff time.Time) string {
	return "(" + strconv.FormatInt(cutoff.Unix(), 10)
}

func (s *Store) Insert(ctx context.Context, rec blacklist.Record) error {
	payload, err := json.Marshal(record{
		Fingerprint: rec.Fingerprint,
		Reason:      rec.Reason,
		RevokedAt:   rec.RevokedAt,
		ExpiresAt:   rec.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("redisstore: encode record: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.recKey(rec.Fingerprint), payload, 0)
	pipe.ZAdd(ctx, s.expKey(), redis.Z{Score: expiryScore(rec), Member: rec.Fingerprint})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) ([]blacklist.Record, error) {
	payload, err := s.rdb.Get(ctx, s.recKey(fingerprint)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}

	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode record: %v", blacklist.ErrUnavailable, err)
	}
	return []blacklist.Record{{
		Fingerprint: rec.Fingerprint,
		Reason:      rec.Reason,
		RevokedAt:   rec.RevokedAt,
		ExpiresAt:   rec.ExpiresAt,
	}}, nil
}

func (s *Store) DeleteByFingerprint(ctx context.Context, fingerprint string) (int, error) {
	pipe := s.rdb.TxPipeline()
	del := pipe.Del(ctx, s.recKey(fingerprint))
	pipe.ZRem(ctx, s.expKey(), fingerprint)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	return int(del.Val()), nil
}

func (s *Store) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int, error) {
	fps, err := s.rdb.ZRangeByScore(ctx, s.expKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: cutoffMax(cutoff),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	if len(fps) == 0 {
		return 0, nil
	}

	keys := make([]string, len(fps))
	for i, fp := range fps {
		keys[i] = s.recKey(fp)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRemRangeByScore(ctx, s.expKey(), "-inf", cutoffMax(cutoff))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	return len(fps), nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.rdb.ZCard(ctx, s.expKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	return int(n), nil
}

func (s *Store) CountExpiredBefore(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.rdb.ZCount(ctx, s.expKey(), "-inf", cutoffMax(cutoff)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	return int(n), nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	return nil
}
