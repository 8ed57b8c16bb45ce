// Package mongoapi is the blacklist store driver for the original
// mongo-api document service. All operations are POSTs to verb endpoints
// (/insert, /find, /delete, /count) carrying the collection name and an
// optional filter in the JSON body.
package mongoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/blacklist"
)

// DefaultTimeout bounds every call to the document service.
const DefaultTimeout = 5 * time.Second

// Store talks the mongo-api wire shape. Implements blacklist.Store.
type Store struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

// New builds a Store for the given service base URL and collection. A zero
// timeout falls back to DefaultTimeout.
func New(baseURL, collection string, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// document is the on-the-wire record shape. Timestamps travel as RFC 3339
// strings; a missing or null expires_at marks an immortal record.
type document struct {
	TokenHash string  `json:"token_hash"`
	Reason    string  `json:"reason"`
	RevokedAt string  `json:"revoked_at"`
	ExpiresAt *string `json:"expires_at"`
}

func toDocument(rec blacklist.Record) document {
	doc := document{
		TokenHash: rec.Fingerprint,
		Reason:    rec.Reason,
		RevokedAt: rec.RevokedAt.UTC().Format(time.RFC3339),
	}
	if rec.ExpiresAt != nil {
		s := rec.ExpiresAt.UTC().Format(time.RFC3339)
		doc.ExpiresAt = &s
	}
	return doc
}

func fromDocument(doc document) blacklist.Record {
	rec := blacklist.Record{
		Fingerprint: doc.TokenHash,
		Reason:      doc.Reason,
	}
	if t, err := time.Parse(time.RFC3339, doc.RevokedAt); err == nil {
		rec.RevokedAt = t
	}
	if doc.ExpiresAt != nil {
		if t, err := time.Parse(time.RFC3339, *doc.ExpiresAt); err == nil {
			rec.ExpiresAt = &t
		}
	}
	return rec
}

// expiredFilter matches records whose expiry is strictly before the cutoff.
// Immortal records have no expires_at and never match.
func expiredFilter(cutoff time.Time) map[string]any {
	return map[string]any{
		"expires_at": map[string]any{"$lt": cutoff.UTC().Format(time.RFC3339)},
	}
}

func (s *Store) Insert(ctx context.Context, rec blacklist.Record) error {
	body := map[string]any{
		"collection": s.collection,
		"document":   toDocument(rec),
	}
	return s.post(ctx, "/insert", body, nil)
}

func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) ([]blacklist.Record, error) {
	body := map[string]any{
		"collection": s.collection,
		"filter":     map[string]any{"token_hash": fingerprint},
	}
	var out struct {
		Documents []document `json:"documents"`
	}
	if err := s.post(ctx, "/find", body, &out); err != nil {
		return nil, err
	}
	recs := make([]blacklist.Record, 0, len(out.Documents))
	for _, doc := range out.Documents {
		recs = append(recs, fromDocument(doc))
	}
	return recs, nil
}

func (s *Store) DeleteByFingerprint(ctx context.Context, fingerprint string) (int, error) {
	return s.delete(ctx, map[string]any{"token_hash": fingerprint})
}

func (s *Store) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return s.delete(ctx, expiredFilter(cutoff))
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.count(ctx, nil)
}

func (s *Store) CountExpiredBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return s.count(ctx, expiredFilter(cutoff))
}

// Ping issues an unfiltered count, the cheapest round trip the service has.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.Count(ctx)
	return err
}

func (s *Store) delete(ctx context.Context, filter map[string]any) (int, error) {
	body := map[string]any{
		"collection": s.collection,
		"filter":     filter,
	}
	var out struct {
		DeletedCount int `json:"deleted_count"`
	}
	if err := s.post(ctx, "/delete", body, &out); err != nil {
		return 0, err
	}
	return out.DeletedCount, nil
}

func (s *Store) count(ctx context.Context, filter map[string]any) (int, error) {
	body := map[string]any{"collection": s.collection}
	if filter != nil {
		body["filter"] = filter
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := s.post(ctx, "/count", body, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// post sends a JSON body and decodes the JSON response into target (which
// may be nil). Transport failures and non-2xx statuses come back wrapped in
// blacklist.ErrUnavailable.
func (s *Store) post(ctx context.Context, path string, body any, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("mongoapi: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mongoapi: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %d", blacklist.ErrUnavailable, path, resp.StatusCode)
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", blacklist.ErrUnavailable, path, err)
	}
	return nil
}
