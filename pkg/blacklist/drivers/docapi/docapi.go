// Package docapi is the blacklist store driver for the newer document
// service API. Unlike the older mongo-api shape, documents carry server
// assigned ids and are deleted individually, so the bulk delete verbs are
// composed from a search followed by per-document deletes.
package docapi

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

// Store talks the document-api wire shape. Implements blacklist.Store.
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

type document struct {
	ID        string  `json:"id,omitempty"`
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
		ID:          doc.ID,
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

func expiredFilter(cutoff time.Time) map[string]any {
	return map[string]any{
		"expires_at": map[string]any{"$lt": cutoff.UTC().Format(time.RFC3339)},
	}
}

func (s *Store) Insert(ctx context.Context, rec blacklist.Record) error {
	path := "/add/document/" + s.collection
	return s.do(ctx, http.MethodPost, path, toDocument(rec), nil)
}

func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) ([]blacklist.Record, error) {
	return s.search(ctx, map[string]any{"token_hash": fingerprint})
}

func (s *Store) DeleteByFingerprint(ctx context.Context, fingerprint string) (int, error) {
	recs, err := s.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return 0, err
	}
	return s.deleteAll(ctx, recs)
}

func (s *Store) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int, error) {
	recs, err := s.search(ctx, expiredFilter(cutoff))
	if err != nil {
		return 0, err
	}
	return s.deleteAll(ctx, recs)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.count(ctx, map[string]any{})
}

func (s *Store) CountExpiredBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return s.count(ctx, expiredFilter(cutoff))
}

// Ping issues an unfiltered count.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.Count(ctx)
	return err
}

func (s *Store) search(ctx context.Context, filter map[string]any) ([]blacklist.Record, error) {
	path := "/search/documents/" + s.collection
	var out struct {
		Documents []document `json:"documents"`
	}
	if err := s.do(ctx, http.MethodPost, path, map[string]any{"filter": filter}, &out); err != nil {
		return nil, err
	}
	recs := make([]blacklist.Record, 0, len(out.Documents))
	for _, doc := range out.Documents {
		recs = append(recs, fromDocument(doc))
	}
	return recs, nil
}

func (s *Store) count(ctx context.Context, filter map[string]any) (int, error) {
	path := "/search/documents/" + s.collection + "/count"
	var out struct {
		Count int `json:"count"`
	}
	if err := s.do(ctx, http.MethodPost, path, map[string]any{"filter": filter}, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// deleteAll deletes each record by id and reports how many succeeded before
// the first failure.
func (s *Store) deleteAll(ctx context.Context, recs []blacklist.Record) (int, error) {
	deleted := 0
	for _, rec := range recs {
		if rec.ID == "" {
			continue
		}
		path := "/delete/document/" + s.collection + "/" + rec.ID
		if err := s.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (s *Store) do(ctx context.Context, method, path string, body any, target any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("docapi: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("docapi: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", blacklist.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d", blacklist.ErrUnavailable, method, path, resp.StatusCode)
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
