package docapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/blacklist"
	"github.com/aussiebroadwan/tokengate/pkg/blacklist/drivers/docapi"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	path   string
	body   map[string]any
}

type fakeAPI struct {
	t         *testing.T
	calls     []call
	responses map[string]any
	status    int
}

func (f *fakeAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{method: r.Method, path: r.URL.Path}
		if r.Body != nil && r.ContentLength != 0 {
			require.NoError(f.t, json.NewDecoder(r.Body).Decode(&c.body))
		}
		f.calls = append(f.calls, c)

		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		resp, ok := f.responses[r.URL.Path]
		if !ok {
			resp = map[string]any{}
		}
		require.NoError(f.t, json.NewEncoder(w).Encode(resp))
	})
}

func newStore(t *testing.T, api *fakeAPI) *docapi.Store {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return docapi.New(srv.URL, "revoked_tokens", time.Second)
}

func TestInsert(t *testing.T) {
	api := &fakeAPI{t: t}
	store := newStore(t, api)

	exp := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := blacklist.Record{
		Fingerprint: "abc123",
		Reason:      "logout",
		RevokedAt:   time.Date(2030, 4, 30, 12, 0, 0, 0, time.UTC),
		ExpiresAt:   &exp,
	}
	require.NoError(t, store.Insert(context.Background(), rec))

	require.Len(t, api.calls, 1)
	require.Equal(t, http.MethodPost, api.calls[0].method)
	require.Equal(t, "/add/document/revoked_tokens", api.calls[0].path)
	require.Equal(t, "abc123", api.calls[0].body["token_hash"])
	require.Equal(t, "2030-05-01T12:00:00Z", api.calls[0].body["expires_at"])
}

func TestFindByFingerprint(t *testing.T) {
	api := &fakeAPI{
		t: t,
		responses: map[string]any{
			"/search/documents/revoked_tokens": map[string]any{
				"documents": []map[string]any{
					{
						"id":         "doc-1",
						"token_hash": "abc123",
						"reason":     "logout",
						"revoked_at": "2030-04-30T12:00:00Z",
					},
				},
			},
		},
	}
	store := newStore(t, api)

	recs, err := store.FindByFingerprint(context.Background(), "abc123")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "doc-1", recs[0].ID)
	require.Nil(t, recs[0].ExpiresAt)

	require.Equal(t, map[string]any{
		"filter": map[string]any{"token_hash": "abc123"},
	}, api.calls[0].body)
}

func TestDeleteByFingerprint(t *testing.T) {
	api := &fakeAPI{
		t: t,
		responses: map[string]any{
			"/search/documents/revoked_tokens": map[string]any{
				"documents": []map[string]any{
					{"id": "doc-1", "token_hash": "abc123", "revoked_at": "2030-04-30T12:00:00Z"},
					{"id": "doc-2", "token_hash": "abc123", "revoked_at": "2030-04-30T13:00:00Z"},
				},
			},
		},
	}
	store := newStore(t, api)

	n, err := store.DeleteByFingerprint(context.Background(), "abc123")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// One search, then one DELETE per document id.
	require.Len(t, api.calls, 3)
	require.Equal(t, http.MethodDelete, api.calls[1].method)
	require.Equal(t, "/delete/document/revoked_tokens/doc-1", api.calls[1].path)
	require.Equal(t, "/delete/document/revoked_tokens/doc-2", api.calls[2].path)
}

func TestDeleteExpiredBefore(t *testing.T) {
	api := &fakeAPI{
		t: t,
		responses: map[string]any{
			"/search/documents/revoked_tokens": map[string]any{
				"documents": []map[string]any{
					{"id": "doc-9", "token_hash": "old", "revoked_at": "2030-01-01T00:00:00Z"},
				},
			},
		},
	}
	store := newStore(t, api)

	cutoff := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	n, err := store.DeleteExpiredBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.Equal(t, map[string]any{
		"filter": map[string]any{
			"expires_at": map[string]any{"$lt": "2030-05-01T00:00:00Z"},
		},
	}, api.calls[0].body)
}

func TestCounts(t *testing.T) {
	api := &fakeAPI{
		t: t,
		responses: map[string]any{
			"/search/documents/revoked_tokens/count": map[string]any{"count": 4},
		},
	}
	store := newStore(t, api)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "/search/documents/revoked_tokens/count", api.calls[0].path)
	require.Equal(t, map[string]any{"filter": map[string]any{}}, api.calls[0].body)

	_, err = store.CountExpiredBefore(context.Background(), time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"filter": map[string]any{
			"expires_at": map[string]any{"$lt": "2030-05-01T00:00:00Z"},
		},
	}, api.calls[1].body)
}

func TestUnavailable(t *testing.T) {
	api := &fakeAPI{t: t, status: http.StatusBadGateway}
	store := newStore(t, api)

	err := store.Insert(context.Background(), blacklist.Record{Fingerprint: "abc"})
	require.ErrorIs(t, err, blacklist.ErrUnavailable)

	_, err = store.FindByFingerprint(context.Background(), "abc")
	require.ErrorIs(t, err, blacklist.ErrUnavailable)

	require.ErrorIs(t, store.Ping(context.Background()), blacklist.ErrUnavailable)
}
