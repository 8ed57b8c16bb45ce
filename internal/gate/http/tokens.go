package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/aussiebroadwan/tokengate/internal/gate/service"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

var validate = validator.New()

// decodeAndValidate decodes a JSON request body into dst and runs struct
// validation. Writes the 400 response itself and reports whether the
// handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

// IssueHandler serves POST /v1/tokens. Issuance is guarded by a shared
// issuer key rather than a bearer token: the callers are trusted backend
// services, not end users.
type IssueHandler struct {
	TokenService *service.TokenService
	IssuerKey    string
}

type issueRequest struct {
	Claims map[string]any `json:"claims" validate:"required,min=1"`
}

func (h *IssueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	key := r.Header.Get("X-Issuer-Key")
	if h.IssuerKey == "" ||
		subtle.ConstantTimeCompare([]byte(key), []byte(h.IssuerKey)) != 1 {
		log.Warn("token issuance refused: bad issuer key")
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_issuer_key", "issuer key missing or wrong")
		return
	}

	var req issueRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	pair, err := h.TokenService.IssuePair(ctx, jwtx.Claims(req.Claims))
	if err != nil {
		log.Error("token issuance failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not issue tokens")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, pair)
}

// RefreshHandler serves POST /v1/tokens/refresh.
type RefreshHandler struct {
	TokenService *service.TokenService
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req refreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	grant, err := h.TokenService.Refresh(ctx, req.RefreshToken)
	switch {
	case errors.Is(err, jwtx.ErrRevocationUnavailable):
		log.Error("refresh failed: revocation check unavailable", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"revocation_unavailable", "unable to check token revocation")
		return
	case err != nil:
		log.Warn("refresh refused", "err", err)
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_refresh_token", "refresh token rejected")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, grant)
}

// RevokeHandler serves POST /v1/tokens/revoke. Accepts a single token or an
// access/refresh pair. Unknown or expired tokens still revoke cleanly so the
// endpoint does not leak which tokens exist.
type RevokeHandler struct {
	TokenService *service.TokenService
}

type revokeRequest struct {
	Token        string `json:"token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Reason       string `json:"reason"`
}

func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req revokeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var err error
	switch {
	case req.Token != "":
		err = h.TokenService.Revoke(ctx, req.Token, req.Reason)
	case req.AccessToken != "" && req.RefreshToken != "":
		err = h.TokenService.RevokePair(ctx, req.AccessToken, req.RefreshToken, req.Reason)
	default:
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"provide token, or access_token and refresh_token")
		return
	}

	if err != nil {
		writeRevocationError(ctx, w, "revocation", err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{}"))
}

// VerifyHandler serves POST /v1/tokens/verify. The heavy lifting happens in
// the authentication middleware; by the time this runs the token has already
// passed signature, expiry, type, and revocation checks.
type VerifyHandler struct{}

func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := httpx.ClaimsFromContext(r.Context())

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"active": true,
		"claims": claims,
	})
}
