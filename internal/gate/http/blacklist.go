package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tokengate/internal/gate/service"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

// BlacklistHandler serves the admin endpoints over the revocation store.
type BlacklistHandler struct {
	TokenService *service.TokenService
}

// writeRevocationError maps revocation failures onto the two 503 shapes:
// no store configured (driver "none") versus a configured store that is
// unreachable.
func writeRevocationError(ctx context.Context, w http.ResponseWriter, action string, err error) {
	log := slogx.FromContext(ctx)

	if errors.Is(err, service.ErrRevocationDisabled) {
		log.Warn(action + " refused: no revocation store configured")
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"revocation_disabled", "no revocation store is configured")
		return
	}

	log.Error(action+" failed", "err", err)
	httpx.WriteError(w, http.StatusServiceUnavailable,
		"revocation_unavailable", "revocation store unreachable")
}

// HandleStats serves GET /v1/blacklist/stats.
func (h *BlacklistHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.TokenService.Stats(ctx)
	if err != nil {
		writeRevocationError(ctx, w, "blacklist stats", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, stats)
}

// HandleSweep serves POST /v1/blacklist/sweep.
func (h *BlacklistHandler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.TokenService.SweepExpired(ctx)
	if err != nil {
		writeRevocationError(ctx, w, "blacklist sweep", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

type unrevokeRequest struct {
	Token string `json:"token" validate:"required"`
}

// HandleUnrevoke serves DELETE /v1/blacklist. Removing a token that was
// never revoked reports zero deletions rather than an error.
func (h *BlacklistHandler) HandleUnrevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req unrevokeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	n, err := h.TokenService.Unrevoke(ctx, req.Token)
	if err != nil {
		writeRevocationError(ctx, w, "unrevoke", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]int{"deleted": n})
}
