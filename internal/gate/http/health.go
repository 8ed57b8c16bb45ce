package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/blacklist"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
)

type healthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *healthChecks `json:"checks,omitempty"`
}

type healthChecks struct {
	Blacklist string `json:"blacklist"`
}

// LivezHandler always reports ok while the process is up.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler reports degraded (503) when the revocation store cannot be
// reached. With a fail-closed verifier that outage turns every guarded
// request into an error, so it is worth failing readiness over.
func ReadyzHandler(startTime time.Time, version string, bl *blacklist.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{Blacklist: "ok"}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if bl == nil {
			checks.Blacklist = "disabled"
			httpx.WriteJSON(w, statusCode, healthResponse{
				Status:  overallStatus,
				Uptime:  time.Since(startTime).String(),
				Version: version,
				Checks:  checks,
			})
			return
		}

		if err := bl.Ping(r.Context()); err != nil {
			checks.Blacklist = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, healthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
