// Package http wires the token lifecycle service onto its HTTP surface.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gate/service"
	"github.com/aussiebroadwan/tokengate/pkg/blacklist"
	"github.com/aussiebroadwan/tokengate/pkg/httpx"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

// AdminRole is the role required on blacklist administration endpoints.
const AdminRole = "admin"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     *jwtx.Verifier
	issuerKey    string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	blacklist    *blacklist.Client

	TokenService *service.TokenService
}

func NewRouter(
	verifier *jwtx.Verifier,
	issuerKey, buildVersion string,
	bl *blacklist.Client,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		issuerKey:    issuerKey,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		blacklist:    bl,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTokens()
	r.registerBlacklist()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerTokens() {
	issueHandler := &IssueHandler{
		TokenService: r.TokenService,
		IssuerKey:    r.issuerKey,
	}

	// POST /tokens - strict rate limit (mints credentials)
	r.Mux.Handle("POST /v1/tokens",
		httpx.Chain(issueHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /tokens/refresh - strict rate limit (authentication attempts)
	refreshHandler := &RefreshHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/tokens/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /tokens/revoke - moderate rate limit, no authentication: revoking
	// a token you hold must still work when the pair is compromised.
	revokeHandler := &RevokeHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/tokens/revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /tokens/verify - requires a valid access token and reflects its
	// claims back, for services that cannot verify locally.
	verifyHandler := &VerifyHandler{}
	r.Mux.Handle("POST /v1/tokens/verify",
		httpx.Chain(verifyHandler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerBlacklist() {
	h := &BlacklistHandler{TokenService: r.TokenService}

	admin := func(next http.Handler) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyRole(AdminRole),
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /v1/blacklist/stats", admin(http.HandlerFunc(h.HandleStats)))
	r.Mux.Handle("POST /v1/blacklist/sweep", admin(http.HandlerFunc(h.HandleSweep)))
	r.Mux.Handle("DELETE /v1/blacklist", admin(http.HandlerFunc(h.HandleUnrevoke)))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.blacklist),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
