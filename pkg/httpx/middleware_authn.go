package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

// AuthnMiddleware guards handlers behind a bearer access token. The token is
// verified (signature, expiry, revocation) and its claims are injected into
// the request context for the authorization middleware and handlers.
//
// Revocation store outages surface as 503 rather than 401 so a client can
// tell "your token is bad" apart from "we cannot check right now".
func AuthnMiddleware(v *jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			claims, err := v.VerifyTyped(ctx, raw, jwtx.TokenTypeAccess)
			if err != nil {
				if errors.Is(err, jwtx.ErrRevocationUnavailable) {
					log.Error("revocation check unavailable", "err", err)
					WriteError(w, http.StatusServiceUnavailable,
						"revocation_unavailable", "unable to check token revocation")
					return
				}
				log.Warn("jwt verify failed", "err", err)
				writeBearerError(w, bearerErrorDescription(err))
				return
			}

			// Inject into context for downstream handlers.
			ctx = contextWithAuth(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
	if raw == "" {
		return "", false
	}
	return raw, true
}

func contextWithAuth(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeySubject, c.Subject())
	ctx = context.WithValue(ctx, CtxKeyRoles, c.Roles())
	ctx = context.WithValue(ctx, CtxKeyPerms, c.Permissions())
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}

// bearerErrorDescription maps verification failures onto coarse descriptions
// that do not leak why exactly the token was rejected.
func bearerErrorDescription(err error) string {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return "token expired"
	case errors.Is(err, jwtx.ErrRevoked):
		return "token revoked"
	default:
		return "token verification failed"
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
