package httpx

import (
	"context"

	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeySubject ctxKey = "subject"
	CtxKeyRoles   ctxKey = "roles"
	CtxKeyPerms   ctxKey = "permissions"
	CtxKeyClaims  ctxKey = "claims"
)

// ClaimsFromContext returns the verified claims placed on the context by the
// authentication middleware, or nil when the request was not authenticated.
func ClaimsFromContext(ctx context.Context) jwtx.Claims {
	if c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims); ok {
		return c
	}
	return nil
}

// SubjectFromContext returns the authenticated subject, or "".
func SubjectFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(CtxKeySubject).(string); ok {
		return s
	}
	return ""
}

func rolesFromCtx(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyRoles).([]string); ok {
		return v
	}
	return nil
}

func permsFromCtx(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyPerms).([]string); ok {
		return v
	}
	return nil
}
