package jwtx

import (
	"encoding/json"
	"time"
)

// Token type values carried in the reserved "type" claim. Every issued token
// has exactly one.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Reserved claim keys stamped by the Issuer. Caller-supplied values under
// these keys are overwritten at issue time.
const (
	ClaimExpires  = "exp"
	ClaimIssuedAt = "iat"
	ClaimType     = "type"
	ClaimTokenID  = "jti"
)

// Well-known business claim keys the guard middleware understands.
const (
	ClaimSubject     = "sub"
	ClaimRoles       = "roles"
	ClaimPermissions = "permissions"
)

// Claims is the payload carried inside a token: an open mapping of string
// keys to JSON-compatible values. Business claims are caller-defined; the
// reserved keys above are managed by the Issuer.
type Claims map[string]any

// Clone returns a shallow copy of the claim set. Issuing never mutates the
// caller's map.
func (c Claims) Clone() Claims {
	out := make(Claims, len(c)+4)
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Business returns a copy of the claims with the reserved keys removed. This
// is what gets re-stamped when a refresh token is exchanged for a new access
// token.
func (c Claims) Business() Claims {
	out := c.Clone()
	delete(out, ClaimExpires)
	delete(out, ClaimIssuedAt)
	delete(out, ClaimType)
	delete(out, ClaimTokenID)
	return out
}

// Type returns the reserved token type claim, or "" if absent.
func (c Claims) Type() string {
	s, _ := c[ClaimType].(string)
	return s
}

// TokenID returns the reserved jti claim, or "" if absent.
func (c Claims) TokenID() string {
	s, _ := c[ClaimTokenID].(string)
	return s
}

// Subject returns the "sub" claim, or "" if absent.
func (c Claims) Subject() string {
	s, _ := c[ClaimSubject].(string)
	return s
}

// ExpiresAt returns the expiry instant (UTC, whole seconds). The second
// return reports whether the claim is present and numeric.
func (c Claims) ExpiresAt() (time.Time, bool) {
	return c.timeClaim(ClaimExpires)
}

// IssuedAt returns the issued-at instant (UTC, whole seconds).
func (c Claims) IssuedAt() (time.Time, bool) {
	return c.timeClaim(ClaimIssuedAt)
}

// Roles returns the "roles" claim as a string set. A missing or malformed
// claim is an empty set, never a wildcard.
func (c Claims) Roles() []string {
	return c.stringsClaim(ClaimRoles)
}

// Permissions returns the "permissions" claim as a string set. Missing or
// malformed means empty.
func (c Claims) Permissions() []string {
	return c.stringsClaim(ClaimPermissions)
}

// timeClaim reads a numeric-time claim. Freshly stamped claims hold int64
// seconds; claims that round-tripped through JSON hold float64.
func (c Claims) timeClaim(key string) (time.Time, bool) {
	switch v := c[key].(type) {
	case int64:
		return time.Unix(v, 0).UTC(), true
	case int:
		return time.Unix(int64(v), 0).UTC(), true
	case float64:
		return time.Unix(int64(v), 0).UTC(), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(n, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// stringsClaim reads a claim that should be a list of strings. Non-string
// elements are skipped.
func (c Claims) stringsClaim(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
