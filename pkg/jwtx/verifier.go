package jwtx

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/slogx"
)

var (
	// ErrWrongTokenType reports a structurally valid token presented where
	// the other token type was required (refresh where access is expected,
	// or vice versa).
	ErrWrongTokenType = errors.New("jwtx: wrong token type")

	// ErrRevoked reports a token found on the revocation blacklist even
	// though its signature and expiry are individually valid.
	ErrRevoked = errors.New("jwtx: token revoked")

	// ErrRevocationUnavailable reports that the revocation store could not
	// be consulted and the verifier is configured to fail closed.
	ErrRevocationUnavailable = errors.New("jwtx: revocation store unavailable")
)

// RevocationChecker is the part of the blacklist client the verifier needs.
// Implementations must report store failures as an error signal, never as a
// silent false.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// FailMode decides what a verification does when the revocation store cannot
// be reached: FailClosed rejects (safer, an outage blocks verification),
// FailOpen admits the token and logs (available, weaker revocation
// guarantees during outages). The choice is configuration, not a hardcoded
// default.
type FailMode int

const (
	FailClosed FailMode = iota
	FailOpen
)

// Verifier decodes a token, validates signature/expiry, and consults the
// revocation blacklist. A nil checker disables revocation entirely.
type Verifier struct {
	codec       Codec
	revocations RevocationChecker
	mode        FailMode
}

// NewVerifier builds a Verifier. Pass a nil checker to skip revocation.
func NewVerifier(codec Codec, revocations RevocationChecker, mode FailMode) (*Verifier, error) {
	if codec == nil {
		return nil, errors.New("jwtx: verifier requires a codec")
	}

	return &Verifier{codec: codec, revocations: revocations, mode: mode}, nil
}

// Verify decodes and validates the token, then checks the blacklist.
// Decode failures (ErrMalformed, ErrSignatureInvalid, ErrExpired) are
// surfaced unchanged. There are no retries here; the blacklist call is
// bounded by the store client's own timeout.
func (v *Verifier) Verify(ctx context.Context, token string) (Claims, error) {
	claims, err := v.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	if v.revocations != nil {
		revoked, err := v.revocations.IsRevoked(ctx, token)
		if err != nil {
			if v.mode == FailOpen {
				slogx.FromContext(ctx).Warn("revocation store unreachable, failing open",
					"jti", claims.TokenID(), "err", err)
				return claims, nil
			}
			return nil, ErrRevocationUnavailable
		}
		if revoked {
			return nil, ErrRevoked
		}
	}

	return claims, nil
}

// VerifyTyped is Verify plus a token type check. A mismatch fails with
// ErrWrongTokenType, distinct from the other rejection reasons, so callers
// can reject a refresh token presented as an access token and vice versa.
func (v *Verifier) VerifyTyped(ctx context.Context, token, expectedType string) (Claims, error) {
	claims, err := v.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	if claims.Type() != expectedType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// ExpiryOf adapts a codec into the expiry-recovery hook the blacklist client
// takes: it decodes the token and returns its exp claim, or nil when the
// token cannot be decoded or carries no usable expiry.
func ExpiryOf(codec Codec) func(token string) *time.Time {
	return func(token string) *time.Time {
		claims, err := codec.Decode(token)
		if err != nil {
			return nil
		}

		exp, ok := claims.ExpiresAt()
		if !ok {
			return nil
		}
		return &exp
	}
}
