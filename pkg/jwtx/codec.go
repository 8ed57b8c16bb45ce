package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Codec turns a claim set into a compact signed token string and back. It
// owns the signature and numeric-time semantics; one codec is bound to one
// (key, algorithm) pair for its lifetime.
type Codec interface {
	Alg() string
	Encode(Claims) (string, error)
	Decode(string) (Claims, error)
}

var (
	// Decode failures. These are expected, user-facing rejection reasons
	// and are returned unwrapped so callers can errors.Is on them.
	ErrMalformed        = errors.New("jwtx: malformed token")
	ErrSignatureInvalid = errors.New("jwtx: invalid signature")
	ErrExpired          = errors.New("jwtx: token expired")

	// Construction failures. Fatal at the call site.
	ErrUnsupportedAlgorithm = errors.New("jwtx: unsupported algorithm")
	ErrMissingKey           = errors.New("jwtx: missing signing key")
)

// Algorithms this package will sign or verify with. Anything else is
// rejected at construction, not at first use.
var allowedAlgorithms = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
	"RS256": true,
	"RS384": true,
	"RS512": true,
}

// SupportedAlgorithm reports whether alg is in the codec allow-list.
func SupportedAlgorithm(alg string) bool {
	return allowedAlgorithms[alg]
}

// NewCodec builds a codec for the given algorithm. HMAC variants take the
// shared secret as key material; RSA variants take a PEM-encoded private key.
func NewCodec(alg string, key []byte) (Codec, error) {
	switch alg {
	case "HS256", "HS384", "HS512":
		return newHMACCodec(alg, key)
	case "RS256", "RS384", "RS512":
		return newRSACodec(alg, key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// mapDecodeError converts golang-jwt parse errors into our failure taxonomy.
// Any structural or cryptographic failure discards all claims; the caller
// only ever sees one of the three decode sentinels.
func mapDecodeError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignatureInvalid
	default:
		return ErrMalformed
	}
}

// decode runs the shared parse path for both codec families.
func decode(tokenStr string, alg string, keyFn jwt.Keyfunc) (Claims, error) {
	if tokenStr == "" {
		return nil, ErrMalformed
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{alg}))

	token, err := parser.Parse(tokenStr, keyFn)
	if err != nil {
		return nil, mapDecodeError(err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}

	return Claims(mc), nil
}
