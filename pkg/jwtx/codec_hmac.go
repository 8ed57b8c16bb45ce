package jwtx

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// hmacCodec signs and verifies with a shared secret (HS256/HS384/HS512).
type hmacCodec struct {
	method *jwt.SigningMethodHMAC
	secret []byte
}

func newHMACCodec(alg string, secret []byte) (*hmacCodec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingKey
	}

	var method *jwt.SigningMethodHMAC
	switch alg {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	return &hmacCodec{method: method, secret: secret}, nil
}

func (c *hmacCodec) Alg() string { return c.method.Alg() }

func (c *hmacCodec) Encode(claims Claims) (string, error) {
	token := jwt.NewWithClaims(c.method, jwt.MapClaims(claims))

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

func (c *hmacCodec) Decode(tokenStr string) (Claims, error) {
	return decode(tokenStr, c.Alg(), func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
}
