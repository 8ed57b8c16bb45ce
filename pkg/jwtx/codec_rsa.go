package jwtx

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// rsaCodec signs with a PEM-encoded RSA private key (RS256/RS384/RS512) and
// verifies against its public half.
type rsaCodec struct {
	method *jwt.SigningMethodRSA
	priv   *rsa.PrivateKey
}

func newRSACodec(alg string, pemKey []byte) (*rsaCodec, error) {
	if len(pemKey) == 0 {
		return nil, ErrMissingKey
	}

	var method *jwt.SigningMethodRSA
	switch alg {
	case "RS256":
		method = jwt.SigningMethodRS256
	case "RS384":
		method = jwt.SigningMethodRS384
	case "RS512":
		method = jwt.SigningMethodRS512
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	priv, err := jwt.ParseRSAPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse RSA private key: %w", err)
	}

	return &rsaCodec{method: method, priv: priv}, nil
}

func (c *rsaCodec) Alg() string { return c.method.Alg() }

func (c *rsaCodec) Encode(claims Claims) (string, error) {
	token := jwt.NewWithClaims(c.method, jwt.MapClaims(claims))

	signed, err := token.SignedString(c.priv)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

func (c *rsaCodec) Decode(tokenStr string) (Claims, error) {
	return decode(tokenStr, c.Alg(), func(t *jwt.Token) (any, error) {
		return &c.priv.PublicKey, nil
	})
}
