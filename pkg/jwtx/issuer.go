package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/idx"
)

// Default token TTLs, matching the usual short-access/long-refresh split.
// Services normally override these from configuration.
const (
	DefaultAccessTokenTTL  = 30 * time.Minute
	DefaultRefreshTokenTTL = 24 * time.Hour
)

// ErrInvalidTTL reports a non-positive token lifetime.
var ErrInvalidTTL = errors.New("jwtx: token ttl must be positive")

// Pair is an access/refresh token pair sharing business claims. The two
// tokens have independent jti, iat, exp and type.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Issuer builds signed access and refresh tokens from caller-supplied
// business claims. It is pure and stateless: issuing never contacts the
// revocation store and never mutates the input claims.
type Issuer struct {
	codec      Codec
	accessTTL  time.Duration
	refreshTTL time.Duration

	// Now is the clock used for iat/exp stamping. Overridable in tests.
	Now func() time.Time
}

// NewIssuer builds an Issuer. TTLs must be positive; the exp > iat invariant
// follows from that.
func NewIssuer(codec Codec, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if codec == nil {
		return nil, errors.New("jwtx: issuer requires a codec")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, ErrInvalidTTL
	}

	return &Issuer{
		codec:      codec,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		Now:        time.Now,
	}, nil
}

// IssueAccess copies the caller claims, stamps exp/iat/type/jti and encodes.
// An optional ttlOverride replaces the configured access lifetime for this
// token only.
func (i *Issuer) IssueAccess(claims Claims, ttlOverride ...time.Duration) (string, error) {
	ttl := i.accessTTL
	if len(ttlOverride) > 0 {
		ttl = ttlOverride[0]
	}
	return i.issue(claims, TokenTypeAccess, ttl)
}

// IssueRefresh is IssueAccess with the refresh type and lifetime.
func (i *Issuer) IssueRefresh(claims Claims) (string, error) {
	return i.issue(claims, TokenTypeRefresh, i.refreshTTL)
}

// IssuePair issues an access and a refresh token from the same business
// claims.
func (i *Issuer) IssuePair(claims Claims) (Pair, error) {
	access, err := i.IssueAccess(claims)
	if err != nil {
		return Pair{}, err
	}

	refresh, err := i.IssueRefresh(claims)
	if err != nil {
		return Pair{}, err
	}

	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *Issuer) issue(claims Claims, tokenType string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}

	now := i.Now().UTC().Truncate(time.Second)

	// Reserved keys always win over caller-supplied values.
	out := claims.Clone()
	out[ClaimIssuedAt] = now.Unix()
	out[ClaimExpires] = now.Add(ttl).Unix()
	out[ClaimType] = tokenType
	out[ClaimTokenID] = idx.New().String()

	token, err := i.codec.Encode(out)
	if err != nil {
		return "", fmt.Errorf("jwtx: issue %s token: %w", tokenType, err)
	}
	return token, nil
}
