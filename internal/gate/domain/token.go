// Package domain holds the response shapes shared by the token service and
// its HTTP handlers.
package domain

// BearerTokenType is the token_type value reported alongside issued tokens.
const BearerTokenType = "Bearer"

// TokenPair is returned from a token issuance: a short-lived access token
// and a longer-lived refresh token carrying the same business claims.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AccessGrant is returned from a refresh exchange. The refresh token is not
// rotated, so only a new access token comes back.
type AccessGrant struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
