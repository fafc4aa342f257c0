package syncx

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token is the OAuth token shape exchanged with the external token-exchange
// process. ExpiryDate is epoch milliseconds.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiryDate   int64  `json:"expiry_date"`
	TokenType    string `json:"token_type"`
}

// OAuthConfig identifies the application to the authorization server.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
}

// AuthOptions tweaks the initial token exchange.
type AuthOptions struct {
	// DeviceCode carries an already-obtained device-flow code.
	DeviceCode string
	// Interactive allows the exchanger to open a browser prompt.
	Interactive bool
}

// TokenExchanger is the external process boundary for the OAuth device
// flow. Implementations live outside the engine.
type TokenExchanger interface {
	GetAccessToken(ctx context.Context, cfg OAuthConfig, opts AuthOptions) (*Token, error)
	RefreshToken(ctx context.Context, cfg OAuthConfig, refreshToken string) (*Token, error)
}

// Expired reports whether the token needs a refresh. When no expiry was
// recorded and the access token is JWT-shaped, the unverified exp claim is
// used as a best-effort signal; verification belongs to the issuer, not to
// this client.
func (t *Token) Expired(now time.Time) bool {
	if t.ExpiryDate > 0 {
		return now.UnixMilli() >= t.ExpiryDate
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(t.AccessToken, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.After(exp.Time)
}
