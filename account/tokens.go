package account

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/goliatone/go-auth-bootstrap/identity"
)

const (
	DefaultTokenDuration        = 60 * time.Minute
	DefaultRefreshTokenLifetime = 7 * 24 * time.Hour
)

// TokenSettings configures locally issued access tokens.
type TokenSettings struct {
	Key               string
	Issuer            string
	Audience          string
	DurationInMinutes int
	Scopes            []string
}

func (s TokenSettings) Duration() time.Duration {
	if s.DurationInMinutes <= 0 {
		return DefaultTokenDuration
	}
	return time.Duration(s.DurationInMinutes) * time.Minute
}

// AccessClaims are the claims carried by an issued access token.
type AccessClaims struct {
	Email string   `json:"email"`
	UID   string   `json:"uid"`
	IP    string   `json:"ip,omitempty"`
	Roles []string `json:"roles,omitempty"`
	Scope []string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 access tokens for local accounts.
type TokenIssuer struct {
	settings TokenSettings
	now      func() time.Time
}

func NewTokenIssuer(settings TokenSettings) (*TokenIssuer, error) {
	if strings.TrimSpace(settings.Key) == "" {
		return nil, ErrMissingSigningKey
	}
	return &TokenIssuer{settings: settings, now: time.Now}, nil
}

func (i *TokenIssuer) Settings() TokenSettings {
	return i.settings
}

// Issue returns a signed token for user and its expiry.
func (i *TokenIssuer) Issue(user *identity.User, roles []string, ip string) (string, time.Time, error) {
	now := i.now().UTC()
	expires := now.Add(i.settings.Duration())

	claims := AccessClaims{
		Email: user.Email,
		UID:   user.ID.String(),
		IP:    ip,
		Roles: roles,
		Scope: append([]string(nil), i.settings.Scopes...),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserName,
			ID:        uuid.NewString(),
			Issuer:    i.settings.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	if i.settings.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.settings.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.settings.Key))
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.CategoryInternal, "failed to sign access token")
	}
	return signed, expires, nil
}
