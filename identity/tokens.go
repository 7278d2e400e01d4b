package identity

import (
	"crypto/rand"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// Token purposes of the default providers.
const (
	PurposeEmailConfirmation = "email_confirmation"
	PurposePasswordReset     = "password_reset"
)

// DefaultTokenLifespan bounds how long a user token stays valid.
const DefaultTokenLifespan = 24 * time.Hour

// TokenProviders issue purpose bound user tokens. A token is tied to the
// user id and security stamp, so rotating the stamp revokes it.
type TokenProviders struct {
	key      []byte
	lifespan time.Duration
	now      func() time.Time
}

type userTokenClaims struct {
	Purpose string `json:"pur"`
	Stamp   string `json:"stm"`
	jwt.RegisteredClaims
}

// NewTokenProviders signs tokens with key. A nil key uses a random key,
// tokens then do not survive a restart.
func NewTokenProviders(key []byte) *TokenProviders {
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(err)
		}
	}
	return &TokenProviders{
		key:      key,
		lifespan: DefaultTokenLifespan,
		now:      time.Now,
	}
}

// WithLifespan returns a copy with a different token lifespan.
func (p *TokenProviders) WithLifespan(d time.Duration) *TokenProviders {
	out := *p
	out.lifespan = d
	return &out
}

// Generate issues a token for the purpose and user.
func (p *TokenProviders) Generate(purpose string, user *User) (string, error) {
	now := p.now()
	claims := userTokenClaims{
		Purpose: purpose,
		Stamp:   user.SecurityStamp,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.lifespan)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
}

// Verify checks that token was issued for purpose and user and that the
// user's security stamp has not changed since.
func (p *TokenProviders) Verify(purpose string, user *User, token string) error {
	claims := &userTokenClaims{}
	_, err := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(user.ID.String()),
		jwt.WithTimeFunc(p.now),
	).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return p.key, nil
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid token").
			WithTextCode(TextCodeInvalidToken).
			WithCode(errors.CodeBadRequest)
	}
	if claims.Purpose != purpose || claims.Stamp != user.SecurityStamp {
		return ErrInvalidToken
	}
	return nil
}
