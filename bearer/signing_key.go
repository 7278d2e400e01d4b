package bearer

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/goliatone/go-auth-bootstrap/authz"
)

var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// SigningKeyValidator validates locally issued HMAC tokens.
type SigningKeyValidator struct {
	Key              []byte
	Issuer           string
	ValidateAudience bool
	Audiences        []string
	Leeway           time.Duration
}

func (v SigningKeyValidator) Validate(ctx context.Context, token string) (*authz.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(hmacMethods),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(v.Leeway))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.Key, nil
	})
	if err != nil {
		return nil, err
	}

	if v.ValidateAudience && len(v.Audiences) > 0 {
		aud, _ := claims.GetAudience()
		if err := checkAudience(aud, v.Audiences); err != nil {
			return nil, err
		}
	}

	return authz.NewPrincipal(claims), nil
}
