package bearer

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/goliatone/go-auth-bootstrap/authz"
	"github.com/goliatone/go-auth-bootstrap/logging"
)

// JWKSConfig configures validation against one or more JWK Set URLs.
type JWKSConfig struct {
	URLs             []string
	Issuer           string
	ValidateAudience bool
	Audiences        []string
	Logger           logging.Logger
}

// JWKSValidator validates asymmetric tokens with keys fetched from JWK
// Set endpoints. Keys are refreshed in the background.
type JWKSValidator struct {
	cfg     JWKSConfig
	keyFunc jwt.Keyfunc
	multi   *keyfunc.MultipleJWKS
}

func NewJWKSValidator(cfg JWKSConfig) (*JWKSValidator, error) {
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("jwks validator requires at least one url")
	}
	cfg.Logger = logging.OrDefault(cfg.Logger)

	opts := keyfuncOptions(cfg.Logger)
	m := make(map[string]keyfunc.Options, len(cfg.URLs))
	for _, u := range cfg.URLs {
		m[u] = opts
	}

	multi, err := keyfunc.GetMultiple(m, keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get JWT URLs: %w", err)
	}

	return &JWKSValidator{cfg: cfg, keyFunc: multi.Keyfunc, multi: multi}, nil
}

func keyfuncOptions(logger logging.Logger) keyfunc.Options {
	return keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Error("failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}
}

func (v *JWKSValidator) Validate(ctx context.Context, token string) (*authz.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, v.keyFunc); err != nil {
		return nil, err
	}

	if v.cfg.ValidateAudience && len(v.cfg.Audiences) > 0 {
		aud, _ := claims.GetAudience()
		if err := checkAudience(aud, v.cfg.Audiences); err != nil {
			return nil, err
		}
	}

	return authz.NewPrincipal(claims), nil
}

// Close stops background refreshes.
func (v *JWKSValidator) Close() {
	if v.multi == nil {
		return
	}
	for _, j := range v.multi.JWKSets() {
		j.EndBackground()
	}
}
