package bearer

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-bootstrap/authz"
)

// TokenValidator validates a raw bearer token and returns its principal.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*authz.Principal, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(ctx context.Context, token string) (*authz.Principal, error)

func (f TokenValidatorFunc) Validate(ctx context.Context, token string) (*authz.Principal, error) {
	return f(ctx, token)
}

// IssuerRouter picks a validator by the unverified "iss" claim of the
// token. Tokens from unregistered issuers go to Fallback when set.
type IssuerRouter struct {
	mu       sync.RWMutex
	issuers  map[string]TokenValidator
	Fallback TokenValidator
}

func NewIssuerRouter() *IssuerRouter {
	return &IssuerRouter{issuers: make(map[string]TokenValidator)}
}

// Register binds a validator to an issuer. Trailing slashes are ignored.
func (r *IssuerRouter) Register(issuer string, v TokenValidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issuers[normalizeIssuer(issuer)] = v
}

// Issuers returns the registered issuers in sorted order.
func (r *IssuerRouter) Issuers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.issuers))
	for k := range r.issuers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *IssuerRouter) Validate(ctx context.Context, token string) (*authz.Principal, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}

	iss, _ := claims.GetIssuer()

	r.mu.RLock()
	v, ok := r.issuers[normalizeIssuer(iss)]
	r.mu.RUnlock()

	if ok {
		return v.Validate(ctx, token)
	}
	if r.Fallback != nil {
		return r.Fallback.Validate(ctx, token)
	}
	return nil, errors.Wrap(ErrUnknownIssuer, errors.CategoryAuth, "no validator for issuer").
		WithMetadata(map[string]any{"issuer": iss})
}

func normalizeIssuer(iss string) string {
	return strings.TrimRight(iss, "/")
}

// checkAudience accepts the token when any of its audiences is valid.
func checkAudience(tokenAudiences, valid []string) error {
	for _, a := range tokenAudiences {
		for _, v := range valid {
			if a == v {
				return nil
			}
		}
	}
	return ErrInvalidAudience
}
