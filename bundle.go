package bootstrap

import (
	stderrors "errors"
	"net/http"
	"sync"

	"github.com/goliatone/go-router"

	"github.com/goliatone/go-auth-bootstrap/account"
	"github.com/goliatone/go-auth-bootstrap/authz"
	"github.com/goliatone/go-auth-bootstrap/bearer"
	"github.com/goliatone/go-auth-bootstrap/email"
	"github.com/goliatone/go-auth-bootstrap/identity"
	"github.com/goliatone/go-auth-bootstrap/mediator"
	"github.com/goliatone/go-auth-bootstrap/middleware/jwtware"
	"github.com/goliatone/go-auth-bootstrap/registry"
)

// Bundle is the result of a successful Build. It owns its policy table,
// registry and identity database; the builder that produced it cannot
// change them.
type Bundle struct {
	Scheme   *bearer.Scheme
	Policies *authz.Table
	Services *registry.Registry
	// Mediator is nil unless AddServiceLayer was called.
	Mediator *mediator.Mediator
	Store    *identity.Store
	Settings JWTSettings

	closeOnce sync.Once
	closers   []func() error
}

// Authorize protects a net/http handler with the named policy.
func (b *Bundle) Authorize(policy string) func(http.Handler) http.Handler {
	return b.Scheme.Middleware(policy)
}

// RouterMiddleware protects go-router routes with the named policy.
func (b *Bundle) RouterMiddleware(policy string) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		Scheme:          b.Scheme,
		Policy:          policy,
		ContextEnricher: bearer.WithPrincipal,
	})
}

func (b *Bundle) AccountService() (account.Service, error) {
	return registry.Resolve[account.Service](b.Services)
}

func (b *Bundle) EmailService() (email.Service, error) {
	return registry.Resolve[email.Service](b.Services)
}

// Close releases the identity database and background key refreshers.
func (b *Bundle) Close() error {
	var errs []error
	b.closeOnce.Do(func() {
		for _, c := range b.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return stderrors.Join(errs...)
}
