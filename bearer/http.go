package bearer

import (
	"context"
	"net/http"

	"github.com/goliatone/go-auth-bootstrap/authz"
)

type principalKey struct{}

// WithPrincipal stores the principal in the context.
func WithPrincipal(ctx context.Context, p *authz.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by the middleware.
func PrincipalFromContext(ctx context.Context) (*authz.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*authz.Principal)
	return p, ok && p != nil
}

// Middleware protects a net/http handler with the named policy. An empty
// policy only requires authentication.
func (s *Scheme) Middleware(policy string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			o := s.Handle(ctx, r.Header.Get("Authorization"), policy)
			if res, handled := s.Respond(ctx, o); handled {
				WriteResponse(w, res)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, o.Principal)))
		})
	}
}

// WriteResponse writes an event response to a net/http writer.
func WriteResponse(w http.ResponseWriter, res Response) {
	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}
	w.WriteHeader(res.Status)
	_, _ = w.Write(res.Body)
}
