package bearer

import (
	"context"
	"strings"

	"github.com/goliatone/go-auth-bootstrap/authz"
	"github.com/goliatone/go-auth-bootstrap/logging"
)

// SchemeName is the name of the default authentication scheme.
const SchemeName = "Bearer"

// Options configure a Scheme.
type Options struct {
	Validator TokenValidator
	Policies  *authz.Table
	// Events override individual hooks, unset hooks use the defaults.
	Events          Events
	HideErrorDetail bool
	Logger          logging.Logger
}

// Scheme authenticates bearer tokens, evaluates policies and maps
// failures to responses through its event hooks.
type Scheme struct {
	validator TokenValidator
	policies  *authz.Table
	events    Events
	logger    logging.Logger
}

func NewScheme(opts Options) (*Scheme, error) {
	if opts.Validator == nil {
		return nil, ErrNoValidator
	}
	if opts.Policies == nil {
		opts.Policies = authz.NewTable()
	}
	return &Scheme{
		validator: opts.Validator,
		policies:  opts.Policies,
		events:    opts.Events.merge(DefaultEvents(opts.HideErrorDetail)),
		logger:    logging.OrDefault(opts.Logger),
	}, nil
}

func (s *Scheme) Name() string { return SchemeName }

func (s *Scheme) Policies() *authz.Table { return s.policies }

func (s *Scheme) Events() Events { return s.events }

// Authenticate reads the token from an Authorization header value.
func (s *Scheme) Authenticate(ctx context.Context, authorization string) Outcome {
	token, ok := TokenFromHeader(authorization, SchemeName)
	if !ok {
		return Unauthenticated(ErrMissingToken)
	}
	return s.AuthenticateToken(ctx, token)
}

// AuthenticateToken validates a raw token. Any validation error is a
// failed outcome; only a missing token is unauthenticated.
func (s *Scheme) AuthenticateToken(ctx context.Context, token string) Outcome {
	if token == "" {
		return Unauthenticated(ErrMissingToken)
	}
	p, err := s.validator.Validate(ctx, token)
	if err != nil {
		s.logger.Debug("bearer token validation failed (%s): %s", FailureReason(err), err)
		return Failed(err)
	}
	if p == nil {
		p = authz.Anonymous()
	}
	return Success(p)
}

// Authorize evaluates a policy for an authenticated outcome. An empty
// policy name only requires an authenticated principal.
func (s *Scheme) Authorize(ctx context.Context, o Outcome, policy string) Outcome {
	if o.Kind != KindSuccess {
		return o
	}

	if !o.Principal.Authenticated {
		return Unauthenticated(ErrMissingToken)
	}

	if policy == "" {
		return o
	}

	d, err := s.policies.Authorize(ctx, policy, o.Principal)
	if err != nil {
		s.logger.Error("policy %s evaluation error: %s", policy, err)
		return Failed(err)
	}
	if !d.Allowed {
		s.logger.Debug("policy %s denied %s at %s", policy, o.Principal.Subject, d.Failed)
		return Forbidden(o.Principal, d)
	}
	o.Decision = d
	return o
}

// Handle authenticates the header value and authorizes the policy.
func (s *Scheme) Handle(ctx context.Context, authorization, policy string) Outcome {
	return s.Authorize(ctx, s.Authenticate(ctx, authorization), policy)
}

// Respond maps an outcome to the response its event hook produces.
func (s *Scheme) Respond(ctx context.Context, o Outcome) (Response, bool) {
	return s.events.Respond(ctx, o)
}

// TokenFromHeader extracts the token from "<scheme> <token>", matching
// the scheme case insensitively.
func TokenFromHeader(value, scheme string) (string, bool) {
	value = strings.TrimSpace(value)
	l := len(scheme)
	if l == 0 || len(value) <= l+1 {
		return "", false
	}
	if !strings.EqualFold(value[:l], scheme) || value[l] != ' ' {
		return "", false
	}
	token := strings.TrimSpace(value[l+1:])
	if token == "" {
		return "", false
	}
	return token, true
}
