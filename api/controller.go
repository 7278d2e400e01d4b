// Package api exposes the account endpoints and the protected identity
// endpoint over go-router and over net/http through chi.
package api

import (
	"context"
	"net/http"

	"github.com/goliatone/go-auth-bootstrap/account"
	"github.com/goliatone/go-auth-bootstrap/authz"
	"github.com/goliatone/go-auth-bootstrap/logging"
	"github.com/goliatone/go-auth-bootstrap/mediator"
)

// Route paths.
const (
	RouteAuthenticate   = "/api/account/authenticate"
	RouteRegister       = "/api/account/register"
	RouteConfirmEmail   = "/" + account.ConfirmEmailRoute
	RouteForgotPassword = "/api/account/forgot-password"
	RouteResetPassword  = "/" + account.ResetPasswordRoute
	RouteRefreshToken   = "/api/account/refresh-token"
	RouteIdentity       = "/api/identity"
)

// DefaultOrigin prefixes links mailed to users when no origin is set.
const DefaultOrigin = "https://localhost:5001"

type RefreshTokenRequest struct {
	Token string `json:"token"`
}

// IdentityResponse describes the authenticated caller.
type IdentityResponse struct {
	Subject string              `json:"subject"`
	Issuer  string              `json:"issuer,omitempty"`
	Claims  map[string][]string `json:"claims"`
}

// Controller turns decoded requests into mediator messages. The router and
// chi handlers only adapt transport concerns.
type Controller struct {
	mediator *mediator.Mediator
	origin   string
	logger   logging.Logger
}

type ControllerOption func(*Controller)

func WithOrigin(origin string) ControllerOption {
	return func(c *Controller) {
		if origin != "" {
			c.origin = origin
		}
	}
}

func WithLogger(l logging.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logging.OrDefault(l)
	}
}

func NewController(m *mediator.Mediator, opts ...ControllerOption) *Controller {
	c := &Controller{
		mediator: m,
		origin:   DefaultOrigin,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Controller) authenticate(ctx context.Context, req account.AuthenticationRequest, ip string) (int, any) {
	var out account.Response[account.AuthenticationResponse]
	err := c.mediator.Dispatch(ctx, account.AuthenticateMessage{
		Request:    req,
		IPAddress:  ip,
		OnResponse: func(resp account.Response[account.AuthenticationResponse]) { out = resp },
	})
	if err != nil {
		return c.failure(err)
	}
	return http.StatusOK, out
}

func (c *Controller) register(ctx context.Context, req account.RegisterRequest) (int, any) {
	var out account.Response[string]
	err := c.mediator.Dispatch(ctx, account.RegisterMessage{
		Request:    req,
		Origin:     c.origin,
		OnResponse: func(resp account.Response[string]) { out = resp },
	})
	if err != nil {
		return c.failure(err)
	}
	return http.StatusOK, out
}

func (c *Controller) confirmEmail(ctx context.Context, userID, code string) (int, any) {
	var out account.Response[string]
	err := c.mediator.Dispatch(ctx, account.ConfirmEmailMessage{
		UserID:     userID,
		Code:       code,
		OnResponse: func(resp account.Response[string]) { out = resp },
	})
	if err != nil {
		return c.failure(err)
	}
	return http.StatusOK, out
}

func (c *Controller) forgotPassword(ctx context.Context, req account.ForgotPasswordRequest) (int, any) {
	err := c.mediator.Dispatch(ctx, account.ForgotPasswordMessage{
		Request: req,
		Origin:  c.origin,
	})
	if err != nil {
		return c.failure(err)
	}
	return http.StatusOK, account.Ok(req.Email, "If the account exists a reset token was sent.")
}

func (c *Controller) resetPassword(ctx context.Context, req account.ResetPasswordRequest) (int, any) {
	var out account.Response[string]
	err := c.mediator.Dispatch(ctx, account.ResetPasswordMessage{
		Request:    req,
		OnResponse: func(resp account.Response[string]) { out = resp },
	})
	if err != nil {
		return c.failure(err)
	}
	return http.StatusOK, out
}

func (c *Controller) refreshToken(ctx context.Context, req RefreshTokenRequest, ip string) (int, any) {
	var out account.Response[account.AuthenticationResponse]
	err := c.mediator.Dispatch(ctx, account.RefreshTokenMessage{
		Token:      req.Token,
		IPAddress:  ip,
		OnResponse: func(resp account.Response[account.AuthenticationResponse]) { out = resp },
	})
	if err != nil {
		return c.failure(err)
	}
	return http.StatusOK, out
}

func (c *Controller) identity(p *authz.Principal) (int, any) {
	if p == nil {
		p = authz.Anonymous()
	}
	return http.StatusOK, IdentityResponse{
		Subject: p.Subject,
		Issuer:  p.Issuer,
		Claims:  p.Claims,
	}
}

func (c *Controller) failure(err error) (int, any) {
	status := account.StatusCode(err)
	if status >= http.StatusInternalServerError {
		c.logger.Error("account request failed: %s", err)
	}
	var codes []string
	if code := account.TextCode(err); code != "" {
		codes = append(codes, code)
	}
	return status, account.Fail[string](account.Message(err), codes...)
}

func badRequest(msg string) (int, any) {
	return http.StatusBadRequest, account.Fail[string](msg)
}
