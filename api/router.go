package api

import (
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-auth-bootstrap/account"
	"github.com/goliatone/go-auth-bootstrap/authz"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// RegisterRoutes mounts the account routes and the identity route, the
// latter behind protect.
func (c *Controller) RegisterRoutes(r RouteRegistrar, protect router.MiddlewareFunc) {
	r.Post(RouteAuthenticate, c.Authenticate)
	r.Post(RouteRegister, c.Register)
	r.Get(RouteConfirmEmail, c.ConfirmEmail)
	r.Post(RouteForgotPassword, c.ForgotPassword)
	r.Post(RouteResetPassword, c.ResetPassword)
	r.Post(RouteRefreshToken, c.RefreshToken)
	r.Get(RouteIdentity, c.Identity, protect)
}

func (c *Controller) Authenticate(ctx router.Context) error {
	payload := new(account.AuthenticationRequest)
	if err := ctx.Bind(payload); err != nil {
		return respond(ctx)(badRequest("Failed to parse request"))
	}
	return respond(ctx)(c.authenticate(ctx.Context(), *payload, ctx.IP()))
}

func (c *Controller) Register(ctx router.Context) error {
	payload := new(account.RegisterRequest)
	if err := ctx.Bind(payload); err != nil {
		return respond(ctx)(badRequest("Failed to parse request"))
	}
	return respond(ctx)(c.register(ctx.Context(), *payload))
}

func (c *Controller) ConfirmEmail(ctx router.Context) error {
	return respond(ctx)(c.confirmEmail(ctx.Context(), ctx.Query("userId"), ctx.Query("code")))
}

func (c *Controller) ForgotPassword(ctx router.Context) error {
	payload := new(account.ForgotPasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return respond(ctx)(badRequest("Failed to parse request"))
	}
	return respond(ctx)(c.forgotPassword(ctx.Context(), *payload))
}

func (c *Controller) ResetPassword(ctx router.Context) error {
	payload := new(account.ResetPasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return respond(ctx)(badRequest("Failed to parse request"))
	}
	return respond(ctx)(c.resetPassword(ctx.Context(), *payload))
}

func (c *Controller) RefreshToken(ctx router.Context) error {
	payload := new(RefreshTokenRequest)
	if err := ctx.Bind(payload); err != nil {
		return respond(ctx)(badRequest("Failed to parse request"))
	}
	return respond(ctx)(c.refreshToken(ctx.Context(), *payload, ctx.IP()))
}

// Identity returns the claims of the principal stored by the jwt middleware.
func (c *Controller) Identity(ctx router.Context) error {
	p, _ := ctx.Locals("user").(*authz.Principal)
	return respond(ctx)(c.identity(p))
}

func respond(ctx router.Context) func(status int, body any) error {
	return func(status int, body any) error {
		return ctx.JSON(status, body)
	}
}
