package account

import (
	"context"

	"github.com/goliatone/go-command"

	"github.com/goliatone/go-auth-bootstrap/mediator"
)

type AuthenticateMessage struct {
	Request    AuthenticationRequest
	IPAddress  string
	OnResponse func(resp Response[AuthenticationResponse])
}

func (e AuthenticateMessage) Type() string { return "account.authenticate" }

func (e AuthenticateMessage) Validate() error { return checkRequest(e.Request.Validate()) }

type RegisterMessage struct {
	Request    RegisterRequest
	Origin     string
	OnResponse func(resp Response[string])
}

func (e RegisterMessage) Type() string { return "account.register" }

func (e RegisterMessage) Validate() error { return checkRequest(e.Request.Validate()) }

// ConfirmEmailMessage carries the raw link parameters, they are checked by
// the service so a bad link maps to a confirmation error.
type ConfirmEmailMessage struct {
	command.BaseMessage
	UserID     string
	Code       string
	OnResponse func(resp Response[string])
}

func (e ConfirmEmailMessage) Type() string { return "account.confirm_email" }

type ForgotPasswordMessage struct {
	Request ForgotPasswordRequest
	Origin  string
}

func (e ForgotPasswordMessage) Type() string { return "account.password.forgot" }

func (e ForgotPasswordMessage) Validate() error { return checkRequest(e.Request.Validate()) }

type ResetPasswordMessage struct {
	Request    ResetPasswordRequest
	OnResponse func(resp Response[string])
}

func (e ResetPasswordMessage) Type() string { return "account.password.reset" }

func (e ResetPasswordMessage) Validate() error { return checkRequest(e.Request.Validate()) }

type RefreshTokenMessage struct {
	command.BaseMessage
	Token      string
	IPAddress  string
	OnResponse func(resp Response[AuthenticationResponse])
}

func (e RefreshTokenMessage) Type() string { return "account.token.refresh" }

func checkRequest(err error) error {
	if err != nil {
		return errInvalidRequest(err)
	}
	return nil
}

// Handlers executes account messages against a Service.
type Handlers struct {
	svc Service
}

func NewHandlers(svc Service) *Handlers {
	return &Handlers{svc: svc}
}

// RegisterHandlers binds every account message to m.
func RegisterHandlers(m *mediator.Mediator, svc Service) {
	h := NewHandlers(svc)
	mediator.Register[AuthenticateMessage](m, command.CommandFunc[AuthenticateMessage](h.Authenticate))
	mediator.Register[RegisterMessage](m, command.CommandFunc[RegisterMessage](h.Register))
	mediator.Register[ConfirmEmailMessage](m, command.CommandFunc[ConfirmEmailMessage](h.ConfirmEmail))
	mediator.Register[ForgotPasswordMessage](m, command.CommandFunc[ForgotPasswordMessage](h.ForgotPassword))
	mediator.Register[ResetPasswordMessage](m, command.CommandFunc[ResetPasswordMessage](h.ResetPassword))
	mediator.Register[RefreshTokenMessage](m, command.CommandFunc[RefreshTokenMessage](h.RefreshToken))
}

func (h *Handlers) Authenticate(ctx context.Context, event AuthenticateMessage) error {
	resp, err := h.svc.Authenticate(ctx, event.Request, event.IPAddress)
	if err != nil {
		return err
	}
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
	return nil
}

func (h *Handlers) Register(ctx context.Context, event RegisterMessage) error {
	resp, err := h.svc.Register(ctx, event.Request, event.Origin)
	if err != nil {
		return err
	}
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
	return nil
}

func (h *Handlers) ConfirmEmail(ctx context.Context, event ConfirmEmailMessage) error {
	resp, err := h.svc.ConfirmEmail(ctx, event.UserID, event.Code)
	if err != nil {
		return err
	}
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
	return nil
}

func (h *Handlers) ForgotPassword(ctx context.Context, event ForgotPasswordMessage) error {
	return h.svc.ForgotPassword(ctx, event.Request, event.Origin)
}

func (h *Handlers) ResetPassword(ctx context.Context, event ResetPasswordMessage) error {
	resp, err := h.svc.ResetPassword(ctx, event.Request)
	if err != nil {
		return err
	}
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
	return nil
}

func (h *Handlers) RefreshToken(ctx context.Context, event RefreshTokenMessage) error {
	resp, err := h.svc.RefreshToken(ctx, event.Token, event.IPAddress)
	if err != nil {
		return err
	}
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
	return nil
}
