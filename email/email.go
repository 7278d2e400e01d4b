package email

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MailRequest is a message to deliver.
type MailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	// From overrides the configured sender address.
	From string `json:"from,omitempty"`
}

func (r MailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.To, validation.Required, is.Email),
		validation.Field(&r.Subject, validation.Required),
		validation.Field(&r.From, is.Email),
	)
}

// Service delivers mail.
type Service interface {
	Send(ctx context.Context, req MailRequest) error
}

// Settings configure the SMTP transport.
type Settings struct {
	EmailFrom   string `mapstructure:"EmailFrom" json:"email_from"`
	SmtpHost    string `mapstructure:"SmtpHost" json:"smtp_host"`
	SmtpPort    int    `mapstructure:"SmtpPort" json:"smtp_port"`
	SmtpUser    string `mapstructure:"SmtpUser" json:"smtp_user"`
	SmtpPass    string `mapstructure:"SmtpPass" json:"-"`
	DisplayName string `mapstructure:"DisplayName" json:"display_name"`
}

func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.EmailFrom, validation.Required, is.Email),
		validation.Field(&s.SmtpHost, validation.Required, is.Host),
		validation.Field(&s.SmtpPort, validation.Min(1), validation.Max(65535)),
	)
}

// Configured reports whether an SMTP host was provided.
func (s Settings) Configured() bool {
	return s.SmtpHost != ""
}
