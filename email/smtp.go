package email

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/wneessen/go-mail"

	"github.com/goliatone/go-auth-bootstrap/logging"
)

// Sender delivers prepared messages, *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPService sends mail over SMTP.
type SMTPService struct {
	settings  Settings
	logger    logging.Logger
	newSender func(Settings) (Sender, error)
}

type SMTPOption func(*SMTPService)

func WithLogger(l logging.Logger) SMTPOption {
	return func(s *SMTPService) {
		s.logger = logging.OrDefault(l)
	}
}

// WithSender replaces the SMTP client, mostly for tests.
func WithSender(sender Sender) SMTPOption {
	return func(s *SMTPService) {
		s.newSender = func(Settings) (Sender, error) { return sender, nil }
	}
}

func NewSMTPService(settings Settings, opts ...SMTPOption) *SMTPService {
	s := &SMTPService{
		settings:  settings,
		logger:    logging.Default(),
		newSender: newClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func newClient(settings Settings) (Sender, error) {
	port := settings.SmtpPort
	if port == 0 {
		port = mail.DefaultPortTLS
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if settings.SmtpUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(settings.SmtpUser),
			mail.WithPassword(settings.SmtpPass),
		)
	}
	return mail.NewClient(settings.SmtpHost, opts...)
}

func (s *SMTPService) Send(ctx context.Context, req MailRequest) error {
	if err := req.Validate(); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid mail request").
			WithCode(errors.CodeBadRequest)
	}

	msg, err := s.buildMessage(req)
	if err != nil {
		return err
	}

	sender, err := s.newSender(s.settings)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create smtp client")
	}

	if err := sender.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Error("failed to send mail to %s: %s", req.To, err)
		return errors.Wrap(err, errors.CategoryOperation, "failed to send mail").
			WithMetadata(map[string]any{"to": req.To, "subject": req.Subject})
	}

	s.logger.Info("mail sent to %s: %s", req.To, req.Subject)
	return nil
}

func (s *SMTPService) buildMessage(req MailRequest) (*mail.Msg, error) {
	msg := mail.NewMsg()

	from := req.From
	if from == "" {
		from = s.settings.EmailFrom
	}
	if err := msg.FromFormat(s.settings.DisplayName, from); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "invalid sender address")
	}
	if err := msg.To(req.To); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "invalid recipient address")
	}
	msg.Subject(req.Subject)
	msg.SetBodyString(mail.TypeTextHTML, req.Body)
	return msg, nil
}

// LogService writes mail to the logger instead of sending it. It is used
// when no SMTP host is configured.
type LogService struct {
	Logger logging.Logger
}

func (s LogService) Send(ctx context.Context, req MailRequest) error {
	if err := req.Validate(); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid mail request").
			WithCode(errors.CodeBadRequest)
	}
	logger := logging.OrDefault(s.Logger)
	logger.Info("mail to %s (%s) not sent, no SMTP host configured", req.To, req.Subject)
	// bodies carry confirmation codes and reset tokens
	logger.Debug("mail body for %s: %s", req.To, req.Body)
	return nil
}

// New returns the SMTP service, or a LogService when no host is set.
func New(settings Settings, logger logging.Logger) Service {
	if !settings.Configured() {
		return LogService{Logger: logger}
	}
	return NewSMTPService(settings, WithLogger(logger))
}
