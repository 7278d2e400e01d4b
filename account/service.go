// Package account implements the local account flows: sign in, sign up,
// email confirmation, password reset and refresh token rotation.
package account

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-auth-bootstrap/email"
	"github.com/goliatone/go-auth-bootstrap/identity"
	"github.com/goliatone/go-auth-bootstrap/logging"
)

const (
	ConfirmEmailRoute  = "api/account/confirm-email/"
	ResetPasswordRoute = "api/account/reset-password/"
)

// Service is the account service registered in the container.
type Service interface {
	Authenticate(ctx context.Context, req AuthenticationRequest, ipAddress string) (Response[AuthenticationResponse], error)
	Register(ctx context.Context, req RegisterRequest, origin string) (Response[string], error)
	ConfirmEmail(ctx context.Context, userID, code string) (Response[string], error)
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest, origin string) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) (Response[string], error)
	RefreshToken(ctx context.Context, token, ipAddress string) (Response[AuthenticationResponse], error)
}

// Manager implements Service on top of the identity store.
type Manager struct {
	store      *identity.Store
	mail       email.Service
	issuer     *TokenIssuer
	logger     logging.Logger
	refreshTTL time.Duration
	now        func() time.Time
}

var _ Service = (*Manager)(nil)

type ManagerOption func(*Manager)

func WithManagerLogger(l logging.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logging.OrDefault(l)
	}
}

func WithRefreshTokenLifetime(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.refreshTTL = d
		}
	}
}

func NewManager(store *identity.Store, mail email.Service, issuer *TokenIssuer, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		mail:       mail,
		issuer:     issuer,
		logger:     logging.Default(),
		refreshTTL: DefaultRefreshTokenLifetime,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.mail == nil {
		m.mail = email.LogService{Logger: m.logger}
	}
	return m
}

func (m *Manager) Authenticate(ctx context.Context, req AuthenticationRequest, ipAddress string) (Response[AuthenticationResponse], error) {
	var out Response[AuthenticationResponse]
	if err := req.Validate(); err != nil {
		return out, errInvalidRequest(err)
	}

	users := m.store.Users()
	user, err := users.FindByEmail(ctx, req.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return out, errNoAccount(req.Email)
		}
		return out, errors.Wrap(err, errors.CategoryInternal, "failed to load user")
	}

	if user.IsLockedOut(m.now()) {
		return out, errLockedOut(req.Email)
	}

	if err := m.store.Hasher().ComparePasswordAndHash(req.Password, user.PasswordHash); err != nil {
		// counted outside of any transaction so the failure sticks
		if rerr := users.RecordFailedAccessTx(ctx, m.store.DB(), user, m.store.Lockout()); rerr != nil {
			m.logger.Error("failed to record failed access for %s: %s", user.ID, rerr)
		}
		return out, errInvalidCredentials(req.Email)
	}

	if !user.EmailConfirmed {
		return out, errNotConfirmed(req.Email)
	}

	var data AuthenticationResponse
	err = m.store.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if user.AccessFailedCount > 0 || user.LockoutEnd != nil {
			if err := users.ResetAccessFailedTx(ctx, tx, user.ID); err != nil {
				return err
			}
		}
		data, err = m.issueTx(ctx, tx, user, ipAddress)
		return err
	})
	if err != nil {
		return out, wrapTx(err, "authentication failed")
	}

	m.logger.Info("user %s authenticated from %s", user.UserName, ipAddress)
	return Ok(data, fmt.Sprintf("Authenticated %s", user.UserName)), nil
}

func (m *Manager) Register(ctx context.Context, req RegisterRequest, origin string) (Response[string], error) {
	var out Response[string]
	if err := req.Validate(); err != nil {
		return out, errInvalidRequest(err)
	}

	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return out, errInvalidRequest(err)
	}

	user := &identity.User{
		UserName:    userNameFor(req.UserName, req.Email),
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: phone,
	}
	if req.UseHashid {
		if id, err := hashid.NewUUID(req.Email); err == nil {
			user.ID = id
		}
	}

	var code string
	err = m.store.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		users := m.store.Users()

		if _, err := users.FindByUserNameTx(ctx, tx, user.UserName); err == nil {
			return errUserNameTaken(user.UserName)
		} else if !repository.IsRecordNotFound(err) {
			return err
		}

		if _, err := users.FindByEmailTx(ctx, tx, user.Email); err == nil {
			return errEmailTaken(user.Email)
		} else if !repository.IsRecordNotFound(err) {
			return err
		}

		hash, err := m.store.Hasher().HashPassword(req.Password)
		if err != nil {
			return errors.Wrap(err, errors.CategoryValidation, "invalid password provided")
		}
		user.PasswordHash = hash

		if user, err = users.RegisterTx(ctx, tx, user); err != nil {
			return errors.Wrap(err, errors.CategoryConflict, "could not create user")
		}

		if err := m.store.Roles().AddUserTx(ctx, tx, user.ID, identity.DefaultRole); err != nil {
			return err
		}

		code, err = m.store.Tokens().Generate(identity.PurposeEmailConfirmation, user)
		return err
	})
	if err != nil {
		return out, wrapTx(err, "user registration transaction failed")
	}

	uri := VerificationURI(origin, user.ID.String(), code)
	if err := m.mail.Send(ctx, email.MailRequest{
		To:      user.Email,
		Subject: "Confirm Registration",
		Body:    fmt.Sprintf("Please confirm your account by <a href='%s'>clicking here</a>.", uri),
	}); err != nil {
		m.logger.Error("failed to send confirmation mail to %s: %s", user.Email, err)
	}

	m.logger.Info("user %s registered", user.ID)
	return Ok(user.ID.String(), fmt.Sprintf("User Registered. Please confirm your account by visiting this URL %s", uri)), nil
}

func (m *Manager) ConfirmEmail(ctx context.Context, userID, code string) (Response[string], error) {
	var out Response[string]

	id, err := uuid.Parse(userID)
	if err != nil {
		return out, errInvalidRequest(err)
	}

	user, err := m.store.Users().FindByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return out, errNoAccount(userID)
		}
		return out, errors.Wrap(err, errors.CategoryInternal, "failed to load user")
	}

	if err := m.store.Tokens().Verify(identity.PurposeEmailConfirmation, user, code); err != nil {
		m.logger.Warn("invalid confirmation code for %s: %s", user.ID, err)
		return out, errConfirmationFailed(user.Email)
	}

	err = m.store.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return m.store.Users().ConfirmEmailTx(ctx, tx, user.ID)
	})
	if err != nil {
		return out, wrapTx(err, "email confirmation failed")
	}

	return Ok(user.ID.String(), fmt.Sprintf(
		"Account Confirmed for %s. You can now use the /api/Account/authenticate endpoint.", user.Email,
	)), nil
}

// ForgotPassword mails a reset token. Unknown addresses are ignored so the
// endpoint does not reveal which accounts exist.
func (m *Manager) ForgotPassword(ctx context.Context, req ForgotPasswordRequest, origin string) error {
	if err := req.Validate(); err != nil {
		return errInvalidRequest(err)
	}

	user, err := m.store.Users().FindByEmail(ctx, req.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			m.logger.Debug("password reset requested for unknown email %s", req.Email)
			return nil
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to load user")
	}

	code, err := m.store.Tokens().Generate(identity.PurposePasswordReset, user)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to generate reset token")
	}

	endpoint := joinOrigin(origin, ResetPasswordRoute)
	err = m.mail.Send(ctx, email.MailRequest{
		To:      user.Email,
		Subject: "Reset Password",
		Body:    fmt.Sprintf("You reset token is - %s. Submit it to %s", code, endpoint),
	})
	if err != nil {
		// the caller always gets the same answer
		m.logger.Error("failed to send password reset email to %s: %s", user.Email, err)
	}
	return nil
}

func (m *Manager) ResetPassword(ctx context.Context, req ResetPasswordRequest) (Response[string], error) {
	var out Response[string]
	if err := req.Validate(); err != nil {
		return out, errInvalidRequest(err)
	}

	user, err := m.store.Users().FindByEmail(ctx, req.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return out, errNoAccount(req.Email)
		}
		return out, errors.Wrap(err, errors.CategoryInternal, "failed to load user")
	}

	if err := m.store.Tokens().Verify(identity.PurposePasswordReset, user, req.Token); err != nil {
		m.logger.Warn("invalid reset token for %s: %s", user.ID, err)
		return out, errResetFailed()
	}

	hash, err := m.store.Hasher().HashPassword(req.Password)
	if err != nil {
		return out, errors.Wrap(err, errors.CategoryValidation, "invalid password provided")
	}

	err = m.store.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := m.store.Users().SetPasswordTx(ctx, tx, user.ID, hash)
		return err
	})
	if err != nil {
		return out, wrapTx(err, "password reset failed")
	}

	return Ok(req.Email, "Password Resetted."), nil
}

// RefreshToken rotates an active refresh token and issues a new access token.
func (m *Manager) RefreshToken(ctx context.Context, token, ipAddress string) (Response[AuthenticationResponse], error) {
	var out Response[AuthenticationResponse]
	if strings.TrimSpace(token) == "" {
		return out, ErrInvalidRefreshToken
	}

	var data AuthenticationResponse
	err := m.store.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := m.store.RefreshTokens().FindByTokenTx(ctx, tx, token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidRefreshToken
			}
			return err
		}
		if !current.IsActive(m.now()) {
			return ErrInvalidRefreshToken
		}

		user, err := m.store.Users().FindByIDTx(ctx, tx, current.UserID)
		if err != nil {
			return err
		}

		data, err = m.issueTx(ctx, tx, user, ipAddress)
		if err != nil {
			return err
		}
		return m.store.RefreshTokens().RevokeTx(ctx, tx, current, ipAddress, data.RefreshToken)
	})
	if err != nil {
		return out, wrapTx(err, "refresh token rotation failed")
	}

	return Ok(data, "Token refreshed"), nil
}

func (m *Manager) issueTx(ctx context.Context, tx bun.IDB, user *identity.User, ipAddress string) (AuthenticationResponse, error) {
	roles, err := m.store.Roles().ForUserTx(ctx, tx, user.ID)
	if err != nil {
		return AuthenticationResponse{}, err
	}

	jwToken, expires, err := m.issuer.Issue(user, roles, ipAddress)
	if err != nil {
		return AuthenticationResponse{}, err
	}

	refresh, err := m.store.RefreshTokens().IssueTx(ctx, tx, user.ID, ipAddress, m.refreshTTL)
	if err != nil {
		return AuthenticationResponse{}, err
	}

	return AuthenticationResponse{
		ID:           user.ID.String(),
		UserName:     user.UserName,
		Email:        user.Email,
		Roles:        roles,
		IsVerified:   user.EmailConfirmed,
		JWToken:      jwToken,
		ExpiresAt:    expires,
		RefreshToken: refresh.Token,
	}, nil
}

// VerificationURI builds the confirmation link mailed after registration.
func VerificationURI(origin, userID, code string) string {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("code", code)
	return joinOrigin(origin, ConfirmEmailRoute) + "?" + q.Encode()
}

func joinOrigin(origin, route string) string {
	return strings.TrimRight(origin, "/") + "/" + route
}

func wrapTx(err error, msg string) error {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}
	return errors.Wrap(err, errors.CategoryInternal, msg)
}
