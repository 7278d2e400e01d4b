package account

import (
	"fmt"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeNoAccount           = "account_not_found"
	TextCodeInvalidCredentials  = "account_invalid_credentials"
	TextCodeNotConfirmed        = "account_not_confirmed"
	TextCodeLockedOut           = "account_locked_out"
	TextCodeUserNameTaken       = "account_user_name_taken"
	TextCodeEmailTaken          = "account_email_taken"
	TextCodeConfirmationFailed  = "account_confirmation_failed"
	TextCodeResetFailed         = "account_reset_failed"
	TextCodeInvalidRefreshToken = "account_invalid_refresh_token"
	TextCodeInvalidRequest      = "account_invalid_request"
)

// ErrInvalidRefreshToken is returned for unknown, expired or revoked refresh tokens.
var ErrInvalidRefreshToken = errors.New("Invalid refresh token.", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidRefreshToken).
	WithCode(errors.CodeUnauthorized)

// ErrMissingSigningKey is returned when tokens cannot be signed.
var ErrMissingSigningKey = errors.New("token signing key is required", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidRequest)

func errNoAccount(email string) error {
	return errors.New(fmt.Sprintf("No Accounts Registered with %s.", email), errors.CategoryNotFound).
		WithTextCode(TextCodeNoAccount).
		WithCode(errors.CodeNotFound)
}

func errInvalidCredentials(email string) error {
	return errors.New(fmt.Sprintf("Invalid Credentials for '%s'.", email), errors.CategoryAuth).
		WithTextCode(TextCodeInvalidCredentials).
		WithCode(errors.CodeUnauthorized)
}

func errNotConfirmed(email string) error {
	return errors.New(fmt.Sprintf("Account Not Confirmed for '%s'.", email), errors.CategoryAuth).
		WithTextCode(TextCodeNotConfirmed).
		WithCode(errors.CodeUnauthorized)
}

func errLockedOut(email string) error {
	return errors.New(fmt.Sprintf("Account '%s' is locked out.", email), errors.CategoryAuth).
		WithTextCode(TextCodeLockedOut).
		WithCode(errors.CodeForbidden)
}

func errUserNameTaken(userName string) error {
	return errors.New(fmt.Sprintf("Username '%s' is already taken.", userName), errors.CategoryConflict).
		WithTextCode(TextCodeUserNameTaken).
		WithCode(errors.CodeConflict)
}

func errEmailTaken(email string) error {
	return errors.New(fmt.Sprintf("Email %s is already registered.", email), errors.CategoryConflict).
		WithTextCode(TextCodeEmailTaken).
		WithCode(errors.CodeConflict)
}

func errConfirmationFailed(email string) error {
	return errors.New(fmt.Sprintf("An error occurred while confirming %s.", email), errors.CategoryValidation).
		WithTextCode(TextCodeConfirmationFailed).
		WithCode(errors.CodeBadRequest)
}

func errResetFailed() error {
	return errors.New("Error occured while reseting the password.", errors.CategoryValidation).
		WithTextCode(TextCodeResetFailed).
		WithCode(errors.CodeBadRequest)
}

func errInvalidRequest(err error) error {
	return errors.Wrap(err, errors.CategoryValidation, "invalid request").
		WithTextCode(TextCodeInvalidRequest).
		WithCode(errors.CodeBadRequest)
}

// TextCode returns the text code of an account error, or "".
func TextCode(err error) string {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// StatusCode maps an account error to an HTTP status.
func StatusCode(err error) int {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Code != 0 {
		return richErr.Code
	}
	return 500
}

// Message returns the user facing message of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Message
	}
	return err.Error()
}
