package bootstrap

import (
	stderrors "errors"

	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-bootstrap/registry"
)

const (
	TextCodeMissingConnectionString = "bootstrap_missing_connection_string"
	TextCodeInvalidSettings         = "bootstrap_invalid_settings"
	TextCodeIdentityNotConfigured   = "bootstrap_identity_not_configured"
	TextCodeBuildFailed             = "bootstrap_build_failed"
	TextCodeBuilderSealed           = "bootstrap_builder_sealed"
)

// ErrMissingConnectionString is returned when the identity connection
// string is not configured.
var ErrMissingConnectionString = errors.New("connection string IdentityConnection is not configured", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingConnectionString)

// ErrInvalidSettings is returned when a settings section fails validation.
var ErrInvalidSettings = errors.New("invalid settings", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidSettings)

// ErrIdentityNotConfigured is returned by Build when AddIdentityService was
// never called.
var ErrIdentityNotConfigured = errors.New("identity service was not added", errors.CategoryBadInput).
	WithTextCode(TextCodeIdentityNotConfigured)

// ErrBuilderSealed is recorded when a builder is used after Build.
var ErrBuilderSealed = errors.New("builder already built", errors.CategoryConflict).
	WithTextCode(TextCodeBuilderSealed)

// ErrServiceNotRegistered is returned when resolving an unknown service.
var ErrServiceNotRegistered = registry.ErrServiceNotRegistered

// invalidSettings reports a section that failed validation. The result
// matches ErrInvalidSettings with errors.Is and keeps cause in its chain.
func invalidSettings(section string, cause error) error {
	err := errors.New("invalid "+section, errors.CategoryValidation).
		WithTextCode(TextCodeInvalidSettings).
		WithMetadata(map[string]any{"section": section})
	err.Source = stderrors.Join(ErrInvalidSettings, cause)
	return err
}
