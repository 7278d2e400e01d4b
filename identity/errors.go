package identity

import "github.com/goliatone/go-errors"

const (
	TextCodeUnsupportedDSN  = "identity_unsupported_dsn"
	TextCodeMigrationFailed = "identity_migration_failed"
	TextCodeInvalidToken    = "identity_invalid_token"
	TextCodeDuplicateUser   = "identity_duplicate_user"
)

// ErrUnsupportedDSN is returned when the connection string names no supported engine.
var ErrUnsupportedDSN = errors.New("unsupported identity connection string", errors.CategoryBadInput).
	WithTextCode(TextCodeUnsupportedDSN)

// ErrInvalidToken is returned when a user token fails verification.
var ErrInvalidToken = errors.New("invalid token", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeBadRequest)

// ErrDuplicateUser is returned when the user name or email is taken.
var ErrDuplicateUser = errors.New("user already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateUser).
	WithCode(errors.CodeConflict)
