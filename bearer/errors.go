package bearer

import (
	stderrors "errors"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

const (
	TextCodeMissingToken     = "bearer_missing_token"
	TextCodeNoValidator      = "bearer_no_validator"
	TextCodeUnknownIssuer    = "bearer_unknown_issuer"
	TextCodeInvalidAudience  = "bearer_invalid_audience"
	TextCodeDiscoveryFailed  = "bearer_discovery_failed"
	TextCodeInsecureMetadata = "bearer_insecure_metadata"
)

// ErrMissingToken means the request carried no bearer token.
var ErrMissingToken = errors.New("missing or malformed bearer token", errors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(errors.CodeUnauthorized)

// ErrNoValidator is returned when a scheme is built without a validator.
var ErrNoValidator = errors.New("bearer scheme requires a token validator", errors.CategoryBadInput).
	WithTextCode(TextCodeNoValidator)

// ErrUnknownIssuer is returned when no validator is registered for a token issuer.
var ErrUnknownIssuer = errors.New("no validator registered for token issuer", errors.CategoryAuth).
	WithTextCode(TextCodeUnknownIssuer).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidAudience is returned when audience validation is on and no
// audience of the token is accepted.
var ErrInvalidAudience = errors.New("token audience is not accepted", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidAudience).
	WithCode(errors.CodeUnauthorized)

// ErrInsecureMetadata is returned when the authority is not served over https
// and plain http metadata was not allowed.
var ErrInsecureMetadata = errors.New("authority metadata address must use https", errors.CategoryBadInput).
	WithTextCode(TextCodeInsecureMetadata)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var expired *oidc.TokenExpiredError
	if stderrors.Is(err, jwt.ErrTokenExpired) || stderrors.As(err, &expired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for tokens that could not be parsed
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, jwt.ErrTokenMalformed) || stderrors.Is(err, ErrMissingToken) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "malformed jwt")
}

// FailureReason classifies a validation error for logs.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case IsTokenExpiredError(err):
		return "expired"
	case IsMalformedError(err):
		return "malformed"
	default:
		return "invalid"
	}
}
