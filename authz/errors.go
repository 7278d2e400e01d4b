package authz

import "github.com/goliatone/go-errors"

const (
	TextCodePolicyNotFound    = "authz_policy_not_found"
	TextCodeInvalidPolicy     = "authz_invalid_policy"
	TextCodeRequirementFailed = "authz_requirement_failed"
)

// ErrPolicyNotFound is returned when a policy name is not registered.
var ErrPolicyNotFound = errors.New("authorization policy not found", errors.CategoryNotFound).
	WithTextCode(TextCodePolicyNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidPolicy is returned when a policy definition cannot be used.
var ErrInvalidPolicy = errors.New("invalid authorization policy", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidPolicy).
	WithCode(errors.CodeBadRequest)
