package authz

import (
	"context"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/goliatone/go-errors"
)

// Assertion is a requirement written as a boolean expression. The
// expression sees the principal document as `principal` with the fields
// subject, issuer, authenticated and claims (claim type to values).
//
//	"scope1" in principal.claims.scope
type Assertion struct {
	Source  string
	program *vm.Program
}

// NewAssertion compiles the expression once so evaluation is cheap.
func NewAssertion(source string) (*Assertion, error) {
	program, err := expr.Compile(source, expr.AsBool())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid policy assertion").
			WithTextCode(TextCodeInvalidPolicy).
			WithMetadata(map[string]any{"expression": source})
	}
	return &Assertion{Source: source, program: program}, nil
}

func (a *Assertion) Name() string { return "assert:" + a.Source }

func (a *Assertion) Evaluate(_ context.Context, p *Principal) (bool, error) {
	out, err := expr.Run(a.program, map[string]any{
		"principal": p.Input(),
	})
	if err != nil {
		return false, err
	}
	ok, _ := out.(bool)
	return ok, nil
}
