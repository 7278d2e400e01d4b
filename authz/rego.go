package authz

import (
	"context"
	"fmt"

	"github.com/goliatone/go-errors"
	"github.com/open-policy-agent/opa/rego"
)

// DefaultRegoQuery is evaluated when a rego requirement names no query.
const DefaultRegoQuery = "data.authz.allow"

// Rego is a requirement backed by an OPA policy module. The principal
// document is passed as input and the query must produce a boolean.
type Rego struct {
	Label string
	Query string
	query rego.PreparedEvalQuery
}

// NewRego prepares the module for repeated evaluation.
func NewRego(ctx context.Context, label, query, module string) (*Rego, error) {
	if query == "" {
		query = DefaultRegoQuery
	}
	r := rego.New(
		rego.Query(query),
		rego.Module(label+".rego", module),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid rego policy").
			WithTextCode(TextCodeInvalidPolicy).
			WithMetadata(map[string]any{"policy": label, "query": query})
	}
	return &Rego{Label: label, Query: query, query: prepared}, nil
}

func (r *Rego) Name() string { return "rego:" + r.Label }

func (r *Rego) Evaluate(ctx context.Context, p *Principal) (bool, error) {
	results, err := r.query.Eval(ctx, rego.EvalInput(p.Input()))
	if err != nil {
		return false, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// undefined result means the rule did not hold
		return false, nil
	}
	switch v := results[0].Expressions[0].Value.(type) {
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("rego query %s returned %T, expected bool", r.Query, v)
	}
}
