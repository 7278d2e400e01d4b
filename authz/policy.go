package authz

import (
	"context"
	"sort"
	"sync"

	"github.com/goliatone/go-errors"
)

// ApiScopePolicy is the policy protecting scoped API resources.
const ApiScopePolicy = "ApiScope"

// Policy is a named conjunction of requirements.
type Policy struct {
	Name         string
	Requirements []Requirement
}

// Decision is the outcome of evaluating a policy.
type Decision struct {
	Policy  string
	Allowed bool
	// Failed names the first requirement that did not hold.
	Failed string
}

// NewPolicy builds a policy from its requirements.
func NewPolicy(name string, requirements ...Requirement) Policy {
	return Policy{Name: name, Requirements: requirements}
}

// ApiScope requires an authenticated principal with scope "scope1". The
// scope claim value must be exactly "scope1", or a JSON array holding it.
func ApiScope() Policy {
	return NewPolicy(ApiScopePolicy,
		AuthenticatedUser{},
		RequireClaim("scope", "scope1"),
	)
}

// DelimitedApiScope is ApiScope that also accepts space delimited scope
// strings such as "openid scope1".
func DelimitedApiScope() Policy {
	return NewPolicy(ApiScopePolicy,
		AuthenticatedUser{},
		RequireClaim("scope", "scope1").Delimited(),
	)
}

// Evaluate checks requirements in order and stops at the first failure.
// A policy with no requirements allows every principal.
func (p Policy) Evaluate(ctx context.Context, principal *Principal) (Decision, error) {
	d := Decision{Policy: p.Name}
	for _, req := range p.Requirements {
		if err := ctx.Err(); err != nil {
			return d, err
		}
		ok, err := req.Evaluate(ctx, principal)
		if err != nil {
			d.Failed = req.Name()
			return d, errors.Wrap(err, errors.CategoryAuthz, "policy requirement evaluation failed").
				WithTextCode(TextCodeRequirementFailed).
				WithMetadata(map[string]any{
					"policy":      p.Name,
					"requirement": req.Name(),
				})
		}
		if !ok {
			d.Failed = req.Name()
			return d, nil
		}
	}
	d.Allowed = true
	return d, nil
}

func (p Policy) validate() error {
	if p.Name == "" {
		return ErrInvalidPolicy
	}
	for _, r := range p.Requirements {
		if r == nil {
			return ErrInvalidPolicy
		}
	}
	return nil
}

// Table holds the registered policies by name. Registering a name twice
// replaces the previous definition.
type Table struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

func NewTable(policies ...Policy) *Table {
	t := &Table{policies: make(map[string]Policy)}
	for _, p := range policies {
		_ = t.Add(p)
	}
	return t
}

func (t *Table) Add(p Policy) error {
	if err := p.validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.policies[p.Name] = p
	return nil
}

func (t *Table) Get(name string) (Policy, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.policies[name]
	return p, ok
}

func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.policies))
	for name := range t.policies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.policies)
}

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := &Table{policies: make(map[string]Policy, len(t.policies))}
	for k, v := range t.policies {
		reqs := append([]Requirement(nil), v.Requirements...)
		out.policies[k] = Policy{Name: v.Name, Requirements: reqs}
	}
	return out
}

// Authorize evaluates the named policy against the principal.
func (t *Table) Authorize(ctx context.Context, name string, p *Principal) (Decision, error) {
	policy, ok := t.Get(name)
	if !ok {
		return Decision{Policy: name}, ErrPolicyNotFound
	}
	return policy.Evaluate(ctx, p)
}
