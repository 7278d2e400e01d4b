package authz

import (
	"context"
	"fmt"
	"strings"
)

// Requirement is one condition of a policy.
type Requirement interface {
	Name() string
	Evaluate(ctx context.Context, p *Principal) (bool, error)
}

// RequirementFunc adapts a function into a Requirement.
type RequirementFunc struct {
	Label string
	Fn    func(ctx context.Context, p *Principal) (bool, error)
}

func (r RequirementFunc) Name() string {
	if r.Label == "" {
		return "func"
	}
	return r.Label
}

func (r RequirementFunc) Evaluate(ctx context.Context, p *Principal) (bool, error) {
	if r.Fn == nil {
		return false, nil
	}
	return r.Fn(ctx, p)
}

// AuthenticatedUser requires an authenticated principal.
type AuthenticatedUser struct{}

func (AuthenticatedUser) Name() string { return "authenticated_user" }

func (AuthenticatedUser) Evaluate(_ context.Context, p *Principal) (bool, error) {
	return p != nil && p.Authenticated, nil
}

// Claim requires the principal to carry a claim of Type. When Values is
// not empty one of them must match a claim value exactly. With
// SpaceDelimited set each claim value is first split on whitespace, which
// suits OAuth "scope" strings such as "openid scope1".
type Claim struct {
	Type           string
	Values         []string
	SpaceDelimited bool
}

func (c Claim) Name() string {
	op := "="
	if c.SpaceDelimited {
		op = "~="
	}
	if len(c.Values) == 0 {
		return "claim:" + c.Type
	}
	return fmt.Sprintf("claim:%s%s%s", c.Type, op, strings.Join(c.Values, "|"))
}

func (c Claim) Evaluate(_ context.Context, p *Principal) (bool, error) {
	if !c.SpaceDelimited {
		return p.HasClaim(c.Type, c.Values...), nil
	}

	var got []string
	for _, v := range p.Values(c.Type) {
		got = append(got, strings.Fields(v)...)
	}
	if len(got) == 0 {
		return false, nil
	}
	if len(c.Values) == 0 {
		return true, nil
	}
	for _, g := range got {
		for _, v := range c.Values {
			if g == v {
				return true, nil
			}
		}
	}
	return false, nil
}

// RequireClaim is a shorthand for Claim{Type: claimType, Values: values}.
func RequireClaim(claimType string, values ...string) Claim {
	return Claim{Type: claimType, Values: values}
}

// Delimited returns a copy of c that splits claim values on whitespace.
func (c Claim) Delimited() Claim {
	c.SpaceDelimited = true
	return c
}
