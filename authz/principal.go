package authz

import (
	"fmt"
)

// Principal is the authenticated caller as seen by policy evaluation.
// Claims are multi-valued only when the token carries a JSON array. String
// claims are kept verbatim, see Claim.SpaceDelimited for scope strings.
type Principal struct {
	Subject       string
	Issuer        string
	Authenticated bool
	Claims        map[string][]string
	Raw           map[string]any
}

// NewPrincipal builds an authenticated principal from decoded token claims.
func NewPrincipal(raw map[string]any) *Principal {
	p := &Principal{
		Authenticated: true,
		Claims:        make(map[string][]string, len(raw)),
		Raw:           raw,
	}

	for name, value := range raw {
		values := flattenClaim(value)
		if len(values) == 0 {
			continue
		}
		p.Claims[name] = values
	}

	p.Subject = p.First("sub")
	p.Issuer = p.First("iss")

	return p
}

// Anonymous returns an unauthenticated principal with no claims.
func Anonymous() *Principal {
	return &Principal{
		Claims: map[string][]string{},
		Raw:    map[string]any{},
	}
}

// HasClaim reports whether the claim type carries any of the given
// values. With no values it only checks that the claim is present.
// Claim types are matched case sensitively, values exactly.
func (p *Principal) HasClaim(claimType string, values ...string) bool {
	if p == nil {
		return false
	}
	got, ok := p.Claims[claimType]
	if !ok || len(got) == 0 {
		return false
	}
	if len(values) == 0 {
		return true
	}
	for _, g := range got {
		for _, v := range values {
			if g == v {
				return true
			}
		}
	}
	return false
}

// First returns the first value of a claim or the empty string.
func (p *Principal) First(claimType string) string {
	if p == nil {
		return ""
	}
	if values := p.Claims[claimType]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// Values returns every value recorded for a claim.
func (p *Principal) Values(claimType string) []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.Claims[claimType]...)
}

// Input renders the principal as a plain document for expression and
// rego evaluation.
func (p *Principal) Input() map[string]any {
	if p == nil {
		p = Anonymous()
	}
	claims := make(map[string]any, len(p.Claims))
	for k, v := range p.Claims {
		values := make([]any, len(v))
		for i := range v {
			values[i] = v[i]
		}
		claims[k] = values
	}
	return map[string]any{
		"subject":       p.Subject,
		"issuer":        p.Issuer,
		"authenticated": p.Authenticated,
		"claims":        claims,
	}
}

func flattenClaim(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, flattenClaim(item)...)
		}
		return out
	case float64:
		if v == float64(int64(v)) {
			return []string{fmt.Sprintf("%d", int64(v))}
		}
		return []string{fmt.Sprintf("%g", v)}
	case bool:
		if v {
			return []string{"true"}
		}
		return []string{"false"}
	case map[string]any:
		// nested objects are not claim values
		return nil
	default:
		return []string{fmt.Sprint(v)}
	}
}
