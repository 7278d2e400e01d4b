package authz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-auth-bootstrap/authz"
)

func TestAssertion(t *testing.T) {
	a, err := authz.NewAssertion(`principal.authenticated && "scope1" in principal.claims.scope`)
	require.NoError(t, err)

	ok, err := a.Evaluate(context.Background(), authz.NewPrincipal(map[string]any{"scope": []any{"scope1", "scope2"}}))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Evaluate(context.Background(), authz.NewPrincipal(map[string]any{"scope": "scope2"}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAssertion_CompileError(t *testing.T) {
	_, err := authz.NewAssertion(`principal.authenticated &&`)
	assert.Error(t, err)
}

const scopeModule = `package authz

default allow = false

allow {
	input.authenticated
	input.claims.scope[_] == "scope1"
}
`

func TestRego(t *testing.T) {
	ctx := context.Background()
	r, err := authz.NewRego(ctx, "api_scope", "", scopeModule)
	require.NoError(t, err)
	assert.Equal(t, "rego:api_scope", r.Name())

	ok, err := r.Evaluate(ctx, authz.NewPrincipal(map[string]any{"scope": []any{"openid", "scope1"}}))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Evaluate(ctx, authz.NewPrincipal(map[string]any{"scope": "openid"}))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Evaluate(ctx, authz.Anonymous())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRego_InvalidModule(t *testing.T) {
	_, err := authz.NewRego(context.Background(), "broken", "", "package authz\nallow {")
	assert.Error(t, err)
}
