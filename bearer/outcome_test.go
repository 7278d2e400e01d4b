package bearer_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-auth-bootstrap/authz"
	"github.com/goliatone/go-auth-bootstrap/bearer"
)

func TestDefaultEvents(t *testing.T) {
	ctx := context.Background()
	events := bearer.DefaultEvents(false)

	t.Run("authentication failed writes the error text", func(t *testing.T) {
		res, handled := events.Respond(ctx, bearer.Failed(stderrors.New("IDX10223: Lifetime validation failed")))
		assert.True(t, handled)
		assert.Equal(t, 500, res.Status)
		assert.Equal(t, "text/plain", res.ContentType)
		assert.Equal(t, "IDX10223: Lifetime validation failed", string(res.Body))
	})

	t.Run("challenge", func(t *testing.T) {
		res, handled := events.Respond(ctx, bearer.Unauthenticated(bearer.ErrMissingToken))
		assert.True(t, handled)
		assert.Equal(t, 401, res.Status)
		assert.Equal(t, "application/json", res.ContentType)
		assert.JSONEq(t, `{"message":"You are not Authorized"}`, string(res.Body))
	})

	t.Run("forbidden", func(t *testing.T) {
		res, handled := events.Respond(ctx, bearer.Forbidden(authz.Anonymous(), authz.Decision{}))
		assert.True(t, handled)
		assert.Equal(t, 403, res.Status)
		assert.Equal(t, "application/json", res.ContentType)
		assert.Equal(t, `{"message":"You are not authorized to access this resource"}`, string(res.Body))
	})

	t.Run("success writes nothing", func(t *testing.T) {
		_, handled := events.Respond(ctx, bearer.Success(authz.NewPrincipal(map[string]any{"sub": "a"})))
		assert.False(t, handled)
	})
}

func TestDefaultEvents_HideDetail(t *testing.T) {
	res, _ := bearer.DefaultEvents(true).Respond(context.Background(), bearer.Failed(stderrors.New("signature invalid")))
	assert.Equal(t, 500, res.Status)
	assert.Equal(t, bearer.MessageAuthenticationFailed, string(res.Body))
}

func TestTokenFromHeader(t *testing.T) {
	tests := []struct {
		name  string
		value string
		token string
		ok    bool
	}{
		{name: "bearer", value: "Bearer abc.def.ghi", token: "abc.def.ghi", ok: true},
		{name: "lowercase scheme", value: "bearer abc", token: "abc", ok: true},
		{name: "extra spaces", value: "  Bearer   abc  ", token: "abc", ok: true},
		{name: "empty", value: "", ok: false},
		{name: "scheme only", value: "Bearer", ok: false},
		{name: "scheme and space", value: "Bearer ", ok: false},
		{name: "basic", value: "Basic dXNlcjpwYXNz", ok: false},
		{name: "no separator", value: "Bearerabc", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, ok := bearer.TokenFromHeader(tt.value, "Bearer")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "success", bearer.KindSuccess.String())
	assert.Equal(t, "unauthenticated", bearer.KindUnauthenticated.String())
	assert.Equal(t, "forbidden", bearer.KindForbidden.String())
	assert.Equal(t, "failed", bearer.KindFailed.String())
}
