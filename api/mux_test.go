package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	bootstrap "github.com/goliatone/go-auth-bootstrap"
	"github.com/goliatone/go-auth-bootstrap/account"
	"github.com/goliatone/go-auth-bootstrap/api"
	"github.com/goliatone/go-auth-bootstrap/authz"
	"github.com/goliatone/go-auth-bootstrap/identity"
	"github.com/goliatone/go-auth-bootstrap/logging"
)

func newBundle(t *testing.T) *bootstrap.Bundle {
	t.Helper()
	cfg := bootstrap.SourceFromMap(map[string]any{
		"ConnectionStrings:IdentityConnection": ":memory:",
		"JWTSettings:Authority":                "https://localhost:5001",
		"JWTSettings:Key":                      "api-signing-key-0123456789abcdef",
		"JWTSettings:Issuer":                   "https://accounts.test",
		"JWTSettings:Scopes":                   []string{"scope1"},
	})

	bundle, err := bootstrap.NewBuilder(
		bootstrap.WithLogger(logging.Nop()),
		bootstrap.WithAutoMigrate(true),
		bootstrap.WithStoreOptions(identity.WithPasswordHasher(identity.PasswordHasher{Cost: bcrypt.MinCost})),
	).
		AddServiceLayer().
		AddIdentityService(context.Background(), cfg).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = bundle.Close() })
	return bundle
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	bundle := newBundle(t)
	c := api.NewController(bundle.Mediator, api.WithLogger(logging.Nop()))
	srv := httptest.NewServer(api.NewMux(c, bundle.Authorize, authz.ApiScopePolicy))
	t.Cleanup(srv.Close)
	return srv
}

type envelope struct {
	Succeeded bool            `json:"succeeded"`
	Message   string          `json:"message"`
	Errors    []string        `json:"errors"`
	Data      json.RawMessage `json:"data"`
}

func do(t *testing.T, method, target, token string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if s, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(s))
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var out envelope
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

func register(t *testing.T, base string) *url.URL {
	t.Helper()
	status, out := do(t, http.MethodPost, base+api.RouteRegister, "", account.RegisterRequest{
		FirstName:       "Alice",
		LastName:        "Liddell",
		Email:           "alice@example.com",
		UserName:        "alice.liddell",
		Password:        "Pa$$w0rd!",
		ConfirmPassword: "Pa$$w0rd!",
	})
	require.Equal(t, http.StatusOK, status, out.Message)
	require.True(t, out.Succeeded)

	link, err := url.Parse(out.Message[strings.Index(out.Message, "https://"):])
	require.NoError(t, err)
	return link
}

func TestMux_AccountFlow(t *testing.T) {
	srv := newServer(t)
	link := register(t, srv.URL)
	assert.Equal(t, api.RouteConfirmEmail, link.Path)

	creds := account.AuthenticationRequest{Email: "alice@example.com", Password: "Pa$$w0rd!"}

	status, out := do(t, http.MethodPost, srv.URL+api.RouteAuthenticate, "", creds)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, out.Succeeded)
	assert.Equal(t, "Account Not Confirmed for 'alice@example.com'.", out.Message)
	assert.Equal(t, []string{account.TextCodeNotConfirmed}, out.Errors)

	status, out = do(t, http.MethodGet, srv.URL+link.Path+"?"+link.RawQuery, "", "")
	require.Equal(t, http.StatusOK, status, out.Message)
	assert.Contains(t, out.Message, "Account Confirmed for alice@example.com")

	status, out = do(t, http.MethodPost, srv.URL+api.RouteAuthenticate, "", creds)
	require.Equal(t, http.StatusOK, status, out.Message)

	var auth account.AuthenticationResponse
	require.NoError(t, json.Unmarshal(out.Data, &auth))
	require.NotEmpty(t, auth.JWToken)
	require.NotEmpty(t, auth.RefreshToken)

	t.Run("identity requires a token", func(t *testing.T) {
		status, _ := do(t, http.MethodGet, srv.URL+api.RouteIdentity, "", "")
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("identity with a local token", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+api.RouteIdentity, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+auth.JWToken)
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()

		var id api.IdentityResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&id))
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "alice.liddell", id.Subject)
		assert.Equal(t, "https://accounts.test", id.Issuer)
		assert.Contains(t, id.Claims["scope"], "scope1")
	})

	t.Run("refresh token rotates", func(t *testing.T) {
		status, out := do(t, http.MethodPost, srv.URL+api.RouteRefreshToken, "", api.RefreshTokenRequest{Token: auth.RefreshToken})
		require.Equal(t, http.StatusOK, status, out.Message)

		var refreshed account.AuthenticationResponse
		require.NoError(t, json.Unmarshal(out.Data, &refreshed))
		assert.NotEqual(t, auth.RefreshToken, refreshed.RefreshToken)

		status, out = do(t, http.MethodPost, srv.URL+api.RouteRefreshToken, "", api.RefreshTokenRequest{Token: auth.RefreshToken})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, []string{account.TextCodeInvalidRefreshToken}, out.Errors)
	})
}

func TestMux_RequestErrors(t *testing.T) {
	srv := newServer(t)

	t.Run("malformed body", func(t *testing.T) {
		status, out := do(t, http.MethodPost, srv.URL+api.RouteAuthenticate, "", "{not json")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Failed to parse request", out.Message)
	})

	t.Run("unknown account", func(t *testing.T) {
		status, out := do(t, http.MethodPost, srv.URL+api.RouteAuthenticate, "", account.AuthenticationRequest{
			Email:    "nobody@example.com",
			Password: "whatever1",
		})
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "No Accounts Registered with nobody@example.com.", out.Message)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		register(t, srv.URL)
		status, out := do(t, http.MethodPost, srv.URL+api.RouteRegister, "", account.RegisterRequest{
			FirstName:       "Other",
			LastName:        "Alice",
			Email:           "alice2@example.com",
			UserName:        "alice.liddell",
			Password:        "Pa$$w0rd!",
			ConfirmPassword: "Pa$$w0rd!",
		})
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "Username 'alice.liddell' is already taken.", out.Message)
	})

	t.Run("forgot password does not leak accounts", func(t *testing.T) {
		status, out := do(t, http.MethodPost, srv.URL+api.RouteForgotPassword, "", account.ForgotPasswordRequest{Email: "ghost@example.com"})
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, out.Succeeded)
	})

	t.Run("reset with a bad token", func(t *testing.T) {
		status, out := do(t, http.MethodPost, srv.URL+api.RouteResetPassword, "", account.ResetPasswordRequest{
			Email:           "alice@example.com",
			Token:           "bogus",
			Password:        "N3w-Pa$$w0rd",
			ConfirmPassword: "N3w-Pa$$w0rd",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Error occured while reseting the password.", out.Message)
	})
}
