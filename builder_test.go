package bootstrap_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	bootstrap "github.com/goliatone/go-auth-bootstrap"
	"github.com/goliatone/go-auth-bootstrap/account"
	"github.com/goliatone/go-auth-bootstrap/authz"
	"github.com/goliatone/go-auth-bootstrap/bearer"
	"github.com/goliatone/go-auth-bootstrap/email"
	"github.com/goliatone/go-auth-bootstrap/identity"
	"github.com/goliatone/go-auth-bootstrap/logging"
	"github.com/goliatone/go-auth-bootstrap/registry"
)

const localKey = "local-signing-key-0123456789abcdef"

func baseConfig(a *authority) map[string]any {
	return map[string]any{
		"ConnectionStrings:IdentityConnection": ":memory:",
		"JWTSettings:Authority":                a.URL,
		"JWTSettings:AllowHTTPMetadata":        true,
		"JWTSettings:Key":                      localKey,
		"JWTSettings:Issuer":                   "https://accounts.test",
		"JWTSettings:DurationInMinutes":        30,
		"JWTSettings:Scopes":                   []string{"scope1"},
	}
}

func build(t *testing.T, values map[string]any, opts ...bootstrap.Option) *bootstrap.Bundle {
	t.Helper()
	opts = append([]bootstrap.Option{
		bootstrap.WithLogger(logging.Nop()),
		bootstrap.WithAutoMigrate(true),
		bootstrap.WithStoreOptions(identity.WithPasswordHasher(identity.PasswordHasher{Cost: bcrypt.MinCost})),
	}, opts...)

	bundle, err := bootstrap.NewBuilder(opts...).
		AddServiceLayer().
		AddIdentityService(context.Background(), bootstrap.SourceFromMap(values)).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = bundle.Close() })
	return bundle
}

func protectedServer(t *testing.T, bundle *bootstrap.Bundle) *httptest.Server {
	t.Helper()
	h := bundle.Authorize(authz.ApiScopePolicy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := bearer.PrincipalFromContext(r.Context())
		_, _ = io.WriteString(w, "hello "+p.Subject)
	}))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, url, token string) (int, string, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, res.Header.Get("Content-Type"), string(body)
}

func TestBuilder_BearerContract(t *testing.T) {
	a := newAuthority(t)
	bundle := build(t, baseConfig(a))
	srv := protectedServer(t, bundle)

	t.Run("no token", func(t *testing.T) {
		status, ct, body := call(t, srv.URL, "")
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "application/json", ct)
		assert.JSONEq(t, `{"message":"You are not Authorized"}`, body)
	})

	t.Run("valid token without scope1", func(t *testing.T) {
		status, ct, body := call(t, srv.URL, a.token(t, jwt.MapClaims{"sub": "bob", "scope": "scope2"}))
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "application/json", ct)
		assert.JSONEq(t, `{"message":"You are not authorized to access this resource"}`, body)
	})

	t.Run("valid token with scope1", func(t *testing.T) {
		status, _, body := call(t, srv.URL, a.token(t, jwt.MapClaims{"sub": "alice", "scope": []string{"openid", "scope1"}}))
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "hello alice", body)
	})

	t.Run("audience is not validated", func(t *testing.T) {
		status, _, _ := call(t, srv.URL, a.token(t, jwt.MapClaims{"sub": "alice", "scope": "scope1", "aud": "someone-else"}))
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("validation error", func(t *testing.T) {
		tok := a.token(t, jwt.MapClaims{"sub": "alice", "scope": "scope1", "exp": int64(1)})
		status, ct, body := call(t, srv.URL, tok)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.True(t, strings.HasPrefix(ct, "text/plain"))
		assert.Contains(t, body, "expired")
	})
}

func TestBuilder_HideErrorDetail(t *testing.T) {
	a := newAuthority(t)
	cfg := baseConfig(a)
	cfg["JWTSettings:HideErrorDetail"] = true
	bundle := build(t, cfg)
	srv := protectedServer(t, bundle)

	status, _, body := call(t, srv.URL, "not.a.token")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, bearer.MessageAuthenticationFailed, body)
}

func TestBuilder_Defaults(t *testing.T) {
	logger := &recordingLogger{}
	bundle, err := bootstrap.NewBuilder(bootstrap.WithLogger(logger), bootstrap.WithAutoMigrate(true)).
		AddIdentityService(context.Background(), bootstrap.SourceFromMap(map[string]any{
			"ConnectionStrings:IdentityConnection": ":memory:",
		})).
		Build()
	require.NoError(t, err)
	defer bundle.Close()

	assert.Equal(t, "https://localhost:5001", bundle.Settings.Authority)
	assert.False(t, bundle.Settings.ValidateAudience)
	assert.NotEmpty(t, bundle.Settings.Key)
	assert.Equal(t, "Bearer", bundle.Scheme.Name())
	assert.Nil(t, bundle.Mediator)

	policy, ok := bundle.Policies.Get(authz.ApiScopePolicy)
	require.True(t, ok)
	require.Len(t, policy.Requirements, 2)
	assert.Equal(t, "authenticated_user", policy.Requirements[0].Name())
	assert.Equal(t, "claim:scope=scope1", policy.Requirements[1].Name())

	lines := strings.Join(logger.all(), "\n")
	assert.Contains(t, lines, "INF trusted token issuers: [https://localhost:5001")
	assert.Contains(t, lines, "WRN bearer authority https://localhost:5001 is a local address")
	assert.Contains(t, lines, "WRN bearer audience validation is disabled")
	assert.Contains(t, lines, "JWTSettings:Key is not set")
}

func TestBuilder_TwiceKeepsOnePolicy(t *testing.T) {
	a := newAuthority(t)
	ctx := context.Background()
	cfg := bootstrap.SourceFromMap(baseConfig(a))

	bundle, err := bootstrap.NewBuilder(bootstrap.WithLogger(logging.Nop()), bootstrap.WithAutoMigrate(true)).
		AddServiceLayer().
		AddIdentityService(ctx, cfg).
		AddServiceLayer().
		AddIdentityService(ctx, cfg).
		Build()
	require.NoError(t, err)
	defer bundle.Close()

	assert.Equal(t, 1, bundle.Policies.Len())
	assert.Equal(t, []string{authz.ApiScopePolicy}, bundle.Policies.Names())
	assert.Len(t, bundle.Services.Describe(), 2)
	require.NoError(t, bundle.Store.Ping(ctx))
}

func TestBuilder_Services(t *testing.T) {
	a := newAuthority(t)
	bundle := build(t, baseConfig(a))

	desc := bundle.Services.Describe()
	require.Len(t, desc, 2)
	for _, d := range desc {
		assert.Equal(t, registry.Transient, d.Lifetime, d.Key)
	}

	first, err := bundle.AccountService()
	require.NoError(t, err)
	second, err := bundle.AccountService()
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	mail, err := bundle.EmailService()
	require.NoError(t, err)
	_, isLog := mail.(email.LogService)
	assert.True(t, isLog, "no SMTP host configured")

	_, isSMTP := registry.MustResolve[email.Service](
		buildWithMail(t, a).Services,
	).(*email.SMTPService)
	assert.True(t, isSMTP)
}

func buildWithMail(t *testing.T, a *authority) *bootstrap.Bundle {
	cfg := baseConfig(a)
	cfg["MailSettings:EmailFrom"] = "noreply@example.com"
	cfg["MailSettings:SmtpHost"] = "smtp.example.com"
	cfg["MailSettings:SmtpPort"] = 587
	return build(t, cfg)
}

func TestBuilder_LocalTokensThroughMediator(t *testing.T) {
	a := newAuthority(t)
	bundle := build(t, baseConfig(a))
	srv := protectedServer(t, bundle)
	ctx := context.Background()

	require.NotNil(t, bundle.Mediator)
	assert.True(t, bundle.Mediator.Has(account.RegisterMessage{}.Type()))

	var registered account.Response[string]
	err := bundle.Mediator.Dispatch(ctx, account.RegisterMessage{
		Request: account.RegisterRequest{
			FirstName:       "Alice",
			LastName:        "Liddell",
			Email:           "alice@example.com",
			UserName:        "alice.liddell",
			Password:        "Pa$$w0rd!",
			ConfirmPassword: "Pa$$w0rd!",
		},
		Origin:     "https://localhost:5001",
		OnResponse: func(resp account.Response[string]) { registered = resp },
	})
	require.NoError(t, err)
	require.True(t, registered.Succeeded)

	link := registered.Message[strings.Index(registered.Message, "https://"):]
	u, err := url.Parse(link)
	require.NoError(t, err)

	require.NoError(t, bundle.Mediator.Dispatch(ctx, account.ConfirmEmailMessage{
		UserID: u.Query().Get("userId"),
		Code:   u.Query().Get("code"),
	}))

	var auth account.Response[account.AuthenticationResponse]
	require.NoError(t, bundle.Mediator.Dispatch(ctx, account.AuthenticateMessage{
		Request:    account.AuthenticationRequest{Email: "alice@example.com", Password: "Pa$$w0rd!"},
		IPAddress:  "127.0.0.1",
		OnResponse: func(resp account.Response[account.AuthenticationResponse]) { auth = resp },
	}))
	require.NotEmpty(t, auth.Data.JWToken)

	status, _, body := call(t, srv.URL, auth.Data.JWToken)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello alice.liddell", body)
}

func TestBuilder_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing connection string", func(t *testing.T) {
		_, err := bootstrap.NewBuilder(bootstrap.WithLogger(logging.Nop())).
			AddIdentityService(ctx, bootstrap.SourceFromMap(map[string]any{})).
			Build()
		assert.ErrorIs(t, err, bootstrap.ErrMissingConnectionString)
	})

	t.Run("identity not added", func(t *testing.T) {
		_, err := bootstrap.NewBuilder(bootstrap.WithLogger(logging.Nop())).AddServiceLayer().Build()
		assert.ErrorIs(t, err, bootstrap.ErrIdentityNotConfigured)
	})

	t.Run("insecure authority", func(t *testing.T) {
		_, err := bootstrap.NewBuilder(bootstrap.WithLogger(logging.Nop())).
			AddIdentityService(ctx, bootstrap.SourceFromMap(map[string]any{
				"ConnectionStrings:IdentityConnection": ":memory:",
				"JWTSettings:Authority":                "http://auth.example.com",
			})).
			Build()
		assert.ErrorIs(t, err, bearer.ErrInsecureMetadata)
	})

	t.Run("invalid settings", func(t *testing.T) {
		_, err := bootstrap.NewBuilder(bootstrap.WithLogger(logging.Nop())).
			AddIdentityService(ctx, bootstrap.SourceFromMap(map[string]any{
				"ConnectionStrings:IdentityConnection": ":memory:",
				"JWTSettings:Key":                      "short",
			})).
			Build()
		require.Error(t, err)
		assert.ErrorIs(t, err, bootstrap.ErrInvalidSettings)
		assert.Equal(t, bootstrap.TextCodeInvalidSettings, account.TextCode(err))
	})

	t.Run("errors accumulate", func(t *testing.T) {
		_, err := bootstrap.NewBuilder(bootstrap.WithLogger(logging.Nop())).
			AddIdentityService(ctx, bootstrap.SourceFromMap(map[string]any{
				"ConnectionStrings:IdentityConnection": "mysql://nope",
			})).
			AddPolicy(authz.Policy{}).
			Build()
		require.Error(t, err)
		assert.Equal(t, bootstrap.TextCodeBuildFailed, account.TextCode(err))
	})
}

func TestBuilder_AddPolicyOverrides(t *testing.T) {
	a := newAuthority(t)
	bundle, err := bootstrap.NewBuilder(bootstrap.WithLogger(logging.Nop()), bootstrap.WithAutoMigrate(true)).
		AddIdentityService(context.Background(), bootstrap.SourceFromMap(baseConfig(a))).
		AddPolicy(authz.NewPolicy(authz.ApiScopePolicy, authz.AuthenticatedUser{})).
		AddPolicy(authz.NewPolicy("Admin", authz.AuthenticatedUser{}, authz.RequireClaim("role", "admin"))).
		Build()
	require.NoError(t, err)
	defer bundle.Close()

	assert.Equal(t, []string{"Admin", authz.ApiScopePolicy}, bundle.Policies.Names())
	policy, _ := bundle.Policies.Get(authz.ApiScopePolicy)
	assert.Len(t, policy.Requirements, 1)

	srv := protectedServer(t, bundle)
	status, _, _ := call(t, srv.URL, a.token(t, jwt.MapClaims{"sub": "bob"}))
	assert.Equal(t, http.StatusOK, status)
}

func TestBuilder_AuthorityFromEnvironment(t *testing.T) {
	a := newAuthority(t)
	t.Setenv("AUTHSVC_JWTSETTINGS_AUTHORITY", a.URL)
	t.Setenv("AUTHSVC_JWTSETTINGS_ALLOWHTTPMETADATA", "true")

	bundle := build(t, map[string]any{
		"ConnectionStrings:IdentityConnection": ":memory:",
	})
	assert.Equal(t, a.URL, bundle.Settings.Authority)
	assert.True(t, bundle.Settings.AllowHTTPMetadata)

	srv := protectedServer(t, bundle)
	status, _, body := call(t, srv.URL, a.token(t, jwt.MapClaims{"sub": "alice", "scope": "scope1"}))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello alice", body)
}

func TestBuilder_SealedAfterBuild(t *testing.T) {
	a := newAuthority(t)
	ctx := context.Background()
	cfg := bootstrap.SourceFromMap(baseConfig(a))

	b := bootstrap.NewBuilder(bootstrap.WithLogger(logging.Nop()), bootstrap.WithAutoMigrate(true))
	bundle, err := b.AddServiceLayer().AddIdentityService(ctx, cfg).Build()
	require.NoError(t, err)
	defer bundle.Close()

	b.AddPolicy(authz.NewPolicy(authz.ApiScopePolicy)).
		AddPolicy(authz.NewPolicy("Late")).
		AddIdentityService(ctx, cfg).
		AddServiceLayer()

	policy, ok := bundle.Policies.Get(authz.ApiScopePolicy)
	require.True(t, ok)
	assert.Len(t, policy.Requirements, 2)
	assert.Equal(t, []string{authz.ApiScopePolicy}, bundle.Policies.Names())
	require.NoError(t, bundle.Store.Ping(ctx))

	srv := protectedServer(t, bundle)
	status, _, _ := call(t, srv.URL, a.token(t, jwt.MapClaims{"sub": "bob", "scope": "scope2"}))
	assert.Equal(t, http.StatusForbidden, status)

	_, err = b.Build()
	assert.ErrorIs(t, err, bootstrap.ErrBuilderSealed)
}

func TestBuilder_DelimitedScopes(t *testing.T) {
	a := newAuthority(t)
	srv := protectedServer(t, build(t, baseConfig(a)))
	token := a.token(t, jwt.MapClaims{"sub": "alice", "scope": "openid scope1"})

	status, _, _ := call(t, srv.URL, token)
	assert.Equal(t, http.StatusForbidden, status)

	cfg := baseConfig(a)
	cfg["JWTSettings:DelimitedScopes"] = true
	srv = protectedServer(t, build(t, cfg))

	status, _, _ = call(t, srv.URL, token)
	assert.Equal(t, http.StatusOK, status)
}
