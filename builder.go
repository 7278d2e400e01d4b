package bootstrap

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-bootstrap/account"
	"github.com/goliatone/go-auth-bootstrap/authz"
	"github.com/goliatone/go-auth-bootstrap/bearer"
	"github.com/goliatone/go-auth-bootstrap/email"
	"github.com/goliatone/go-auth-bootstrap/identity"
	"github.com/goliatone/go-auth-bootstrap/logging"
	"github.com/goliatone/go-auth-bootstrap/mediator"
	"github.com/goliatone/go-auth-bootstrap/registry"
)

// Builder collects the startup registrations. It is not safe for
// concurrent use. Build hands its result over to the Bundle and seals the
// builder: later calls are recorded as ErrBuilderSealed and change nothing.
type Builder struct {
	logger      logging.Logger
	httpClient  *http.Client
	validator   bearer.TokenValidator
	events      bearer.Events
	storeOpts   []identity.StoreOption
	autoMigrate bool
	mail        *email.Settings

	services     *registry.Registry
	serviceLayer bool
	policies     *authz.Table

	settings       JWTSettings
	store          *identity.Store
	tokenValidator bearer.TokenValidator
	closers        []func() error

	built bool
	errs  []error
}

type Option func(*Builder)

func WithLogger(l logging.Logger) Option {
	return func(b *Builder) {
		b.logger = logging.OrDefault(l)
	}
}

// WithHTTPClient sets the client used for authority discovery.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Builder) {
		b.httpClient = c
	}
}

// WithValidator replaces the token validator built from JWTSettings.
func WithValidator(v bearer.TokenValidator) Option {
	return func(b *Builder) {
		b.validator = v
	}
}

// WithEvents overrides individual authentication event hooks.
func WithEvents(e bearer.Events) Option {
	return func(b *Builder) {
		b.events = e
	}
}

func WithStoreOptions(opts ...identity.StoreOption) Option {
	return func(b *Builder) {
		b.storeOpts = append(b.storeOpts, opts...)
	}
}

// WithAutoMigrate applies the identity migrations when the store is added.
func WithAutoMigrate(enabled bool) Option {
	return func(b *Builder) {
		b.autoMigrate = enabled
	}
}

// WithMailSettings sets the SMTP settings instead of reading the
// MailSettings section.
func WithMailSettings(s email.Settings) Option {
	return func(b *Builder) {
		b.mail = &s
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		logger:   logging.Default(),
		services: registry.New(),
		policies: authz.NewTable(),
		settings: DefaultJWTSettings(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// AddServiceLayer registers the transient email service and asks Build for
// a mediator carrying the account message handlers.
func (b *Builder) AddServiceLayer() *Builder {
	if b.sealed() {
		return b
	}
	b.serviceLayer = true

	registry.Register[email.Service](b.services, registry.Transient, func() (email.Service, error) {
		settings := email.Settings{}
		if b.mail != nil {
			settings = *b.mail
		}
		return email.New(settings, b.logger), nil
	})

	b.logger.Debug("service layer added")
	return b
}

// AddIdentityService binds JWTSettings, opens the identity store, prepares
// the token validator and registers the ApiScope policy and the account
// service. The account service is registered only once every step has
// succeeded. Errors are reported by Build.
func (b *Builder) AddIdentityService(ctx context.Context, cfg ConfigSource) *Builder {
	if b.sealed() {
		return b
	}
	if cfg == nil {
		b.fail(ErrMissingConnectionString)
		return b
	}

	settings := DefaultJWTSettings()
	if err := cfg.BindSection(SectionJWT, &settings); err != nil {
		b.fail(err)
		return b
	}
	if settings.Authority == "" {
		settings.Authority = bearer.DefaultAuthority
	}
	if err := settings.Validate(); err != nil {
		b.fail(invalidSettings(SectionJWT, err))
		return b
	}

	if b.mail == nil {
		mail := email.Settings{}
		if err := cfg.BindSection(SectionMail, &mail); err != nil {
			b.fail(err)
			return b
		}
		b.mail = &mail
	}

	dsn := cfg.GetConnectionString(IdentityConnectionKey)
	if dsn == "" {
		b.fail(ErrMissingConnectionString)
		return b
	}

	db, err := identity.Open(dsn)
	if err != nil {
		b.fail(err)
		return b
	}
	if b.autoMigrate {
		applied, err := identity.Migrate(ctx, db)
		if err != nil {
			_ = db.Close()
			b.fail(err)
			return b
		}
		if len(applied) > 0 {
			b.logger.Info("applied identity migrations: %v", applied)
		}
	}

	if settings.Key == "" {
		b.logger.Warn("JWTSettings:Key is not set, a random signing key is used and issued tokens will not survive a restart")
		settings.Key = identity.RandomTokenString(32)
	}

	storeOpts := append([]identity.StoreOption{
		identity.WithTokenProviders(identity.NewTokenProviders([]byte(settings.Key))),
	}, b.storeOpts...)
	store := identity.NewStore(db, storeOpts...)
	if err := store.Validate(); err != nil {
		_ = db.Close()
		b.fail(err)
		return b
	}

	issuer, err := account.NewTokenIssuer(settings.TokenSettings())
	if err != nil {
		_ = db.Close()
		b.fail(err)
		return b
	}

	validator, closer, err := b.buildValidator(settings)
	if err != nil {
		_ = db.Close()
		b.fail(err)
		return b
	}

	policy := authz.ApiScope()
	if settings.DelimitedScopes {
		policy = authz.DelimitedApiScope()
	}
	if err := b.policies.Add(policy); err != nil {
		if closer != nil {
			_ = closer()
		}
		_ = db.Close()
		b.fail(err)
		return b
	}

	managerOpts := []account.ManagerOption{account.WithManagerLogger(b.logger)}
	if lifetime := settings.RefreshTokenLifetime(); lifetime > 0 {
		managerOpts = append(managerOpts, account.WithRefreshTokenLifetime(lifetime))
	}
	registry.Register[account.Service](b.services, registry.Transient, func() (account.Service, error) {
		mail, err := registry.Resolve[email.Service](b.services)
		if err != nil {
			mail = email.LogService{Logger: b.logger}
		}
		return account.NewManager(store, mail, issuer, managerOpts...), nil
	})

	// adding the identity service again replaces the previous store
	b.closeAll()
	b.store = store
	b.settings = settings
	b.tokenValidator = validator
	b.closers = append(b.closers, db.Close)
	if closer != nil {
		b.closers = append(b.closers, closer)
	}

	b.warn(settings)
	return b
}

// AddPolicy registers an additional policy. A policy with the same name
// replaces the existing one.
func (b *Builder) AddPolicy(p authz.Policy) *Builder {
	if b.sealed() {
		return b
	}
	if err := b.policies.Add(p); err != nil {
		b.fail(errors.Wrap(err, errors.CategoryValidation, "invalid policy").
			WithMetadata(map[string]any{"policy": p.Name}))
	}
	return b
}

// Build returns the configured bundle, or every error collected while
// adding services. The bundle owns copies of the policy table and service
// registry and takes over the identity database. A builder builds once.
func (b *Builder) Build() (*Bundle, error) {
	if b.built {
		return nil, ErrBuilderSealed
	}
	if len(b.errs) > 0 {
		b.closeAll()
		if len(b.errs) == 1 {
			return nil, b.errs[0]
		}
		return nil, errors.Wrap(stderrors.Join(b.errs...), errors.CategoryInternal, "bootstrap failed").
			WithTextCode(TextCodeBuildFailed).
			WithMetadata(map[string]any{"errors": len(b.errs)})
	}
	if b.store == nil {
		return nil, ErrIdentityNotConfigured
	}

	policies := b.policies.Clone()
	scheme, err := bearer.NewScheme(bearer.Options{
		Validator:       b.tokenValidator,
		Policies:        policies,
		Events:          b.events,
		HideErrorDetail: b.settings.HideErrorDetail,
		Logger:          b.logger,
	})
	if err != nil {
		b.closeAll()
		return nil, err
	}

	services := b.services.Clone()
	var m *mediator.Mediator
	if b.serviceLayer {
		m = mediator.New()
		account.RegisterHandlers(m, &resolvedAccount{services: services})
		b.logger.Debug("mediator handlers: %v", m.Types())
	}

	bundle := &Bundle{
		Scheme:   scheme,
		Policies: policies,
		Services: services,
		Mediator: m,
		Store:    b.store,
		Settings: b.settings,
		closers:  b.closers,
	}

	b.built = true
	b.closers = nil
	b.store = nil
	b.tokenValidator = nil
	return bundle, nil
}

func (b *Builder) buildValidator(settings JWTSettings) (bearer.TokenValidator, func() error, error) {
	if b.validator != nil {
		return b.validator, nil, nil
	}

	router := bearer.NewIssuerRouter()
	var closer func() error

	if len(settings.JWKSetURLs) > 0 {
		jwks, err := bearer.NewJWKSValidator(bearer.JWKSConfig{
			URLs:             settings.JWKSetURLs,
			Issuer:           settings.Authority,
			ValidateAudience: settings.ValidateAudience,
			Audiences:        settings.Audiences(),
			Logger:           b.logger,
		})
		if err != nil {
			return nil, nil, err
		}
		router.Register(settings.Authority, jwks)
		closer = func() error {
			jwks.Close()
			return nil
		}
	} else {
		authority, err := bearer.NewAuthorityValidator(bearer.AuthorityConfig{
			Authority:         settings.Authority,
			ValidateAudience:  settings.ValidateAudience,
			Audiences:         settings.Audiences(),
			AllowHTTPMetadata: settings.AllowHTTPMetadata,
			HTTPClient:        b.httpClient,
			Logger:            b.logger,
		})
		if err != nil {
			return nil, nil, err
		}
		router.Register(authority.Authority(), authority)
	}

	// tokens issued by the account service
	if settings.Issuer != "" {
		router.Register(settings.Issuer, bearer.SigningKeyValidator{
			Key:              []byte(settings.Key),
			Issuer:           settings.Issuer,
			ValidateAudience: settings.ValidateAudience,
			Audiences:        settings.Audiences(),
		})
	}

	b.logger.Info("trusted token issuers: %v", router.Issuers())
	return router, closer, nil
}

func (b *Builder) warn(settings JWTSettings) {
	if settings.IsLocalAuthority() {
		b.logger.Warn("bearer authority %s is a local address", settings.Authority)
	}
	if !settings.ValidateAudience {
		b.logger.Warn("bearer audience validation is disabled")
	}
}

func (b *Builder) sealed() bool {
	if b.built {
		b.fail(ErrBuilderSealed)
	}
	return b.built
}

func (b *Builder) fail(err error) {
	if err != nil {
		b.logger.Error("bootstrap: %s", err)
		b.errs = append(b.errs, err)
	}
}

func (b *Builder) closeAll() {
	for _, c := range b.closers {
		_ = c()
	}
	b.closers = nil
}

// resolvedAccount resolves a fresh account service for every call, so
// mediator handlers honour the transient registration.
type resolvedAccount struct {
	services *registry.Registry
}

var _ account.Service = (*resolvedAccount)(nil)

func (r *resolvedAccount) get() (account.Service, error) {
	return registry.Resolve[account.Service](r.services)
}

func (r *resolvedAccount) Authenticate(ctx context.Context, req account.AuthenticationRequest, ip string) (account.Response[account.AuthenticationResponse], error) {
	svc, err := r.get()
	if err != nil {
		return account.Response[account.AuthenticationResponse]{}, err
	}
	return svc.Authenticate(ctx, req, ip)
}

func (r *resolvedAccount) Register(ctx context.Context, req account.RegisterRequest, origin string) (account.Response[string], error) {
	svc, err := r.get()
	if err != nil {
		return account.Response[string]{}, err
	}
	return svc.Register(ctx, req, origin)
}

func (r *resolvedAccount) ConfirmEmail(ctx context.Context, userID, code string) (account.Response[string], error) {
	svc, err := r.get()
	if err != nil {
		return account.Response[string]{}, err
	}
	return svc.ConfirmEmail(ctx, userID, code)
}

func (r *resolvedAccount) ForgotPassword(ctx context.Context, req account.ForgotPasswordRequest, origin string) error {
	svc, err := r.get()
	if err != nil {
		return err
	}
	return svc.ForgotPassword(ctx, req, origin)
}

func (r *resolvedAccount) ResetPassword(ctx context.Context, req account.ResetPasswordRequest) (account.Response[string], error) {
	svc, err := r.get()
	if err != nil {
		return account.Response[string]{}, err
	}
	return svc.ResetPassword(ctx, req)
}

func (r *resolvedAccount) RefreshToken(ctx context.Context, token, ip string) (account.Response[account.AuthenticationResponse], error) {
	svc, err := r.get()
	if err != nil {
		return account.Response[account.AuthenticationResponse]{}, err
	}
	return svc.RefreshToken(ctx, token, ip)
}
