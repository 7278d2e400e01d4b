package bearer

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-bootstrap/authz"
	"github.com/goliatone/go-auth-bootstrap/logging"
)

// DefaultAuthority is the token issuer trusted when none is configured.
const DefaultAuthority = "https://localhost:5001"

// AuthorityConfig configures validation against an OpenID Connect authority.
type AuthorityConfig struct {
	Authority         string
	ValidateAudience  bool
	Audiences         []string
	AllowHTTPMetadata bool
	HTTPClient        *http.Client
	Logger            logging.Logger
}

// AuthorityValidator validates tokens issued by an OpenID Connect
// authority. Discovery runs on first use; a failed discovery is retried
// on the next token.
type AuthorityValidator struct {
	cfg AuthorityConfig

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

func NewAuthorityValidator(cfg AuthorityConfig) (*AuthorityValidator, error) {
	if cfg.Authority == "" {
		cfg.Authority = DefaultAuthority
	}
	u, err := url.Parse(cfg.Authority)
	if err != nil || u.Host == "" {
		return nil, errors.New("invalid authority url", errors.CategoryBadInput).
			WithMetadata(map[string]any{"authority": cfg.Authority})
	}
	if u.Scheme != "https" && !cfg.AllowHTTPMetadata {
		return nil, ErrInsecureMetadata
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.Logger = logging.OrDefault(cfg.Logger)
	cfg.Authority = strings.TrimRight(cfg.Authority, "/")

	return &AuthorityValidator{cfg: cfg}, nil
}

// Authority returns the issuer this validator trusts.
func (v *AuthorityValidator) Authority() string {
	return v.cfg.Authority
}

func (v *AuthorityValidator) Validate(ctx context.Context, token string) (*authz.Principal, error) {
	verifier, err := v.getVerifier()
	if err != nil {
		return nil, err
	}

	idToken, err := verifier.Verify(oidc.ClientContext(ctx, v.cfg.HTTPClient), token)
	if err != nil {
		return nil, err
	}

	if v.cfg.ValidateAudience && len(v.cfg.Audiences) > 0 {
		if err := checkAudience(idToken.Audience, v.cfg.Audiences); err != nil {
			return nil, err
		}
	}

	claims := map[string]any{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, err
	}

	return authz.NewPrincipal(claims), nil
}

func (v *AuthorityValidator) getVerifier() (*oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.verifier != nil {
		return v.verifier, nil
	}

	// the provider keeps this context to refresh its key set, it must
	// outlive any single request
	pctx := oidc.ClientContext(context.Background(), v.cfg.HTTPClient)
	provider, err := oidc.NewProvider(pctx, v.cfg.Authority)
	if err != nil {
		v.cfg.Logger.Error("authority discovery failed for %s: %s", v.cfg.Authority, err)
		return nil, errors.Wrap(err, errors.CategoryOperation, "authority discovery failed").
			WithTextCode(TextCodeDiscoveryFailed).
			WithMetadata(map[string]any{"authority": v.cfg.Authority})
	}

	v.verifier = provider.Verifier(&oidc.Config{
		// tokens carry the api audience, not a client id
		SkipClientIDCheck: true,
	})
	v.cfg.Logger.Debug("authority discovery completed for %s", v.cfg.Authority)
	return v.verifier, nil
}
