package bootstrap

import (
	"errors"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/goliatone/go-auth-bootstrap/account"
	"github.com/goliatone/go-auth-bootstrap/bearer"
)

// Configuration section and key names.
const (
	SectionJWT            = "JWTSettings"
	SectionMail           = "MailSettings"
	IdentityConnectionKey = "IdentityConnection"
)

// JWTSettings holds the token settings bound from the JWTSettings section.
// Key, Issuer, Audience and DurationInMinutes drive locally issued tokens;
// the rest configure bearer validation.
type JWTSettings struct {
	Key               string   `mapstructure:"Key" json:"-"`
	Issuer            string   `mapstructure:"Issuer" json:"issuer"`
	Audience          string   `mapstructure:"Audience" json:"audience"`
	DurationInMinutes int      `mapstructure:"DurationInMinutes" json:"duration_in_minutes"`
	Scopes            []string `mapstructure:"Scopes" json:"scopes"`
	// RefreshTokenLifetimeInDays of zero keeps the seven day default.
	RefreshTokenLifetimeInDays int `mapstructure:"RefreshTokenLifetimeInDays" json:"refresh_token_lifetime_in_days"`

	Authority         string   `mapstructure:"Authority" json:"authority"`
	ValidateAudience  bool     `mapstructure:"ValidateAudience" json:"validate_audience"`
	ValidAudiences    []string `mapstructure:"ValidAudiences" json:"valid_audiences"`
	JWKSetURLs        []string `mapstructure:"JWKSetURLs" json:"jwk_set_urls"`
	AllowHTTPMetadata bool     `mapstructure:"AllowHTTPMetadata" json:"allow_http_metadata"`
	HideErrorDetail   bool     `mapstructure:"HideErrorDetail" json:"hide_error_detail"`
	// DelimitedScopes lets ApiScope match "scope1" inside a space
	// delimited scope string. Off, the claim must equal "scope1" or be an
	// array holding it.
	DelimitedScopes bool `mapstructure:"DelimitedScopes" json:"delimited_scopes"`
}

// DefaultJWTSettings trusts the local authority and leaves audience
// validation off.
func DefaultJWTSettings() JWTSettings {
	return JWTSettings{
		Authority:         bearer.DefaultAuthority,
		DurationInMinutes: int(account.DefaultTokenDuration.Minutes()),
	}
}

func (s JWTSettings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Authority, validation.Required, is.URL),
		validation.Field(&s.Key, validation.Length(16, 0)),
		validation.Field(&s.DurationInMinutes, validation.Min(0)),
		validation.Field(&s.RefreshTokenLifetimeInDays, validation.Min(0)),
		validation.Field(&s.JWKSetURLs, validation.Each(is.URL)),
		validation.Field(&s.ValidAudiences, validation.By(s.requireAudience)),
	)
}

func (s JWTSettings) requireAudience(any) error {
	if s.ValidateAudience && len(s.Audiences()) == 0 {
		return errors.New("required when audience validation is on")
	}
	return nil
}

// Audiences returns the audiences accepted when audience validation is on.
func (s JWTSettings) Audiences() []string {
	if len(s.ValidAudiences) > 0 {
		return s.ValidAudiences
	}
	if s.Audience != "" {
		return []string{s.Audience}
	}
	return nil
}

// RefreshTokenLifetime returns the configured refresh token lifetime, or
// zero when the default applies.
func (s JWTSettings) RefreshTokenLifetime() time.Duration {
	return time.Duration(s.RefreshTokenLifetimeInDays) * 24 * time.Hour
}

// TokenSettings returns the settings used to sign local tokens.
func (s JWTSettings) TokenSettings() account.TokenSettings {
	return account.TokenSettings{
		Key:               s.Key,
		Issuer:            s.Issuer,
		Audience:          s.Audience,
		DurationInMinutes: s.DurationInMinutes,
		Scopes:            s.Scopes,
	}
}

// IsLocalAuthority reports whether the authority points at this machine.
func (s JWTSettings) IsLocalAuthority() bool {
	u, err := url.Parse(s.Authority)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
