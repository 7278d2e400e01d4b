package jwtware

import (
	"context"
	"strings"

	"github.com/goliatone/go-router"

	"github.com/goliatone/go-auth-bootstrap/authz"
	"github.com/goliatone/go-auth-bootstrap/bearer"
)

var defaultTokenLookup = "header:" + router.HeaderAuthorization

// ValidationListener is invoked after a token has been validated but before policy checks.
type ValidationListener func(ctx router.Context, p *authz.Principal) error

// OutcomeHandler writes the response for an outcome that was not a success.
type OutcomeHandler func(ctx router.Context, o bearer.Outcome) error

type Config struct {
	// Scheme is required. It validates tokens, evaluates policies and
	// produces failure responses.
	Scheme *bearer.Scheme
	// Policy is evaluated after authentication. Empty only requires an
	// authenticated principal.
	Policy string

	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   OutcomeHandler
	ContextKey     string
	TokenLookup    string
	AuthScheme     string

	// ContextEnricher propagates the principal to the standard context,
	// bearer.WithPrincipal is the usual choice.
	ContextEnricher func(c context.Context, p *authz.Principal) context.Context

	// ValidationListeners run after validation succeeds. An error is
	// reported through ErrorHandler as a failed authentication.
	ValidationListeners []ValidationListener
}

func New(config ...Config) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		success := cfg.SuccessHandler
		if success == nil {
			success = next
		}

		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return next(ctx)
			}

			std := ctx.Context()

			token := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
			outcome := cfg.Scheme.AuthenticateToken(std, token)
			if outcome.Kind != bearer.KindSuccess {
				return cfg.ErrorHandler(ctx, outcome)
			}

			if err := cfg.runValidationListeners(ctx, outcome.Principal); err != nil {
				return cfg.ErrorHandler(ctx, bearer.Failed(err))
			}

			outcome = cfg.Scheme.Authorize(std, outcome, cfg.Policy)
			if outcome.Kind != bearer.KindSuccess {
				return cfg.ErrorHandler(ctx, outcome)
			}

			ctx.Locals(cfg.ContextKey, outcome.Principal)

			// if a context enricher we use it to propagate the principal to the standard context
			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(std, outcome.Principal))
			}

			return success(ctx)
		}
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Scheme == nil {
		panic("AUTH: JWT middleware configuration: Scheme is required.")
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = Responder(cfg.Scheme)
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = bearer.SchemeName
	}

	return cfg
}

// Responder writes the scheme's event response for an outcome.
func Responder(s *bearer.Scheme) OutcomeHandler {
	return func(c router.Context, o bearer.Outcome) error {
		res, handled := s.Respond(c.Context(), o)
		if !handled {
			return c.Next()
		}
		c.SetHeader("Content-Type", res.ContentType)
		return c.Status(res.Status).SendString(string(res.Body))
	}
}

// ExtractRawTokenFromContext returns the first token found by the
// extractors, or the empty string.
func ExtractRawTokenFromContext(ctx router.Context, extractors []JWTExtractor) string {
	for _, extractor := range extractors {
		if raw := extractor(ctx); raw != "" {
			return raw
		}
	}
	return ""
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(ctx router.Context, p *authz.Principal) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

type JWTExtractor func(c router.Context) string

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := bearer.SchemeName
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	// header:Authorization,cookie:jwt,query:auth_token,param:token
	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "param":
			extractors = append(extractors, jwtFromParam(name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(name))
		}
	}

	return extractors
}

func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c router.Context) string {
		token, _ := bearer.TokenFromHeader(c.GetString(header, ""), authScheme)
		return token
	}
}

func jwtFromQuery(param string) JWTExtractor {
	return func(c router.Context) string {
		return c.Query(param, "")
	}
}

func jwtFromParam(param string) JWTExtractor {
	return func(c router.Context) string {
		return c.Param(param)
	}
}

func jwtFromCookie(name string) JWTExtractor {
	return func(c router.Context) string {
		return c.Cookies(name)
	}
}
