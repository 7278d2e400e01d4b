// Package bootstrap wires authentication and authorization into a host
// application.
//
// A Builder is threaded through startup:
//
//	b := bootstrap.NewBuilder(bootstrap.WithLogger(logger))
//	b.AddServiceLayer()
//	b.AddIdentityService(ctx, cfg)
//	bundle, err := b.Build()
//
// AddServiceLayer registers the mediator with the account handlers and the
// transient email service. AddIdentityService opens the identity store,
// registers the transient account service, binds JWTSettings and
// configures the bearer scheme: tokens are validated against the authority
// (https://localhost:5001 unless configured), audience validation is off,
// and the "ApiScope" policy requires an authenticated user carrying the
// scope1 scope.
//
// Request time failures are mapped by the scheme's event hooks:
//   - token validation error: 500 text/plain with the error text
//   - missing token: 401 {"message":"You are not Authorized"}
//   - policy not satisfied: 403 {"message":"You are not authorized to access this resource"}
//
// The Bundle returned by Build is read-only and safe for concurrent use.
package bootstrap
