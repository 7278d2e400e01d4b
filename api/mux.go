package api

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goliatone/go-auth-bootstrap/account"
	"github.com/goliatone/go-auth-bootstrap/bearer"
)

// NewMux serves the same routes as RegisterRoutes on a chi router.
// authorize wraps the identity handler, Bundle.Authorize fits.
func NewMux(c *Controller, authorize func(policy string) func(http.Handler) http.Handler, policy string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post(RouteAuthenticate, func(w http.ResponseWriter, req *http.Request) {
		var payload account.AuthenticationRequest
		if !decode(w, req, &payload) {
			return
		}
		writeJSON(w)(c.authenticate(req.Context(), payload, clientIP(req)))
	})

	r.Post(RouteRegister, func(w http.ResponseWriter, req *http.Request) {
		var payload account.RegisterRequest
		if !decode(w, req, &payload) {
			return
		}
		writeJSON(w)(c.register(req.Context(), payload))
	})

	r.Get(RouteConfirmEmail, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		writeJSON(w)(c.confirmEmail(req.Context(), q.Get("userId"), q.Get("code")))
	})

	r.Post(RouteForgotPassword, func(w http.ResponseWriter, req *http.Request) {
		var payload account.ForgotPasswordRequest
		if !decode(w, req, &payload) {
			return
		}
		writeJSON(w)(c.forgotPassword(req.Context(), payload))
	})

	r.Post(RouteResetPassword, func(w http.ResponseWriter, req *http.Request) {
		var payload account.ResetPasswordRequest
		if !decode(w, req, &payload) {
			return
		}
		writeJSON(w)(c.resetPassword(req.Context(), payload))
	})

	r.Post(RouteRefreshToken, func(w http.ResponseWriter, req *http.Request) {
		var payload RefreshTokenRequest
		if !decode(w, req, &payload) {
			return
		}
		writeJSON(w)(c.refreshToken(req.Context(), payload, clientIP(req)))
	})

	r.With(authorize(policy)).Get(RouteIdentity, func(w http.ResponseWriter, req *http.Request) {
		p, _ := bearer.PrincipalFromContext(req.Context())
		writeJSON(w)(c.identity(p))
	})

	return r
}

func decode(w http.ResponseWriter, req *http.Request, out any) bool {
	if err := json.NewDecoder(req.Body).Decode(out); err != nil {
		writeJSON(w)(badRequest("Failed to parse request"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter) func(status int, body any) {
	return func(status int, body any) {
		w.Header().Set("Content-Type", bearer.ContentTypeJSON)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func clientIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
