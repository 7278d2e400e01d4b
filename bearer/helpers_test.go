package bearer_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testKID = "test-key"

// By default we set an expiration time 1 hour from now
func generateToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims, kid string) string {
	t.Helper()

	if claims["exp"] == nil {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}

	token := jwt.NewWithClaims(method, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func jwksDocument(t *testing.T, pub *rsa.PublicKey) []byte {
	t.Helper()
	doc := map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": testKID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

type authorityServer struct {
	*httptest.Server
	discoveryHits atomic.Int32
	failDiscovery atomic.Bool
}

// newAuthorityServer serves an OpenID configuration document and a JWK Set.
func newAuthorityServer(t *testing.T, pub *rsa.PublicKey) *authorityServer {
	t.Helper()
	jwks := jwksDocument(t, pub)

	as := &authorityServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		as.discoveryHits.Add(1)
		if as.failDiscovery.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                as.URL,
			"jwks_uri":                              as.URL + "/jwks",
			"authorization_endpoint":                as.URL + "/connect/authorize",
			"token_endpoint":                        as.URL + "/connect/token",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwks)
	})

	as.Server = httptest.NewServer(mux)
	t.Cleanup(as.Close)
	return as
}
