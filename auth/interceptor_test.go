package auth

import (
	"chat-realtime/domain"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCredentialFrom(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	req.Equal("from-query", CredentialFrom(r))

	// Then the header wins over the query parameter
	r.Header.Set("Authorization", "bearer from-header")
	req.Equal("from-header", CredentialFrom(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	req.Empty(CredentialFrom(r))
}

func TestGate_Middleware(t *testing.T) {
	gate := NewGate(string(secret))
	var seen domain.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	var rejected []error
	handler := gate.Middleware(next, func(_ *http.Request, err error) {
		rejected = append(rejected, err)
	})

	t.Run("should refuse a request without credential", func(t *testing.T) {
		req := require.New(t)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

		req.Equal(http.StatusUnauthorized, rec.Code)
		req.JSONEq(`{"message":"missing credential","code":"MissingCredential"}`, rec.Body.String())
		req.Len(rejected, 1)
	})

	t.Run("should refuse an expired credential", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken(alice, nil, secret, -time.Second)
		req.NoError(err)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))

		req.Equal(http.StatusUnauthorized, rec.Code)
		req.Contains(rec.Body.String(), "ExpiredCredential")
	})

	t.Run("should inject the identity when the credential verifies", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken(alice, nil, secret, time.Minute)
		req.NoError(err)
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, r)

		req.Equal(http.StatusNoContent, rec.Code)
		req.Equal(alice, seen)
	})
}
