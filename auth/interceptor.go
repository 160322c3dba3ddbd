package auth

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"chat-realtime/internal/json"
	"context"
	"net/http"
	"strings"
)

type contextKey string

const identityKey contextKey = "identity"

// Gate turns a presented credential into a verified identity before a connection is accepted.
type Gate struct {
	secret []byte
}

func NewGate(secret string) *Gate {
	return &Gate{secret: []byte(secret)}
}

func (g *Gate) Verify(token string) (domain.Identity, error) {
	claims, err := ValidateToken(token, g.secret)
	if err != nil {
		return domain.Identity{}, err
	}
	return claims.Identity(), nil
}

// Authenticate reads the bearer header first, then the token query parameter
// (browsers cannot set headers on a websocket upgrade).
func (g *Gate) Authenticate(r *http.Request) (domain.Identity, error) {
	return g.Verify(CredentialFrom(r))
}

func CredentialFrom(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

// Middleware refuses the request with 401 when the credential does not verify and
// injects the identity into the request context otherwise.
func (g *Gate) Middleware(next http.Handler, onReject func(r *http.Request, err error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.Authenticate(r)
		if err != nil {
			if onReject != nil {
				onReject(r, err)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			body, _ := json.Marshal(map[string]string{
				"message": err.Error(),
				"code":    string(errors.CodeOf(err)),
			})
			_, _ = w.Write(body)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}
