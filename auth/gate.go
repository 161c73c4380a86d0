package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"tasktrack/api"
)

type contextKey string

const identityKey contextKey = "identity"

// UserFinder is the slice of the credential store the gate needs: a single
// round-trip lookup to confirm the account behind a token still exists.
type UserFinder interface {
	FindByID(ctx context.Context, id int) (*api.User, error)
}

// Gate rejects requests without a valid bearer token and attaches the resolved
// identity to the request context for downstream handlers.
type Gate struct {
	tokens *TokenService
	users  UserFinder
}

func NewGate(tokens *TokenService, users UserFinder) *Gate {
	return &Gate{tokens: tokens, users: users}
}

func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			denyUnauthenticated(w)
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		identity, err := g.tokens.Verify(tokenStr)
		if err != nil {
			// The kind (expired vs malformed) is logged, never sent outward.
			logrus.WithError(err).Debug("token rejected")
			denyUnauthenticated(w)
			return
		}

		// A deleted account may still hold a token that verifies; re-check
		// the account exists before trusting the claims.
		user, err := g.users.FindByID(r.Context(), identity.UserID)
		if err != nil {
			logrus.WithError(err).Error("user lookup failed during authentication")
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		if user == nil {
			denyUnauthenticated(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// WithIdentity attaches an identity to a context. Exposed for tests and for
// the middleware itself.
func WithIdentity(ctx context.Context, id api.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom extracts the identity the gate attached, if any.
func IdentityFrom(ctx context.Context) (api.Identity, bool) {
	id, ok := ctx.Value(identityKey).(api.Identity)
	return id, ok
}

func denyUnauthenticated(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, api.ErrUnauthenticated.Error())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
