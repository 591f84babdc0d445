package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Varun5711/shortlinks/internal/logger"
	"github.com/Varun5711/shortlinks/internal/models"
)

type contextKey string

const principalKey contextKey = "principal"

// Authenticator turns a bearer token into a principal.
// *auth.JWTManager satisfies it.
type Authenticator interface {
	Authenticate(token string) (*models.Principal, error)
}

type AuthMiddleware struct {
	authenticator Authenticator
	log           *logger.Logger
}

func NewAuthMiddleware(authenticator Authenticator, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		log:           log,
	}
}

func (m *AuthMiddleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "authorization header required")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		principal, err := m.authenticator.Authenticate(token)
		if err != nil {
			m.log.Warn("Rejected token on %s %s: %v", r.Method, r.URL.Path, err)
			unauthorized(w, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	}
}

func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal returns nil for unauthenticated requests.
func GetPrincipal(ctx context.Context) *models.Principal {
	if p, ok := ctx.Value(principalKey).(*models.Principal); ok {
		return p
	}
	return nil
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="shortlinks"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: "unauthorized", Message: message})
}
