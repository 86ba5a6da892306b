package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shaddad2189/sfconnect-v11/internal/auth/token"
	"github.com/shaddad2189/sfconnect-v11/internal/model"
	"github.com/shaddad2189/sfconnect-v11/internal/storage"
)

const bearerPrefix = "Bearer "

// Identity is the authenticated caller attached to the request context.
// Role comes from the live user record, not from token claims, so that a
// role change takes effect before the token expires.
type Identity struct {
	ID    string
	Email string
	Name  string
	Role  string
}

type TokenVerifier interface {
	Verify(ctx context.Context, jwtToken string) (token.Identity, error)
}

type UserSource interface {
	FindByID(ctx context.Context, userID string) (model.User, error)
}

type Link func(http.Handler) http.Handler

type identityKey struct{}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)

	return id, ok
}

// ExtractToken takes the session token from the Authorization header or,
// when no bearer header is present, from the named cookie.
func ExtractToken(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimPrefix(h, bearerPrefix)
	}

	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}

	return ""
}

// Authenticate verifies the session token and loads the live user record.
// A bad or missing token answers 401; an unreachable store answers 500 and
// is never downgraded to "not authenticated".
func Authenticate(verifier TokenVerifier, users UserSource, cookieName string) Link {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jwtToken := ExtractToken(r, cookieName)
			if jwtToken == "" {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			identity, err := verifier.Verify(r.Context(), jwtToken)
			if errors.Is(err, token.ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Authentication unavailable")
				return
			}

			u, err := users.FindByID(r.Context(), identity.UserID)
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "User not found")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Authentication unavailable")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, Identity{
				ID:    u.ID,
				Email: u.Email,
				Name:  u.Name,
				Role:  u.Role,
			})

			handler.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAdmin() Link {
	return requireRole("Admin access required", model.RoleAdmin)
}

func RequireOperator() Link {
	return requireRole("Operator or admin access required", model.RoleAdmin, model.RoleOperator)
}

func requireRole(message string, roles ...string) Link {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			for _, role := range roles {
				if identity.Role == role {
					handler.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, message)
		})
	}
}

func Logging(logger *slog.Logger) Link {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			handler.ServeHTTP(w, r)

			logger.Info("", slog.String("method", r.Method), slog.String("path", r.URL.EscapedPath()), slog.Duration("dur", time.Since(start)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: message})
}
