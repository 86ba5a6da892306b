package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaddad2189/sfconnect-v11/internal/auth/token"
	"github.com/shaddad2189/sfconnect-v11/internal/model"
	"github.com/shaddad2189/sfconnect-v11/internal/storage"
)

const testCookie = "sf_connect_token"

type fakeVerifier struct {
	accept   string
	identity token.Identity
	err      error
}

func (f fakeVerifier) Verify(_ context.Context, jwtToken string) (token.Identity, error) {
	if f.err != nil {
		return token.Identity{}, f.err
	}
	if jwtToken != f.accept {
		return token.Identity{}, token.ErrInvalidToken
	}

	return f.identity, nil
}

type fakeUsers struct {
	user model.User
	err  error
}

func (f fakeUsers) FindByID(_ context.Context, userID string) (model.User, error) {
	if f.err != nil {
		return model.User{}, f.err
	}
	if userID != f.user.ID {
		return model.User{}, storage.ErrNotFound
	}

	return f.user, nil
}

func identityEcho(captured *Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		*captured = id
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	alice := model.User{ID: "u1", Email: "alice@example.com", Name: "Alice", Role: model.RoleOperator}
	verifier := fakeVerifier{
		accept:   "good-token",
		identity: token.Identity{UserID: "u1", Email: "alice@example.com", Role: model.RoleReadOnly},
	}

	tests := []struct {
		name       string
		header     string
		cookie     string
		users      fakeUsers
		verifier   fakeVerifier
		wantStatus int
	}{
		{
			name:       "missing token",
			users:      fakeUsers{user: alice},
			verifier:   verifier,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid token",
			header:     "Bearer bad-token",
			users:      fakeUsers{user: alice},
			verifier:   verifier,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "valid bearer header",
			header:     "Bearer good-token",
			users:      fakeUsers{user: alice},
			verifier:   verifier,
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid cookie",
			cookie:     "good-token",
			users:      fakeUsers{user: alice},
			verifier:   verifier,
			wantStatus: http.StatusOK,
		},
		{
			name:       "header takes precedence over cookie",
			header:     "Bearer bad-token",
			cookie:     "good-token",
			users:      fakeUsers{user: alice},
			verifier:   verifier,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "deleted user",
			header:     "Bearer good-token",
			users:      fakeUsers{user: model.User{ID: "someone-else"}},
			verifier:   verifier,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "verifier storage failure is not unauthorized",
			header:     "Bearer good-token",
			users:      fakeUsers{user: alice},
			verifier:   fakeVerifier{err: errors.New("database unreachable")},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "user lookup failure is not unauthorized",
			header:     "Bearer good-token",
			users:      fakeUsers{err: errors.New("database unreachable")},
			verifier:   verifier,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured Identity
			handler := Authenticate(tt.verifier, tt.users, testCookie)(identityEcho(&captured))

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: testCookie, Value: tt.cookie})
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				// Role comes from the live record, not the token claims.
				assert.Equal(t, Identity{ID: "u1", Email: "alice@example.com", Name: "Alice", Role: model.RoleOperator}, captured)
			}
		})
	}
}

func TestRoleGates(t *testing.T) {
	tests := []struct {
		name       string
		gate       Link
		role       string
		wantStatus int
	}{
		{"admin passes admin gate", RequireAdmin(), model.RoleAdmin, http.StatusOK},
		{"operator fails admin gate", RequireAdmin(), model.RoleOperator, http.StatusForbidden},
		{"readonly fails admin gate", RequireAdmin(), model.RoleReadOnly, http.StatusForbidden},
		{"admin passes operator gate", RequireOperator(), model.RoleAdmin, http.StatusOK},
		{"operator passes operator gate", RequireOperator(), model.RoleOperator, http.StatusOK},
		{"readonly fails operator gate", RequireOperator(), model.RoleReadOnly, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := tt.gate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			ctx := context.WithValue(context.Background(), identityKey{}, Identity{ID: "u1", Role: tt.role})
			r := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRoleGateWithoutIdentity(t *testing.T) {
	handler := RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, ExtractToken(r, testCookie))

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, ExtractToken(r, testCookie))

	r.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", ExtractToken(r, testCookie))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: testCookie, Value: "cookie-token"})
	assert.Equal(t, "cookie-token", ExtractToken(r, testCookie))

	r.Header.Set("Authorization", "Bearer header-token")
	require.Equal(t, "header-token", ExtractToken(r, testCookie))
}
