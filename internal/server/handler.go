package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/shaddad2189/sfconnect-v11/internal/auth"
	"github.com/shaddad2189/sfconnect-v11/internal/auth/mfa"
	"github.com/shaddad2189/sfconnect-v11/internal/model"
	"github.com/shaddad2189/sfconnect-v11/internal/server/middleware"
)

type ActivityLog interface {
	Record(ctx context.Context, userID, action, details, ipAddress, userAgent string) error
	ListRecent(ctx context.Context, limit int) ([]model.Activity, error)
}

type Handler struct {
	logger     *slog.Logger
	users      *auth.UserService
	mfa        *mfa.Engine
	activity   ActivityLog
	cookieName string
	inner      http.Handler
}

func NewHandler(logger *slog.Logger, users *auth.UserService, mfaEngine *mfa.Engine, verifier middleware.TokenVerifier, activity ActivityLog, cookieName string) *Handler {
	h := Handler{
		logger:     logger,
		users:      users,
		mfa:        mfaEngine,
		activity:   activity,
		cookieName: cookieName,
	}

	authenticate := middleware.Authenticate(verifier, users, cookieName)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging(logger))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/logout", h.logout)
			r.Get("/me", h.me)
			r.Post("/change-password", h.changePassword)
		})
	})

	r.Route("/api/mfa", func(r chi.Router) {
		// Verify runs between password check and session issuance, so it
		// is keyed by email plus the one-time code instead of a token.
		r.Post("/verify", h.verifyMFA)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/setup", h.setupMFA)
			r.Post("/enable", h.enableMFA)
			r.Post("/disable", h.disableMFA)
			r.Get("/status", h.mfaStatus)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.RequireAdmin())
		r.Get("/users", h.listUsers)
		r.Put("/users/{id}", h.updateUser)
		r.Delete("/users/{id}", h.deleteUser)
		r.Post("/users/{id}/reset-password", h.resetPassword)
		r.Get("/activity", h.listActivity)
	})

	h.inner = r

	return &h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.inner.ServeHTTP(w, r)
}

func (h *Handler) Run(ctx context.Context, addr string) {
	srv := http.Server{
		Addr:    addr,
		Handler: h,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error(err.Error())
		}
	}()

	<-ctx.Done()

	timeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(timeout); err != nil {
		h.logger.Error(err.Error())
	}
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func newUserPayload(u model.User) userPayload {
	return userPayload{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", slog.String("err", err.Error()))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respond(w, status, struct {
		Error string `json:"error"`
	}{Error: message})
}

// logActivity writes an audit entry best-effort: a failing audit sink must
// never fail the request it describes.
func (h *Handler) logActivity(r *http.Request, userID, action, details string) {
	err := h.activity.Record(r.Context(), userID, action, details, r.RemoteAddr, r.UserAgent())
	if err != nil {
		h.logger.Warn("record activity", slog.String("action", action), slog.String("err", err.Error()))
	}
}
