package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shaddad2189/sfconnect-v11/internal/model"
	"github.com/shaddad2189/sfconnect-v11/internal/server/middleware"
	"github.com/shaddad2189/sfconnect-v11/internal/storage"
)

const activityPageSize = 100

type adminUserPayload struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	MFAEnabled    bool      `json:"mfaEnabled"`
	LastSignedIn  time.Time `json:"lastSignedIn"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}

	payload := make([]adminUserPayload, 0, len(users))
	for _, u := range users {
		payload = append(payload, adminUserPayload{
			ID:            u.ID,
			Email:         u.Email,
			Name:          u.Name,
			Role:          u.Role,
			EmailVerified: u.EmailVerified,
			MFAEnabled:    u.MFAEnabled,
			LastSignedIn:  u.LastSignedIn,
			CreatedAt:     u.CreatedAt,
		})
	}

	h.respond(w, http.StatusOK, struct {
		Users []adminUserPayload `json:"users"`
	}{Users: payload})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	inputData := struct {
		Name          *string `json:"name"`
		Role          *string `json:"role"`
		EmailVerified *bool   `json:"emailVerified"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&inputData); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("find user", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	if inputData.Name != nil {
		user.Name = *inputData.Name
	}
	if inputData.Role != nil {
		if !model.ValidRole(*inputData.Role) {
			h.respondError(w, http.StatusBadRequest, "Invalid role")
			return
		}
		user.Role = *inputData.Role
	}
	if inputData.EmailVerified != nil {
		user.EmailVerified = *inputData.EmailVerified
	}

	if err := h.users.UpdateUser(r.Context(), user); err != nil {
		h.logger.Error("update user", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	identity, _ := middleware.IdentityFrom(r.Context())
	h.logActivity(r, identity.ID, "user_updated", "Admin updated user "+userID)

	h.respond(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	identity, _ := middleware.IdentityFrom(r.Context())
	if identity.ID == userID {
		h.respondError(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	if err := h.users.DeleteUser(r.Context(), userID); err != nil {
		h.logger.Error("delete user", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	h.logActivity(r, identity.ID, "user_deleted", "Admin deleted user "+userID)

	h.respond(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

// resetPassword bypasses the current-password check, which is why it sits
// behind the admin gate and always leaves an audit entry.
func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	inputData := struct {
		NewPassword string `json:"newPassword"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&inputData); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if inputData.NewPassword == "" {
		h.respondError(w, http.StatusBadRequest, "New password is required")
		return
	}

	if _, err := h.users.FindByID(r.Context(), userID); errors.Is(err, storage.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "User not found")
		return
	} else if err != nil {
		h.logger.Error("find user", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to reset password")
		return
	}

	if err := h.users.ResetPassword(r.Context(), userID, inputData.NewPassword); err != nil {
		h.logger.Error("reset password", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to reset password")
		return
	}

	identity, _ := middleware.IdentityFrom(r.Context())
	h.logActivity(r, identity.ID, "password_reset", "Admin reset password for user "+userID)

	h.respond(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

type activityPayload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) listActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := h.activity.ListRecent(r.Context(), activityPageSize)
	if err != nil {
		h.logger.Error("list activity", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to fetch activity")
		return
	}

	payload := make([]activityPayload, 0, len(entries))
	for _, e := range entries {
		payload = append(payload, activityPayload{
			ID:        e.ID,
			UserID:    e.UserID,
			Action:    e.Action,
			Details:   e.Details,
			IPAddress: e.IPAddress,
			UserAgent: e.UserAgent,
			CreatedAt: e.CreatedAt,
		})
	}

	h.respond(w, http.StatusOK, struct {
		Activity []activityPayload `json:"activity"`
	}{Activity: payload})
}
