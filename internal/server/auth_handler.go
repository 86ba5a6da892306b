package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaddad2189/sfconnect-v11/internal/auth"
	"github.com/shaddad2189/sfconnect-v11/internal/server/middleware"
)

type userCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var credentials userCredentials
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if credentials.Email == "" || credentials.Password == "" {
		h.respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.users.SignUp(r.Context(), credentials.Email, credentials.Password, credentials.Name)
	if errors.Is(err, auth.ErrUserExists) {
		h.respondError(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		h.logger.Error("signup", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	jwtToken, err := h.users.GenerateAccessToken(r.Context(), user)
	if err != nil {
		h.logger.Error("issue token", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	h.logActivity(r, user.ID, "user_registered", "User registered: "+user.Email)

	h.respond(w, http.StatusOK, struct {
		Success bool        `json:"success"`
		Token   string      `json:"token"`
		User    userPayload `json:"user"`
	}{
		Success: true,
		Token:   jwtToken,
		User:    newUserPayload(user),
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var credentials userCredentials
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if credentials.Email == "" || credentials.Password == "" {
		h.respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, mfaRequired, err := h.users.Login(r.Context(), credentials.Email, credentials.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.respondError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		h.logger.Error("login", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	if mfaRequired {
		h.respond(w, http.StatusOK, struct {
			MFARequired bool   `json:"mfaRequired"`
			Email       string `json:"email"`
		}{
			MFARequired: true,
			Email:       user.Email,
		})
		return
	}

	jwtToken, err := h.users.GenerateAccessToken(r.Context(), user)
	if err != nil {
		h.logger.Error("issue token", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	h.logActivity(r, user.ID, "user_login", "User logged in: "+user.Email)

	h.respond(w, http.StatusOK, struct {
		Success bool        `json:"success"`
		Token   string      `json:"token"`
		User    userPayload `json:"user"`
	}{
		Success: true,
		Token:   jwtToken,
		User:    newUserPayload(user),
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())

	h.logActivity(r, identity.ID, "user_logout", "User logged out: "+identity.Email)

	h.respond(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())

	h.respond(w, http.StatusOK, struct {
		User userPayload `json:"user"`
	}{
		User: userPayload{
			ID:    identity.ID,
			Email: identity.Email,
			Name:  identity.Name,
			Role:  identity.Role,
		},
	})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	inputData := struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&inputData); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if inputData.CurrentPassword == "" || inputData.NewPassword == "" {
		h.respondError(w, http.StatusBadRequest, "Current password and new password are required")
		return
	}

	identity, _ := middleware.IdentityFrom(r.Context())

	err := h.users.ChangePassword(r.Context(), identity.ID, inputData.CurrentPassword, inputData.NewPassword)
	if errors.Is(err, auth.ErrIncorrectPassword) {
		h.respondError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}
	if err != nil {
		h.logger.Error("change password", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to change password")
		return
	}

	h.logActivity(r, identity.ID, "password_changed", "User changed password")

	h.respond(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}
