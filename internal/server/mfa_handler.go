package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaddad2189/sfconnect-v11/internal/auth/mfa"
	"github.com/shaddad2189/sfconnect-v11/internal/server/middleware"
)

func (h *Handler) setupMFA(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())

	enrollment, err := h.mfa.Setup(r.Context(), identity.ID, identity.Email)
	if err != nil {
		h.logger.Error("mfa setup", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to setup MFA")
		return
	}

	h.respond(w, http.StatusOK, struct {
		Secret         string `json:"secret"`
		QRCode         string `json:"qrCode"`
		ManualEntryKey string `json:"manualEntryKey"`
	}{
		Secret:         enrollment.Secret,
		QRCode:         enrollment.QRCode,
		ManualEntryKey: enrollment.ManualEntryKey,
	})
}

func (h *Handler) enableMFA(w http.ResponseWriter, r *http.Request) {
	inputData := struct {
		Token string `json:"token"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&inputData); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	identity, _ := middleware.IdentityFrom(r.Context())

	backupCodes, err := h.mfa.Enable(r.Context(), identity.ID, inputData.Token)
	if errors.Is(err, mfa.ErrNotSetUp) {
		h.respondError(w, http.StatusBadRequest, "MFA not set up")
		return
	}
	if errors.Is(err, mfa.ErrInvalidCode) {
		h.respondError(w, http.StatusBadRequest, "Invalid verification code")
		return
	}
	if err != nil {
		h.logger.Error("mfa enable", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to enable MFA")
		return
	}

	h.logActivity(r, identity.ID, "mfa_enabled", "User enabled MFA")

	h.respond(w, http.StatusOK, struct {
		Success     bool     `json:"success"`
		BackupCodes []string `json:"backupCodes"`
	}{
		Success:     true,
		BackupCodes: backupCodes,
	})
}

func (h *Handler) disableMFA(w http.ResponseWriter, r *http.Request) {
	inputData := struct {
		Password string `json:"password"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&inputData); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	identity, _ := middleware.IdentityFrom(r.Context())

	err := h.mfa.Disable(r.Context(), identity.ID, inputData.Password)
	if errors.Is(err, mfa.ErrInvalidPassword) {
		h.respondError(w, http.StatusUnauthorized, "Invalid password")
		return
	}
	if err != nil {
		h.logger.Error("mfa disable", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to disable MFA")
		return
	}

	h.logActivity(r, identity.ID, "mfa_disabled", "User disabled MFA")

	h.respond(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

func (h *Handler) verifyMFA(w http.ResponseWriter, r *http.Request) {
	inputData := struct {
		Email        string `json:"email"`
		Token        string `json:"token"`
		IsBackupCode bool   `json:"isBackupCode"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&inputData); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.mfa.VerifyLogin(r.Context(), inputData.Email, inputData.Token, inputData.IsBackupCode)
	if errors.Is(err, mfa.ErrNotEnabled) {
		h.respondError(w, http.StatusBadRequest, "MFA not enabled")
		return
	}
	if errors.Is(err, mfa.ErrInvalidCode) {
		h.respondError(w, http.StatusUnauthorized, "Invalid verification code")
		return
	}
	if err != nil {
		h.logger.Error("mfa verify", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to verify MFA code")
		return
	}

	jwtToken, err := h.users.GenerateAccessToken(r.Context(), user)
	if err != nil {
		h.logger.Error("issue token", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to verify MFA code")
		return
	}

	h.logActivity(r, user.ID, "user_login", "User logged in with MFA: "+user.Email)

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

func (h *Handler) mfaStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFrom(r.Context())

	status, err := h.mfa.Status(r.Context(), identity.ID)
	if err != nil {
		h.logger.Error("mfa status", "err", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to get MFA status")
		return
	}

	h.respond(w, http.StatusOK, struct {
		Enabled              bool `json:"enabled"`
		BackupCodesRemaining int  `json:"backupCodesRemaining"`
	}{
		Enabled:              status.Enabled,
		BackupCodesRemaining: status.BackupCodesRemaining,
	})
}
