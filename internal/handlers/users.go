package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

// ListUsers returns every account. Admin only.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.ListUsers()
	if err != nil {
		h.internalError(w, r, "list users", err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUser returns a single account by id. Admin only.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.db.GetUserByID(mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

// UpdateRole changes an account's role. Admin only. Outstanding tokens
// keep their issued role until they expire or are reissued.
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "Role must be one of: admin, user, read-only")
		return
	}

	user, err := h.db.UpdateUserRole(mux.Vars(r)["id"], req.Role)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "update role", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Role updated", "user": user})
}

// DeleteUser removes an account and all of its transactions. Admin only.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.db.DeleteUser(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "delete user", err)
		return
	}

	h.agg.Invalidate(id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

// Profile returns the caller's account record.
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)

	user, err := h.db.GetUserByID(identity.ID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "profile", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type profileRequest struct {
	Email string `json:"email"`
}

// UpdateProfile changes the caller's email after a uniqueness check.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	user, err := h.db.UpdateUserEmail(identity.ID, req.Email)
	if errors.Is(err, storage.ErrDuplicateEmail) {
		writeError(w, http.StatusBadRequest, "Email already in use")
		return
	}
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Profile updated successfully", "user": user})
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword verifies the caller's current password and replaces it.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)

	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Current and new password are required")
		return
	}
	if len(req.NewPassword) < 6 {
		writeError(w, http.StatusBadRequest, "New password must be at least 6 characters")
		return
	}

	user, err := h.db.GetUserByID(identity.ID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "change password", err)
		return
	}

	if !auth.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.internalError(w, r, "change password", err)
		return
	}
	if err := h.db.UpdateUserPassword(identity.ID, hash); err != nil {
		h.internalError(w, r, "change password", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

// DeleteAccount verifies the caller's password, removes the account and
// its transactions, and clears the session cookie.
func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)

	var req deleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required")
		return
	}

	user, err := h.db.GetUserByID(identity.ID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "delete account", err)
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Password is incorrect")
		return
	}

	if err := h.db.DeleteUser(identity.ID); err != nil {
		h.internalError(w, r, "delete account", err)
		return
	}

	h.agg.Invalidate(identity.ID)
	h.clearTokenCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted successfully"})
}
