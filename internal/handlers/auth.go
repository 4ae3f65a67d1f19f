package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

type registerRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

// Register creates an account, defaulting the role to user, and issues a
// session cookie.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "Role must be one of: admin, user, read-only")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.internalError(w, r, "register", err)
		return
	}

	user, err := h.db.CreateUser(req.Email, hash, req.Role)
	if errors.Is(err, storage.ErrDuplicateEmail) {
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		h.internalError(w, r, "register", err)
		return
	}

	token, err := h.codec.Mint(user)
	if err != nil {
		h.internalError(w, r, "register", err)
		return
	}

	h.setTokenCookie(w, token)
	writeJSON(w, http.StatusCreated, sessionResponse{Message: "User registered", User: user})
}

// Login verifies credentials and issues a session cookie. Credential
// failures count toward the failed-login limiter; malformed requests and
// successful logins do not.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	addr := clientAddr(r)
	if ok, retryAfter := h.failedLogins.Check(addr); !ok {
		writeRateLimited(w, retryAfter)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}

	user, err := h.db.GetUserByEmail(req.Email)
	if errors.Is(err, storage.ErrNotFound) {
		h.failedLogins.Record(addr)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		h.internalError(w, r, "login", err)
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		h.failedLogins.Record(addr)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.codec.Mint(user)
	if err != nil {
		h.internalError(w, r, "login", err)
		return
	}

	h.setTokenCookie(w, token)
	writeJSON(w, http.StatusOK, sessionResponse{Message: "Login successful", User: user})
}

// Logout clears the session cookie. There is no server-side revocation;
// an outstanding token stays valid until it expires.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearTokenCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
