package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

func TestListUsersAsAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.register("admin@ex.com", "secret", "admin")
	env.register("u@ex.com", "secret", "")

	w := env.do("GET", "/api/users", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)

	var users []models.User
	decodeBody(t, w, &users)
	assert.Len(t, users, 2)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestGetUserAsAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.register("admin@ex.com", "secret", "admin")
	env.register("u@ex.com", "secret", "")

	user, err := env.db.GetUserByEmail("u@ex.com")
	require.NoError(t, err)

	w := env.do("GET", "/api/users/"+user.ID, nil, admin)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.User
	decodeBody(t, w, &got)
	assert.Equal(t, "u@ex.com", got.Email)

	w = env.do("GET", "/api/users/no-such-id", nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateRole(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.register("admin@ex.com", "secret", "admin")
	env.register("u@ex.com", "secret", "")

	user, err := env.db.GetUserByEmail("u@ex.com")
	require.NoError(t, err)

	w := env.do("PUT", "/api/users/"+user.ID+"/role", map[string]string{"role": "admin"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	reloaded, err := env.db.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, reloaded.Role)

	w = env.do("PUT", "/api/users/"+user.ID+"/role", map[string]string{"role": "owner"}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("PUT", "/api/users/no-such-id/role", map[string]string{"role": "user"}, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminDeleteUserCascades(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.register("admin@ex.com", "secret", "admin")
	cookie := env.register("u@ex.com", "secret", "")
	env.createTransaction(cookie, map[string]any{"type": "expense", "amount": 10, "category": "Food"})

	user, err := env.db.GetUserByEmail("u@ex.com")
	require.NoError(t, err)

	w := env.do("DELETE", "/api/users/"+user.ID, nil, admin)
	require.Equal(t, http.StatusOK, w.Code)

	_, err = env.db.GetUserByID(user.ID)
	assert.Error(t, err)

	txs, _, err := env.db.ListTransactions(user.ID, storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)

	w = env.do("DELETE", "/api/users/"+user.ID, nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.register("a@ex.com", "secret", "")

	w := env.do("GET", "/api/users/profile", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var user models.User
	decodeBody(t, w, &user)
	assert.Equal(t, "a@ex.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestUpdateProfileEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.register("a@ex.com", "secret", "")
	env.register("taken@ex.com", "secret", "")

	w := env.do("PUT", "/api/users/profile", map[string]string{"email": "new@ex.com"}, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, err := env.db.GetUserByEmail("new@ex.com")
	assert.NoError(t, err)

	// Taken email is rejected.
	w = env.do("PUT", "/api/users/profile", map[string]string{"email": "taken@ex.com"}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Email already in use")

	// Keeping your own email is fine.
	w = env.do("PUT", "/api/users/profile", map[string]string{"email": "new@ex.com"}, cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("PUT", "/api/users/profile", map[string]string{}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.register("a@ex.com", "secret", "")

	body := map[string]string{"currentPassword": "wrong", "newPassword": "changed1"}
	w := env.do("PUT", "/api/users/password", body, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	body = map[string]string{"currentPassword": "secret", "newPassword": "short"}
	w = env.do("PUT", "/api/users/password", body, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = map[string]string{"currentPassword": "secret", "newPassword": "changed1"}
	w = env.do("PUT", "/api/users/password", body, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Old password no longer works, the new one does.
	w = env.do("POST", "/api/auth/login", map[string]string{"email": "a@ex.com", "password": "secret"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do("POST", "/api/auth/login", map[string]string{"email": "a@ex.com", "password": "changed1"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.register("a@ex.com", "secret", "")
	env.createTransaction(cookie, map[string]any{"type": "expense", "amount": 10, "category": "Food"})

	w := env.do("DELETE", "/api/users/account", map[string]string{"password": "wrong"}, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do("DELETE", "/api/users/account", map[string]string{"password": "secret"}, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cleared := sessionCookie(t, w)
	assert.Less(t, cleared.MaxAge, 0, "session cookie cleared")

	_, err := env.db.GetUserByEmail("a@ex.com")
	assert.Error(t, err)
}
