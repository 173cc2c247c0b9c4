// Package integration provides end-to-end tests for the Castellan API.
// The full stack runs in-process against an in-memory SQLite database.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/castellan/internal/auth"
	"github.com/prn-tf/castellan/internal/handler"
	"github.com/prn-tf/castellan/internal/pkg/crypto"
	"github.com/prn-tf/castellan/internal/repository/sqlite"
	"github.com/prn-tf/castellan/internal/service"
	"github.com/prn-tf/castellan/internal/token"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()

	db, err := sqlite.NewDB(context.Background(), sqlite.DefaultConfig(":memory:"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	userRepo := sqlite.NewUserRepository(db)

	issuer, err := token.NewIssuer(token.Config{
		Secret:   "integration-secret",
		Issuer:   "castellan-test",
		Audience: "castellan-clients",
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	hasher := crypto.NewPasswordHasher(bcrypt.MinCost)

	authService := service.NewAuthService(userRepo, hasher, issuer, logger)
	usersService := service.NewUsersService(userRepo, logger)

	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:    handler.NewAuthHandler(authService, logger),
		UsersHandler:   handler.NewUsersHandler(usersService, logger),
		AuthMiddleware: auth.Middleware(issuer, userRepo, auth.DefaultConfig()),
		Health:         db,
		Logger:         logger,
	})

	server := httptest.NewServer(router.Handler())
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, server *httptest.Server, method, path, bearer string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, server.URL+path, buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func register(t *testing.T, server *httptest.Server, name, email, password string) map[string]interface{} {
	t.Helper()
	resp, body := doJSON(t, server, http.MethodPost, "/api/Auth/register", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "register %s: %s", email, body)

	var profile map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &profile))
	return profile
}

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	resp, body := doJSON(t, server, http.MethodPost, "/api/Auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "login %s: %s", email, body)

	// The login body is the public profile with the token alongside.
	var out struct {
		Email string `json:"email"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.Token)
	require.Equal(t, email, out.Email)
	return out.Token
}

func TestRegisterLoginMe(t *testing.T) {
	server := newTestServer(t)

	profile := register(t, server, "Alice", "alice@example.com", "password123")
	require.Equal(t, "Alice", profile["name"])
	require.NotContains(t, profile, "passwordHash", "hash must never leak")
	require.Equal(t, false, profile["isBlocked"])
	require.Nil(t, profile["lastLogin"])

	tok := login(t, server, "alice@example.com", "password123")

	resp, body := doJSON(t, server, http.MethodGet, "/api/Auth/me", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &me))
	require.Equal(t, "alice@example.com", me["email"])
	require.NotNil(t, me["lastLogin"], "login must stamp lastLogin")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	server := newTestServer(t)
	register(t, server, "Alice", "alice@example.com", "password123")

	resp, _ := doJSON(t, server, http.MethodPost, "/api/Auth/register", "", map[string]string{
		"name": "Impostor", "email": "ALICE@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	server := newTestServer(t)
	register(t, server, "Alice", "alice@example.com", "password123")

	var bodies []string
	for _, creds := range []map[string]string{
		{"email": "nobody@example.com", "password": "password123"},
		{"email": "alice@example.com", "password": "wrong"},
	} {
		resp, body := doJSON(t, server, http.MethodPost, "/api/Auth/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		bodies = append(bodies, string(body))
	}
	require.Equal(t, bodies[0], bodies[1], "failure responses must be indistinguishable")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	server := newTestServer(t)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/Auth/me"},
		{http.MethodGet, "/api/Users"},
		{http.MethodPost, "/api/Users/block"},
	} {
		resp, _ := doJSON(t, server, tc.method, tc.path, "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}

func TestUpdateProfileSelfOnly(t *testing.T) {
	server := newTestServer(t)
	alice := register(t, server, "Alice", "alice@example.com", "password123")
	bob := register(t, server, "Bob", "bob@example.com", "password123")
	tok := login(t, server, "alice@example.com", "password123")

	aliceID := int64(alice["id"].(float64))
	bobID := int64(bob["id"].(float64))

	// Updating someone else's profile is forbidden.
	resp, _ := doJSON(t, server, http.MethodPost, "/api/Auth/updateProfileInfo", tok, map[string]interface{}{
		"id": bobID, "name": "Hacked", "email": "hacked@example.com",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Updating your own works.
	resp, body := doJSON(t, server, http.MethodPost, "/api/Auth/updateProfileInfo", tok, map[string]interface{}{
		"id": aliceID, "name": "Alice Smith", "email": "alice.smith@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "%s", body)

	var updated map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &updated))
	require.Equal(t, "Alice Smith", updated["name"])

	// Taking Bob's email conflicts.
	resp, _ = doJSON(t, server, http.MethodPost, "/api/Auth/updateProfileInfo", tok, map[string]interface{}{
		"id": aliceID, "name": "Alice", "email": "bob@example.com",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUpdatePassword(t *testing.T) {
	server := newTestServer(t)
	alice := register(t, server, "Alice", "alice@example.com", "password123")
	tok := login(t, server, "alice@example.com", "password123")
	aliceID := int64(alice["id"].(float64))

	const path = "/api/Auth/updatePassword"

	// Mismatched confirmation.
	resp, _ := doJSON(t, server, http.MethodPost, path, tok, map[string]interface{}{
		"userId": aliceID, "currentPassword": "password123", "newPassword": "newpassword456", "confirmNewPassword": "other",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Wrong current password.
	resp, _ = doJSON(t, server, http.MethodPost, path, tok, map[string]interface{}{
		"userId": aliceID, "currentPassword": "wrong", "newPassword": "newpassword456", "confirmNewPassword": "newpassword456",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Success, then the old password stops working and the new one works.
	resp, _ = doJSON(t, server, http.MethodPost, path, tok, map[string]interface{}{
		"userId": aliceID, "currentPassword": "password123", "newPassword": "newpassword456", "confirmNewPassword": "newpassword456",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, server, http.MethodPost, "/api/Auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	login(t, server, "alice@example.com", "newpassword456")
}

func TestBlockUnblockFlow(t *testing.T) {
	server := newTestServer(t)
	register(t, server, "Admin", "admin@example.com", "password123")
	bob := register(t, server, "Bob", "bob@example.com", "password123")
	adminTok := login(t, server, "admin@example.com", "password123")
	bobTok := login(t, server, "bob@example.com", "password123")
	bobID := int64(bob["id"].(float64))

	// Block Bob. His outstanding token stops working immediately.
	resp, _ := doJSON(t, server, http.MethodPost, "/api/Users/block", adminTok, map[string][]int64{
		"userIds": {bobID},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, server, http.MethodGet, "/api/Auth/me", bobTok, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Blocked users cannot log in, and the error does not say why.
	resp, _ = doJSON(t, server, http.MethodPost, "/api/Auth/login", "", map[string]string{
		"email": "bob@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Unblock. The old token becomes usable again (it is still unexpired).
	resp, _ = doJSON(t, server, http.MethodPost, "/api/Users/unblock", adminTok, map[string][]int64{
		"userIds": {bobID},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, server, http.MethodGet, "/api/Auth/me", bobTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDeleteFlow(t *testing.T) {
	server := newTestServer(t)
	register(t, server, "Admin", "admin@example.com", "password123")
	bob := register(t, server, "Bob", "bob@example.com", "password123")
	adminTok := login(t, server, "admin@example.com", "password123")
	bobTok := login(t, server, "bob@example.com", "password123")
	bobID := int64(bob["id"].(float64))

	// Deleting a mix of known and unknown ids still succeeds; unknown ids
	// are skipped.
	resp, _ := doJSON(t, server, http.MethodDelete, "/api/Users/delete", adminTok, map[string][]int64{
		"userIds": {bobID, 99999},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Bob's token is now a token for a nonexistent subject.
	resp, _ = doJSON(t, server, http.MethodGet, "/api/Auth/me", bobTok, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, server, http.MethodGet, fmt.Sprintf("/api/Users/%d", bobID), adminTok, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBulkEmptyIDsRejected(t *testing.T) {
	server := newTestServer(t)
	register(t, server, "Admin", "admin@example.com", "password123")
	adminTok := login(t, server, "admin@example.com", "password123")

	resp, _ := doJSON(t, server, http.MethodPost, "/api/Users/block", adminTok, map[string][]int64{
		"userIds": {},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUsersListQuery(t *testing.T) {
	server := newTestServer(t)
	register(t, server, "Admin", "admin@example.com", "adminpass123")
	adminTok := login(t, server, "admin@example.com", "adminpass123")

	for i := 1; i <= 14; i++ {
		register(t, server, fmt.Sprintf("User %02d", i), fmt.Sprintf("user%02d@example.com", i), "password123")
	}

	var out struct {
		Items      []map[string]interface{} `json:"items"`
		TotalCount int64                    `json:"totalCount"`
		PageNumber int                      `json:"pageNumber"`
		PageSize   int                      `json:"pageSize"`
		TotalPages int                      `json:"totalPages"`
	}

	resp, body := doJSON(t, server, http.MethodGet, "/api/Users?pageNumber=2&pageSize=10", adminTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, int64(15), out.TotalCount)
	require.Len(t, out.Items, 5)
	require.Equal(t, 2, out.PageNumber)
	require.Equal(t, 2, out.TotalPages)

	// Search filters the total, not just the page.
	resp, body = doJSON(t, server, http.MethodGet, "/api/Users?searchTerm=user%200", adminTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, int64(9), out.TotalCount)

	// Sorting by name descending.
	resp, body = doJSON(t, server, http.MethodGet, "/api/Users?sortBy=name&sortDescending=true&pageSize=1", adminTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, "User 14", out.Items[0]["name"])

	// Bad query values are a 400, not a 500.
	resp, _ = doJSON(t, server, http.MethodGet, "/api/Users?pageNumber=abc", adminTok, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, server, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"healthy"}`, string(body))
}
