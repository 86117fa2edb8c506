package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskhub/internal/cache"
	"taskhub/internal/database"
	"taskhub/internal/domain"
	"taskhub/internal/middleware"
	"taskhub/internal/modules/auth"
	"taskhub/internal/modules/notification"
	"taskhub/internal/modules/todo"
	jwtsvc "taskhub/internal/pkg/jwt"
	"taskhub/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPepper = "e2e-pepper"

type E2ETestSuite struct {
	router     *gin.Engine
	db         *gorm.DB
	jwtService *jwtsvc.Service
	redis      *miniredis.Miniredis
}

type TestResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *ErrorDetail           `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func setupTestSuite(t *testing.T) *E2ETestSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Connect(":memory:")
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.RefreshToken{}, &domain.Todo{}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	appCache := cache.New(client)

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	todoRepo := repository.NewTodoRepository(db)

	jwtService := jwtsvc.New("e2e-secret", 15*time.Minute)
	hub := notification.NewHub()
	t.Cleanup(hub.Close)

	authService := auth.NewService(userRepo, tokenRepo, jwtService, appCache, hub, testPepper, 7*24*time.Hour)
	authHandler := auth.NewHandler(authService, appCache, auth.CookieConfig{
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   7 * 24 * time.Hour,
	})
	todoHandler := todo.NewHandler(todo.NewService(todoRepo, appCache))

	router := gin.New()
	v1 := router.Group("/api/v1")
	authHandler.RegisterPublicRoutes(v1)

	protected := v1.Group("")
	protected.Use(middleware.RequireAuth(jwtService, userRepo))
	authHandler.RegisterProtectedRoutes(protected)
	todoHandler.RegisterRoutes(protected)

	admin := protected.Group("")
	admin.Use(middleware.AdminOnly())
	authHandler.RegisterAdminRoutes(admin)

	store := middleware.NewSessionStore("e2e-session-secret", false)
	web := router.Group("/web")
	web.Use(middleware.WebSession(authService, auth.RefreshCookieName), middleware.CSRF(store))
	authHandler.RegisterWebRoutes(web)

	return &E2ETestSuite{router: router, db: db, jwtService: jwtService, redis: mr}
}

func (s *E2ETestSuite) request(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, TestResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var parsed TestResponse
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &parsed)
	}
	return w, parsed
}

func (s *E2ETestSuite) register(t *testing.T, email, pw string) {
	t.Helper()
	w, _ := s.request(t, http.MethodPost, "/api/v1/auth/register", gin.H{"email": email, "password": pw}, "")
	require.Equal(t, http.StatusCreated, w.Code)
}

func (s *E2ETestSuite) login(t *testing.T, email, pw string) (string, string) {
	t.Helper()
	w, resp := s.request(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": email, "password": pw}, "")
	require.Equal(t, http.StatusOK, w.Code)
	return resp.Data["access_token"].(string), resp.Data["refresh_token"].(string)
}

func TestAuthLifecycle(t *testing.T) {
	s := setupTestSuite(t)

	s.register(t, "alice@example.com", "pw12345")
	access, refresh := s.login(t, "alice@example.com", "pw12345")

	// Access token works.
	w, resp := s.request(t, http.MethodGet, "/api/v1/users/me", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	user := resp.Data["user"].(map[string]interface{})
	assert.Equal(t, "alice@example.com", user["email"])

	// Preferences update shows up on the next /users/me despite the cache.
	w, _ = s.request(t, http.MethodPut, "/api/v1/users/me/preferences", gin.H{"preferences": gin.H{"theme": "dark"}}, access)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = s.request(t, http.MethodGet, "/api/v1/users/me", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	user = resp.Data["user"].(map[string]interface{})
	assert.Equal(t, "dark", user["preferences"].(map[string]interface{})["theme"])

	// Refresh rotates: new pair comes back, the old token is dead.
	w, resp = s.request(t, http.MethodPost, "/api/v1/auth/refresh", gin.H{"refresh_token": refresh}, "")
	require.Equal(t, http.StatusOK, w.Code)
	newRefresh := resp.Data["refresh_token"].(string)
	assert.NotEqual(t, refresh, newRefresh)

	w, resp = s.request(t, http.MethodPost, "/api/v1/auth/refresh", gin.H{"refresh_token": refresh}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", resp.Error.Code)

	// Logout kills the current token; refreshing with it fails too.
	w, _ = s.request(t, http.MethodPost, "/api/v1/auth/logout", gin.H{"refresh_token": newRefresh}, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = s.request(t, http.MethodPost, "/api/v1/auth/refresh", gin.H{"refresh_token": newRefresh}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Second logout of the same token reports failure.
	w, resp = s.request(t, http.MethodPost, "/api/v1/auth/logout", gin.H{"refresh_token": newRefresh}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ALREADY_REVOKED", resp.Error.Code)
}

func TestAccountLockout(t *testing.T) {
	s := setupTestSuite(t)
	s.register(t, "bob@example.com", "pw12345")

	// Five wrong passwords arm the lock.
	for i := 0; i < 5; i++ {
		w, resp := s.request(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "bob@example.com", "password": "wrong"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i+1)
		assert.Equal(t, "INVALID_CREDENTIALS", resp.Error.Code)
	}

	// Now even the right password answers locked.
	w, resp := s.request(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "bob@example.com", "password": "pw12345"}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ACCOUNT_LOCKED", resp.Error.Code)

	// Expire the lock manually; login succeeds again.
	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, s.db.Model(&domain.User{}).Where("email = ?", "bob@example.com").Update("locked_until", past).Error)

	w, _ = s.request(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "bob@example.com", "password": "pw12345"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutAll_KillsEverySession(t *testing.T) {
	s := setupTestSuite(t)
	s.register(t, "carol@example.com", "pw12345")

	access, firstRefresh := s.login(t, "carol@example.com", "pw12345")
	_, secondRefresh := s.login(t, "carol@example.com", "pw12345")

	w, resp := s.request(t, http.MethodPost, "/api/v1/auth/logout-all", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), resp.Data["revoked"])

	for _, refresh := range []string{firstRefresh, secondRefresh} {
		w, _ = s.request(t, http.MethodPost, "/api/v1/auth/refresh", gin.H{"refresh_token": refresh}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	// The revocation cache carries every hash.
	assert.NotEmpty(t, s.redis.Keys())
}

func TestAdminDeactivate_LocksOutImmediately(t *testing.T) {
	s := setupTestSuite(t)

	// Promote an admin directly; registration only mints plain users.
	s.register(t, "root@example.com", "pw12345")
	require.NoError(t, s.db.Model(&domain.User{}).Where("email = ?", "root@example.com").Update("role", domain.RoleAdmin).Error)
	adminAccess, _ := s.login(t, "root@example.com", "pw12345")

	s.register(t, "victim@example.com", "pw12345")
	victimAccess, victimRefresh := s.login(t, "victim@example.com", "pw12345")

	var victim domain.User
	require.NoError(t, s.db.Where("email = ?", "victim@example.com").First(&victim).Error)

	w, _ := s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/deactivate", victim.ID), nil, adminAccess)
	require.Equal(t, http.StatusOK, w.Code)

	// Still-valid JWT dies at the middleware.
	w, resp := s.request(t, http.MethodGet, "/api/v1/users/me", nil, victimAccess)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ACCOUNT_DISABLED", resp.Error.Code)

	// The refresh token family is gone too.
	w, _ = s.request(t, http.MethodPost, "/api/v1/auth/refresh", gin.H{"refresh_token": victimRefresh}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeactivate_RequiresAdmin(t *testing.T) {
	s := setupTestSuite(t)
	s.register(t, "plain@example.com", "pw12345")
	access, _ := s.login(t, "plain@example.com", "pw12345")

	w, resp := s.request(t, http.MethodPost, "/api/v1/admin/users/1/deactivate", nil, access)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)
}

func TestTodos_EndToEnd(t *testing.T) {
	s := setupTestSuite(t)
	s.register(t, "dana@example.com", "pw12345")
	access, _ := s.login(t, "dana@example.com", "pw12345")

	w, resp := s.request(t, http.MethodPost, "/api/v1/todos", gin.H{"title": "ship it"}, access)
	require.Equal(t, http.StatusCreated, w.Code)
	created := resp.Data["todo"].(map[string]interface{})
	id := int64(created["id"].(float64))

	w, resp = s.request(t, http.MethodGet, "/api/v1/todos", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data["todos"], 1)

	w, resp = s.request(t, http.MethodPut, fmt.Sprintf("/api/v1/todos/%d", id), gin.H{"status": "done"}, access)
	require.Equal(t, http.StatusOK, w.Code)
	updated := resp.Data["todo"].(map[string]interface{})
	assert.Equal(t, "done", updated["status"])

	w, _ = s.request(t, http.MethodDelete, fmt.Sprintf("/api/v1/todos/%d", id), nil, access)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Another user cannot see dana's data, nor act without a token.
	w, _ = s.request(t, http.MethodGet, "/api/v1/todos", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebFlow_CookieLoginAndCSRF(t *testing.T) {
	s := setupTestSuite(t)
	s.register(t, "erin@example.com", "pw12345")

	// Mint CSRF token + session cookie.
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/web/csrf", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var csrfResp TestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &csrfResp))
	csrfToken := csrfResp.Data["csrf_token"].(string)
	sessionCookies := w.Result().Cookies()

	// Form login with the CSRF token; refresh token lands in a cookie.
	form := fmt.Sprintf("email=%s&password=%s&csrf_token=%s", "erin@example.com", "pw12345", csrfToken)
	req := httptest.NewRequest(http.MethodPost, "/web/login", bytes.NewBufferString(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range sessionCookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var refreshCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.RefreshCookieName {
			refreshCookie = c
		}
	}
	require.NotNil(t, refreshCookie)
	assert.True(t, refreshCookie.HttpOnly)

	// Session endpoint recognizes the cookie, read-only.
	req = httptest.NewRequest(http.MethodGet, "/web/session", nil)
	req.AddCookie(refreshCookie)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var sessionResp TestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessionResp))
	assert.Equal(t, true, sessionResp.Data["authenticated"])

	// Login without the CSRF token is refused before credentials matter.
	form = "email=erin@example.com&password=pw12345"
	req = httptest.NewRequest(http.MethodPost, "/web/login", bytes.NewBufferString(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range sessionCookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := setupTestSuite(t)
	s.register(t, "dup@example.com", "pw12345")

	w, resp := s.request(t, http.MethodPost, "/api/v1/auth/register", gin.H{"email": "dup@example.com", "password": "pw12345"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "EMAIL_EXISTS", resp.Error.Code)
}
