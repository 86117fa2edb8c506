package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"taskhub/internal/cache"
	"taskhub/internal/domain"
	"taskhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	// RefreshCookieName is where the web flow keeps the refresh token.
	// HttpOnly, so page scripts never see the raw secret.
	RefreshCookieName = "refresh_token"

	userViewTTL = 5 * time.Minute
)

// CookieConfig carries the deployment-dependent cookie attributes.
type CookieConfig struct {
	Path     string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

type Handler struct {
	service   *Service
	viewCache *cache.Cache
	cookies   CookieConfig
}

func NewHandler(service *Service, viewCache *cache.Cache, cookies CookieConfig) *Handler {
	return &Handler{service: service, viewCache: viewCache, cookies: cookies}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	protected.POST("/auth/logout-all", h.LogoutAll)
	protected.GET("/users/me", h.GetMe)
	protected.PUT("/users/me/preferences", h.UpdatePreferences)
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.POST("/admin/users/:id/deactivate", h.DeactivateUser)
}

// RegisterWebRoutes registers the cookie-based flow. The group must already
// carry the session middleware (read-only cookie auth) and the CSRF guard.
func (h *Handler) RegisterWebRoutes(web *gin.RouterGroup) {
	web.POST("/login", h.WebLogin)
	web.POST("/logout", h.WebLogout)
	web.GET("/session", h.WebSession)
	web.GET("/csrf", h.WebCSRF)
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			response.Error(c, http.StatusConflict, "EMAIL_EXISTS", "This email is already registered")
			return
		}
		response.Error(c, http.StatusInternalServerError, "REGISTRATION_FAILED", "Failed to register user")
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	pair, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.writeLoginError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "bearer",
	})
}

func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "refresh_token is required")
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired refresh token")
			return
		}
		response.Error(c, http.StatusInternalServerError, "REFRESH_FAILED", "Failed to refresh session")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "bearer",
	})
}

// Logout accepts the refresh token in the body or, for browser clients, in
// the cookie. 204 when this call revoked it, 400 otherwise.
func (h *Handler) Logout(c *gin.Context) {
	var req LogoutRequest
	_ = c.ShouldBindJSON(&req)

	raw := req.RefreshToken
	if raw == "" {
		raw, _ = c.Cookie(RefreshCookieName)
	}
	if raw == "" {
		response.Error(c, http.StatusBadRequest, "NO_TOKEN", "No refresh token provided")
		return
	}

	changed, err := h.service.Logout(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			response.Error(c, http.StatusBadRequest, "INVALID_TOKEN", "Unknown refresh token")
			return
		}
		response.Error(c, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to log out")
		return
	}
	if !changed {
		response.Error(c, http.StatusBadRequest, "ALREADY_REVOKED", "Session already ended")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) LogoutAll(c *gin.Context) {
	userID := c.GetInt64("user_id")

	count, err := h.service.LogoutAll(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to revoke sessions")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "All sessions revoked",
		"revoked": count,
	})
}

func (h *Handler) GetMe(c *gin.Context) {
	userID := c.GetInt64("user_id")
	ctx := c.Request.Context()
	key := cache.UserViewKey(userID)

	var view UserView
	if hit, err := h.viewCache.GetJSON(ctx, key, &view); err == nil && hit {
		response.Success(c, http.StatusOK, gin.H{"user": view})
		return
	}

	user, err := h.service.CurrentUser(ctx, userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "USER_FETCH_FAILED", "Failed to load user")
		return
	}

	view = UserView{
		ID:          user.ID,
		Email:       user.Email,
		Role:        user.Role,
		IsActive:    user.IsActive,
		Preferences: user.Preferences,
	}
	_ = h.viewCache.SetJSON(ctx, key, view, userViewTTL)

	response.Success(c, http.StatusOK, gin.H{"user": view})
}

func (h *Handler) UpdatePreferences(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "preferences object is required")
		return
	}

	user, err := h.service.UpdatePreferences(c.Request.Context(), userID, domain.Preferences(req.Preferences))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "PREFERENCES_FAILED", "Failed to update preferences")
		return
	}
	// Drop the cached view so the next /users/me sees the new values.
	_ = h.viewCache.Delete(c.Request.Context(), cache.UserViewKey(userID))

	response.Success(c, http.StatusOK, gin.H{"preferences": user.Preferences})
}

func (h *Handler) DeactivateUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user id")
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), id); err != nil {
		response.Error(c, http.StatusInternalServerError, "DEACTIVATE_FAILED", "Failed to deactivate user")
		return
	}
	_ = h.viewCache.Delete(c.Request.Context(), cache.UserViewKey(id))

	response.Success(c, http.StatusOK, gin.H{"message": "User deactivated"})
}

// WebLogin is the form-based login: same credential checks as the API path,
// but the refresh token lands in an HttpOnly cookie instead of the body.
func (h *Handler) WebLogin(c *gin.Context) {
	req := LoginRequest{
		Email:    c.PostForm("email"),
		Password: c.PostForm("password"),
	}
	if req.Email == "" || req.Password == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "email and password are required")
		return
	}

	pair, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.writeLoginError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken, h.cookies.MaxAge)
	response.Success(c, http.StatusOK, gin.H{
		"access_token": pair.AccessToken,
		"token_type":   "bearer",
	})
}

func (h *Handler) WebLogout(c *gin.Context) {
	raw, _ := c.Cookie(RefreshCookieName)
	if raw != "" {
		// Cookie deletion happens regardless of the revoke outcome.
		_, _ = h.service.Logout(c.Request.Context(), raw)
	}

	h.setRefreshCookie(c, "", -time.Second)
	c.Status(http.StatusNoContent)
}

// WebSession reports who the cookie belongs to. Anonymous is a normal
// answer here, not an error.
func (h *Handler) WebSession(c *gin.Context) {
	userID, ok := c.Get("user_id")
	if !ok {
		response.Success(c, http.StatusOK, gin.H{"authenticated": false})
		return
	}

	user, err := h.service.CurrentUser(c.Request.Context(), userID.(int64))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "USER_FETCH_FAILED", "Failed to load user")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"authenticated": true,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// WebCSRF hands out the per-session CSRF token minted by the guard.
func (h *Handler) WebCSRF(c *gin.Context) {
	token := c.GetString("csrf_token")
	if token == "" {
		response.Error(c, http.StatusInternalServerError, "CSRF_UNAVAILABLE", "Failed to issue CSRF token")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"csrf_token": token})
}

func (h *Handler) writeLoginError(c *gin.Context, err error) {
	var locked *AccountLockedError
	switch {
	case errors.As(err, &locked):
		response.Error(c, http.StatusForbidden, "ACCOUNT_LOCKED",
			fmt.Sprintf("Account locked until %s", locked.Until.Format(time.RFC3339)))
	case errors.Is(err, ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	default:
		response.Error(c, http.StatusInternalServerError, "LOGIN_FAILED", "Failed to log in")
	}
}

func (h *Handler) setRefreshCookie(c *gin.Context, value string, maxAge time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     h.cookies.Path,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: h.cookies.SameSite,
	})
}
