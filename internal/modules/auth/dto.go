package auth

import "taskhub/internal/domain"

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UpdatePreferencesRequest struct {
	Preferences map[string]string `json:"preferences" binding:"required"`
}

// TokenPair is what a successful login or refresh hands back. The refresh
// secret appears here exactly once; only its hash is stored.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// UserView is the cached representation served by GET /users/me.
type UserView struct {
	ID          int64              `json:"id"`
	Email       string             `json:"email"`
	Role        domain.UserRole    `json:"role"`
	IsActive    bool               `json:"is_active"`
	Preferences domain.Preferences `json:"preferences,omitempty"`
}
