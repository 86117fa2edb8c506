package auth

import (
	"context"
	"time"

	"taskhub/internal/domain"
)

// UserRepositoryInterface — only the methods the auth service uses.
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, u *domain.User) error
	UpdateLoginState(ctx context.Context, id int64, failedAttempts int, lockedUntil *time.Time) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// RefreshTokenRepositoryInterface — storage for refresh tokens. RevokeIfActive
// must be an atomic conditional update: concurrent callers for the same row
// get at most one true. Rotation correctness depends on it.
type RefreshTokenRepositoryInterface interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	RevokeIfActive(ctx context.Context, id int64) (bool, error)
	ListActiveByUser(ctx context.Context, userID int64) ([]domain.RefreshToken, error)
	RevokeAllActiveByUser(ctx context.Context, userID int64) (int64, error)
}

type jwtService interface {
	GenerateToken(userID int64) (string, error)
}

// RevocationCache is the optional fast path for known-revoked tokens. A nil
// cache disables the fast path; errors are advisory and never block the
// authoritative database check.
type RevocationCache interface {
	MarkRevoked(ctx context.Context, tokenHash string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
}

// SessionNotifier receives session lifecycle events for realtime delivery.
type SessionNotifier interface {
	SessionsRevoked(userID int64, count int)
}
