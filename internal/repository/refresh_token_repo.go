package repository

import (
	"context"
	"errors"
	"time"

	"taskhub/internal/domain"

	"gorm.io/gorm"
)

// RefreshTokenRepository provides DB access for refresh tokens.
type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// RevokeIfActive marks a token revoked iff it is not revoked already, as a
// single conditional UPDATE. The bool result is the compare-and-set outcome:
// when two requests race to rotate the same token, at most one sees true.
func (r *RefreshTokenRepository) RevokeIfActive(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListActiveByUser returns every unrevoked, unexpired token owned by a user.
func (r *RefreshTokenRepository) ListActiveByUser(ctx context.Context, userID int64) ([]domain.RefreshToken, error) {
	now := time.Now().UTC()
	var tokens []domain.RefreshToken
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Find(&tokens).Error
	return tokens, err
}

// RevokeAllActiveByUser revokes every active token owned by a user and
// returns how many rows changed.
func (r *RefreshTokenRepository) RevokeAllActiveByUser(ctx context.Context, userID int64) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now)
	return res.RowsAffected, res.Error
}

// DeleteExpired removes tokens past expiry and tokens revoked longer than
// revokedRetention ago. Used by the cleanup job, never by request paths.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, revokedRetention time.Duration) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", now, now.Add(-revokedRetention)).
		Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}
