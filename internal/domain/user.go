package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User is the identity record. The lockout fields are only ever mutated by the
// auth service: failed_login_attempts counts consecutive failures and resets on
// any successful login, locked_until marks the end of a temporary lockout.
type User struct {
	ID           int64    `json:"id" gorm:"primaryKey"`
	Email        string   `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string   `json:"-" gorm:"size:255;not null"`
	Role         UserRole `json:"role" gorm:"size:50;not null;default:user"`
	IsActive     bool     `json:"is_active" gorm:"not null;default:true"`

	FailedLoginAttempts int        `json:"-" gorm:"not null;default:0"`
	LockedUntil         *time.Time `json:"-"`

	// Preferences is a free-form settings blob with well-known keys
	// ("theme", "timezone", "notifications"), stored as JSON.
	Preferences Preferences `json:"preferences,omitempty" gorm:"type:json;serializer:json"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Preferences maps explicit preference keys to values. Typed map instead of
// ad hoc attribute patching so callers can only touch known keys.
type Preferences map[string]string

func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
