package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// the login endpoint never leaks whether an account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailAlreadyExists = errors.New("email already exists")

	// ErrInvalidToken covers unknown, expired, revoked and rotated-away
	// refresh tokens alike. One error, no oracle about why.
	ErrInvalidToken = errors.New("invalid refresh token")

	ErrAccountDisabled = errors.New("account disabled")
)

// AccountLockedError reports a lockout together with its expiry so handlers
// can tell the caller when to retry.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}
