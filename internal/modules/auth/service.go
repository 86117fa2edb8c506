package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"taskhub/internal/domain"
	"taskhub/internal/pkg/password"
	"taskhub/internal/repository"
)

const (
	// After this many consecutive failures the account is locked and the
	// counter starts over.
	maxFailedLoginAttempts = 5
	lockoutDuration        = 15 * time.Minute
)

type Service struct {
	users       UserRepositoryInterface
	tokens      RefreshTokenRepositoryInterface
	jwt         jwtService
	revocations RevocationCache
	notifier    SessionNotifier

	refreshTokenPepper string
	refreshTTL         time.Duration
}

// NewService wires the auth service. revocations and notifier may be nil;
// both are best-effort side channels, never part of the decision path.
func NewService(
	users UserRepositoryInterface,
	tokens RefreshTokenRepositoryInterface,
	jwt jwtService,
	revocations RevocationCache,
	notifier SessionNotifier,
	refreshTokenPepper string,
	refreshTTL time.Duration,
) *Service {
	return &Service{
		users:              users,
		tokens:             tokens,
		jwt:                jwt,
		revocations:        revocations,
		notifier:           notifier,
		refreshTokenPepper: refreshTokenPepper,
		refreshTTL:         refreshTTL,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks the lockout window before the password, so a locked account
// answers "locked" even to the correct password and the counter cannot be
// probed during the window.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	now := time.Now().UTC()

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.IsLocked(now) {
		return nil, &AccountLockedError{Until: *user.LockedUntil}
	}

	if !password.Verify(req.Password, user.PasswordHash) {
		attempts := user.FailedLoginAttempts + 1
		var lockedUntil *time.Time
		if attempts >= maxFailedLoginAttempts {
			until := now.Add(lockoutDuration)
			lockedUntil = &until
			attempts = 0
		}
		if err := s.users.UpdateLoginState(ctx, user.ID, attempts, lockedUntil); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	// Successful login clears both the counter and any expired lock.
	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.users.UpdateLoginState(ctx, user.ID, 0, nil); err != nil {
			return nil, err
		}
	}

	return s.issueTokenPair(ctx, user.ID)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. The conditional revoke is the linearization point, so two
// concurrent calls with the same token produce exactly one winner.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	hash := HashToken(rawToken, s.refreshTokenPepper)
	now := time.Now().UTC()

	if s.knownRevoked(ctx, hash) {
		return nil, ErrInvalidToken
	}

	tok, err := s.tokens.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !tok.IsUsable(now) {
		if tok.IsRevoked() && !tok.IsExpired(now) {
			s.cacheRevocation(ctx, hash, tok.ExpiresAt)
		}
		return nil, ErrInvalidToken
	}

	changed, err := s.tokens.RevokeIfActive(ctx, tok.ID)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost the race to a concurrent refresh with the same token.
		return nil, ErrInvalidToken
	}
	s.cacheRevocation(ctx, hash, tok.ExpiresAt)

	return s.issueTokenPair(ctx, tok.UserID)
}

// Logout revokes the presented refresh token. The returned bool reports
// whether this call actually revoked it, as opposed to it being already
// revoked by an earlier logout or rotation.
func (s *Service) Logout(ctx context.Context, rawToken string) (bool, error) {
	hash := HashToken(rawToken, s.refreshTokenPepper)

	tok, err := s.tokens.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrInvalidToken
		}
		return false, err
	}

	changed, err := s.tokens.RevokeIfActive(ctx, tok.ID)
	if err != nil {
		return false, err
	}
	if changed {
		s.cacheRevocation(ctx, hash, tok.ExpiresAt)
	}
	return changed, nil
}

// LogoutAll revokes every active session of the user and returns how many
// there were. Each revoked hash is pushed to the cache so stale tokens are
// rejected without a database round trip.
func (s *Service) LogoutAll(ctx context.Context, userID int64) (int64, error) {
	active, err := s.tokens.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	count, err := s.tokens.RevokeAllActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	for _, tok := range active {
		s.cacheRevocation(ctx, tok.TokenHash, tok.ExpiresAt)
	}

	if s.notifier != nil && count > 0 {
		s.notifier.SessionsRevoked(userID, int(count))
	}
	return count, nil
}

// Deactivate disables the account and kills all its sessions. Access tokens
// already in flight die at the middleware, which re-checks is_active.
func (s *Service) Deactivate(ctx context.Context, userID int64) error {
	if err := s.users.SetActive(ctx, userID, false); err != nil {
		return err
	}
	_, err := s.LogoutAll(ctx, userID)
	return err
}

func (s *Service) CurrentUser(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdatePreferences replaces the whole preference map. Keys are free-form but
// typed as strings end to end, no ad hoc attribute patching.
func (s *Service) UpdatePreferences(ctx context.Context, userID int64, prefs domain.Preferences) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Preferences = prefs
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ResolveSession is the read-only cookie path: it validates a raw refresh
// token and returns its owner without rotating anything. Disabled accounts
// resolve to ErrAccountDisabled, everything else invalid to ErrInvalidToken.
func (s *Service) ResolveSession(ctx context.Context, rawToken string) (*domain.User, error) {
	hash := HashToken(rawToken, s.refreshTokenPepper)
	now := time.Now().UTC()

	if s.knownRevoked(ctx, hash) {
		return nil, ErrInvalidToken
	}

	tok, err := s.tokens.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !tok.IsUsable(now) {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

func (s *Service) issueTokenPair(ctx context.Context, userID int64) (*TokenPair, error) {
	access, err := s.jwt.GenerateToken(userID)
	if err != nil {
		return nil, err
	}

	raw, err := newRefreshSecret()
	if err != nil {
		return nil, err
	}
	tok := &domain.RefreshToken{
		UserID:    userID,
		TokenHash: HashToken(raw, s.refreshTokenPepper),
		ExpiresAt: time.Now().UTC().Add(s.refreshTTL),
	}
	if err := s.tokens.Create(ctx, tok); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: raw}, nil
}

// knownRevoked is the cache fast path. A cache miss or a cache failure both
// fall through to the database, which stays authoritative.
func (s *Service) knownRevoked(ctx context.Context, hash string) bool {
	if s.revocations == nil {
		return false
	}
	revoked, err := s.revocations.IsRevoked(ctx, hash)
	if err != nil {
		log.Printf("revocation cache read failed: %v", err)
		return false
	}
	return revoked
}

// cacheRevocation is best effort: a failed write is logged and swallowed,
// the database row already carries the revocation.
func (s *Service) cacheRevocation(ctx context.Context, hash string, expiresAt time.Time) {
	if s.revocations == nil {
		return
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if err := s.revocations.MarkRevoked(ctx, hash, ttl); err != nil {
		log.Printf("revocation cache write failed: %v", err)
	}
}
