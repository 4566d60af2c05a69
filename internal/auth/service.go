package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service ties the codec, the store and the resolver together into the
// request-facing authorization surface.
type Service struct {
	store    Store
	codec    *Codec
	cache    *DecisionCache
	resolver *Resolver
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithDecisionCache injects a preconfigured cache.
func WithDecisionCache(cache *DecisionCache) ServiceOption {
	return func(s *Service) error {
		if cache != nil {
			s.cache = cache
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the Service.
func NewService(store Store, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	s := &Service{
		store: store,
		codec: codec,
		now:   time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.cache == nil {
		s.cache = NewDecisionCache(0, 0)
	}
	s.resolver = NewResolver(store, s.cache)
	return s, nil
}

// Codec exposes the token codec for middleware that only needs VerifyLight.
func (s *Service) Codec() *Codec { return s.codec }

// EnsureRegistry seeds the closed permission catalog into the store.
func (s *Service) EnsureRegistry(ctx context.Context) error {
	return s.store.EnsurePermissions(ctx, Registry)
}

// Session is the outcome of a successful login or branch switch.
type Session struct {
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
	Branch    Branch    `json:"branch"`
}

// Login authenticates credentials and issues a session pinned to the
// principal's default branch. Credential failures are indistinguishable from
// unknown accounts on purpose.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, ErrUnauthorized
	}
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrUnauthorized
		}
		return Session{}, err
	}
	if user.Status != UserStatusActive {
		return Session{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return Session{}, ErrUnauthorized
	}
	branch, err := s.defaultBranch(ctx, user)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			return Session{}, ErrForbidden
		}
		return Session{}, err
	}
	s.cache.Invalidate(user.ID)
	token, exp, err := s.codec.Sign(user, branch.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: user, Branch: branch}, nil
}

// VerifyFull performs the cheap checks plus the revocation cross-reference:
// the embedded version must exactly equal the stored counter, independent of
// signature and expiry validity.
func (s *Service) VerifyFull(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.codec.VerifyLight(token)
	if err != nil {
		return nil, err
	}
	current, err := s.store.TokenVersion(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}
	if claims.TokenVersion != current {
		return nil, ErrRevoked
	}
	return claims, nil
}

// RevokeAll bumps the principal's token version, instantly invalidating
// every outstanding token. The store write is durable before this returns.
func (s *Service) RevokeAll(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if _, err := s.store.BumpTokenVersion(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrPrincipalNotFound
		}
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

// SwitchBranch validates the requested branch against the verified claims
// and issues a fresh token pinned to it. The guarded branch id is what gets
// re-embedded; node ids from request bodies never feed authorization
// decisions directly.
func (s *Service) SwitchBranch(ctx context.Context, claims *Claims, branchID string) (Session, error) {
	if claims == nil {
		return Session{}, ErrUnauthorized
	}
	branch, err := s.AuthorizeBranchSwitch(ctx, claims.Subject, claims.TenantID, branchID)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.FindUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrPrincipalNotFound
		}
		return Session{}, err
	}
	token, exp, err := s.codec.Sign(user, branch.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: user, Branch: branch}, nil
}

// Resolve returns the effective permission set for the verified session.
func (s *Service) Resolve(ctx context.Context, claims *Claims) (PermissionSet, error) {
	if claims == nil {
		return nil, ErrUnauthorized
	}
	return s.resolver.Resolve(ctx, claims.Subject, claims.BranchID)
}

// Can reports whether the session holds key. Fails closed.
func (s *Service) Can(ctx context.Context, claims *Claims, key Permission) bool {
	if claims == nil {
		return false
	}
	return s.resolver.Can(ctx, claims.Subject, claims.BranchID, key)
}

// SetOverride records a per-user grant/deny exception and invalidates the
// principal's cached sets.
func (s *Service) SetOverride(ctx context.Context, ov PermissionOverride) (PermissionOverride, error) {
	ov.UserID = strings.TrimSpace(ov.UserID)
	if ov.UserID == "" {
		return PermissionOverride{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if ov.Polarity != OverrideGrant && ov.Polarity != OverrideDeny {
		return PermissionOverride{}, fmt.Errorf("%w: polarity must be grant or deny", ErrInvalidInput)
	}
	if !IsRegistered(ov.Key) {
		return PermissionOverride{}, fmt.Errorf("%w: permission %s is not registered", ErrInvalidInput, ov.Key)
	}
	if ov.BranchID != nil {
		trimmed := strings.TrimSpace(*ov.BranchID)
		if trimmed == "" {
			ov.BranchID = nil
		} else {
			ov.BranchID = &trimmed
		}
	}
	stored, err := s.store.SetOverride(ctx, ov)
	if err != nil {
		return PermissionOverride{}, err
	}
	s.cache.Invalidate(ov.UserID)
	return stored, nil
}

// RemoveOverride deletes an exception row.
func (s *Service) RemoveOverride(ctx context.Context, userID string, key Permission, branchID *string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if err := s.store.RemoveOverride(ctx, userID, key, branchID); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

// SetRolePermissions replaces a role's grants. Unregistered keys are
// rejected before the store is touched. Holder membership is not tracked
// here, so the whole decision cache is purged rather than invalidated per
// user; the edit is visible on the next resolution.
func (s *Service) SetRolePermissions(ctx context.Context, roleID string, keys []Permission) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	deduped := make([]Permission, 0, len(keys))
	seen := make(map[Permission]struct{}, len(keys))
	for _, key := range keys {
		key = Permission(strings.TrimSpace(string(key)))
		if key == "" {
			continue
		}
		if !IsRegistered(key) {
			return fmt.Errorf("%w: permission %s is not registered", ErrInvalidInput, key)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, key)
	}
	if err := s.store.SetRolePermissions(ctx, roleID, deduped); err != nil {
		return err
	}
	s.cache.Purge()
	return nil
}

// AssignRole attaches a role to a user.
func (s *Service) AssignRole(ctx context.Context, userID, roleID string) (UserRoleAssignment, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return UserRoleAssignment{}, fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	assignment, err := s.store.AssignRoleToUser(ctx, userID, roleID)
	if err != nil {
		return UserRoleAssignment{}, err
	}
	s.cache.Invalidate(userID)
	return assignment, nil
}

// UnassignRole removes a role from a user.
func (s *Service) UnassignRole(ctx context.Context, userID, roleID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	if err := s.store.RemoveRoleAssignment(ctx, userID, roleID); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}
