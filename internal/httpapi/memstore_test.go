package httpapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"opencampus.org/internal/auth"
)

// memStore is an in-memory auth.Store used by handler tests.
type memStore struct {
	mu           sync.Mutex
	users        map[string]auth.User
	branches     map[string]auth.Branch
	userBranches map[string][]string
	roles        map[string]auth.Role
	userRoles    map[string][]string
	rolePerms    map[string][]auth.Permission
	overrides    []auth.PermissionOverride
	nextID       int
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[string]auth.User{},
		branches:     map[string]auth.Branch{},
		userBranches: map[string][]string{},
		roles:        map[string]auth.Role{},
		userRoles:    map[string][]string{},
		rolePerms:    map[string][]auth.Permission{},
	}
}

func (m *memStore) id() string {
	m.nextID++
	return fmt.Sprintf("mem-%d", m.nextID)
}

func (m *memStore) FindUser(_ context.Context, userID string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return u, nil
}

func (m *memStore) FindUserByEmail(_ context.Context, email string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrNotFound
}

func (m *memStore) TokenVersion(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, auth.ErrNotFound
	}
	return u.TokenVersion, nil
}

func (m *memStore) BumpTokenVersion(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, auth.ErrNotFound
	}
	u.TokenVersion++
	m.users[userID] = u
	return u.TokenVersion, nil
}

func (m *memStore) UserRoles(_ context.Context, userID string) ([]auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var roles []auth.Role
	for _, roleID := range m.userRoles[userID] {
		if role, ok := m.roles[roleID]; ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func (m *memStore) RolePermissionKeys(_ context.Context, userID string) ([]auth.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[auth.Permission]struct{}{}
	var keys []auth.Permission
	for _, roleID := range m.userRoles[userID] {
		for _, key := range m.rolePerms[roleID] {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *memStore) Overrides(_ context.Context, userID string) ([]auth.PermissionOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []auth.PermissionOverride
	for _, ov := range m.overrides {
		if ov.UserID == userID {
			result = append(result, ov)
		}
	}
	return result, nil
}

func (m *memStore) Branch(_ context.Context, branchID string) (auth.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.branches[branchID]
	if !ok {
		return auth.Branch{}, auth.ErrNotFound
	}
	return b, nil
}

func (m *memStore) UserBranches(_ context.Context, userID string) ([]auth.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var branches []auth.Branch
	for _, id := range m.userBranches[userID] {
		if b, ok := m.branches[id]; ok {
			branches = append(branches, b)
		}
	}
	return branches, nil
}

func (m *memStore) TenantBranches(_ context.Context, tenantID string) ([]auth.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var branches []auth.Branch
	for _, b := range m.branches {
		if b.TenantID == tenantID {
			branches = append(branches, b)
		}
	}
	return branches, nil
}

func (m *memStore) SetOverride(_ context.Context, ov auth.PermissionOverride) (auth.PermissionOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.overrides[:0]
	for _, existing := range m.overrides {
		if existing.UserID == ov.UserID && existing.Key == ov.Key && sameBranch(existing.BranchID, ov.BranchID) {
			continue
		}
		kept = append(kept, existing)
	}
	ov.ID = m.id()
	ov.CreatedAt = time.Now().UTC()
	m.overrides = append(kept, ov)
	return ov, nil
}

func (m *memStore) RemoveOverride(_ context.Context, userID string, key auth.Permission, branchID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.overrides[:0]
	removed := false
	for _, existing := range m.overrides {
		if existing.UserID == userID && existing.Key == key && sameBranch(existing.BranchID, branchID) {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	m.overrides = kept
	if !removed {
		return auth.ErrNotFound
	}
	return nil
}

func (m *memStore) SetRolePermissions(_ context.Context, roleID string, keys []auth.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	m.rolePerms[roleID] = append([]auth.Permission(nil), keys...)
	return nil
}

func (m *memStore) AssignRoleToUser(_ context.Context, userID, roleID string) (auth.UserRoleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return auth.UserRoleAssignment{}, auth.ErrNotFound
	}
	if _, ok := m.roles[roleID]; !ok {
		return auth.UserRoleAssignment{}, auth.ErrNotFound
	}
	for _, existing := range m.userRoles[userID] {
		if existing == roleID {
			return auth.UserRoleAssignment{}, auth.ErrConflict
		}
	}
	m.userRoles[userID] = append(m.userRoles[userID], roleID)
	return auth.UserRoleAssignment{UserID: userID, RoleID: roleID, CreatedAt: time.Now().UTC()}, nil
}

func (m *memStore) RemoveRoleAssignment(_ context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.userRoles[userID][:0]
	removed := false
	for _, existing := range m.userRoles[userID] {
		if existing == roleID {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	m.userRoles[userID] = kept
	if !removed {
		return auth.ErrNotFound
	}
	return nil
}

func (m *memStore) EnsurePermissions(_ context.Context, _ []auth.PermissionSpec) error {
	return nil
}

func sameBranch(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
