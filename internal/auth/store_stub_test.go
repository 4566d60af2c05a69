package auth

import "context"

// stubStore lets each test wire only the calls it cares about.
type stubStore struct {
	findUserFn           func(context.Context, string) (User, error)
	findUserByEmailFn    func(context.Context, string) (User, error)
	tokenVersionFn       func(context.Context, string) (int64, error)
	bumpTokenVersionFn   func(context.Context, string) (int64, error)
	userRolesFn          func(context.Context, string) ([]Role, error)
	rolePermissionKeysFn func(context.Context, string) ([]Permission, error)
	overridesFn          func(context.Context, string) ([]PermissionOverride, error)
	branchFn             func(context.Context, string) (Branch, error)
	userBranchesFn       func(context.Context, string) ([]Branch, error)
	tenantBranchesFn     func(context.Context, string) ([]Branch, error)
	setOverrideFn        func(context.Context, PermissionOverride) (PermissionOverride, error)
	removeOverrideFn     func(context.Context, string, Permission, *string) error
	setRolePermsFn       func(context.Context, string, []Permission) error
	assignRoleFn         func(context.Context, string, string) (UserRoleAssignment, error)
	removeAssignmentFn   func(context.Context, string, string) error
	ensurePermissionsFn  func(context.Context, []PermissionSpec) error
}

func (s *stubStore) FindUser(ctx context.Context, userID string) (User, error) {
	if s.findUserFn != nil {
		return s.findUserFn(ctx, userID)
	}
	return User{}, ErrNotFound
}

func (s *stubStore) FindUserByEmail(ctx context.Context, email string) (User, error) {
	if s.findUserByEmailFn != nil {
		return s.findUserByEmailFn(ctx, email)
	}
	return User{}, ErrNotFound
}

func (s *stubStore) TokenVersion(ctx context.Context, userID string) (int64, error) {
	if s.tokenVersionFn != nil {
		return s.tokenVersionFn(ctx, userID)
	}
	return 0, nil
}

func (s *stubStore) BumpTokenVersion(ctx context.Context, userID string) (int64, error) {
	if s.bumpTokenVersionFn != nil {
		return s.bumpTokenVersionFn(ctx, userID)
	}
	return 1, nil
}

func (s *stubStore) UserRoles(ctx context.Context, userID string) ([]Role, error) {
	if s.userRolesFn != nil {
		return s.userRolesFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubStore) RolePermissionKeys(ctx context.Context, userID string) ([]Permission, error) {
	if s.rolePermissionKeysFn != nil {
		return s.rolePermissionKeysFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubStore) Overrides(ctx context.Context, userID string) ([]PermissionOverride, error) {
	if s.overridesFn != nil {
		return s.overridesFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubStore) Branch(ctx context.Context, branchID string) (Branch, error) {
	if s.branchFn != nil {
		return s.branchFn(ctx, branchID)
	}
	return Branch{}, ErrNotFound
}

func (s *stubStore) UserBranches(ctx context.Context, userID string) ([]Branch, error) {
	if s.userBranchesFn != nil {
		return s.userBranchesFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubStore) TenantBranches(ctx context.Context, tenantID string) ([]Branch, error) {
	if s.tenantBranchesFn != nil {
		return s.tenantBranchesFn(ctx, tenantID)
	}
	return nil, nil
}

func (s *stubStore) SetOverride(ctx context.Context, ov PermissionOverride) (PermissionOverride, error) {
	if s.setOverrideFn != nil {
		return s.setOverrideFn(ctx, ov)
	}
	return ov, nil
}

func (s *stubStore) RemoveOverride(ctx context.Context, userID string, key Permission, branchID *string) error {
	if s.removeOverrideFn != nil {
		return s.removeOverrideFn(ctx, userID, key, branchID)
	}
	return nil
}

func (s *stubStore) SetRolePermissions(ctx context.Context, roleID string, keys []Permission) error {
	if s.setRolePermsFn != nil {
		return s.setRolePermsFn(ctx, roleID, keys)
	}
	return nil
}

func (s *stubStore) AssignRoleToUser(ctx context.Context, userID, roleID string) (UserRoleAssignment, error) {
	if s.assignRoleFn != nil {
		return s.assignRoleFn(ctx, userID, roleID)
	}
	return UserRoleAssignment{UserID: userID, RoleID: roleID}, nil
}

func (s *stubStore) RemoveRoleAssignment(ctx context.Context, userID, roleID string) error {
	if s.removeAssignmentFn != nil {
		return s.removeAssignmentFn(ctx, userID, roleID)
	}
	return nil
}

func (s *stubStore) EnsurePermissions(ctx context.Context, specs []PermissionSpec) error {
	if s.ensurePermissionsFn != nil {
		return s.ensurePermissionsFn(ctx, specs)
	}
	return nil
}
