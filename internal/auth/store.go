package auth

import "context"

// Store describes the persistence operations the authorization core needs.
// Reads dominate; the single write path is BumpTokenVersion plus the
// administrative mutations (overrides, role permissions, assignments).
type Store interface {
	// Principals.
	FindUser(ctx context.Context, userID string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)

	// Revocation counter. BumpTokenVersion must be durable before it
	// returns; the whole revocation guarantee rests on the next
	// verification seeing the new value.
	TokenVersion(ctx context.Context, userID string) (int64, error)
	BumpTokenVersion(ctx context.Context, userID string) (int64, error)

	// Resolution inputs.
	UserRoles(ctx context.Context, userID string) ([]Role, error)
	RolePermissionKeys(ctx context.Context, userID string) ([]Permission, error)
	Overrides(ctx context.Context, userID string) ([]PermissionOverride, error)

	// Branch scoping.
	Branch(ctx context.Context, branchID string) (Branch, error)
	UserBranches(ctx context.Context, userID string) ([]Branch, error)
	TenantBranches(ctx context.Context, tenantID string) ([]Branch, error)

	// Administrative mutations.
	SetOverride(ctx context.Context, ov PermissionOverride) (PermissionOverride, error)
	RemoveOverride(ctx context.Context, userID string, key Permission, branchID *string) error
	SetRolePermissions(ctx context.Context, roleID string, keys []Permission) error
	AssignRoleToUser(ctx context.Context, userID, roleID string) (UserRoleAssignment, error)
	RemoveRoleAssignment(ctx context.Context, userID, roleID string) error

	// Registry seeding.
	EnsurePermissions(ctx context.Context, specs []PermissionSpec) error
}
