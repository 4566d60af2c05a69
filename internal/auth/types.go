package auth

import "time"

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// Tenant is an isolated customer installation. Branches, users and sessions
// never cross tenant boundaries.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Branch is an organizational node inside a tenant. A session pins exactly
// one branch; every authorization decision is evaluated against it.
type Branch struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a principal. TokenVersion is a monotonic counter bumped by
// logout-all and security resets; tokens embedding an older value are dead.
// Users are soft-deactivated via Status, never deleted while referenced.
type User struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	TokenVersion int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role bundles permissions. AllBranches marks roles (ADMIN) that are
// authorized for every active branch of their tenant without explicit
// assignment rows.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	AllBranches bool      `json:"all_branches"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OverridePolarity is the direction of a per-user permission exception.
type OverridePolarity string

const (
	OverrideGrant OverridePolarity = "grant"
	OverrideDeny  OverridePolarity = "deny"
)

// PermissionOverride is a per-user exception to role-derived defaults.
// BranchID nil means tenant-wide; otherwise the override applies only when
// the session's active branch matches.
type PermissionOverride struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Key       Permission       `json:"permission"`
	Polarity  OverridePolarity `json:"polarity"`
	BranchID  *string          `json:"branch_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// UserRoleAssignment links a user to a role.
type UserRoleAssignment struct {
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}
