package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"opencampus.org/internal/auth"
	"opencampus.org/internal/ids"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var _ auth.Store = (*Store)(nil)

const userColumns = `id, tenant_id, email, password_hash, role, status, token_version, created_at, updated_at`

func scanUser(row *sql.Row) (auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Role, &u.Status, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}

func (s *Store) FindUser(ctx context.Context, userID string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errors.New("database connection unavailable")
	}
	return scanUser(s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1
	`, userID))
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errors.New("database connection unavailable")
	}
	return scanUser(s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where email = $1
	`, email))
}

func (s *Store) TokenVersion(ctx context.Context, userID string) (int64, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var version int64
	err := s.db.QueryRowContext(ctx, `
		select token_version from users where id = $1
	`, userID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, auth.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// BumpTokenVersion increments the revocation counter. The returning clause
// makes the write and the read of the new value a single statement, so the
// caller observes the committed counter.
func (s *Store) BumpTokenVersion(ctx context.Context, userID string) (int64, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var version int64
	err := s.db.QueryRowContext(ctx, `
		update users
		set token_version = token_version + 1, updated_at = now()
		where id = $1
		returning token_version
	`, userID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, auth.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (s *Store) UserRoles(ctx context.Context, userID string) ([]auth.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, coalesce(r.description, ''), r.all_branches, r.created_at, r.updated_at
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id = $1
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var role auth.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.AllBranches, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) RolePermissionKeys(ctx context.Context, userID string) ([]auth.Permission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select distinct p.key
		from user_roles ur
		join role_permissions rp on rp.role_id = ur.role_id
		join permissions p on p.id = rp.permission_id
		where ur.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []auth.Permission
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, auth.Permission(key))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) Overrides(ctx context.Context, userID string) ([]auth.PermissionOverride, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select o.id, o.user_id, p.key, o.polarity, o.branch_id, o.created_at
		from permission_overrides o
		join permissions p on p.id = o.permission_id
		where o.user_id = $1
		order by o.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []auth.PermissionOverride
	for rows.Next() {
		var (
			ov       auth.PermissionOverride
			key      string
			polarity string
			branch   sql.NullString
		)
		if err := rows.Scan(&ov.ID, &ov.UserID, &key, &polarity, &branch, &ov.CreatedAt); err != nil {
			return nil, err
		}
		ov.Key = auth.Permission(key)
		ov.Polarity = auth.OverridePolarity(polarity)
		if branch.Valid {
			b := branch.String
			ov.BranchID = &b
		}
		overrides = append(overrides, ov)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overrides, nil
}

func (s *Store) Branch(ctx context.Context, branchID string) (auth.Branch, error) {
	if s.db == nil {
		return auth.Branch{}, errors.New("database connection unavailable")
	}
	var b auth.Branch
	err := s.db.QueryRowContext(ctx, `
		select id, tenant_id, name, active, created_at, updated_at
		from branches
		where id = $1
	`, branchID).Scan(&b.ID, &b.TenantID, &b.Name, &b.Active, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Branch{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Branch{}, err
	}
	return b, nil
}

func (s *Store) UserBranches(ctx context.Context, userID string) ([]auth.Branch, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	return s.branchList(ctx, `
		select b.id, b.tenant_id, b.name, b.active, b.created_at, b.updated_at
		from user_branches ub
		join branches b on b.id = ub.branch_id
		where ub.user_id = $1
		order by b.name
	`, userID)
}

func (s *Store) TenantBranches(ctx context.Context, tenantID string) ([]auth.Branch, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	return s.branchList(ctx, `
		select id, tenant_id, name, active, created_at, updated_at
		from branches
		where tenant_id = $1
		order by name
	`, tenantID)
}

func (s *Store) branchList(ctx context.Context, query string, arg any) ([]auth.Branch, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var branches []auth.Branch
	for rows.Next() {
		var b auth.Branch
		if err := rows.Scan(&b.ID, &b.TenantID, &b.Name, &b.Active, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return branches, nil
}

// SetOverride replaces any existing override for the same (user, permission,
// branch) triple. branch_id comparisons use "is not distinct from" so a nil
// tenant-wide scope matches the null column.
func (s *Store) SetOverride(ctx context.Context, ov auth.PermissionOverride) (auth.PermissionOverride, error) {
	if s.db == nil {
		return auth.PermissionOverride{}, errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.PermissionOverride{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var permID string
	if err := tx.QueryRowContext(ctx, `select id from permissions where key = $1`, string(ov.Key)).Scan(&permID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.PermissionOverride{}, fmt.Errorf("%w: permission %s not found", auth.ErrNotFound, ov.Key)
		}
		return auth.PermissionOverride{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		delete from permission_overrides
		where user_id = $1 and permission_id = $2 and branch_id is not distinct from $3
	`, ov.UserID, permID, ov.BranchID); err != nil {
		return auth.PermissionOverride{}, err
	}

	stored := ov
	err = tx.QueryRowContext(ctx, `
		insert into permission_overrides (id, user_id, permission_id, polarity, branch_id)
		values ($1, $2, $3, $4, $5)
		returning id, created_at
	`, ids.New(), ov.UserID, permID, string(ov.Polarity), ov.BranchID).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.PermissionOverride{}, auth.ErrNotFound
		}
		return auth.PermissionOverride{}, err
	}

	if err := tx.Commit(); err != nil {
		return auth.PermissionOverride{}, err
	}
	return stored, nil
}

func (s *Store) RemoveOverride(ctx context.Context, userID string, key auth.Permission, branchID *string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from permission_overrides o
		using permissions p
		where p.id = o.permission_id
		  and o.user_id = $1
		  and p.key = $2
		  and o.branch_id is not distinct from $3
	`, userID, string(key), branchID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) SetRolePermissions(ctx context.Context, roleID string, keys []auth.Permission) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from roles where id = $1`, roleID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ErrNotFound
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	if len(keys) == 0 {
		return tx.Commit()
	}

	for _, key := range keys {
		var permID string
		err := tx.QueryRowContext(ctx, `select id from permissions where key = $1`, string(key)).Scan(&permID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: permission %s not found", auth.ErrNotFound, key)
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			values ($1, $2)
		`, roleID, permID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) AssignRoleToUser(ctx context.Context, userID, roleID string) (auth.UserRoleAssignment, error) {
	if s.db == nil {
		return auth.UserRoleAssignment{}, errors.New("database connection unavailable")
	}
	var assignment auth.UserRoleAssignment
	err := s.db.QueryRowContext(ctx, `
		insert into user_roles (user_id, role_id)
		values ($1, $2)
		returning user_id, role_id, created_at
	`, userID, roleID).Scan(&assignment.UserID, &assignment.RoleID, &assignment.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.UserRoleAssignment{}, auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.UserRoleAssignment{}, auth.ErrNotFound
			}
		}
		return auth.UserRoleAssignment{}, err
	}
	return assignment, nil
}

func (s *Store) RemoveRoleAssignment(ctx context.Context, userID, roleID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from user_roles
		where user_id = $1 and role_id = $2
	`, userID, roleID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// EnsurePermissions upserts the closed catalog at boot so role and override
// rows always have a registered key to reference.
func (s *Store) EnsurePermissions(ctx context.Context, specs []auth.PermissionSpec) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, spec := range specs {
		if _, err := tx.ExecContext(ctx, `
			insert into permissions (id, key, description)
			values ($1, $2, $3)
			on conflict (key) do update set description = excluded.description
		`, ids.New(), string(spec.Key), spec.Description); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
