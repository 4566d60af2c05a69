package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// AuthorizeBranchSwitch validates that the principal may pin branchID as its
// active branch. Unknown, inactive and cross-tenant branches all fail with
// ErrNodeNotFound so the existence of other tenants' branches never leaks;
// a branch inside the tenant that the principal simply has no access to
// fails with ErrForbidden.
func (s *Service) AuthorizeBranchSwitch(ctx context.Context, userID, tenantID, branchID string) (Branch, error) {
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return Branch{}, fmt.Errorf("%w: branch_id is required", ErrInvalidInput)
	}

	branch, err := s.store.Branch(ctx, branchID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Branch{}, ErrNodeNotFound
		}
		return Branch{}, err
	}
	if !branch.Active || branch.TenantID != tenantID {
		return Branch{}, ErrNodeNotFound
	}

	assigned, err := s.store.UserBranches(ctx, userID)
	if err != nil {
		return Branch{}, err
	}
	for _, b := range assigned {
		if b.ID == branch.ID {
			return branch, nil
		}
	}

	// Roles flagged all_branches (ADMIN) cover every active branch of the
	// tenant without assignment rows.
	roles, err := s.store.UserRoles(ctx, userID)
	if err != nil {
		return Branch{}, err
	}
	for _, role := range roles {
		if role.AllBranches {
			return branch, nil
		}
	}
	return Branch{}, ErrForbidden
}

// defaultBranch picks the branch a fresh session is pinned to: the first
// active assigned branch, or the tenant's first active branch for
// all-branches roles. Principals with no reachable branch cannot establish
// a session.
func (s *Service) defaultBranch(ctx context.Context, user User) (Branch, error) {
	assigned, err := s.store.UserBranches(ctx, user.ID)
	if err != nil {
		return Branch{}, err
	}
	for _, b := range assigned {
		if b.Active {
			return b, nil
		}
	}
	roles, err := s.store.UserRoles(ctx, user.ID)
	if err != nil {
		return Branch{}, err
	}
	for _, role := range roles {
		if role.AllBranches {
			branches, err := s.store.TenantBranches(ctx, user.TenantID)
			if err != nil {
				return Branch{}, err
			}
			for _, b := range branches {
				if b.Active {
					return b, nil
				}
			}
			break
		}
	}
	return Branch{}, ErrForbidden
}
