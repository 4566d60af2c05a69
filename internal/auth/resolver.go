package auth

import (
	"context"
	"sort"
)

// PermissionSet is the effective capability set of a principal within one
// branch.
type PermissionSet map[Permission]struct{}

// Has reports membership.
func (s PermissionSet) Has(key Permission) bool {
	_, ok := s[key]
	return ok
}

// Sorted returns the set as a deterministic slice.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolver computes effective permission sets by merging role grants with
// per-user overrides.
type Resolver struct {
	store Store
	cache *DecisionCache
}

// NewResolver constructs a Resolver. cache may be nil to disable memoization.
func NewResolver(store Store, cache *DecisionCache) *Resolver {
	return &Resolver{store: store, cache: cache}
}

// Resolve computes the effective set for userID within branchID as explicit
// two-phase set algebra: the union of all grant sources first, then the
// subtraction of every deny. Deny is applied strictly last, so a denied
// permission cannot be regained through any grant path.
func (r *Resolver) Resolve(ctx context.Context, userID, branchID string) (PermissionSet, error) {
	if set, ok := r.cache.get(userID, branchID); ok {
		return set, nil
	}

	roleKeys, err := r.store.RolePermissionKeys(ctx, userID)
	if err != nil {
		return nil, err
	}
	overrides, err := r.store.Overrides(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := make(PermissionSet, len(roleKeys))
	for _, key := range roleKeys {
		set[key] = struct{}{}
	}
	// Phase one: every grant source. A grant override can add capabilities
	// no role confers.
	for _, ov := range overrides {
		if ov.Polarity == OverrideGrant && overrideInScope(ov, branchID) {
			set[ov.Key] = struct{}{}
		}
	}
	// Phase two: denies, unconditionally final.
	for _, ov := range overrides {
		if ov.Polarity == OverrideDeny && overrideInScope(ov, branchID) {
			delete(set, ov.Key)
		}
	}

	r.cache.put(userID, branchID, set)
	return set, nil
}

// overrideInScope reports whether ov applies to the active branch. A nil
// BranchID is tenant-wide; a scoped override is inert outside its branch.
func overrideInScope(ov PermissionOverride, branchID string) bool {
	return ov.BranchID == nil || *ov.BranchID == branchID
}

// Can reports whether the principal holds key within branchID. It fails
// closed: any resolution error yields false, never true.
func (r *Resolver) Can(ctx context.Context, userID, branchID string, key Permission) bool {
	set, err := r.Resolve(ctx, userID, branchID)
	if err != nil {
		return false
	}
	return set.Has(key)
}
