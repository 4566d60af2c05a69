package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	codec, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	svc, err := NewService(store, codec)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestVerifyFullRevokedAfterVersionBump(t *testing.T) {
	version := int64(0)
	store := &stubStore{
		tokenVersionFn: func(_ context.Context, _ string) (int64, error) {
			return version, nil
		},
	}
	svc := newTestService(t, store)

	user := testUser() // embeds version 0
	token, _, err := svc.Codec().Sign(user, "branch-1")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := svc.VerifyFull(context.Background(), token); err != nil {
		t.Fatalf("VerifyFull before bump: %v", err)
	}

	version = 1
	if _, err := svc.VerifyFull(context.Background(), token); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked after bump, got %v", err)
	}
}

func TestVerifyFullUnknownPrincipal(t *testing.T) {
	store := &stubStore{
		tokenVersionFn: func(_ context.Context, _ string) (int64, error) {
			return 0, ErrNotFound
		},
	}
	svc := newTestService(t, store)

	token, _, err := svc.Codec().Sign(testUser(), "branch-1")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := svc.VerifyFull(context.Background(), token); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestRevokeAllBumpsAndInvalidates(t *testing.T) {
	bumped := false
	store := &stubStore{
		bumpTokenVersionFn: func(_ context.Context, userID string) (int64, error) {
			if userID != "user-1" {
				t.Fatalf("unexpected user id %s", userID)
			}
			bumped = true
			return 1, nil
		},
	}
	svc := newTestService(t, store)
	if err := svc.RevokeAll(context.Background(), "user-1"); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if !bumped {
		t.Fatalf("version was not bumped")
	}
}

func TestLoginIssuesSessionPinnedToDefaultBranch(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := testUser()
	user.PasswordHash = hash

	store := &stubStore{
		findUserByEmailFn: func(_ context.Context, email string) (User, error) {
			if email != "instructor@example.com" {
				return User{}, ErrNotFound
			}
			return user, nil
		},
		userBranchesFn: func(_ context.Context, _ string) ([]Branch, error) {
			return []Branch{{ID: "branch-7", TenantID: "tenant-1", Name: "Campus North", Active: true}}, nil
		},
	}
	svc := newTestService(t, store)

	session, err := svc.Login(context.Background(), "  Instructor@Example.com ", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := svc.Codec().VerifyLight(session.Token)
	if err != nil {
		t.Fatalf("VerifyLight: %v", err)
	}
	if claims.BranchID != "branch-7" {
		t.Fatalf("session pinned to %s, want branch-7", claims.BranchID)
	}
	if session.Branch.Name != "Campus North" {
		t.Fatalf("unexpected branch: %+v", session.Branch)
	}
}

func TestLoginRejectsBadCredentialsUniformly(t *testing.T) {
	hash, _ := HashPassword("right")
	active := testUser()
	active.PasswordHash = hash
	disabled := active
	disabled.Status = UserStatusDisabled

	cases := []struct {
		name     string
		store    *stubStore
		email    string
		password string
	}{
		{"unknown user", &stubStore{}, "nobody@example.com", "whatever"},
		{"wrong password", &stubStore{findUserByEmailFn: func(_ context.Context, _ string) (User, error) { return active, nil }}, "instructor@example.com", "wrong"},
		{"disabled user", &stubStore{findUserByEmailFn: func(_ context.Context, _ string) (User, error) { return disabled, nil }}, "instructor@example.com", "right"},
		{"empty password", &stubStore{}, "instructor@example.com", ""},
	}
	for _, tc := range cases {
		svc := newTestService(t, tc.store)
		if _, err := svc.Login(context.Background(), tc.email, tc.password); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", tc.name, err)
		}
	}
}

func TestSwitchBranchReissuesToken(t *testing.T) {
	user := testUser()
	store := &stubStore{
		findUserFn: func(_ context.Context, _ string) (User, error) { return user, nil },
		branchFn: func(_ context.Context, id string) (Branch, error) {
			if id != "branch-2" {
				return Branch{}, ErrNotFound
			}
			return Branch{ID: "branch-2", TenantID: "tenant-1", Active: true}, nil
		},
		userBranchesFn: func(_ context.Context, _ string) ([]Branch, error) {
			return []Branch{{ID: "branch-1", TenantID: "tenant-1", Active: true}, {ID: "branch-2", TenantID: "tenant-1", Active: true}}, nil
		},
	}
	svc := newTestService(t, store)

	token, _, err := svc.Codec().Sign(user, "branch-1")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := svc.VerifyFull(context.Background(), token)
	if err != nil {
		t.Fatalf("VerifyFull: %v", err)
	}

	session, err := svc.SwitchBranch(context.Background(), claims, "branch-2")
	if err != nil {
		t.Fatalf("SwitchBranch: %v", err)
	}
	next, err := svc.Codec().VerifyLight(session.Token)
	if err != nil {
		t.Fatalf("VerifyLight: %v", err)
	}
	if next.BranchID != "branch-2" {
		t.Fatalf("new token pinned to %s, want branch-2", next.BranchID)
	}
}

func TestSwitchBranchForbiddenWithoutAssignment(t *testing.T) {
	store := &stubStore{
		branchFn: func(_ context.Context, _ string) (Branch, error) {
			return Branch{ID: "branch-b", TenantID: "tenant-1", Active: true}, nil
		},
		userBranchesFn: func(_ context.Context, _ string) ([]Branch, error) {
			return []Branch{{ID: "branch-a", TenantID: "tenant-1", Active: true}}, nil
		},
	}
	svc := newTestService(t, store)
	claims := &Claims{TenantID: "tenant-1"}
	claims.Subject = "user-1"

	if _, err := svc.SwitchBranch(context.Background(), claims, "branch-b"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestSwitchBranchHidesForeignAndInactiveBranches(t *testing.T) {
	store := &stubStore{
		branchFn: func(_ context.Context, id string) (Branch, error) {
			switch id {
			case "foreign":
				return Branch{ID: "foreign", TenantID: "tenant-2", Active: true}, nil
			case "dormant":
				return Branch{ID: "dormant", TenantID: "tenant-1", Active: false}, nil
			}
			return Branch{}, ErrNotFound
		},
	}
	svc := newTestService(t, store)
	claims := &Claims{TenantID: "tenant-1"}
	claims.Subject = "user-1"

	for _, id := range []string{"foreign", "dormant", "missing"} {
		if _, err := svc.SwitchBranch(context.Background(), claims, id); !errors.Is(err, ErrNodeNotFound) {
			t.Fatalf("branch %s: expected ErrNodeNotFound, got %v", id, err)
		}
	}
}

func TestSwitchBranchAllBranchesRole(t *testing.T) {
	user := testUser()
	user.Role = RoleAdmin
	store := &stubStore{
		findUserFn: func(_ context.Context, _ string) (User, error) { return user, nil },
		branchFn: func(_ context.Context, _ string) (Branch, error) {
			return Branch{ID: "branch-9", TenantID: "tenant-1", Active: true}, nil
		},
		userRolesFn: func(_ context.Context, _ string) ([]Role, error) {
			return []Role{{ID: "r-admin", Name: RoleAdmin, AllBranches: true}}, nil
		},
	}
	svc := newTestService(t, store)
	claims := &Claims{TenantID: "tenant-1"}
	claims.Subject = "user-1"

	if _, err := svc.SwitchBranch(context.Background(), claims, "branch-9"); err != nil {
		t.Fatalf("SwitchBranch for all-branches role: %v", err)
	}
}

func TestSetOverrideValidation(t *testing.T) {
	svc := newTestService(t, &stubStore{})

	_, err := svc.SetOverride(context.Background(), PermissionOverride{
		UserID:   "u1",
		Key:      Permission("bogus:" + "thing"),
		Polarity: OverrideDeny,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unregistered key accepted: %v", err)
	}

	_, err = svc.SetOverride(context.Background(), PermissionOverride{
		UserID:   "u1",
		Key:      PermCourseCreate,
		Polarity: OverridePolarity("maybe"),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad polarity accepted: %v", err)
	}
}

func TestSetRolePermissionsRejectsUnregistered(t *testing.T) {
	svc := newTestService(t, &stubStore{})
	err := svc.SetRolePermissions(context.Background(), "role-1", []Permission{PermCourseCreate, Permission("nope:" + "nope")})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSetRolePermissionsPurgesCachedSets(t *testing.T) {
	reads := 0
	store := &stubStore{
		rolePermissionKeysFn: func(_ context.Context, _ string) ([]Permission, error) {
			reads++
			return []Permission{PermCourseView}, nil
		},
	}
	cache := NewDecisionCache(16, time.Minute)
	codec, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	svc, err := NewService(store, codec, WithDecisionCache(cache))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	token, _, err := svc.Codec().Sign(testUser(), "branch-1")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := svc.Codec().VerifyLight(token)
	if err != nil {
		t.Fatalf("VerifyLight: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Resolve(context.Background(), claims); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}
	if reads != 1 {
		t.Fatalf("expected one store read before the role edit, got %d", reads)
	}

	if err := svc.SetRolePermissions(context.Background(), "role-1", []Permission{PermCourseView, PermCourseEdit}); err != nil {
		t.Fatalf("SetRolePermissions: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), claims); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if reads != 2 {
		t.Fatalf("expected fresh store read after the role edit, got %d", reads)
	}
}
