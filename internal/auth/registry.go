package auth

// Permission is an atomic capability of the form "resource:action". The set
// of valid permissions is closed: everything the resolver can ever return is
// declared here, and cmd/permlint fails the build when a call site references
// a string that is not.
type Permission string

const (
	PermCourseCreate  Permission = "course:create"
	PermCourseEdit    Permission = "course:edit"
	PermCourseDelete  Permission = "course:delete"
	PermCoursePublish Permission = "course:publish"
	PermCourseView    Permission = "course:view"

	PermEnrollmentCreate Permission = "enrollment:create"
	PermEnrollmentManage Permission = "enrollment:manage"

	PermAssignmentCreate Permission = "assignment:create"
	PermAssignmentSubmit Permission = "assignment:submit"
	PermAssignmentGrade  Permission = "assignment:grade"

	PermPathManage       Permission = "learningpath:manage"
	PermCertificateIssue Permission = "certificate:issue"
	PermCertificateView  Permission = "certificate:view"

	PermReportView   Permission = "report:view"
	PermUserManage   Permission = "user:manage"
	PermRoleManage   Permission = "role:manage"
	PermBranchManage Permission = "branch:manage"
)

// PermissionSpec describes a registry entry used to seed the catalog table.
type PermissionSpec struct {
	Key         Permission
	Description string
}

// Registry is the single source of truth for valid permissions.
var Registry = []PermissionSpec{
	{Key: PermCourseCreate, Description: "Create courses"},
	{Key: PermCourseEdit, Description: "Edit course content"},
	{Key: PermCourseDelete, Description: "Delete courses"},
	{Key: PermCoursePublish, Description: "Publish courses to the catalog"},
	{Key: PermCourseView, Description: "View published courses"},
	{Key: PermEnrollmentCreate, Description: "Enroll into courses"},
	{Key: PermEnrollmentManage, Description: "Manage enrollments of other users"},
	{Key: PermAssignmentCreate, Description: "Create assignments"},
	{Key: PermAssignmentSubmit, Description: "Submit assignment solutions"},
	{Key: PermAssignmentGrade, Description: "Grade assignment submissions"},
	{Key: PermPathManage, Description: "Manage learning paths"},
	{Key: PermCertificateIssue, Description: "Issue certificates"},
	{Key: PermCertificateView, Description: "View own certificates"},
	{Key: PermReportView, Description: "View reports"},
	{Key: PermUserManage, Description: "Manage users, overrides and role assignments"},
	{Key: PermRoleManage, Description: "Manage roles and role permissions"},
	{Key: PermBranchManage, Description: "Manage branches"},
}

var registryIndex = func() map[Permission]struct{} {
	idx := make(map[Permission]struct{}, len(Registry))
	for _, spec := range Registry {
		idx[spec.Key] = struct{}{}
	}
	return idx
}()

// IsRegistered reports whether key belongs to the closed registry.
func IsRegistered(key Permission) bool {
	_, ok := registryIndex[key]
	return ok
}

// Builtin role names. Role permission sets live in the database and can be
// changed at runtime; these names seed the defaults in db/seeds.
const (
	RoleAdmin           = "ADMIN"
	RoleSuperInstructor = "SUPER_INSTRUCTOR"
	RoleInstructor      = "INSTRUCTOR"
	RoleLearner         = "LEARNER"
)
