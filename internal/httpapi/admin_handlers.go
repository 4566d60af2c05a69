package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"opencampus.org/internal/audit"
	"opencampus.org/internal/auth"
)

type overrideRequest struct {
	Permission string  `json:"permission"`
	Polarity   string  `json:"polarity"`
	BranchID   *string `json:"branch_id,omitempty"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

type updateRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userID := parts[0]
	switch parts[1] {
	case "overrides":
		a.handleUserOverrides(w, r, userID)
	case "assignments":
		a.handleUserAssignments(w, r, userID)
	case "sessions":
		a.handleUserSessions(w, r, userID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUserOverrides(w http.ResponseWriter, r *http.Request, userID string) {
	if !a.ensurePermission(w, r, auth.PermUserManage) {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req overrideRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		ov, err := a.svc.SetOverride(r.Context(), auth.PermissionOverride{
			UserID:   userID,
			Key:      auth.Permission(strings.TrimSpace(req.Permission)),
			Polarity: auth.OverridePolarity(strings.TrimSpace(req.Polarity)),
			BranchID: req.BranchID,
		})
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "authz.override.set", map[string]any{
			"target_user_id": userID,
			"permission":     string(ov.Key),
			"polarity":       string(ov.Polarity),
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/users/%s/overrides", userID))
		writeJSON(w, http.StatusCreated, ov)
	case http.MethodDelete:
		var req overrideRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		err := a.svc.RemoveOverride(r.Context(), userID, auth.Permission(strings.TrimSpace(req.Permission)), req.BranchID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "authz.override.remove", map[string]any{
			"target_user_id": userID,
			"permission":     req.Permission,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) handleUserAssignments(w http.ResponseWriter, r *http.Request, userID string) {
	if !a.ensurePermission(w, r, auth.PermRoleManage) {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		req.RoleID = strings.TrimSpace(req.RoleID)
		if req.RoleID == "" {
			writeError(w, r, http.StatusBadRequest, "role_id is required")
			return
		}
		assignment, err := a.svc.AssignRole(r.Context(), userID, req.RoleID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "authz.role.assign", map[string]any{
			"target_user_id": userID,
			"role_id":        assignment.RoleID,
		})
		writeJSON(w, http.StatusCreated, assignment)
	case http.MethodDelete:
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		req.RoleID = strings.TrimSpace(req.RoleID)
		if req.RoleID == "" {
			writeError(w, r, http.StatusBadRequest, "role_id is required")
			return
		}
		if err := a.svc.UnassignRole(r.Context(), userID, req.RoleID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "authz.role.unassign", map[string]any{
			"target_user_id": userID,
			"role_id":        req.RoleID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

// handleUserSessions lets an administrator kill every session of a principal.
func (a *API) handleUserSessions(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.ensurePermission(w, r, auth.PermUserManage) {
		return
	}
	if err := a.svc.RevokeAll(r.Context(), userID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.sessions.revoke_all", map[string]any{
		"target_user_id": userID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/roles/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "permissions" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	roleID := parts[0]
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if !a.ensurePermission(w, r, auth.PermRoleManage) {
		return
	}
	var req updateRolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	keys := make([]auth.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		keys = append(keys, auth.Permission(p))
	}
	if err := a.svc.SetRolePermissions(r.Context(), roleID, keys); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "authz.role.permissions.update", map[string]any{
		"role_id": roleID,
		"count":   len(req.Permissions),
	})
	w.WriteHeader(http.StatusNoContent)
}
