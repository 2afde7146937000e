package domain

import "strings"

const (
	RoleAdmin    = "ADMIN"
	RoleManager  = "MANAGER"
	RoleEmployee = "EMPLOYEE"
)

// NormalizeRole maps any casing of a known role to its canonical form.
// Unknown roles come back empty.
func NormalizeRole(role string) string {
	switch strings.ToUpper(strings.TrimSpace(role)) {
	case RoleAdmin:
		return RoleAdmin
	case RoleManager:
		return RoleManager
	case RoleEmployee:
		return RoleEmployee
	default:
		return ""
	}
}

type EnforceRequest struct {
	Role     string `json:"role" binding:"required"`
	Resource string `json:"resource" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

type EnforceResponse struct {
	Allowed bool `json:"allowed"`
}

type PermissionResponse struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

type RolePermissionsResponse struct {
	Role        string               `json:"role"`
	Permissions []PermissionResponse `json:"permissions"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanReadAll reports whether the actor may see other users' records.
func (a Actor) CanReadAll() bool {
	return a.Role == RoleAdmin || a.Role == RoleManager
}
