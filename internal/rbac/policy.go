package rbac

import "go-leave/internal/domain"

const (
	ResourceLeave   = "leave"
	ResourceBalance = "balance"
	ResourceUser    = "user"

	ActionCreate     = "create"
	ActionReadOwn    = "read_own"
	ActionReadAll    = "read_all"
	ActionDecide     = "decide"
	ActionCancel     = "cancel"
	ActionInitialize = "initialize"
	ActionAdjust     = "adjust"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
)

type Permission struct {
	Role     string
	Resource string
	Action   string
}

// DefaultPermissions lists what each role is granted directly. Inherited
// permissions come from DefaultRoleHierarchy.
func DefaultPermissions() []Permission {
	return []Permission{
		{domain.RoleEmployee, ResourceLeave, ActionCreate},
		{domain.RoleEmployee, ResourceLeave, ActionReadOwn},
		{domain.RoleEmployee, ResourceLeave, ActionCancel},
		{domain.RoleEmployee, ResourceBalance, ActionReadOwn},

		{domain.RoleManager, ResourceLeave, ActionReadAll},
		{domain.RoleManager, ResourceLeave, ActionDecide},
		{domain.RoleManager, ResourceBalance, ActionReadAll},
		{domain.RoleManager, ResourceUser, ActionReadAll},

		{domain.RoleAdmin, ResourceBalance, ActionInitialize},
		{domain.RoleAdmin, ResourceBalance, ActionAdjust},
		{domain.RoleAdmin, ResourceUser, ActionCreate},
		{domain.RoleAdmin, ResourceUser, ActionUpdate},
		{domain.RoleAdmin, ResourceUser, ActionDelete},
	}
}

// DefaultRoleHierarchy pairs are (role, inherited role).
func DefaultRoleHierarchy() [][2]string {
	return [][2]string{
		{domain.RoleManager, domain.RoleEmployee},
		{domain.RoleAdmin, domain.RoleManager},
	}
}
