package models

// Role is the closed set of actor roles. Dispatch on roles uses exhaustive
// switches so that adding a role is a compile-visible change.
type Role string

const (
	RoleEmployee       Role = "employee"
	RoleSupervisor     Role = "supervisor"
	RoleFinanceManager Role = "finance_manager"
	RoleAdmin          Role = "admin"
)

var validRoles = map[Role]bool{
	RoleEmployee:       true,
	RoleSupervisor:     true,
	RoleFinanceManager: true,
	RoleAdmin:          true,
}

// IsValid returns true if the role is a known role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// User is the read-only user-directory record the engine consumes.
// The directory itself (provisioning, credentials) is an external collaborator.
type User struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Email               string `json:"email"`
	Role                Role   `json:"role"`
	SupervisorLevel     int    `json:"supervisor_level,omitempty"` // 1 or 2, zero when not a supervisor
	AssignedSupervisor1 string `json:"assigned_supervisor1,omitempty"`
	AssignedSupervisor2 string `json:"assigned_supervisor2,omitempty"`
	IsActive            bool   `json:"is_active"`
}

// HasSupervisor1 reports whether a level-1 supervisor is assigned
func (u *User) HasSupervisor1() bool {
	return u.AssignedSupervisor1 != ""
}

// HasSupervisor2 reports whether a level-2 supervisor is assigned
func (u *User) HasSupervisor2() bool {
	return u.AssignedSupervisor2 != ""
}
