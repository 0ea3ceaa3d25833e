package rbac

import "time"

// SystemAdminRole is the built-in role that can be neither deleted nor renamed
// and always holds every permission.
const SystemAdminRole = "System Admin"

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Protected reports whether the role is the built-in administrator.
func (r Role) Protected() bool {
	return r.Name == SystemAdminRole
}

// Permission represents an atomic capability such as "proposals.create".
type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RolePermission is one row of the role/permission matrix.
type RolePermission struct {
	RoleID      int64     `json:"roleId"`
	RoleName    string    `json:"roleName"`
	Permissions []string  `json:"permissions"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Has reports whether the row grants perm.
func (rp RolePermission) Has(perm string) bool {
	for _, p := range rp.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
