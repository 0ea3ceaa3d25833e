package rbac

// RoleRequest creates or updates a role.
type RoleRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=256"`
}

// PermissionRequest creates or updates a permission.
type PermissionRequest struct {
	Name        string `json:"name" validate:"required,max=96"`
	Description string `json:"description" validate:"max=256"`
}

// SetPermissionsRequest replaces a role's permission list.
type SetPermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"dive,required"`
}
