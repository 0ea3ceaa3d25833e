package users

// CreateUserRequest adds a user with an initial role.
type CreateUserRequest struct {
	UserName   string `json:"userName" validate:"required,max=128"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Department string `json:"department" validate:"max=64"`
	Role       string `json:"role" validate:"required"`
}

// UpdateUserRequest edits a user's profile and role.
type UpdateUserRequest struct {
	UserName   string `json:"userName" validate:"required,max=128"`
	Department string `json:"department" validate:"max=64"`
	Role       string `json:"role" validate:"required"`
}

// AssignRoleRequest changes only the role.
type AssignRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// DataAccessRequest replaces a user's data-access rule.
type DataAccessRequest struct {
	Regions       []string `json:"regions" validate:"dive,required"`
	Industries    []string `json:"industries" validate:"dive,required"`
	CustomerTiers []string `json:"customerTiers" validate:"dive,required"`
}
