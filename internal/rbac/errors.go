package rbac

import (
	"fmt"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = fmt.Errorf("rbac: %w", httpx.ErrNotFound)
	// ErrDuplicate indicates a role or permission name collision.
	ErrDuplicate = fmt.Errorf("rbac: name already exists: %w", httpx.ErrDuplicate)
	// ErrProtectedRole guards the System Admin role.
	ErrProtectedRole = fmt.Errorf("rbac: %s role is protected: %w", SystemAdminRole, httpx.ErrForbidden)
	// ErrInUse indicates the role is still assigned to users.
	ErrInUse = fmt.Errorf("rbac: role is assigned to users: %w", httpx.ErrConflict)
	// ErrUnknownPermission indicates a grant referencing a missing permission.
	ErrUnknownPermission = fmt.Errorf("rbac: unknown permission: %w", httpx.ErrValidation)
	// ErrInvalid wraps input validation failures.
	ErrInvalid = fmt.Errorf("rbac: %w", httpx.ErrValidation)
)
