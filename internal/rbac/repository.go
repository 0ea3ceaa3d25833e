package rbac

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Repository stores roles, permissions and the grant matrix.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	CreatePermission(ctx context.Context, perm Permission) (Permission, error)
	UpdatePermission(ctx context.Context, perm Permission) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error

	ListRolePermissions(ctx context.Context) ([]RolePermission, error)
	GetRolePermissions(ctx context.Context, roleID int64) (RolePermission, error)
	SetRolePermissions(ctx context.Context, roleID int64, perms []string, at time.Time) (RolePermission, error)
}

// MemoryRepository keeps everything in process memory, guarded by one lock.
type MemoryRepository struct {
	mu          sync.RWMutex
	roles       map[int64]Role
	permissions map[int64]Permission
	grants      map[int64]RolePermission
	nextRoleID  int64
	nextPermID  int64
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		roles:       make(map[int64]Role),
		permissions: make(map[int64]Permission),
		grants:      make(map[int64]RolePermission),
		nextRoleID:  1,
		nextPermID:  1,
	}
}

func (r *MemoryRepository) ListRoles(ctx context.Context) ([]Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	slices.SortFunc(out, func(a, b Role) int { return int(a.ID - b.ID) })
	return out, nil
}

func (r *MemoryRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (r *MemoryRepository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, role := range r.roles {
		if strings.EqualFold(role.Name, name) {
			return role, nil
		}
	}
	return Role{}, ErrNotFound
}

func (r *MemoryRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.roleNameTakenLocked(role.Name, 0) {
		return Role{}, ErrDuplicate
	}
	role.ID = r.nextRoleID
	r.nextRoleID++
	r.roles[role.ID] = role
	r.grants[role.ID] = RolePermission{RoleID: role.ID, RoleName: role.Name, Permissions: []string{}, UpdatedAt: role.CreatedAt}
	return role, nil
}

func (r *MemoryRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.roles[role.ID]
	if !ok {
		return Role{}, ErrNotFound
	}
	if r.roleNameTakenLocked(role.Name, role.ID) {
		return Role{}, ErrDuplicate
	}
	role.CreatedAt = existing.CreatedAt
	r.roles[role.ID] = role
	if grant, ok := r.grants[role.ID]; ok {
		grant.RoleName = role.Name
		r.grants[role.ID] = grant
	}
	return role, nil
}

func (r *MemoryRepository) DeleteRole(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[id]; !ok {
		return ErrNotFound
	}
	delete(r.roles, id)
	delete(r.grants, id)
	return nil
}

func (r *MemoryRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Permission, 0, len(r.permissions))
	for _, p := range r.permissions {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Permission) int { return int(a.ID - b.ID) })
	return out, nil
}

func (r *MemoryRepository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.permissions[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) CreatePermission(ctx context.Context, perm Permission) (Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.permissionNameTakenLocked(perm.Name, 0) {
		return Permission{}, ErrDuplicate
	}
	perm.ID = r.nextPermID
	r.nextPermID++
	r.permissions[perm.ID] = perm
	return perm, nil
}

// UpdatePermission renames grants that referenced the old name.
func (r *MemoryRepository) UpdatePermission(ctx context.Context, perm Permission) (Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.permissions[perm.ID]
	if !ok {
		return Permission{}, ErrNotFound
	}
	if r.permissionNameTakenLocked(perm.Name, perm.ID) {
		return Permission{}, ErrDuplicate
	}
	perm.CreatedAt = existing.CreatedAt
	r.permissions[perm.ID] = perm
	if existing.Name != perm.Name {
		for id, grant := range r.grants {
			if i := slices.Index(grant.Permissions, existing.Name); i >= 0 {
				updated := slices.Clone(grant.Permissions)
				updated[i] = perm.Name
				slices.Sort(updated)
				grant.Permissions = updated
				grant.UpdatedAt = perm.UpdatedAt
				r.grants[id] = grant
			}
		}
	}
	return perm, nil
}

// DeletePermission strips the permission from every role.
func (r *MemoryRepository) DeletePermission(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	perm, ok := r.permissions[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.permissions, id)
	for roleID, grant := range r.grants {
		if slices.Contains(grant.Permissions, perm.Name) {
			grant.Permissions = slices.DeleteFunc(slices.Clone(grant.Permissions), func(p string) bool { return p == perm.Name })
			r.grants[roleID] = grant
		}
	}
	return nil
}

func (r *MemoryRepository) ListRolePermissions(ctx context.Context) ([]RolePermission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RolePermission, 0, len(r.grants))
	for _, g := range r.grants {
		g.Permissions = slices.Clone(g.Permissions)
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b RolePermission) int { return int(a.RoleID - b.RoleID) })
	return out, nil
}

func (r *MemoryRepository) GetRolePermissions(ctx context.Context, roleID int64) (RolePermission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grants[roleID]
	if !ok {
		return RolePermission{}, ErrNotFound
	}
	g.Permissions = slices.Clone(g.Permissions)
	return g, nil
}

func (r *MemoryRepository) SetRolePermissions(ctx context.Context, roleID int64, perms []string, at time.Time) (RolePermission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grants[roleID]
	if !ok {
		return RolePermission{}, ErrNotFound
	}
	g.Permissions = slices.Clone(perms)
	g.UpdatedAt = at
	r.grants[roleID] = g
	return g, nil
}

func (r *MemoryRepository) roleNameTakenLocked(name string, exceptID int64) bool {
	for id, role := range r.roles {
		if id != exceptID && strings.EqualFold(role.Name, name) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) permissionNameTakenLocked(name string, exceptID int64) bool {
	for id, p := range r.permissions {
		if id != exceptID && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}
