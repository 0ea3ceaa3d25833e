package rbac

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/solution-studio/ai-studio/internal/shared"
)

const maxRoleName = 64

var permissionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// RoleHooks lets the user directory veto role deletion and follow renames.
type RoleHooks interface {
	RoleInUse(ctx context.Context, name string) (bool, error)
	RoleRenamed(ctx context.Context, oldName, newName string) error
}

// Service orchestrates RBAC operations.
type Service struct {
	repo  Repository
	hooks RoleHooks
	now   func() time.Time
	// mu serialises read-modify-write cycles on the matrix.
	mu sync.Mutex
}

// NewService constructs a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// UseRoleHooks registers the user directory.
func (s *Service) UseRoleHooks(h RoleHooks) {
	s.hooks = h
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

var roleSortKeys = shared.SortKeys[Role]{
	"name":      shared.ByText(func(r Role) string { return r.Name }),
	"createdAt": shared.ByNumber(func(r Role) int64 { return r.CreatedAt.UnixNano() }),
	"updatedAt": shared.ByNumber(func(r Role) int64 { return r.UpdatedAt.UnixNano() }),
}

// ListRoles returns roles matching the search, sorted as requested.
func (s *Service) ListRoles(ctx context.Context, f shared.ListFilters) ([]Role, error) {
	all, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Role, 0, len(all))
	for _, role := range all {
		if shared.MatchesSearch(f.Search, role.Name, role.Description) {
			out = append(out, role)
		}
	}
	shared.SortItems(out, roleSortKeys, f.SortBy, "name", f.Descending())
	return out, nil
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// GetRoleByName fetches a role by its case-insensitive name.
func (s *Service) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return s.repo.GetRoleByName(ctx, strings.TrimSpace(name))
}

// CreateRole inserts a new role with an empty permission list.
func (s *Service) CreateRole(ctx context.Context, req RoleRequest) (Role, error) {
	name, err := cleanRoleName(req.Name)
	if err != nil {
		return Role{}, err
	}
	now := s.now()
	return s.repo.CreateRole(ctx, Role{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// UpdateRole updates an existing role. Renames are pushed to user assignments.
func (s *Service) UpdateRole(ctx context.Context, id int64, req RoleRequest) (Role, error) {
	name, err := cleanRoleName(req.Name)
	if err != nil {
		return Role{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if existing.Protected() && name != existing.Name {
		return Role{}, ErrProtectedRole
	}
	updated, err := s.repo.UpdateRole(ctx, Role{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		UpdatedAt:   s.now(),
	})
	if err != nil {
		return Role{}, err
	}
	if s.hooks != nil && existing.Name != updated.Name {
		if err := s.hooks.RoleRenamed(ctx, existing.Name, updated.Name); err != nil {
			return Role{}, fmt.Errorf("rbac: propagate rename: %w", err)
		}
	}
	return updated, nil
}

// DeleteRole removes a role and its matrix row.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.Protected() {
		return ErrProtectedRole
	}
	if s.hooks != nil {
		inUse, err := s.hooks.RoleInUse(ctx, role.Name)
		if err != nil {
			return err
		}
		if inUse {
			return ErrInUse
		}
	}
	return s.repo.DeleteRole(ctx, id)
}

var permissionSortKeys = shared.SortKeys[Permission]{
	"name":      shared.ByText(func(p Permission) string { return p.Name }),
	"createdAt": shared.ByNumber(func(p Permission) int64 { return p.CreatedAt.UnixNano() }),
	"updatedAt": shared.ByNumber(func(p Permission) int64 { return p.UpdatedAt.UnixNano() }),
}

// ListPermissions returns permissions matching the search.
func (s *Service) ListPermissions(ctx context.Context, f shared.ListFilters) ([]Permission, error) {
	all, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Permission, 0, len(all))
	for _, p := range all {
		if shared.MatchesSearch(f.Search, p.Name, p.Description) {
			out = append(out, p)
		}
	}
	shared.SortItems(out, permissionSortKeys, f.SortBy, "name", f.Descending())
	return out, nil
}

// GetPermission fetches a permission by ID.
func (s *Service) GetPermission(ctx context.Context, id int64) (Permission, error) {
	return s.repo.GetPermission(ctx, id)
}

// CreatePermission inserts a permission and grants it to System Admin.
func (s *Service) CreatePermission(ctx context.Context, req PermissionRequest) (Permission, error) {
	name, err := cleanPermissionName(req.Name)
	if err != nil {
		return Permission{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	perm, err := s.repo.CreatePermission(ctx, Permission{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Permission{}, err
	}
	admin, err := s.repo.GetRoleByName(ctx, SystemAdminRole)
	if errors.Is(err, ErrNotFound) {
		return perm, nil
	}
	if err != nil {
		return Permission{}, err
	}
	if _, err := s.grantLocked(ctx, admin.ID, name); err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// UpdatePermission renames or re-describes a permission.
func (s *Service) UpdatePermission(ctx context.Context, id int64, req PermissionRequest) (Permission, error) {
	name, err := cleanPermissionName(req.Name)
	if err != nil {
		return Permission{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.UpdatePermission(ctx, Permission{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		UpdatedAt:   s.now(),
	})
}

// DeletePermission removes the permission from the catalog and every role.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.DeletePermission(ctx, id)
}

// ListRolePermissions returns matrix rows whose role name matches the search.
func (s *Service) ListRolePermissions(ctx context.Context, f shared.ListFilters) ([]RolePermission, error) {
	rows, err := s.repo.ListRolePermissions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RolePermission, 0, len(rows))
	for _, row := range rows {
		if shared.MatchesSearch(f.Search, row.RoleName) {
			out = append(out, row)
		}
	}
	shared.SortItems(out, shared.SortKeys[RolePermission]{
		"roleName":  shared.ByText(func(rp RolePermission) string { return rp.RoleName }),
		"updatedAt": shared.ByNumber(func(rp RolePermission) int64 { return rp.UpdatedAt.UnixNano() }),
	}, f.SortBy, "roleName", f.Descending())
	return out, nil
}

// GetRolePermissions returns the matrix row of one role.
func (s *Service) GetRolePermissions(ctx context.Context, roleID int64) (RolePermission, error) {
	return s.repo.GetRolePermissions(ctx, roleID)
}

// SetRolePermissions replaces the role's permission list.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, names []string) (RolePermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return RolePermission{}, err
	}
	known, err := s.permissionNames(ctx)
	if err != nil {
		return RolePermission{}, err
	}
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if !slices.Contains(known, n) {
			return RolePermission{}, fmt.Errorf("%w: %q", ErrUnknownPermission, n)
		}
		cleaned = append(cleaned, n)
	}
	cleaned = normalise(cleaned)
	if role.Protected() && len(cleaned) != len(known) {
		return RolePermission{}, ErrProtectedRole
	}
	return s.repo.SetRolePermissions(ctx, roleID, cleaned, s.now())
}

// Grant adds one permission to a role. Granting twice is a no-op.
func (s *Service) Grant(ctx context.Context, roleID int64, perm string) (RolePermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return RolePermission{}, err
	}
	known, err := s.permissionNames(ctx)
	if err != nil {
		return RolePermission{}, err
	}
	if !slices.Contains(known, perm) {
		return RolePermission{}, fmt.Errorf("%w: %q", ErrUnknownPermission, perm)
	}
	return s.grantLocked(ctx, roleID, perm)
}

// Revoke removes one permission from a role. Revoking a missing grant is a no-op.
func (s *Service) Revoke(ctx context.Context, roleID int64, perm string) (RolePermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return RolePermission{}, err
	}
	if role.Protected() {
		return RolePermission{}, ErrProtectedRole
	}
	row, err := s.repo.GetRolePermissions(ctx, roleID)
	if err != nil {
		return RolePermission{}, err
	}
	if !row.Has(perm) {
		return row, nil
	}
	remaining := slices.DeleteFunc(row.Permissions, func(p string) bool { return p == perm })
	return s.repo.SetRolePermissions(ctx, roleID, remaining, s.now())
}

func (s *Service) grantLocked(ctx context.Context, roleID int64, perm string) (RolePermission, error) {
	row, err := s.repo.GetRolePermissions(ctx, roleID)
	if err != nil {
		return RolePermission{}, err
	}
	if row.Has(perm) {
		return row, nil
	}
	return s.repo.SetRolePermissions(ctx, roleID, normalise(append(row.Permissions, perm)), s.now())
}

func (s *Service) permissionNames(ctx context.Context) ([]string, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = p.Name
	}
	return names, nil
}

func cleanRoleName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: role name required", ErrInvalid)
	}
	if utf8.RuneCountInString(name) > maxRoleName {
		return "", fmt.Errorf("%w: role name longer than %d characters", ErrInvalid, maxRoleName)
	}
	return name, nil
}

func cleanPermissionName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if !permissionPattern.MatchString(name) {
		return "", fmt.Errorf("%w: permission name %q must be dotted lower-case, e.g. proposals.create", ErrInvalid, name)
	}
	return name, nil
}

func normalise(names []string) []string {
	out := slices.Clone(names)
	slices.Sort(out)
	return slices.Compact(out)
}
