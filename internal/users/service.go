package users

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/rbac"
	"github.com/solution-studio/ai-studio/internal/shared"
)

// RoleLookup resolves role names against the RBAC catalog.
type RoleLookup interface {
	GetRoleByName(ctx context.Context, name string) (rbac.Role, error)
}

// Service handles user-role assignment and data-access rules.
type Service struct {
	repo    Repository
	roles   RoleLookup
	options Options
	now     func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, roles RoleLookup, options Options) *Service {
	return &Service{repo: repo, roles: roles, options: options, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Options returns the allowed data-access values.
func (s *Service) Options() Options {
	return Options{
		Regions:       slices.Clone(s.options.Regions),
		Industries:    slices.Clone(s.options.Industries),
		CustomerTiers: slices.Clone(s.options.CustomerTiers),
	}
}

var userSortKeys = shared.SortKeys[UserRole]{
	"userName":   shared.ByText(func(u UserRole) string { return u.UserName }),
	"email":      shared.ByText(func(u UserRole) string { return u.Email }),
	"department": shared.ByText(func(u UserRole) string { return u.Department }),
	"role":       shared.ByText(func(u UserRole) string { return u.Role }),
	"assignedAt": shared.ByNumber(func(u UserRole) int64 { return u.AssignedAt.UnixNano() }),
}

// ListUsers returns assignments matching the filters.
func (s *Service) ListUsers(ctx context.Context, f UserFilters) ([]UserRole, error) {
	all, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserRole, 0, len(all))
	for _, u := range all {
		if f.Role != "" && !strings.EqualFold(u.Role, f.Role) {
			continue
		}
		if shared.MatchesSearch(f.Search, u.UserName, u.Email, u.Department) {
			out = append(out, u)
		}
	}
	shared.SortItems(out, userSortKeys, f.SortBy, "userName", f.Descending())
	return out, nil
}

// GetUser returns one assignment.
func (s *Service) GetUser(ctx context.Context, id int64) (UserRole, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser adds a user with an empty data-access rule.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (UserRole, error) {
	req.UserName = strings.TrimSpace(req.UserName)
	req.Email = strings.TrimSpace(req.Email)
	req.Department = strings.TrimSpace(req.Department)
	if err := httpx.Validate(req); err != nil {
		return UserRole{}, err
	}
	role, err := s.resolveRole(ctx, req.Role)
	if err != nil {
		return UserRole{}, err
	}
	now := s.now()
	user := UserRole{
		UserName:   strings.TrimSpace(req.UserName),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Department: strings.TrimSpace(req.Department),
		Role:       role,
		AssignedAt: now,
	}
	access := UserDataAccess{
		UserName:      user.UserName,
		Email:         user.Email,
		Role:          role,
		Regions:       []string{},
		Industries:    []string{},
		CustomerTiers: []string{},
		UpdatedAt:     now,
	}
	return s.repo.CreateUser(ctx, user, access)
}

// UpdateUser edits name, department and role. The assignment time only moves
// when the role changes.
func (s *Service) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (UserRole, error) {
	req.UserName = strings.TrimSpace(req.UserName)
	req.Department = strings.TrimSpace(req.Department)
	if err := httpx.Validate(req); err != nil {
		return UserRole{}, err
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return UserRole{}, err
	}
	role, err := s.resolveRole(ctx, req.Role)
	if err != nil {
		return UserRole{}, err
	}
	user.UserName = strings.TrimSpace(req.UserName)
	user.Department = strings.TrimSpace(req.Department)
	if role != user.Role {
		user.Role = role
		user.AssignedAt = s.now()
	}
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return UserRole{}, err
	}
	return user, nil
}

// AssignRole sets the user's role and resets assignedAt.
func (s *Service) AssignRole(ctx context.Context, id int64, roleName string) (UserRole, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return UserRole{}, err
	}
	role, err := s.resolveRole(ctx, roleName)
	if err != nil {
		return UserRole{}, err
	}
	user.Role = role
	user.AssignedAt = s.now()
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return UserRole{}, err
	}
	return user, nil
}

// DeleteUser removes the user and its data-access rule.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	return s.repo.DeleteUser(ctx, id)
}

var accessSortKeys = shared.SortKeys[UserDataAccess]{
	"userName":  shared.ByText(func(a UserDataAccess) string { return a.UserName }),
	"email":     shared.ByText(func(a UserDataAccess) string { return a.Email }),
	"role":      shared.ByText(func(a UserDataAccess) string { return a.Role }),
	"updatedAt": shared.ByNumber(func(a UserDataAccess) int64 { return a.UpdatedAt.UnixNano() }),
}

// ListAccess returns data-access rules matching the filters.
func (s *Service) ListAccess(ctx context.Context, f AccessFilters) ([]UserDataAccess, error) {
	all, err := s.repo.ListAccess(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserDataAccess, 0, len(all))
	for _, a := range all {
		if f.Region != "" && !shared.ContainsFold(a.Regions, f.Region) {
			continue
		}
		if f.Industry != "" && !shared.ContainsFold(a.Industries, f.Industry) {
			continue
		}
		if f.Tier != "" && !shared.ContainsFold(a.CustomerTiers, f.Tier) {
			continue
		}
		if shared.MatchesSearch(f.Search, a.UserName, a.Email) {
			out = append(out, a)
		}
	}
	shared.SortItems(out, accessSortKeys, f.SortBy, "userName", f.Descending())
	return out, nil
}

// GetAccess returns one user's rule.
func (s *Service) GetAccess(ctx context.Context, userID int64) (UserDataAccess, error) {
	return s.repo.GetAccess(ctx, userID)
}

// UpdateAccess replaces the rule after checking every value against Options.
func (s *Service) UpdateAccess(ctx context.Context, userID int64, req DataAccessRequest) (UserDataAccess, error) {
	access, err := s.repo.GetAccess(ctx, userID)
	if err != nil {
		return UserDataAccess{}, err
	}
	if access.Regions, err = pick("regions", req.Regions, s.options.Regions); err != nil {
		return UserDataAccess{}, err
	}
	if access.Industries, err = pick("industries", req.Industries, s.options.Industries); err != nil {
		return UserDataAccess{}, err
	}
	if access.CustomerTiers, err = pick("customerTiers", req.CustomerTiers, s.options.CustomerTiers); err != nil {
		return UserDataAccess{}, err
	}
	access.UpdatedAt = s.now()
	if err := s.repo.SaveAccess(ctx, access); err != nil {
		return UserDataAccess{}, err
	}
	return access, nil
}

// RoleInUse reports whether any user holds the role.
func (s *Service) RoleInUse(ctx context.Context, name string) (bool, error) {
	all, err := s.repo.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range all {
		if strings.EqualFold(u.Role, name) {
			return true, nil
		}
	}
	return false, nil
}

// RoleRenamed rewrites assignments that referenced oldName.
func (s *Service) RoleRenamed(ctx context.Context, oldName, newName string) error {
	all, err := s.repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range all {
		if u.Role != oldName {
			continue
		}
		u.Role = newName
		if err := s.repo.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("users: rename role for %d: %w", u.UserID, err)
		}
	}
	return nil
}

func (s *Service) resolveRole(ctx context.Context, name string) (string, error) {
	role, err := s.roles.GetRoleByName(ctx, name)
	if errors.Is(err, rbac.ErrNotFound) {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, strings.TrimSpace(name))
	}
	if err != nil {
		return "", err
	}
	return role.Name, nil
}

// pick canonicalises values against allowed, then dedupes and sorts them.
func pick(field string, values, allowed []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		i := slices.IndexFunc(allowed, func(a string) bool { return strings.EqualFold(a, v) })
		if i < 0 {
			return nil, fmt.Errorf("%w: %s %q", ErrInvalidOption, field, v)
		}
		out = append(out, allowed[i])
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
