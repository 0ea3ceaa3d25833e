package rbac

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

type seedFile struct {
	Roles []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"roles"`
	Permissions []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"permissions"`
	Grants map[string][]string `yaml:"grants"`
}

// Seed loads the built-in roles, permissions and grants through the service
// so that System Admin picks up every permission.
func Seed(ctx context.Context, svc *Service) error {
	var data seedFile
	if err := yaml.Unmarshal(seedYAML, &data); err != nil {
		return fmt.Errorf("rbac: parse seed: %w", err)
	}
	roleIDs := make(map[string]int64, len(data.Roles))
	for _, r := range data.Roles {
		role, err := svc.CreateRole(ctx, RoleRequest{Name: r.Name, Description: r.Description})
		if err != nil {
			return fmt.Errorf("rbac: seed role %s: %w", r.Name, err)
		}
		roleIDs[role.Name] = role.ID
	}
	for _, p := range data.Permissions {
		if _, err := svc.CreatePermission(ctx, PermissionRequest{Name: p.Name, Description: p.Description}); err != nil {
			return fmt.Errorf("rbac: seed permission %s: %w", p.Name, err)
		}
	}
	for roleName, perms := range data.Grants {
		id, ok := roleIDs[roleName]
		if !ok {
			return fmt.Errorf("rbac: seed grants reference unknown role %s", roleName)
		}
		if _, err := svc.SetRolePermissions(ctx, id, perms); err != nil {
			return fmt.Errorf("rbac: seed grants for %s: %w", roleName, err)
		}
	}
	return nil
}

// NewSeededService returns a service over a fresh memory repository holding
// the built-in data.
func NewSeededService(ctx context.Context, now func() time.Time) (*Service, error) {
	svc := NewService(NewMemoryRepository())
	svc.WithNow(now)
	if err := Seed(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}
