package users

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/solution-studio/ai-studio/internal/rbac"
)

//go:embed seed.yaml
var seedYAML []byte

type seedFile struct {
	Options Options `yaml:"options"`
	Users   []struct {
		UserName      string   `yaml:"userName"`
		Email         string   `yaml:"email"`
		Department    string   `yaml:"department"`
		Role          string   `yaml:"role"`
		Regions       []string `yaml:"regions"`
		Industries    []string `yaml:"industries"`
		CustomerTiers []string `yaml:"customerTiers"`
	} `yaml:"users"`
}

// NewSeededService returns a service over a memory repository holding the
// demo users and registers it as the role hooks of roles, so role deletion
// and renames see the assignments. Roles must already exist in roles.
func NewSeededService(ctx context.Context, roles *rbac.Service, now func() time.Time) (*Service, error) {
	var data seedFile
	if err := yaml.Unmarshal(seedYAML, &data); err != nil {
		return nil, fmt.Errorf("users: parse seed: %w", err)
	}
	svc := NewService(NewMemoryRepository(), roles, data.Options)
	svc.WithNow(now)
	for _, u := range data.Users {
		user, err := svc.CreateUser(ctx, CreateUserRequest{
			UserName:   u.UserName,
			Email:      u.Email,
			Department: u.Department,
			Role:       u.Role,
		})
		if err != nil {
			return nil, fmt.Errorf("users: seed %s: %w", u.Email, err)
		}
		if _, err := svc.UpdateAccess(ctx, user.UserID, DataAccessRequest{
			Regions:       u.Regions,
			Industries:    u.Industries,
			CustomerTiers: u.CustomerTiers,
		}); err != nil {
			return nil, fmt.Errorf("users: seed access %s: %w", u.Email, err)
		}
	}
	roles.UseRoleHooks(svc)
	return svc, nil
}
