package users

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Repository stores user assignments and their data-access rules.
type Repository interface {
	ListUsers(ctx context.Context) ([]UserRole, error)
	GetUser(ctx context.Context, id int64) (UserRole, error)
	CreateUser(ctx context.Context, user UserRole, access UserDataAccess) (UserRole, error)
	SaveUser(ctx context.Context, user UserRole) error
	DeleteUser(ctx context.Context, id int64) error

	ListAccess(ctx context.Context) ([]UserDataAccess, error)
	GetAccess(ctx context.Context, userID int64) (UserDataAccess, error)
	SaveAccess(ctx context.Context, access UserDataAccess) error
}

// MemoryRepository is the process-local Repository.
type MemoryRepository struct {
	mu     sync.RWMutex
	users  map[int64]UserRole
	access map[int64]UserDataAccess
	nextID int64
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:  make(map[int64]UserRole),
		access: make(map[int64]UserDataAccess),
		nextID: 1,
	}
}

func (r *MemoryRepository) ListUsers(ctx context.Context) ([]UserRole, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]UserRole, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b UserRole) int { return int(a.UserID - b.UserID) })
	return out, nil
}

func (r *MemoryRepository) GetUser(ctx context.Context, id int64) (UserRole, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return UserRole{}, ErrNotFound
	}
	return u, nil
}

// CreateUser assigns an ID and stores the user together with its access rule.
func (r *MemoryRepository) CreateUser(ctx context.Context, user UserRole, access UserDataAccess) (UserRole, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return UserRole{}, ErrDuplicateEmail
		}
	}
	user.UserID = r.nextID
	r.nextID++
	access.UserID = user.UserID
	r.users[user.UserID] = user
	r.access[user.UserID] = access
	return user, nil
}

func (r *MemoryRepository) SaveUser(ctx context.Context, user UserRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.UserID]; !ok {
		return ErrNotFound
	}
	r.users[user.UserID] = user
	if acc, ok := r.access[user.UserID]; ok {
		acc.UserName = user.UserName
		acc.Email = user.Email
		acc.Role = user.Role
		r.access[user.UserID] = acc
	}
	return nil
}

// DeleteUser removes the user and the matching data-access record.
func (r *MemoryRepository) DeleteUser(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	delete(r.access, id)
	return nil
}

func (r *MemoryRepository) ListAccess(ctx context.Context) ([]UserDataAccess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]UserDataAccess, 0, len(r.access))
	for _, a := range r.access {
		out = append(out, cloneAccess(a))
	}
	slices.SortFunc(out, func(a, b UserDataAccess) int { return int(a.UserID - b.UserID) })
	return out, nil
}

func (r *MemoryRepository) GetAccess(ctx context.Context, userID int64) (UserDataAccess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.access[userID]
	if !ok {
		return UserDataAccess{}, ErrNotFound
	}
	return cloneAccess(a), nil
}

func (r *MemoryRepository) SaveAccess(ctx context.Context, access UserDataAccess) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.access[access.UserID]; !ok {
		return ErrNotFound
	}
	r.access[access.UserID] = cloneAccess(access)
	return nil
}

func cloneAccess(a UserDataAccess) UserDataAccess {
	a.Regions = slices.Clone(a.Regions)
	a.Industries = slices.Clone(a.Industries)
	a.CustomerTiers = slices.Clone(a.CustomerTiers)
	return a
}
