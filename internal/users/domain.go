package users

import (
	"time"

	"github.com/solution-studio/ai-studio/internal/shared"
)

// UserRole is one row of the user-role assignment table.
type UserRole struct {
	UserID     int64     `json:"userId"`
	UserName   string    `json:"userName"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	Role       string    `json:"role"`
	AssignedAt time.Time `json:"assignedAt"`
}

// UserDataAccess restricts which customer data a user may see.
type UserDataAccess struct {
	UserID        int64     `json:"userId"`
	UserName      string    `json:"userName"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	Regions       []string  `json:"regions"`
	Industries    []string  `json:"industries"`
	CustomerTiers []string  `json:"customerTiers"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Options lists the values a data-access rule may contain.
type Options struct {
	Regions       []string `json:"regions" yaml:"regions"`
	Industries    []string `json:"industries" yaml:"industries"`
	CustomerTiers []string `json:"customerTiers" yaml:"customerTiers"`
}

// UserFilters narrows the assignment list.
type UserFilters struct {
	shared.ListFilters
	Role string
}

// AccessFilters narrows the data-access list.
type AccessFilters struct {
	shared.ListFilters
	Region   string
	Industry string
	Tier     string
}
