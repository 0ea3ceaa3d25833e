package users

import (
	"fmt"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
)

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = fmt.Errorf("users: %w", httpx.ErrNotFound)
	// ErrDuplicateEmail indicates another user owns the email address.
	ErrDuplicateEmail = fmt.Errorf("users: email already registered: %w", httpx.ErrDuplicate)
	// ErrUnknownRole indicates the role does not exist.
	ErrUnknownRole = fmt.Errorf("users: unknown role: %w", httpx.ErrValidation)
	// ErrInvalidOption indicates a data-access value outside the allowed options.
	ErrInvalidOption = fmt.Errorf("users: value not allowed: %w", httpx.ErrValidation)
)
