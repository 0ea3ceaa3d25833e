package shared

import (
	"fmt"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
)

// Session and CSRF failures carry the httpx class they answer with.
var (
	ErrSessionMissing   = fmt.Errorf("session required: %w", httpx.ErrUnauthorized)
	ErrCSRFTokenMissing = fmt.Errorf("csrf token missing: %w", httpx.ErrForbidden)
	ErrCSRFTokenInvalid = fmt.Errorf("csrf token invalid: %w", httpx.ErrForbidden)
)
