package knowledge

import (
	"fmt"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
)

var (
	// ErrDocumentNotFound indicates an unknown document.
	ErrDocumentNotFound = fmt.Errorf("knowledge: document %w", httpx.ErrNotFound)
	// ErrNodeNotFound indicates an unknown graph node.
	ErrNodeNotFound = fmt.Errorf("knowledge: node %w", httpx.ErrNotFound)
	// ErrEdgeNotFound indicates an unknown graph edge.
	ErrEdgeNotFound = fmt.Errorf("knowledge: edge %w", httpx.ErrNotFound)
	// ErrNoPath is returned when no path exists within the depth limit.
	ErrNoPath = fmt.Errorf("knowledge: no path %w", httpx.ErrNotFound)
	// ErrDuplicateNode rejects a node ID already in use.
	ErrDuplicateNode = fmt.Errorf("knowledge: node id already exists: %w", httpx.ErrDuplicate)
	// ErrDuplicateEdge rejects a second edge with the same endpoints and type.
	ErrDuplicateEdge = fmt.Errorf("knowledge: edge already exists: %w", httpx.ErrDuplicate)
	// ErrInvalidDirection rejects a direction other than in, out or both.
	ErrInvalidDirection = fmt.Errorf("knowledge: direction must be in, out or both: %w", httpx.ErrValidation)
)
