package proposal

import (
	"fmt"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
)

var (
	// ErrProposalNotFound indicates an unknown or expired proposal.
	ErrProposalNotFound = fmt.Errorf("proposal: %w", httpx.ErrNotFound)
	// ErrRenderInProgress rejects edits and render requests while a PDF is being produced.
	ErrRenderInProgress = fmt.Errorf("proposal: pdf rendering in progress: %w", httpx.ErrConflict)
	// ErrPDFNotReady indicates the PDF has not been rendered for the current revision.
	ErrPDFNotReady = fmt.Errorf("proposal: pdf %w", httpx.ErrNotFound)
	// ErrInvalidStatus reports a status transition that no longer applies.
	ErrInvalidStatus = fmt.Errorf("proposal: invalid status transition: %w", httpx.ErrConflict)
	// ErrRendererUnavailable means no PDF client is configured.
	ErrRendererUnavailable = fmt.Errorf("proposal: pdf renderer %w", httpx.ErrUnavailable)
)
