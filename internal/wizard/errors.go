package wizard

import (
	"fmt"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
)

var (
	// ErrNoUseCase is returned by steps that need a chosen use case.
	ErrNoUseCase = fmt.Errorf("wizard: choose a use case first: %w", httpx.ErrConflict)
	// ErrNoSelections is returned when no SKU is selected.
	ErrNoSelections = fmt.Errorf("wizard: select at least one SKU first: %w", httpx.ErrConflict)
	// ErrNoEstimate is returned until the estimate assumptions are saved.
	ErrNoEstimate = fmt.Errorf("wizard: save the estimate first: %w", httpx.ErrConflict)
	// ErrPipelineInvalid blocks a simulation over an unrunnable pipeline.
	ErrPipelineInvalid = fmt.Errorf("wizard: pipeline is not runnable: %w", httpx.ErrConflict)
	// ErrProposalLocked is returned until a simulation has completed.
	ErrProposalLocked = fmt.Errorf("wizard: proposal is locked until a simulation completes: %w", httpx.ErrConflict)
	// ErrNoSimulation is returned when the session has no simulation run.
	ErrNoSimulation = fmt.Errorf("wizard: simulation %w", httpx.ErrNotFound)
	// ErrInvalidQuantity rejects negative quantities.
	ErrInvalidQuantity = fmt.Errorf("wizard: quantity must not be negative: %w", httpx.ErrValidation)
)
