// Package wizard keeps the guided solution-building flow for each browser
// session: use case, SKU selection, estimate inputs, pipeline and simulation.
package wizard

import (
	"time"

	"github.com/solution-studio/ai-studio/internal/estimate"
	"github.com/solution-studio/ai-studio/internal/pipeline"
	"github.com/solution-studio/ai-studio/internal/twin"
)

// Step is a wizard stage.
type Step string

// Wizard stages in order.
const (
	StepUseCase    Step = "use_case"
	StepSKUs       Step = "skus"
	StepEstimate   Step = "estimate"
	StepPipeline   Step = "pipeline"
	StepSimulation Step = "simulation"
	StepProposal   Step = "proposal"
)

// Selection is a chosen SKU and quantity.
type Selection struct {
	SKUID    string `json:"skuId"`
	Quantity int    `json:"quantity"`
}

// State is the persisted wizard state of one session.
type State struct {
	Step            Step               `json:"step"`
	UseCaseID       string             `json:"useCaseId,omitempty"`
	Selections      []Selection        `json:"selections"`
	EstimateInput   estimate.Input     `json:"estimateInput"`
	EstimateSaved   bool               `json:"estimateSaved"`
	Pipeline        *pipeline.Pipeline `json:"pipeline,omitempty"`
	SimulationRunID string             `json:"simulationRunId,omitempty"`
	Simulation      *twin.Results      `json:"simulation,omitempty"`
	ProposalID      string             `json:"proposalId,omitempty"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func newState() State {
	return State{Step: StepUseCase, Selections: []Selection{}}
}

// CanGenerateProposal reports whether a proposal may be built from the state.
// It holds exactly when the furthest step is the proposal.
func (s State) CanGenerateProposal() bool {
	return s.furthestStep() == StepProposal
}

// discardSimulation forgets the session's run and its results and returns
// the run ID so a live run can be stopped.
func discardSimulation(st *State) string {
	runID := st.SimulationRunID
	st.SimulationRunID = ""
	st.Simulation = nil
	return runID
}

// Quantities maps SKU IDs to selected quantities.
func (s State) Quantities() map[string]int {
	out := make(map[string]int, len(s.Selections))
	for _, sel := range s.Selections {
		out[sel.SKUID] = sel.Quantity
	}
	return out
}

// furthestStep derives the furthest stage the state can reach.
func (s State) furthestStep() Step {
	switch {
	case s.UseCaseID == "":
		return StepUseCase
	case len(s.Selections) == 0:
		return StepSKUs
	case !s.EstimateSaved:
		return StepEstimate
	case s.Pipeline == nil || len(s.Pipeline.Validate()) > 0:
		return StepPipeline
	case s.Simulation == nil:
		return StepSimulation
	default:
		return StepProposal
	}
}

// View is the state as returned to clients.
type View struct {
	State
	CanGenerateProposal bool             `json:"canGenerateProposal"`
	PipelineIssues      []pipeline.Issue `json:"pipelineIssues"`
}

func viewOf(s State) View {
	v := View{State: s, CanGenerateProposal: s.CanGenerateProposal(), PipelineIssues: []pipeline.Issue{}}
	if s.Pipeline != nil {
		v.PipelineIssues = s.Pipeline.Validate()
	}
	return v
}
