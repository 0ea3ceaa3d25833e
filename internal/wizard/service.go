package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/solution-studio/ai-studio/internal/bom"
	"github.com/solution-studio/ai-studio/internal/catalog"
	"github.com/solution-studio/ai-studio/internal/estimate"
	"github.com/solution-studio/ai-studio/internal/pipeline"
	"github.com/solution-studio/ai-studio/internal/twin"
)

const completionTimeout = 5 * time.Second

// SimulationRunner starts and stops digital-twin runs.
type SimulationRunner interface {
	Start(ctx context.Context, opts twin.Options, onComplete func(twin.Run)) (twin.Run, error)
	Stop(id string) (twin.Run, error)
	Get(id string) (twin.Run, error)
}

// SimulationRequest tunes a simulation. Zero values use runner defaults.
type SimulationRequest struct {
	DurationSeconds float64 `json:"durationSeconds" validate:"omitempty,min=1,max=120"`
	Seed            uint64  `json:"seed"`
}

// Draft is everything a proposal needs from a finished wizard.
type Draft struct {
	UseCase       catalog.UseCase
	Lines         []bom.Line
	Assumptions   estimate.Assumptions
	PipelineOrder []string
	Simulation    twin.Results
}

// Service drives the wizard.
type Service struct {
	logger  *slog.Logger
	store   *Store
	catalog *catalog.Catalog
	runner  SimulationRunner
	now     func() time.Time
}

// NewService wires the wizard service.
func NewService(logger *slog.Logger, store *Store, cat *catalog.Catalog, runner SimulationRunner) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, store: store, catalog: cat, runner: runner, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Get returns the session's wizard.
func (s *Service) Get(ctx context.Context, sessionID string) (View, error) {
	st, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	return viewOf(st), nil
}

// Selected implements catalog.SelectionSource.
func (s *Service) Selected(ctx context.Context, sessionID string) (map[string]int, error) {
	st, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return st.Quantities(), nil
}

// SelectUseCase restarts the wizard on a use case, seeding the selections
// from its recommended SKUs and the pipeline from its template.
func (s *Service) SelectUseCase(ctx context.Context, sessionID, useCaseID string) (View, error) {
	uc, err := s.catalog.GetUseCase(useCaseID)
	if err != nil {
		return View{}, err
	}
	p, err := pipeline.FromTemplate(uc.PipelineTemplate)
	if err != nil {
		return View{}, fmt.Errorf("wizard: use case %s template: %w", uc.ID, err)
	}
	var previousRun string
	st, err := s.update(ctx, sessionID, func(st *State) error {
		previousRun = st.SimulationRunID
		*st = newState()
		st.UseCaseID = uc.ID
		for _, id := range uc.RecommendedSKUs {
			st.Selections = append(st.Selections, Selection{SKUID: id, Quantity: 1})
		}
		st.Pipeline = p
		return nil
	})
	if err != nil {
		return View{}, err
	}
	s.stopQuietly(previousRun)
	return viewOf(st), nil
}

// SetSelection sets a SKU quantity. Zero removes the SKU.
func (s *Service) SetSelection(ctx context.Context, sessionID, skuID string, quantity int) (View, error) {
	if quantity < 0 {
		return View{}, ErrInvalidQuantity
	}
	if _, err := s.catalog.GetSKU(skuID); err != nil {
		return View{}, err
	}
	var staleRun string
	st, err := s.update(ctx, sessionID, func(st *State) error {
		i := slices.IndexFunc(st.Selections, func(sel Selection) bool { return sel.SKUID == skuID })
		switch {
		case quantity == 0 && i >= 0:
			st.Selections = slices.Delete(st.Selections, i, i+1)
		case quantity == 0:
			return nil
		case i >= 0 && st.Selections[i].Quantity == quantity:
			return nil
		case i >= 0:
			st.Selections[i].Quantity = quantity
		default:
			st.Selections = append(st.Selections, Selection{SKUID: skuID, Quantity: quantity})
		}
		staleRun = discardSimulation(st)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	s.stopQuietly(staleRun)
	return viewOf(st), nil
}

// SetEstimateInput stores validated estimate assumptions.
func (s *Service) SetEstimateInput(ctx context.Context, sessionID string, in estimate.Input) (View, error) {
	st, err := s.update(ctx, sessionID, func(st *State) error {
		uc, err := s.useCase(*st)
		if err != nil {
			return err
		}
		if _, err := in.Resolve(uc.Benefit); err != nil {
			return err
		}
		st.EstimateInput = in
		st.EstimateSaved = true
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return viewOf(st), nil
}

// BOM builds the bill of materials from the current selections.
func (s *Service) BOM(ctx context.Context, sessionID string) (*bom.BOM, error) {
	st, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	lines, err := s.lines(st)
	if err != nil {
		return nil, err
	}
	return bom.Build(lines), nil
}

// Estimate computes cost and ROI for the current selections.
func (s *Service) Estimate(ctx context.Context, sessionID string) (estimate.Result, error) {
	st, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return estimate.Result{}, err
	}
	uc, err := s.useCase(st)
	if err != nil {
		return estimate.Result{}, err
	}
	a, err := st.EstimateInput.Resolve(uc.Benefit)
	if err != nil {
		return estimate.Result{}, err
	}
	lines, err := s.lines(st)
	if err != nil {
		return estimate.Result{}, err
	}
	return estimate.Calculate(bom.Build(lines), a), nil
}

// PipelineView is the pipeline with its validation findings and run order.
type PipelineView struct {
	*pipeline.Pipeline
	Issues []pipeline.Issue `json:"issues"`
	Order  []string         `json:"order"`
}

// Pipeline returns the session's pipeline.
func (s *Service) Pipeline(ctx context.Context, sessionID string) (PipelineView, error) {
	st, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return PipelineView{}, err
	}
	return pipelineView(st), nil
}

// AddNode adds a pipeline stage.
func (s *Service) AddNode(ctx context.Context, sessionID string, in pipeline.NodeInput) (pipeline.Node, error) {
	var node pipeline.Node
	err := s.editPipeline(ctx, sessionID, true, func(p *pipeline.Pipeline) (err error) {
		node, err = p.AddNode(in)
		return err
	})
	return node, err
}

// UpdateNode edits a pipeline stage.
func (s *Service) UpdateNode(ctx context.Context, sessionID, nodeID string, patch pipeline.NodePatch) (pipeline.Node, error) {
	var node pipeline.Node
	// Moving a node on the canvas keeps the simulation.
	structural := patch.Label != nil || patch.Config != nil
	err := s.editPipeline(ctx, sessionID, structural, func(p *pipeline.Pipeline) (err error) {
		node, err = p.UpdateNode(nodeID, patch)
		return err
	})
	return node, err
}

// RemoveNode deletes a pipeline stage and its edges.
func (s *Service) RemoveNode(ctx context.Context, sessionID, nodeID string) error {
	return s.editPipeline(ctx, sessionID, true, func(p *pipeline.Pipeline) error {
		return p.RemoveNode(nodeID)
	})
}

// Connect links two pipeline stages.
func (s *Service) Connect(ctx context.Context, sessionID string, in pipeline.EdgeInput) (pipeline.Edge, error) {
	var edge pipeline.Edge
	err := s.editPipeline(ctx, sessionID, true, func(p *pipeline.Pipeline) (err error) {
		edge, err = p.Connect(in.Source, in.Target)
		return err
	})
	return edge, err
}

// Disconnect removes a pipeline edge.
func (s *Service) Disconnect(ctx context.Context, sessionID, edgeID string) error {
	return s.editPipeline(ctx, sessionID, true, func(p *pipeline.Pipeline) error {
		return p.Disconnect(edgeID)
	})
}

// StartSimulation launches a digital-twin run for the session. A run already
// in progress is stopped first. The run outlives the request; its results
// are stored when it completes.
func (s *Service) StartSimulation(ctx context.Context, sessionID string, req SimulationRequest) (twin.Run, error) {
	st, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return twin.Run{}, err
	}
	if st.UseCaseID == "" {
		return twin.Run{}, ErrNoUseCase
	}
	if len(st.Selections) == 0 {
		return twin.Run{}, ErrNoSelections
	}
	if !st.EstimateSaved {
		return twin.Run{}, ErrNoEstimate
	}
	if st.Pipeline == nil || len(st.Pipeline.Validate()) > 0 {
		return twin.Run{}, ErrPipelineInvalid
	}
	lines, err := s.lines(st)
	if err != nil {
		return twin.Run{}, err
	}
	s.stopQuietly(st.SimulationRunID)

	opts := twin.Options{
		Duration: time.Duration(req.DurationSeconds * float64(time.Second)),
		Seed:     req.Seed,
		PowerKW:  bom.Build(lines).PowerKW(),
	}
	run, err := s.runner.Start(context.WithoutCancel(ctx), opts, func(r twin.Run) {
		s.complete(sessionID, r)
	})
	if err != nil {
		return twin.Run{}, err
	}
	if _, err := s.update(ctx, sessionID, func(st *State) error {
		st.SimulationRunID = run.ID
		st.Simulation = nil
		// A short run may finish before its ID is stored.
		if cur, err := s.runner.Get(run.ID); err == nil && cur.Status == twin.StatusCompleted {
			st.Simulation = cur.Results
		}
		return nil
	}); err != nil {
		s.stopQuietly(run.ID)
		return twin.Run{}, err
	}
	return run, nil
}

// StopSimulation cancels the session's running simulation.
func (s *Service) StopSimulation(ctx context.Context, sessionID string) (twin.Run, error) {
	st, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return twin.Run{}, err
	}
	if st.SimulationRunID == "" {
		return twin.Run{}, ErrNoSimulation
	}
	return s.runner.Stop(st.SimulationRunID)
}

// Simulation returns the session's current run.
func (s *Service) Simulation(ctx context.Context, sessionID string) (twin.Run, error) {
	st, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return twin.Run{}, err
	}
	if st.SimulationRunID == "" {
		return twin.Run{}, ErrNoSimulation
	}
	run, err := s.runner.Get(st.SimulationRunID)
	if errors.Is(err, twin.ErrRunNotFound) && st.Simulation != nil {
		// Evicted after completion; the stored results still stand.
		return twin.Run{ID: st.SimulationRunID, Status: twin.StatusCompleted, Results: st.Simulation}, nil
	}
	return run, err
}

// Reset clears the wizard.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	st, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	s.stopQuietly(st.SimulationRunID)
	return s.store.Delete(ctx, sessionID)
}

// Draft returns the inputs of a proposal, or ErrProposalLocked when the
// wizard is not complete.
func (s *Service) Draft(ctx context.Context, sessionID string) (Draft, error) {
	st, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Draft{}, err
	}
	if !st.CanGenerateProposal() {
		return Draft{}, ErrProposalLocked
	}
	uc, err := s.useCase(st)
	if err != nil {
		return Draft{}, err
	}
	a, err := st.EstimateInput.Resolve(uc.Benefit)
	if err != nil {
		return Draft{}, err
	}
	lines, err := s.lines(st)
	if err != nil {
		return Draft{}, err
	}
	d := Draft{UseCase: uc, Lines: lines, Assumptions: a, Simulation: *st.Simulation, PipelineOrder: []string{}}
	if st.Pipeline != nil {
		d.PipelineOrder = st.Pipeline.Labels()
	}
	return d, nil
}

// AttachProposal records the proposal generated from the wizard.
func (s *Service) AttachProposal(ctx context.Context, sessionID, proposalID string) error {
	_, err := s.update(ctx, sessionID, func(st *State) error {
		st.ProposalID = proposalID
		return nil
	})
	return err
}

func (s *Service) complete(sessionID string, run twin.Run) {
	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()
	_, err := s.update(ctx, sessionID, func(st *State) error {
		if st.SimulationRunID == run.ID {
			st.Simulation = run.Results
		}
		return nil
	})
	if err != nil {
		s.logger.Error("store simulation results", slog.String("run_id", run.ID), slog.Any("error", err))
	}
}

func (s *Service) update(ctx context.Context, sessionID string, fn func(*State) error) (State, error) {
	return s.store.Update(ctx, sessionID, func(st *State) error {
		if err := fn(st); err != nil {
			return err
		}
		st.UpdatedAt = s.now().UTC()
		st.Step = st.furthestStep()
		return nil
	})
}

// editPipeline applies fn to the session pipeline. A structural edit
// discards the simulation, which no longer describes the pipeline.
func (s *Service) editPipeline(ctx context.Context, sessionID string, structural bool, fn func(*pipeline.Pipeline) error) error {
	var staleRun string
	_, err := s.update(ctx, sessionID, func(st *State) error {
		if st.Pipeline == nil {
			if st.UseCaseID == "" {
				return ErrNoUseCase
			}
			st.Pipeline = pipeline.New()
		}
		if err := fn(st.Pipeline); err != nil {
			return err
		}
		if structural {
			staleRun = discardSimulation(st)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.stopQuietly(staleRun)
	return nil
}

func (s *Service) useCase(st State) (catalog.UseCase, error) {
	if st.UseCaseID == "" {
		return catalog.UseCase{}, ErrNoUseCase
	}
	return s.catalog.GetUseCase(st.UseCaseID)
}

func (s *Service) lines(st State) ([]bom.Line, error) {
	lines := make([]bom.Line, 0, len(st.Selections))
	for _, sel := range st.Selections {
		sku, err := s.catalog.GetSKU(sel.SKUID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, bom.Line{SKU: sku, Quantity: sel.Quantity})
	}
	return lines, nil
}

func (s *Service) stopQuietly(runID string) {
	if runID == "" {
		return
	}
	if _, err := s.runner.Stop(runID); err != nil && !errors.Is(err, twin.ErrRunNotFound) {
		s.logger.Warn("stop previous simulation", slog.String("run_id", runID), slog.Any("error", err))
	}
}

func pipelineView(st State) PipelineView {
	p := st.Pipeline
	if p == nil {
		p = pipeline.New()
	}
	return PipelineView{Pipeline: p, Issues: p.Validate(), Order: p.Labels()}
}
