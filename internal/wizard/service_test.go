package wizard

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solution-studio/ai-studio/internal/catalog"
	"github.com/solution-studio/ai-studio/internal/estimate"
	"github.com/solution-studio/ai-studio/internal/pipeline"
	"github.com/solution-studio/ai-studio/internal/testing/testenv"
	"github.com/solution-studio/ai-studio/internal/twin"
)

type fakeRunner struct {
	mu        sync.Mutex
	seq       int
	runs      map[string]twin.Run
	callbacks map[string]func(twin.Run)
	stopped   []string
	opts      []twin.Options
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{runs: map[string]twin.Run{}, callbacks: map[string]func(twin.Run){}}
}

func (f *fakeRunner) Start(_ context.Context, opts twin.Options, onComplete func(twin.Run)) (twin.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	run := twin.Run{ID: fmt.Sprintf("run-%d", f.seq), Status: twin.StatusRunning}
	f.runs[run.ID] = run
	f.callbacks[run.ID] = onComplete
	f.opts = append(f.opts, opts)
	return run, nil
}

func (f *fakeRunner) Stop(id string) (twin.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return twin.Run{}, twin.ErrRunNotFound
	}
	if run.Status == twin.StatusRunning {
		run.Status = twin.StatusCancelled
		f.runs[id] = run
	}
	f.stopped = append(f.stopped, id)
	return run, nil
}

func (f *fakeRunner) Get(id string) (twin.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return twin.Run{}, twin.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeRunner) complete(id string, res twin.Results) {
	f.mu.Lock()
	run := f.runs[id]
	run.Status = twin.StatusCompleted
	run.Results = &res
	f.runs[id] = run
	cb := f.callbacks[id]
	f.mu.Unlock()
	if cb != nil {
		cb(run)
	}
}

type fixture struct {
	svc    *Service
	runner *fakeRunner
	mr     *miniredis.Miniredis
}

func newFixture(t *testing.T, runner SimulationRunner) fixture {
	t.Helper()
	mr, client := testenv.Redis(t)
	cat, err := catalog.Load()
	require.NoError(t, err)
	fake, _ := runner.(*fakeRunner)
	svc := NewService(testenv.Logger(), NewStore(client, 30*time.Minute), cat, runner)
	svc.WithNow(func() time.Time { return time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC) })
	return fixture{svc: svc, runner: fake, mr: mr}
}

const sid = "sess-1"

// ready takes the session up to the simulation step.
func ready(t *testing.T, f fixture, useCaseID string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.SelectUseCase(ctx, sid, useCaseID)
	require.NoError(t, err)
	_, err = f.svc.SetEstimateInput(ctx, sid, estimate.Input{})
	require.NoError(t, err)
}

func TestSelectUseCaseSeedsSelectionsAndPipeline(t *testing.T) {
	f := newFixture(t, newFakeRunner())
	ctx := context.Background()

	view, err := f.svc.SelectUseCase(ctx, sid, "uc-predictive-maintenance")
	require.NoError(t, err)
	assert.Equal(t, StepEstimate, view.Step)
	assert.Len(t, view.Selections, 5)
	require.NotNil(t, view.Pipeline)
	assert.Len(t, view.Pipeline.Nodes, 8)
	assert.Empty(t, view.PipelineIssues)
	assert.False(t, view.CanGenerateProposal)
	assert.Equal(t, 30*time.Minute, f.mr.TTL("wizard:"+sid))

	selected, err := f.svc.Selected(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, 1, selected["sku-gpu-l40s"])

	_, err = f.svc.SelectUseCase(ctx, sid, "uc-unknown")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestSetSelection(t *testing.T) {
	f := newFixture(t, newFakeRunner())
	ctx := context.Background()
	_, err := f.svc.SelectUseCase(ctx, sid, "uc-predictive-maintenance")
	require.NoError(t, err)

	view, err := f.svc.SetSelection(ctx, sid, "sku-gpu-l40s", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Quantities()["sku-gpu-l40s"])

	view, err = f.svc.SetSelection(ctx, sid, "sku-gpu-h100", 2)
	require.NoError(t, err)
	assert.Len(t, view.Selections, 6)

	view, err = f.svc.SetSelection(ctx, sid, "sku-gpu-h100", 0)
	require.NoError(t, err)
	assert.Len(t, view.Selections, 5)
	_, err = f.svc.SetSelection(ctx, sid, "sku-gpu-h100", 0)
	require.NoError(t, err)

	_, err = f.svc.SetSelection(ctx, sid, "sku-nope", 1)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = f.svc.SetSelection(ctx, sid, "sku-gpu-h100", -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	b, err := f.svc.BOM(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, b.Items, 5)
}

func TestStepsAdvanceAndRegress(t *testing.T) {
	f := newFixture(t, newFakeRunner())
	ctx := context.Background()

	view, err := f.svc.Get(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, StepUseCase, view.Step)

	_, err = f.svc.SelectUseCase(ctx, sid, "uc-predictive-maintenance")
	require.NoError(t, err)
	years := 5
	view, err = f.svc.SetEstimateInput(ctx, sid, estimate.Input{Years: years})
	require.NoError(t, err)
	assert.Equal(t, StepSimulation, view.Step)

	_, err = f.svc.SetEstimateInput(ctx, sid, estimate.Input{Years: 42})
	require.Error(t, err)

	p, err := f.svc.Pipeline(ctx, sid)
	require.NoError(t, err)
	var deploy string
	for _, n := range p.Nodes {
		if n.Type == pipeline.Deployment {
			deploy = n.ID
		}
	}
	require.NoError(t, f.svc.RemoveNode(ctx, sid, deploy))
	view, err = f.svc.Get(ctx, sid)
	require.NoError(t, err)
	assert.NotEmpty(t, view.PipelineIssues)

	st, err := f.svc.store.Load(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, StepPipeline, st.Step)
	assert.Equal(t, 5, st.EstimateInput.Years)
}

func TestEstimateUsesUseCaseBenefit(t *testing.T) {
	f := newFixture(t, newFakeRunner())
	ctx := context.Background()

	_, err := f.svc.Estimate(ctx, sid)
	assert.ErrorIs(t, err, ErrNoUseCase)

	_, err = f.svc.SelectUseCase(ctx, sid, "uc-predictive-maintenance")
	require.NoError(t, err)
	res, err := f.svc.Estimate(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, 1061200.0, res.Benefit)
	assert.Equal(t, 3, res.Assumptions.Years)
	assert.Positive(t, res.TCO)
}

func TestProposalUnlocksAfterSimulationCompletes(t *testing.T) {
	runner := newFakeRunner()
	f := newFixture(t, runner)
	ctx := context.Background()

	_, err := f.svc.StartSimulation(ctx, sid, SimulationRequest{})
	assert.ErrorIs(t, err, ErrNoUseCase)

	_, err = f.svc.SelectUseCase(ctx, sid, "uc-fraud-detection")
	require.NoError(t, err)
	_, err = f.svc.Draft(ctx, sid)
	assert.ErrorIs(t, err, ErrProposalLocked)
	_, err = f.svc.StartSimulation(ctx, sid, SimulationRequest{})
	assert.ErrorIs(t, err, ErrNoEstimate)

	view, err := f.svc.SetEstimateInput(ctx, sid, estimate.Input{})
	require.NoError(t, err)
	assert.Equal(t, StepSimulation, view.Step)
	assert.False(t, view.CanGenerateProposal)

	run, err := f.svc.StartSimulation(ctx, sid, SimulationRequest{DurationSeconds: 2, Seed: 9})
	require.NoError(t, err)
	require.Len(t, runner.opts, 1)
	assert.Equal(t, 2*time.Second, runner.opts[0].Duration)
	assert.Positive(t, runner.opts[0].PowerKW)

	runner.complete(run.ID, twin.Results{Accuracy: 0.93, FramesRendered: 60})
	view, err = f.svc.Get(ctx, sid)
	require.NoError(t, err)
	require.NotNil(t, view.Simulation)
	assert.True(t, view.CanGenerateProposal)
	assert.Equal(t, StepProposal, view.Step)

	draft, err := f.svc.Draft(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "uc-fraud-detection", draft.UseCase.ID)
	assert.Len(t, draft.Lines, 5)
	assert.Len(t, draft.PipelineOrder, 9)
	assert.Equal(t, 0.93, draft.Simulation.Accuracy)

	require.NoError(t, f.svc.AttachProposal(ctx, sid, "prop-1"))
	view, err = f.svc.Get(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "prop-1", view.ProposalID)
}

func TestRestartingSimulationIgnoresStaleCompletion(t *testing.T) {
	runner := newFakeRunner()
	f := newFixture(t, runner)
	ctx := context.Background()
	ready(t, f, "uc-fraud-detection")

	first, err := f.svc.StartSimulation(ctx, sid, SimulationRequest{})
	require.NoError(t, err)
	second, err := f.svc.StartSimulation(ctx, sid, SimulationRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, runner.stopped)

	runner.complete(first.ID, twin.Results{Accuracy: 0.81})
	view, err := f.svc.Get(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, view.Simulation)
	assert.Equal(t, second.ID, view.SimulationRunID)

	stopped, err := f.svc.StopSimulation(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, twin.StatusCancelled, stopped.Status)

	require.NoError(t, f.svc.Reset(ctx, sid))
	_, err = f.svc.StopSimulation(ctx, sid)
	assert.ErrorIs(t, err, ErrNoSimulation)
}

func TestSimulationRequiresRunnablePipeline(t *testing.T) {
	f := newFixture(t, newFakeRunner())
	ctx := context.Background()
	ready(t, f, "uc-fraud-detection")

	_, err := f.svc.AddNode(ctx, sid, pipeline.NodeInput{Type: pipeline.Monitoring})
	require.NoError(t, err)
	_, err = f.svc.StartSimulation(ctx, sid, SimulationRequest{})
	assert.ErrorIs(t, err, ErrPipelineInvalid)
}

func TestChangedInputsDiscardSimulation(t *testing.T) {
	runner := newFakeRunner()
	f := newFixture(t, runner)
	ctx := context.Background()
	ready(t, f, "uc-fraud-detection")

	complete := func() {
		t.Helper()
		run, err := f.svc.StartSimulation(ctx, sid, SimulationRequest{})
		require.NoError(t, err)
		runner.complete(run.ID, twin.Results{Accuracy: 0.9})
		view, err := f.svc.Get(ctx, sid)
		require.NoError(t, err)
		require.True(t, view.CanGenerateProposal)
	}
	locked := func() {
		t.Helper()
		view, err := f.svc.Get(ctx, sid)
		require.NoError(t, err)
		assert.Nil(t, view.Simulation)
		assert.Empty(t, view.SimulationRunID)
		assert.False(t, view.CanGenerateProposal)
		assert.Equal(t, StepSimulation, view.Step)
		_, err = f.svc.Draft(ctx, sid)
		assert.ErrorIs(t, err, ErrProposalLocked)
	}

	complete()
	_, err := f.svc.SetSelection(ctx, sid, "sku-gpu-h100", 2)
	require.NoError(t, err)
	locked()

	complete()
	// Re-sending the current quantity is not a change.
	_, err = f.svc.SetSelection(ctx, sid, "sku-gpu-h100", 2)
	require.NoError(t, err)
	view, err := f.svc.Get(ctx, sid)
	require.NoError(t, err)
	assert.True(t, view.CanGenerateProposal)

	p, err := f.svc.Pipeline(ctx, sid)
	require.NoError(t, err)
	x := 640.0
	_, err = f.svc.UpdateNode(ctx, sid, p.Nodes[0].ID, pipeline.NodePatch{X: &x})
	require.NoError(t, err)
	view, err = f.svc.Get(ctx, sid)
	require.NoError(t, err)
	assert.True(t, view.CanGenerateProposal, "moving a node keeps the results")

	label := "Raw events"
	_, err = f.svc.UpdateNode(ctx, sid, p.Nodes[0].ID, pipeline.NodePatch{Label: &label})
	require.NoError(t, err)
	locked()

	run, err := f.svc.StartSimulation(ctx, sid, SimulationRequest{})
	require.NoError(t, err)
	_, err = f.svc.AddNode(ctx, sid, pipeline.NodeInput{Type: pipeline.Monitoring})
	require.NoError(t, err)
	assert.Contains(t, runner.stopped, run.ID)
	runner.complete(run.ID, twin.Results{Accuracy: 0.95})
	view, err = f.svc.Get(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, view.Simulation)
}

func TestSimulationWithRealRunnerStoresResults(t *testing.T) {
	logger := testenv.Logger()
	runner := twin.NewRunner(logger, twin.RunnerConfig{FPS: 200}, nil)
	f := newFixture(t, runner)
	ctx := context.Background()
	ready(t, f, "uc-demand-forecasting")

	_, err := f.svc.StartSimulation(ctx, sid, SimulationRequest{DurationSeconds: 0.05, Seed: 4})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		view, err := f.svc.Get(ctx, sid)
		return err == nil && view.Simulation != nil
	}, 3*time.Second, 20*time.Millisecond)

	run, err := f.svc.Simulation(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, twin.StatusCompleted, run.Status)
}

func TestStoreUpdateSerialisesWriters(t *testing.T) {
	_, client := testenv.Redis(t)
	store := NewStore(client, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "shared", func(st *State) error {
				st.Selections = append(st.Selections, Selection{SKUID: fmt.Sprintf("sku-%d", i), Quantity: 1})
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := store.Load(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, st.Selections, 8)
}
