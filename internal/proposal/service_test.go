package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solution-studio/ai-studio/internal/bom"
	"github.com/solution-studio/ai-studio/internal/catalog"
	"github.com/solution-studio/ai-studio/internal/estimate"
	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/testing/testenv"
	"github.com/solution-studio/ai-studio/internal/twin"
	"github.com/solution-studio/ai-studio/internal/view"
	"github.com/solution-studio/ai-studio/internal/wizard"
	"github.com/solution-studio/ai-studio/jobs"
)

type fakeDrafts struct {
	mu       sync.Mutex
	draft    wizard.Draft
	err      error
	attached map[string]string
}

func (f *fakeDrafts) Draft(_ context.Context, _ string) (wizard.Draft, error) {
	if f.err != nil {
		return wizard.Draft{}, f.err
	}
	return f.draft, nil
}

func (f *fakeDrafts) AttachProposal(_ context.Context, sessionID, proposalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attached == nil {
		f.attached = map[string]string{}
	}
	f.attached[sessionID] = proposalID
	return nil
}

type fakeQueue struct {
	mu   sync.Mutex
	ids  []string
	fail bool
}

func (f *fakeQueue) EnqueueProposalRender(_ context.Context, id string) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("redis down")
	}
	f.ids = append(f.ids, id)
	return &asynq.TaskInfo{ID: "task-" + id, Queue: jobs.QueueProposals}, nil
}

type fakePDF struct {
	html string
	err  error
}

func (f *fakePDF) RenderHTML(_ context.Context, html string) ([]byte, error) {
	f.html = html
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7 proposal"), nil
}

type fixture struct {
	svc      *Service
	drafts   *fakeDrafts
	queue    *fakeQueue
	pdf      *fakePDF
	renderer *Renderer
	job      *Job
	mr       *miniredis.Miniredis
}

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func sampleDraft(t *testing.T) wizard.Draft {
	t.Helper()
	benefit := catalog.Benefit{Users: 10, HoursSavedPerWeek: 5, HourlyRate: 50, RevenueUplift: 20000}
	a, err := estimate.Input{}.Resolve(benefit)
	require.NoError(t, err)
	return wizard.Draft{
		UseCase: catalog.UseCase{ID: "uc-clinical-notes", Name: "Clinical Notes", Industry: "healthcare", Description: "Summarise notes."},
		Lines: []bom.Line{
			{SKU: catalog.SKU{ID: "sw", Name: "License", Category: catalog.CategorySoftware, Vendor: "Studio", Price: 10000}, Quantity: 1},
			{SKU: catalog.SKU{ID: "hw", Name: "Server", Category: catalog.CategoryCompute, Vendor: "NVIDIA", Price: 100000, PowerKW: 2}, Quantity: 1},
			{SKU: catalog.SKU{ID: "ps", Name: "Install", Category: catalog.CategoryServices, Vendor: "Studio", Price: 5000}, Quantity: 1},
		},
		Assumptions:   a,
		PipelineOrder: []string{"Data Source", "Model Training", "Deployment"},
		Simulation:    twin.Results{Accuracy: 0.93, Loss: 0.126, CPUUtilization: 54.2, MemoryUtilization: 61.8, PowerKW: 2.4, AverageTemperature: 49.3, FramesRendered: 300, DurationSeconds: 10},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, client := testenv.Redis(t)

	drafts := &fakeDrafts{draft: sampleDraft(t)}
	queue := &fakeQueue{}
	pdf := &fakePDF{}
	svc := NewService(testenv.Logger(), NewStore(client, time.Hour), drafts, queue).WithNow(func() time.Time { return fixedNow })
	engine, err := view.NewEngine()
	require.NoError(t, err)
	renderer, err := NewRenderer(engine, pdf)
	require.NoError(t, err)
	renderer.now = func() time.Time { return fixedNow }
	job := NewJob(JobConfig{Service: svc, Renderer: renderer, Logger: testenv.Logger()})
	return &fixture{svc: svc, drafts: drafts, queue: queue, pdf: pdf, renderer: renderer, job: job, mr: mr}
}

func (f *fixture) generate(t *testing.T) Proposal {
	t.Helper()
	p, err := f.svc.Generate(context.Background(), "sess-1", GenerateRequest{Customer: " Acme Health ", PreparedBy: "Dana"})
	require.NoError(t, err)
	return p
}

func renderTask(t *testing.T, id string) *asynq.Task {
	t.Helper()
	task, err := jobs.NewProposalRenderTask(jobs.ProposalRenderPayload{ProposalID: id})
	require.NoError(t, err)
	return task
}

func TestGenerateBuildsProposal(t *testing.T) {
	f := newFixture(t)
	p := f.generate(t)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Clinical Notes proposal for Acme Health", p.Title)
	assert.Equal(t, "Acme Health", p.Customer)
	assert.Equal(t, StatusDraft, p.Status)
	assert.Equal(t, 1, p.Revision)
	assert.Equal(t, fixedNow, p.CreatedAt)
	require.Len(t, p.BOM.Items, 3)
	assert.Equal(t, "Server", p.BOM.Items[0].ItemName)
	assert.Equal(t, 115000.0, p.Total)
	assert.InDelta(t, 189460.8, p.Estimate.TCO, 1e-6)
	assert.Equal(t, []string{"Data Source", "Model Training", "Deployment"}, p.PipelineOrder)
	assert.Equal(t, p.ID, f.drafts.attached["sess-1"])

	stored, err := f.svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Total, stored.Total)
	assert.True(t, f.mr.Exists(keyPrefix+p.ID))
	assert.Equal(t, time.Hour, f.mr.TTL(keyPrefix+p.ID))
}

func TestGenerateRejections(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Generate(context.Background(), "sess-1", GenerateRequest{PreparedBy: "Dana"})
	var verr *httpx.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "customer")

	f.drafts.err = wizard.ErrProposalLocked
	_, err = f.svc.Generate(context.Background(), "sess-1", GenerateRequest{Customer: "Acme", PreparedBy: "Dana"})
	assert.ErrorIs(t, err, wizard.ErrProposalLocked)
	assert.Empty(t, f.drafts.attached)

	_, err = f.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProposalNotFound)
}

func TestUpdateBOMItemRecomputes(t *testing.T) {
	f := newFixture(t)
	p := f.generate(t)
	hw := p.BOM.Items[0].ID

	qty := 2
	updated, err := f.svc.UpdateBOMItem(context.Background(), p.ID, hw, bom.Patch{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 200000.0, updated.BOM.Items[0].TotalPrice)
	assert.Equal(t, 215000.0, updated.Total)
	assert.Equal(t, 200000.0, updated.Estimate.Hardware)
	assert.InDelta(t, 343921.6, updated.Estimate.TCO, 1e-6)
	assert.Equal(t, 2, updated.Revision)

	_, err = f.svc.UpdateBOMItem(context.Background(), p.ID, "line-99", bom.Patch{Quantity: &qty})
	assert.ErrorIs(t, err, bom.ErrItemNotFound)
	zero := 0
	_, err = f.svc.UpdateBOMItem(context.Background(), p.ID, hw, bom.Patch{Quantity: &zero})
	assert.ErrorIs(t, err, httpx.ErrValidation)
	_, err = f.svc.UpdateBOMItem(context.Background(), "missing", hw, bom.Patch{Quantity: &qty})
	assert.ErrorIs(t, err, ErrProposalNotFound)
}

func TestRenderJobProducesPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.generate(t)

	_, _, err := f.svc.PDF(ctx, p.ID)
	assert.ErrorIs(t, err, ErrPDFNotReady)

	requested, err := f.svc.RequestPDF(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRendering, requested.Status)
	assert.Equal(t, []string{p.ID}, f.queue.ids)

	_, err = f.svc.RequestPDF(ctx, p.ID)
	assert.ErrorIs(t, err, ErrRenderInProgress)
	qty := 3
	_, err = f.svc.UpdateBOMItem(ctx, p.ID, p.BOM.Items[0].ID, bom.Patch{Quantity: &qty})
	assert.ErrorIs(t, err, ErrRenderInProgress)

	require.NoError(t, f.job.Handle(ctx, renderTask(t, p.ID)))
	assert.Contains(t, f.pdf.html, "Acme Health")

	ready, pdf, err := f.svc.PDF(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, ready.Status)
	assert.Equal(t, "%PDF-1.7 proposal", string(pdf))

	// Editing discards the rendered document.
	_, err = f.svc.UpdateBOMItem(ctx, p.ID, p.BOM.Items[0].ID, bom.Patch{Quantity: &qty})
	require.NoError(t, err)
	_, _, err = f.svc.PDF(ctx, p.ID)
	assert.ErrorIs(t, err, ErrPDFNotReady)
	assert.False(t, f.mr.Exists(pdfKeyPrefix+p.ID))
}

func TestRenderJobFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.generate(t)
	f.pdf.err = errors.New("gotenberg returned status 503")

	_, err := f.svc.RequestPDF(ctx, p.ID)
	require.NoError(t, err)
	err = f.job.Handle(ctx, renderTask(t, p.ID))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	failed, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "503")

	// A new request clears the failure.
	f.pdf.err = nil
	again, err := f.svc.RequestPDF(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Error)
	require.NoError(t, f.job.Handle(ctx, renderTask(t, p.ID)))
}

func TestRenderJobReleasesProposalOnFinalError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.generate(t)

	unconfigured := NewJob(JobConfig{Service: f.svc, Logger: testenv.Logger()})
	_, err := f.svc.RequestPDF(ctx, p.ID)
	require.NoError(t, err)
	err = unconfigured.Handle(ctx, renderTask(t, p.ID))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	stored, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "not configured")

	// The load fails on a cancelled context; the proposal is still released.
	_, err = f.svc.RequestPDF(ctx, p.ID)
	require.NoError(t, err)
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, f.job.Handle(cancelled, renderTask(t, p.ID)))
	stored, err = f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "context canceled")

	qty := 2
	_, err = f.svc.UpdateBOMItem(ctx, p.ID, p.BOM.Items[0].ID, bom.Patch{Quantity: &qty})
	assert.NoError(t, err)
}

func TestRenderJobSkipsBadTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.job.Handle(ctx, asynq.NewTask(jobs.TaskProposalRender, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	err = f.job.Handle(ctx, renderTask(t, ""))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	err = f.job.Handle(ctx, renderTask(t, "expired"))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	// A proposal that is not rendering is left alone.
	p := f.generate(t)
	require.NoError(t, f.job.Handle(ctx, renderTask(t, p.ID)))
	assert.Empty(t, f.pdf.html)
}

func TestMarkReadyRejectsStaleRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.generate(t)
	_, err := f.svc.RequestPDF(ctx, p.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkReady(ctx, p.ID, p.Revision+1, []byte("stale"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = f.svc.MarkReady(ctx, p.ID, p.Revision, []byte("fresh"))
	require.NoError(t, err)
	_, err = f.svc.MarkFailed(ctx, p.ID, p.Revision, "late failure")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestRequestPDFEnqueueFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.generate(t)
	f.queue.fail = true

	_, err := f.svc.RequestPDF(ctx, p.ID)
	assert.ErrorIs(t, err, httpx.ErrUnavailable)
	stored, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)

	noQueue := NewService(testenv.Logger(), f.svc.store, f.drafts, nil)
	_, err = noQueue.RequestPDF(ctx, p.ID)
	assert.ErrorIs(t, err, ErrRendererUnavailable)
}

func TestRendererHTML(t *testing.T) {
	f := newFixture(t)
	p := f.generate(t)
	p.Customer = "Smith & Sons <Ltd>"

	html, err := f.renderer.HTML(p)
	require.NoError(t, err)
	assert.Contains(t, html, "Smith &amp; Sons &lt;Ltd&gt;")
	assert.Contains(t, html, "$115,000.00")
	assert.Contains(t, html, "$100,000.00")
	assert.Contains(t, html, "Compute")
	assert.Contains(t, html, "Healthcare")
	assert.Contains(t, html, "93.0%")
	assert.Contains(t, html, "<li>Model Training</li>")
	assert.Contains(t, html, "14 Mar 2025")

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":"draft"`)

	noClient, err := NewRenderer(f.renderer.engine, nil)
	require.NoError(t, err)
	_, err = noClient.PDF(context.Background(), p)
	assert.ErrorIs(t, err, ErrRendererUnavailable)
}
