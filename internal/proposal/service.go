package proposal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/solution-studio/ai-studio/internal/bom"
	"github.com/solution-studio/ai-studio/internal/estimate"
	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/wizard"
)

// DraftSource is the wizard surface used to generate proposals.
type DraftSource interface {
	Draft(ctx context.Context, sessionID string) (wizard.Draft, error)
	AttachProposal(ctx context.Context, sessionID, proposalID string) error
}

// Enqueuer schedules PDF rendering.
type Enqueuer interface {
	EnqueueProposalRender(ctx context.Context, proposalID string) (*asynq.TaskInfo, error)
}

// Service manages proposals.
type Service struct {
	logger *slog.Logger
	store  *Store
	drafts DraftSource
	queue  Enqueuer
	now    func() time.Time
}

// NewService wires the proposal service. queue may be nil, in which case
// PDF requests fail as unavailable. drafts may be nil for render-only use.
func NewService(logger *slog.Logger, store *Store, drafts DraftSource, queue Enqueuer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, store: store, drafts: drafts, queue: queue, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Generate builds a proposal from the session's wizard and links it back.
func (s *Service) Generate(ctx context.Context, sessionID string, req GenerateRequest) (Proposal, error) {
	if s.drafts == nil {
		return Proposal{}, fmt.Errorf("proposal: no draft source: %w", httpx.ErrUnavailable)
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Customer = strings.TrimSpace(req.Customer)
	req.PreparedBy = strings.TrimSpace(req.PreparedBy)
	if err := httpx.Validate(req); err != nil {
		return Proposal{}, err
	}
	d, err := s.drafts.Draft(ctx, sessionID)
	if err != nil {
		return Proposal{}, err
	}
	title := req.Title
	if title == "" {
		title = fmt.Sprintf("%s proposal for %s", d.UseCase.Name, req.Customer)
	}
	now := s.now().UTC()
	p := Proposal{
		ID:         uuid.NewString(),
		Title:      title,
		Customer:   req.Customer,
		PreparedBy: req.PreparedBy,
		UseCase: UseCase{
			ID:          d.UseCase.ID,
			Name:        d.UseCase.Name,
			Industry:    d.UseCase.Industry,
			Description: d.UseCase.Description,
		},
		BOM:           *bom.Build(d.Lines),
		Estimate:      estimate.Result{Assumptions: d.Assumptions},
		PipelineOrder: d.PipelineOrder,
		Simulation:    d.Simulation,
		Status:        StatusDraft,
		Revision:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p.PipelineOrder == nil {
		p.PipelineOrder = []string{}
	}
	p.refresh()
	if err := s.store.Create(ctx, p); err != nil {
		return Proposal{}, err
	}
	if err := s.drafts.AttachProposal(ctx, sessionID, p.ID); err != nil {
		return Proposal{}, err
	}
	s.logger.Info("proposal generated", slog.String("proposal_id", p.ID), slog.String("use_case", p.UseCase.ID))
	return p, nil
}

// Get loads a proposal.
func (s *Service) Get(ctx context.Context, id string) (Proposal, error) {
	return s.store.Get(ctx, id)
}

// UpdateBOMItem edits one line and recomputes totals and the estimate. Any
// rendered PDF is discarded.
func (s *Service) UpdateBOMItem(ctx context.Context, id, itemID string, patch bom.Patch) (Proposal, error) {
	if err := httpx.Validate(patch); err != nil {
		return Proposal{}, err
	}
	return s.store.Update(ctx, id, func(p *Proposal) error {
		if p.Status == StatusRendering {
			return ErrRenderInProgress
		}
		if _, err := p.BOM.Update(itemID, patch); err != nil {
			return err
		}
		p.refresh()
		p.Revision++
		p.Status = StatusDraft
		p.Error = ""
		p.UpdatedAt = s.now().UTC()
		return nil
	})
}

// RequestPDF marks the proposal rendering and enqueues the render task.
func (s *Service) RequestPDF(ctx context.Context, id string) (Proposal, error) {
	if s.queue == nil {
		return Proposal{}, ErrRendererUnavailable
	}
	p, err := s.store.Update(ctx, id, func(p *Proposal) error {
		if p.Status == StatusRendering {
			return ErrRenderInProgress
		}
		p.Status = StatusRendering
		p.Error = ""
		p.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return Proposal{}, err
	}
	if _, err := s.queue.EnqueueProposalRender(ctx, id); err != nil {
		s.logger.Error("enqueue proposal render", slog.String("proposal_id", id), slog.Any("error", err))
		_, _ = s.MarkFailed(context.WithoutCancel(ctx), id, p.Revision, "could not queue rendering")
		return Proposal{}, fmt.Errorf("proposal: enqueue render: %w", httpx.ErrUnavailable)
	}
	return p, nil
}

// PDF returns the rendered document of a ready proposal.
func (s *Service) PDF(ctx context.Context, id string) (Proposal, []byte, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Proposal{}, nil, err
	}
	if p.Status != StatusReady {
		return p, nil, ErrPDFNotReady
	}
	pdf, err := s.store.PDF(ctx, id)
	if err != nil {
		return p, nil, err
	}
	return p, pdf, nil
}

// MarkReady stores pdf when the proposal is still rendering revision.
func (s *Service) MarkReady(ctx context.Context, id string, revision int, pdf []byte) (Proposal, error) {
	return s.store.UpdateWithPDF(ctx, id, pdf, func(p *Proposal) error {
		if p.Status != StatusRendering || p.Revision != revision {
			return ErrInvalidStatus
		}
		p.Status = StatusReady
		p.Error = ""
		p.UpdatedAt = s.now().UTC()
		return nil
	})
}

// MarkFailed records a render failure for revision. A zero revision matches
// whichever revision is rendering.
func (s *Service) MarkFailed(ctx context.Context, id string, revision int, reason string) (Proposal, error) {
	return s.store.Update(ctx, id, func(p *Proposal) error {
		if p.Status != StatusRendering || (revision != 0 && p.Revision != revision) {
			return ErrInvalidStatus
		}
		p.Status = StatusFailed
		p.Error = reason
		p.UpdatedAt = s.now().UTC()
		return nil
	})
}
