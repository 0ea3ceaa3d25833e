package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/solution-studio/ai-studio/internal/jobs"
	"github.com/solution-studio/ai-studio/jobs"
)

const (
	jobName           = "proposal_render"
	markFailedTimeout = 5 * time.Second
)

// JobConfig wires dependencies required by the worker job.
type JobConfig struct {
	Service  *Service
	Renderer *Renderer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// Job processes proposal render requests coming from the queue.
type Job struct {
	service  *Service
	renderer *Renderer
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
}

// NewJob constructs a Job handler.
func NewJob(cfg JobConfig) *Job {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{service: cfg.Service, renderer: cfg.Renderer, logger: logger, metrics: cfg.Metrics}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *Job) Handle(ctx context.Context, task *asynq.Task) error {
	tracker := j.metrics.Track(jobName)
	return tracker.End(j.handle(ctx, task))
}

func (j *Job) handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.ProposalRenderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.ProposalID) == "" {
		return fmt.Errorf("empty proposal id: %w", asynq.SkipRetry)
	}
	if j.service == nil {
		return fmt.Errorf("proposal job not configured")
	}
	revision, err := j.render(ctx, payload.ProposalID)
	if err != nil && !errors.Is(err, asynq.SkipRetry) && lastAttempt(ctx) {
		j.markFailed(ctx, payload.ProposalID, revision, err)
	}
	return err
}

// render produces and stores the PDF. It returns the revision it worked on,
// zero when the proposal could not be loaded.
func (j *Job) render(ctx context.Context, id string) (int, error) {
	if j.renderer == nil {
		return 0, fmt.Errorf("proposal job not configured: no renderer")
	}
	p, err := j.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProposalNotFound) {
			return 0, fmt.Errorf("proposal %s expired: %w", id, asynq.SkipRetry)
		}
		return 0, err
	}
	if p.Status != StatusRendering {
		j.logger.Info("proposal render superseded", slog.String("proposal_id", p.ID), slog.String("status", string(p.Status)))
		return p.Revision, nil
	}
	pdf, err := j.renderer.PDF(ctx, p)
	if err != nil {
		return p.Revision, err
	}
	if _, err := j.service.MarkReady(ctx, p.ID, p.Revision, pdf); err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			j.logger.Info("proposal changed while rendering", slog.String("proposal_id", p.ID))
			return p.Revision, nil
		}
		return p.Revision, err
	}
	j.logger.Info("proposal pdf ready", slog.String("proposal_id", p.ID), slog.Int("bytes", len(pdf)))
	return p.Revision, nil
}

// markFailed releases a proposal stuck in rendering after the final attempt.
// It runs on a fresh deadline since ctx may be the one that expired.
func (j *Job) markFailed(ctx context.Context, id string, revision int, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markFailedTimeout)
	defer cancel()
	_, err := j.service.MarkFailed(ctx, id, revision, cause.Error())
	if err != nil && !errors.Is(err, ErrInvalidStatus) && !errors.Is(err, ErrProposalNotFound) {
		j.logger.Error("mark proposal failed", slog.String("proposal_id", id), slog.Any("error", err))
	}
}

// lastAttempt reports whether asynq will not retry the task again. Outside
// a worker every attempt is the last.
func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retried >= maxRetry
}
