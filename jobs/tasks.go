// Package jobs holds the asynq task definitions, the worker that runs them,
// the client that enqueues them and the queue health endpoint.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Queues, highest priority first.
const (
	QueueProposals = "proposals"
	QueueDefault   = "default"
)

// queueWeights feeds asynq's weighted queue selection.
var queueWeights = map[string]int{
	QueueProposals: 3,
	QueueDefault:   1,
}

// Queues lists every queue the worker consumes.
func Queues() []string {
	return []string{QueueProposals, QueueDefault}
}

// TaskProposalRender renders a proposal document to PDF.
const TaskProposalRender = "proposal:render"

// Retry and timeout policy for proposal rendering.
const (
	ProposalRenderMaxRetry = 3
	ProposalRenderTimeout  = 2 * time.Minute
)

// ProposalRenderPayload identifies the proposal to render.
type ProposalRenderPayload struct {
	ProposalID string `json:"proposal_id"`
}

// NewProposalRenderTask builds the render task with its queue and retry
// policy attached.
func NewProposalRenderTask(payload ProposalRenderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProposalRender, data,
		asynq.Queue(QueueProposals),
		asynq.MaxRetry(ProposalRenderMaxRetry),
		asynq.Timeout(ProposalRenderTimeout),
	), nil
}

// retryDelay backs off linearly, 10s per attempt, capped at one minute.
// Gotenberg outages are usually short and the user is waiting.
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	d := time.Duration(n+1) * 10 * time.Second
	return min(d, time.Minute)
}
