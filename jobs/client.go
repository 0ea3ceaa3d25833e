package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

// Client enqueues tasks.
type Client struct {
	client *asynq.Client
}

// NewClient connects a client to the asynq Redis.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueProposalRender queues a PDF render for the proposal.
func (c *Client) EnqueueProposalRender(ctx context.Context, proposalID string) (*asynq.TaskInfo, error) {
	task, err := NewProposalRenderTask(ProposalRenderPayload{ProposalID: proposalID})
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
