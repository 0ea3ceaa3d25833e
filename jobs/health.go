package jobs

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
)

// QueueInspector is the subset of asynq.Inspector used by Handler.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler serves queue health.
type Handler struct {
	inspector QueueInspector
	logger    *slog.Logger
}

// NewHandler builds Handler instance.
func NewHandler(inspector QueueInspector, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

type queueHealth struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Paused    bool   `json:"paused"`
	Processed int    `json:"processedToday"`
	Failed    int    `json:"failedToday"`
}

type healthResponse struct {
	Queues []queueHealth `json:"queues"`
}

// health reports each queue. Queues asynq has not created yet read as empty.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Queues: make([]queueHealth, 0, len(Queues()))}
	for _, name := range Queues() {
		q := queueHealth{Queue: name}
		if h.inspector != nil {
			info, err := h.inspector.GetQueueInfo(name)
			switch {
			case errors.Is(err, asynq.ErrQueueNotFound):
			case err != nil:
				h.logger.Warn("jobs health", slog.String("queue", name), slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "queue backend unreachable")
				return
			case info != nil:
				q = queueHealth{
					Queue:     info.Queue,
					Pending:   info.Pending,
					Active:    info.Active,
					Retry:     info.Retry,
					Archived:  info.Archived,
					Paused:    info.Paused,
					Processed: info.Processed,
					Failed:    info.Failed,
				}
			}
		}
		resp.Queues = append(resp.Queues, q)
	}
	httpx.JSON(w, http.StatusOK, resp)
}
