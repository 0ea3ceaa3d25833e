package twin

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
)

// Handler exposes run status and the frame stream.
type Handler struct {
	logger *slog.Logger
	runner *Runner
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, runner *Runner) *Handler {
	return &Handler{logger: logger, runner: runner}
}

// MountRoutes registers the run status route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/twin/runs/{id}", h.getRun)
}

// MountStream registers the SSE route. It must sit outside any response
// timeout or compression middleware.
func (h *Handler) MountStream(r chi.Router) {
	r.Get("/twin/runs/{id}/stream", h.stream)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.StringParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	run, err := h.runner.Get(id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, run)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.StringParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "streaming unsupported")
		return
	}
	frames, unsubscribe, err := h.runner.Subscribe(id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer unsubscribe()

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				h.writeDone(w, id)
				flusher.Flush()
				return
			}
			payload, err := json.Marshal(frame)
			if err != nil {
				h.logger.Error("marshal twin frame", slog.Any("error", err))
				continue
			}
			fmt.Fprintf(w, "event: frame\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (h *Handler) writeDone(w http.ResponseWriter, id string) {
	run, err := h.runner.Get(id)
	if err != nil {
		fmt.Fprint(w, "event: done\ndata: {}\n\n")
		return
	}
	run.LastFrame = nil
	payload, err := json.Marshal(run)
	if err != nil {
		h.logger.Error("marshal twin run", slog.Any("error", err))
		payload = []byte("{}")
	}
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", payload)
}
