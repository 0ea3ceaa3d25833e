package app

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

// SessionHandler hands the browser its CSRF token and pending flash.
type SessionHandler struct {
	logger *slog.Logger
	csrf   *shared.CSRFManager
}

// NewSessionHandler builds SessionHandler instance.
func NewSessionHandler(logger *slog.Logger, csrf *shared.CSRFManager) *SessionHandler {
	return &SessionHandler{logger: logger, csrf: csrf}
}

type sessionResponse struct {
	Actor     string               `json:"actor"`
	CSRFToken string               `json:"csrfToken"`
	Flash     *shared.FlashMessage `json:"flash"`
}

type actorRequest struct {
	Actor string `json:"actor" validate:"required,max=80"`
}

// MountRoutes registers the session routes.
func (h *SessionHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.setActor)
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	sess, err := shared.RequireSession(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	token, err := h.csrf.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{Actor: sess.Actor(), CSRFToken: token, Flash: sess.PopFlash()})
}

func (h *SessionHandler) setActor(w http.ResponseWriter, r *http.Request) {
	sess, err := shared.RequireSession(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req actorRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess.SetActor(strings.TrimSpace(req.Actor))
	h.logger.Debug("session actor set", slog.String("session_id", sess.ID))
	// A new identity gets a fresh token.
	token, err := h.csrf.Rotate(sess)
	if err != nil {
		h.logger.Error("rotate csrf token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{Actor: sess.Actor(), CSRFToken: token})
}
