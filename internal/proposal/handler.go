package proposal

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/solution-studio/ai-studio/internal/bom"
	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

// Handler exposes proposal endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	renderer *Renderer
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, renderer *Renderer) *Handler {
	return &Handler{logger: logger, service: service, renderer: renderer}
}

// MountRoutes registers proposal routes below the API prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/proposals", func(r chi.Router) {
		r.Post("/", h.generate)
		r.Get("/{id}", h.get)
		r.Patch("/{id}/bom/{itemID}", h.updateItem)
		r.Get("/{id}/document", h.document)
		r.Get("/{id}/bom.csv", h.bomCSV)
		r.Post("/{id}/pdf", h.requestPDF)
		r.Get("/{id}/pdf", h.downloadPDF)
	})
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	sess, err := shared.RequireSession(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req GenerateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed json body", httpx.ErrValidation))
		return
	}
	// Generate validates once the session actor has filled preparedBy.
	if strings.TrimSpace(req.PreparedBy) == "" {
		req.PreparedBy = sess.Actor()
	}
	p, err := h.service.Generate(r.Context(), sess.ID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Proposal generated")
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var patch bom.Patch
	if err := httpx.Bind(r, &patch); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.UpdateBOMItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Bill of materials updated")
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	html, err := h.renderer.HTML(p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func (h *Handler) bomCSV(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	buf := &bytes.Buffer{}
	if err := p.BOM.WriteCSV(buf); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=proposal-%s-bom.csv", p.ID))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("write proposal bom csv", slog.Any("error", err))
	}
}

func (h *Handler) requestPDF(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.RequestPDF(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "PDF rendering queued")
	httpx.JSON(w, http.StatusAccepted, p)
}

func (h *Handler) downloadPDF(w http.ResponseWriter, r *http.Request) {
	p, pdf, err := h.service.PDF(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=proposal-%s.pdf", p.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("proposal request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
