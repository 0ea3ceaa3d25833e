package catalog

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

// SelectionSource reports the SKU quantities chosen in a wizard session.
type SelectionSource interface {
	Selected(ctx context.Context, sessionID string) (map[string]int, error)
}

// Handler serves catalog endpoints.
type Handler struct {
	logger     *slog.Logger
	catalog    *Catalog
	selections SelectionSource
}

// NewHandler builds Handler instance. selections may be nil.
func NewHandler(logger *slog.Logger, catalog *Catalog, selections SelectionSource) *Handler {
	return &Handler{logger: logger, catalog: catalog, selections: selections}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/industries", h.industries)
	r.Get("/use-cases", h.listUseCases)
	r.Get("/use-cases/{id}", h.getUseCase)
	r.Get("/use-cases/{id}/recommendations", h.recommendations)
	r.Get("/skus", h.listSKUs)
	r.Get("/skus/{id}", h.getSKU)
}

func (h *Handler) industries(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string][]string{"items": h.catalog.Industries()})
}

func (h *Handler) listUseCases(w http.ResponseWriter, r *http.Request) {
	filters := shared.ParseListFilters(r)
	items := h.catalog.ListUseCases(UseCaseFilters{Industry: r.URL.Query().Get("industry"), Search: filters.Search})
	httpx.JSON(w, http.StatusOK, shared.Paginate(items, filters.Page, filters.Limit))
}

func (h *Handler) getUseCase(w http.ResponseWriter, r *http.Request) {
	uc, err := h.catalog.GetUseCase(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, uc)
}

func (h *Handler) recommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.catalog.Recommend(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	selected := h.selected(r)
	for i := range recs {
		recs[i].SKU.Selected = selected[recs[i].SKU.ID] > 0
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": recs})
}

func (h *Handler) listSKUs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := SKUFilters{ListFilters: shared.ParseListFilters(r), Category: q.Get("category"), Type: q.Get("type")}
	skus := h.catalog.ListSKUs(filters)
	MarkSelected(skus, h.selected(r))
	httpx.JSON(w, http.StatusOK, shared.Paginate(skus, filters.Page, filters.Limit))
}

func (h *Handler) getSKU(w http.ResponseWriter, r *http.Request) {
	sku, err := h.catalog.GetSKU(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sku.Selected = h.selected(r)[sku.ID] > 0
	httpx.JSON(w, http.StatusOK, sku)
}

// selected never fails the request; a broken wizard store only hides the flag.
func (h *Handler) selected(r *http.Request) map[string]int {
	sess := shared.SessionFromContext(r.Context())
	if h.selections == nil || sess == nil {
		return nil
	}
	sel, err := h.selections.Selected(r.Context(), sess.ID)
	if err != nil {
		h.logger.Warn("load wizard selections", slog.Any("error", err))
		return nil
	}
	return sel
}
