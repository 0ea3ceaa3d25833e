package wizard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solution-studio/ai-studio/internal/bom"
	"github.com/solution-studio/ai-studio/internal/estimate"
	"github.com/solution-studio/ai-studio/internal/pipeline"
	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

// Handler exposes the session wizard.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type useCaseRequest struct {
	UseCaseID string `json:"useCaseId" validate:"required"`
}

type selectionRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=1000"`
}

// BOMView is the bill of materials with its rollups.
type BOMView struct {
	Items     []bom.Item     `json:"items"`
	Subtotals []bom.Subtotal `json:"subtotals"`
	Total     float64        `json:"total"`
	PowerKW   float64        `json:"powerKw"`
}

// NewBOMView summarises b.
func NewBOMView(b *bom.BOM) BOMView {
	items := b.Items
	if items == nil {
		items = []bom.Item{}
	}
	return BOMView{Items: items, Subtotals: b.Subtotals(), Total: b.Total(), PowerKW: b.PowerKW()}
}

// MountRoutes registers wizard routes below the API prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/wizard", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.reset)
		r.Put("/use-case", h.selectUseCase)
		r.Put("/selections/{skuID}", h.setSelection)
		r.Get("/estimate", h.estimate)
		r.Put("/estimate", h.setEstimate)
		r.Get("/bom", h.bom)
		r.Get("/pipeline", h.pipeline)
		r.Post("/pipeline/nodes", h.addNode)
		r.Put("/pipeline/nodes/{nodeID}", h.updateNode)
		r.Delete("/pipeline/nodes/{nodeID}", h.removeNode)
		r.Post("/pipeline/edges", h.connect)
		r.Delete("/pipeline/edges/{edgeID}", h.disconnect)
		r.Get("/simulation", h.simulation)
		r.Post("/simulation", h.startSimulation)
		r.Delete("/simulation", h.stopSimulation)
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := h.service.Get(r.Context(), sid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.service.Reset(r.Context(), sid); err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Wizard reset")
	httpx.NoContent(w)
}

func (h *Handler) selectUseCase(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var req useCaseRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.SelectUseCase(r.Context(), sid, req.UseCaseID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) setSelection(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.SetSelection(r.Context(), sid, chi.URLParam(r, "skuID"), req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) estimate(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	result, err := h.service.Estimate(r.Context(), sid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) setEstimate(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var in estimate.Input
	if err := httpx.Bind(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.SetEstimateInput(r.Context(), sid, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) bom(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	b, err := h.service.BOM(r.Context(), sid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewBOMView(b))
}

func (h *Handler) pipeline(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := h.service.Pipeline(r.Context(), sid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) addNode(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var in pipeline.NodeInput
	if err := httpx.Bind(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	node, err := h.service.AddNode(r.Context(), sid, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, node)
}

func (h *Handler) updateNode(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var patch pipeline.NodePatch
	if err := httpx.Bind(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	node, err := h.service.UpdateNode(r.Context(), sid, chi.URLParam(r, "nodeID"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, node)
}

func (h *Handler) removeNode(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveNode(r.Context(), sid, chi.URLParam(r, "nodeID")); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var in pipeline.EdgeInput
	if err := httpx.Bind(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	edge, err := h.service.Connect(r.Context(), sid, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, edge)
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.service.Disconnect(r.Context(), sid, chi.URLParam(r, "edgeID")); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) simulation(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	run, err := h.service.Simulation(r.Context(), sid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, run)
}

func (h *Handler) startSimulation(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SimulationRequest
	if r.ContentLength != 0 {
		if err := httpx.Bind(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	run, err := h.service.StartSimulation(r.Context(), sid, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Simulation started")
	httpx.JSON(w, http.StatusAccepted, run)
}

func (h *Handler) stopSimulation(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	run, err := h.service.StopSimulation(r.Context(), sid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, run)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	sess, err := shared.RequireSession(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return "", false
	}
	return sess.ID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("wizard request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
