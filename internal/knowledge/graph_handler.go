package knowledge

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

func (h *Handler) listNodes(w http.ResponseWriter, r *http.Request) {
	filters := NodeFilters{ListFilters: shared.ParseListFilters(r), Type: r.URL.Query().Get("type")}
	nodes := h.graph.ListNodes(r.Context(), filters)
	httpx.JSON(w, http.StatusOK, shared.Paginate(nodes, filters.Page, filters.Limit))
}

func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.graph.GetNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, node)
}

func (h *Handler) createNode(w http.ResponseWriter, r *http.Request) {
	var req NodeRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	node, err := h.graph.AddNode(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Node "+node.Label+" added")
	httpx.JSON(w, http.StatusCreated, node)
}

func (h *Handler) updateNode(w http.ResponseWriter, r *http.Request) {
	var req NodeRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	node, err := h.graph.UpdateNode(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Node "+node.Label+" updated")
	httpx.JSON(w, http.StatusOK, node)
}

func (h *Handler) deleteNode(w http.ResponseWriter, r *http.Request) {
	if err := h.graph.RemoveNode(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Node removed")
	httpx.NoContent(w)
}

func (h *Handler) neighbors(w http.ResponseWriter, r *http.Request) {
	dir, err := ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	nodes, err := h.graph.Neighbors(r.Context(), chi.URLParam(r, "id"), dir)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, nodes)
}

func (h *Handler) listEdges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := EdgeFilters{ListFilters: shared.ParseListFilters(r), Type: q.Get("type"), Node: q.Get("node")}
	edges := h.graph.ListEdges(r.Context(), filters)
	httpx.JSON(w, http.StatusOK, shared.Paginate(edges, filters.Page, filters.Limit))
}

func (h *Handler) createEdge(w http.ResponseWriter, r *http.Request) {
	var req EdgeRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	edge, err := h.graph.AddEdge(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Relation "+edge.Type+" added")
	httpx.JSON(w, http.StatusCreated, edge)
}

func (h *Handler) deleteEdge(w http.ResponseWriter, r *http.Request) {
	if err := h.graph.RemoveEdge(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Relation removed")
	httpx.NoContent(w)
}

func (h *Handler) path(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	missing := map[string]string{}
	for field, v := range map[string]string{"from": from, "to": to} {
		if v == "" {
			missing[field] = "is required"
		}
	}
	if len(missing) > 0 {
		h.fail(w, r, &httpx.ValidationError{Fields: missing})
		return
	}
	depth, err := optionalInt(q.Get("maxDepth"), "maxDepth")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dir, err := ParseDirection(q.Get("direction"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	path, err := h.graph.ShortestPath(r.Context(), from, to, depth, dir)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, path)
}

func (h *Handler) subgraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	center := q.Get("center")
	if center == "" {
		h.fail(w, r, &httpx.ValidationError{Fields: map[string]string{"center": "is required"}})
		return
	}
	depth, err := optionalInt(q.Get("depth"), "depth")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sub, err := h.graph.Subgraph(r.Context(), center, depth)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sub)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.graph.Stats(r.Context()))
}

func optionalInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, &httpx.ValidationError{Fields: map[string]string{field: fmt.Sprintf("must be a non-negative integer, got %q", raw)}}
	}
	return v, nil
}
