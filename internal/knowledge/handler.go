package knowledge

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

// Handler serves the document library and graph browser.
type Handler struct {
	logger  *slog.Logger
	library *Library
	graph   *Graph
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, library *Library, graph *Graph) *Handler {
	return &Handler{logger: logger, library: library, graph: graph}
}

// MountRoutes registers knowledge routes below the API prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/knowledge", func(r chi.Router) {
		r.Get("/categories", h.categories)
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", h.listDocuments)
			r.Post("/", h.createDocument)
			r.Get("/{id}", h.getDocument)
			r.Put("/{id}", h.updateDocument)
			r.Delete("/{id}", h.deleteDocument)
			r.Post("/{id}/versions", h.addVersion)
		})
		r.Route("/graph", func(r chi.Router) {
			r.Get("/nodes", h.listNodes)
			r.Post("/nodes", h.createNode)
			r.Get("/nodes/{id}", h.getNode)
			r.Put("/nodes/{id}", h.updateNode)
			r.Delete("/nodes/{id}", h.deleteNode)
			r.Get("/nodes/{id}/neighbors", h.neighbors)
			r.Get("/edges", h.listEdges)
			r.Post("/edges", h.createEdge)
			r.Delete("/edges/{id}", h.deleteEdge)
			r.Get("/path", h.path)
			r.Get("/subgraph", h.subgraph)
			r.Get("/stats", h.stats)
		})
	})
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := DocumentFilters{
		ListFilters: shared.ParseListFilters(r),
		Category:    q.Get("category"),
		Type:        q.Get("type"),
		Tag:         q.Get("tag"),
	}
	docs, err := h.library.ListDocuments(r.Context(), filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.Paginate(docs, filters.Page, filters.Limit))
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.library.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.UploadedBy) == "" {
		req.UploadedBy = shared.SessionFromContext(r.Context()).Actor()
	}
	doc, err := h.library.CreateDocument(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Document "+doc.Name+" uploaded")
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) updateDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	doc, err := h.library.UpdateDocument(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Document "+doc.Name+" updated")
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) addVersion(w http.ResponseWriter, r *http.Request) {
	var req VersionRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.UploadedBy) == "" {
		req.UploadedBy = shared.SessionFromContext(r.Context()).Actor()
	}
	doc, err := h.library.AddVersion(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), doc.Name+" is now version "+strconv.Itoa(doc.Version))
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.library.DeleteDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Document deleted")
	httpx.NoContent(w)
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.library.Categories(r.Context()))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("knowledge request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
