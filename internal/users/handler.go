package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

// Handler manages user assignment and data-access endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers user routes below the API prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Get("/{id}", h.getUser)
		r.Put("/{id}", h.updateUser)
		r.Delete("/{id}", h.deleteUser)
		r.Put("/{id}/role", h.assignRole)
	})
	r.Route("/data-access", func(r chi.Router) {
		r.Get("/", h.listAccess)
		r.Get("/options", h.options)
		r.Get("/{userID}", h.getAccess)
		r.Put("/{userID}", h.updateAccess)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	filters := UserFilters{ListFilters: shared.ParseListFilters(r), Role: r.URL.Query().Get("role")}
	users, err := h.service.ListUsers(r.Context(), filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.Paginate(users, filters.Page, filters.Limit))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.CreateUser(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "User "+user.UserName+" added")
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateUserRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.UpdateUser(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "User "+user.UserName+" updated")
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req AssignRoleRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.AssignRole(r.Context(), id, req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), user.UserName+" is now "+user.Role)
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "User removed")
	httpx.NoContent(w)
}

func (h *Handler) listAccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := AccessFilters{
		ListFilters: shared.ParseListFilters(r),
		Region:      q.Get("region"),
		Industry:    q.Get("industry"),
		Tier:        q.Get("tier"),
	}
	rows, err := h.service.ListAccess(r.Context(), filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.Paginate(rows, filters.Page, filters.Limit))
}

func (h *Handler) options(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Options())
}

func (h *Handler) getAccess(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	access, err := h.service.GetAccess(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, access)
}

func (h *Handler) updateAccess(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req DataAccessRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	access, err := h.service.UpdateAccess(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Data access updated for "+access.UserName)
	httpx.JSON(w, http.StatusOK, access)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("users request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
