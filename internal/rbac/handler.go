package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

// Handler exposes roles, permissions and the role-permission matrix.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers RBAC routes below the API prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.Get("/", h.listRoles)
		r.Post("/", h.createRole)
		r.Get("/{id}", h.getRole)
		r.Put("/{id}", h.updateRole)
		r.Delete("/{id}", h.deleteRole)
	})
	r.Route("/permissions", func(r chi.Router) {
		r.Get("/", h.listPermissions)
		r.Post("/", h.createPermission)
		r.Get("/{id}", h.getPermission)
		r.Put("/{id}", h.updatePermission)
		r.Delete("/{id}", h.deletePermission)
	})
	r.Route("/role-permissions", func(r chi.Router) {
		r.Get("/", h.listMatrix)
		r.Get("/{roleID}", h.getMatrixRow)
		r.Put("/{roleID}", h.setMatrixRow)
		r.Put("/{roleID}/{permission}", h.grant)
		r.Delete("/{roleID}/{permission}", h.revoke)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	filters := shared.ParseListFilters(r)
	roles, err := h.service.ListRoles(r.Context(), filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.Paginate(roles, filters.Page, filters.Limit))
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Role "+role.Name+" created")
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req RoleRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Role "+role.Name+" updated")
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Role deleted")
	httpx.NoContent(w)
}

func (h *Handler) listMatrix(w http.ResponseWriter, r *http.Request) {
	filters := shared.ParseListFilters(r)
	rows, err := h.service.ListRolePermissions(r.Context(), filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.Paginate(rows, filters.Page, filters.Limit))
}

func (h *Handler) getMatrixRow(w http.ResponseWriter, r *http.Request) {
	roleID, err := httpx.Int64Param(r, "roleID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	row, err := h.service.GetRolePermissions(r.Context(), roleID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}

func (h *Handler) setMatrixRow(w http.ResponseWriter, r *http.Request) {
	roleID, err := httpx.Int64Param(r, "roleID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req SetPermissionsRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	row, err := h.service.SetRolePermissions(r.Context(), roleID, req.Permissions)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Permissions updated for "+row.RoleName)
	httpx.JSON(w, http.StatusOK, row)
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.Grant, "granted to")
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.Revoke, "revoked from")
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64, string) (RolePermission, error), verb string) {
	roleID, err := httpx.Int64Param(r, "roleID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	perm, err := httpx.StringParam(r, "permission")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	row, err := apply(r.Context(), roleID, perm)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), perm+" "+verb+" "+row.RoleName)
	httpx.JSON(w, http.StatusOK, row)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("rbac request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
