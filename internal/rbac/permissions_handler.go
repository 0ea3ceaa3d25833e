package rbac

import (
	"net/http"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	filters := shared.ParseListFilters(r)
	perms, err := h.service.ListPermissions(r.Context(), filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.Paginate(perms, filters.Page, filters.Limit))
}

func (h *Handler) getPermission(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	perm, err := h.service.GetPermission(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req PermissionRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Permission "+perm.Name+" created")
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req PermissionRequest
	if err := httpx.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	perm, err := h.service.UpdatePermission(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Permission "+perm.Name+" updated")
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	shared.Flash(r.Context(), "Permission deleted")
	httpx.NoContent(w)
}
