package rbac_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/rbac"
	"github.com/solution-studio/ai-studio/internal/shared"
	_ "github.com/solution-studio/ai-studio/internal/testing/testenv"
)

func newRouter(t *testing.T) (http.Handler, *shared.Session) {
	t.Helper()
	svc, err := rbac.NewSeededService(context.Background(), time.Now)
	require.NoError(t, err)
	sess := shared.NewSessionForTest("test-session")
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/api", rbac.NewHandler(slog.Default(), svc).MountRoutes)
	return r, sess
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListRolesEnvelope(t *testing.T) {
	h, _ := newRouter(t)
	rec := do(t, h, http.MethodGet, "/api/roles?limit=2&page=2&sort=name", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page shared.Page[rbac.Role]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 5, page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Solution Architect", page.Items[0].Name)
}

func TestDeleteSystemAdminIsForbidden(t *testing.T) {
	h, _ := newRouter(t)
	rec := do(t, h, http.MethodDelete, "/api/roles/1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestCreateRoleValidationAndFlash(t *testing.T) {
	h, sess := newRouter(t)

	rec := do(t, h, http.MethodPost, "/api/roles", `{"description":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Contains(t, problem.Fields, "name")

	rec = do(t, h, http.MethodPost, "/api/roles", `{"name":"Partner"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Role Partner created", flash.Message)

	rec = do(t, h, http.MethodPost, "/api/roles", `{"name":"partner"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGrantRoute(t *testing.T) {
	h, _ := newRouter(t)
	rec := do(t, h, http.MethodPut, "/api/role-permissions/5/proposals.create", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var row rbac.RolePermission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.True(t, row.Has("proposals.create"))

	rec = do(t, h, http.MethodGet, "/api/role-permissions/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
