package knowledge_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solution-studio/ai-studio/internal/knowledge"
	"github.com/solution-studio/ai-studio/internal/shared"
	_ "github.com/solution-studio/ai-studio/internal/testing/testenv"
)

func newRouter(t *testing.T) (http.Handler, *shared.Session) {
	t.Helper()
	lib, graph, err := knowledge.LoadSeed()
	require.NoError(t, err)
	sess := shared.NewSessionForTest("kb-session")
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/api", knowledge.NewHandler(slog.Default(), lib, graph).MountRoutes)
	return r, sess
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
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

func TestDocumentVersionEndpoint(t *testing.T) {
	h, sess := newRouter(t)
	rec := serve(h, http.MethodPost, "/api/knowledge/documents/doc-llm-sizing/versions", `{"uploadedBy":"Sofia Marin","size":400000}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var doc knowledge.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, 2, doc.Version)
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Contains(t, flash.Message, "version 2")
}

func TestDocumentUploaderDefaultsToSessionActor(t *testing.T) {
	h, sess := newRouter(t)
	sess.SetActor("Dana Whitfield")

	rec := serve(h, http.MethodPost, "/api/knowledge/documents", `{"name":"Edge playbook","category":"Sales Enablement","type":"pdf"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc knowledge.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Dana Whitfield", doc.UploadedBy)

	rec = serve(h, http.MethodPost, "/api/knowledge/documents/"+doc.ID+"/versions", `{"size":2048}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, 2, doc.Version)
	assert.Equal(t, "Dana Whitfield", doc.UploadedBy)
}

func TestGraphPathEndpoint(t *testing.T) {
	h, _ := newRouter(t)
	rec := serve(h, http.MethodGet, "/api/knowledge/graph/path?from=doc-fraud-case-study&to=sku-gpu-l40s&direction=out", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var path knowledge.Path
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &path))
	assert.Equal(t, 3, path.Hops)

	rec = serve(h, http.MethodGet, "/api/knowledge/graph/path?from=doc-fraud-case-study", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"to"`)

	rec = serve(h, http.MethodGet, "/api/knowledge/graph/path?from=ind-retail&to=sku-gpu-h100&direction=out", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, http.MethodGet, "/api/knowledge/graph/nodes/tech-llm/neighbors?direction=up", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGraphListEnvelope(t *testing.T) {
	h, _ := newRouter(t)
	rec := serve(h, http.MethodGet, "/api/knowledge/graph/nodes?type=industry&sort=label", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page shared.Page[knowledge.Node]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 4, page.Pagination.Total)
	assert.Equal(t, "Financial Services", page.Items[0].Label)
}
