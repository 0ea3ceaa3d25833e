package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

func loadCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load()
	require.NoError(t, err)
	return c
}

func TestSeedIsConsistent(t *testing.T) {
	c := loadCatalog(t)
	assert.Len(t, c.ListUseCases(UseCaseFilters{}), 6)
	assert.Equal(t, []string{"Energy", "Financial Services", "Healthcare", "Manufacturing", "Retail", "Telecommunications"}, c.Industries())
}

func TestNewRejectsDanglingRecommendation(t *testing.T) {
	_, err := New([]UseCase{{ID: "uc", RecommendedSKUs: []string{"missing"}}}, nil)
	assert.Error(t, err)
}

func TestListUseCasesFilters(t *testing.T) {
	c := loadCatalog(t)

	got := c.ListUseCases(UseCaseFilters{Industry: "healthcare"})
	require.Len(t, got, 1)
	assert.Equal(t, "uc-clinical-notes", got[0].ID)

	got = c.ListUseCases(UseCaseFilters{Search: "FORECAST"})
	assert.Len(t, got, 3)
}

func TestListSKUsFilterAndSort(t *testing.T) {
	c := loadCatalog(t)

	storage := c.ListSKUs(SKUFilters{Category: "storage", ListFilters: shared.ListFilters{SortBy: "price", SortDir: shared.SortDesc}})
	require.Len(t, storage, 3)
	assert.Equal(t, "sku-nvme-200", storage[0].ID)
	assert.Equal(t, "sku-object-500", storage[2].ID)

	nvidia := c.ListSKUs(SKUFilters{ListFilters: shared.ListFilters{Search: "nvidia"}})
	assert.Len(t, nvidia, 4)
}

func TestGetSKUReturnsCopy(t *testing.T) {
	c := loadCatalog(t)
	sku, err := c.GetSKU("sku-gpu-h100")
	require.NoError(t, err)
	sku.Specs["gpus"] = "tampered"

	again, err := c.GetSKU("sku-gpu-h100")
	require.NoError(t, err)
	assert.Equal(t, "8x H100 80GB", again.Specs["gpus"])

	_, err = c.GetSKU("nope")
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestRecommendOrdersRecommendedThenAlternatives(t *testing.T) {
	c := loadCatalog(t)
	recs, err := c.Recommend("uc-demand-forecasting")
	require.NoError(t, err)

	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.SKU.ID
	}
	// recommended: cpu-epyc, nvme-100, mlops-platform
	// alternatives in compute, storage and software by price ascending
	assert.Equal(t, []string{
		"sku-cpu-epyc", "sku-nvme-100", "sku-mlops-platform",
		"sku-inference-server", "sku-object-500", "sku-llm-suite",
		"sku-gpu-l40s", "sku-nvme-200", "sku-gpu-h100",
	}, ids)
	assert.Equal(t, "recommended for Demand Forecasting", recs[0].Reason)
	assert.Equal(t, "alternative", recs[3].Reason)
}

type stubSelections map[string]int

func (s stubSelections) Selected(ctx context.Context, sessionID string) (map[string]int, error) {
	return s, nil
}

func TestHandlerMarksSelectedSKUs(t *testing.T) {
	h := NewHandler(slog.Default(), loadCatalog(t), stubSelections{"sku-gpu-l40s": 2})
	r := chi.NewRouter()
	r.Route("/api/catalog", h.MountRoutes)

	req := httptest.NewRequest(http.MethodGet, "/api/catalog/skus?type=gpu_server", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), shared.NewSessionForTest("s1")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var page shared.Page[SKU]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 2)
	for _, s := range page.Items {
		assert.Equal(t, s.ID == "sku-gpu-l40s", s.Selected, s.ID)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog/use-cases/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
