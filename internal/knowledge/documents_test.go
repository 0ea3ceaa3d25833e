package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

var fixedNow = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func seededLibrary(t *testing.T) *Library {
	t.Helper()
	lib, _, err := LoadSeed()
	require.NoError(t, err)
	return lib.WithNow(func() time.Time { return fixedNow })
}

func TestListDocumentsFilters(t *testing.T) {
	lib := seededLibrary(t)
	ctx := context.Background()

	docs, err := lib.ListDocuments(ctx, DocumentFilters{ListFilters: shared.ListFilters{Search: "INFERENCE"}})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = lib.ListDocuments(ctx, DocumentFilters{Tag: "inference", Category: "architecture"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-llm-sizing", docs[0].ID)

	docs, err = lib.ListDocuments(ctx, DocumentFilters{ListFilters: shared.ListFilters{SortBy: "size", SortDir: shared.SortDesc}})
	require.NoError(t, err)
	assert.Equal(t, "doc-ref-arch-gpu", docs[0].ID)
	assert.Equal(t, "doc-llm-sizing", docs[len(docs)-1].ID)
}

func TestAddVersionKeepsHistoryNewestFirst(t *testing.T) {
	lib := seededLibrary(t)
	ctx := context.Background()

	doc, err := lib.AddVersion(ctx, "doc-ref-arch-gpu", VersionRequest{UploadedBy: "Daniel Okafor", Size: 5000000, Note: "H200 refresh"})
	require.NoError(t, err)
	assert.Equal(t, 4, doc.Version)
	assert.Equal(t, int64(5000000), doc.Size)
	assert.Equal(t, fixedNow, doc.UploadedAt)
	require.Len(t, doc.PreviousVersions, 3)
	assert.Equal(t, 3, doc.PreviousVersions[0].Version)
	assert.Equal(t, int64(4823040), doc.PreviousVersions[0].Size)
	assert.Equal(t, "H200 refresh", doc.PreviousVersions[0].Note)
	assert.Equal(t, 1, doc.PreviousVersions[2].Version)

	_, err = lib.AddVersion(ctx, "missing", VersionRequest{UploadedBy: "x"})
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = lib.AddVersion(ctx, "doc-ref-arch-gpu", VersionRequest{Size: -1})
	assert.ErrorIs(t, err, httpx.ErrValidation)
	anon, err := lib.AddVersion(ctx, "doc-ref-arch-gpu", VersionRequest{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, "unknown", anon.UploadedBy)
}

func TestDocumentCRUD(t *testing.T) {
	lib := seededLibrary(t)
	ctx := context.Background()

	doc, err := lib.CreateDocument(ctx, DocumentRequest{
		Name: " Edge AI Playbook ", Category: "Sales Enablement", Type: "PDF", Size: ptr(int64(1024)),
		Tags: []string{"Edge", "edge", " retail "},
	})
	require.NoError(t, err)
	assert.Equal(t, "Edge AI Playbook", doc.Name)
	assert.Equal(t, "pdf", doc.Type)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, []string{"edge", "retail"}, doc.Tags)
	assert.Equal(t, "unknown", doc.UploadedBy)
	assert.NotEmpty(t, doc.ID)

	updated, err := lib.UpdateDocument(ctx, doc.ID, DocumentRequest{Name: "Edge AI Playbook v2", Category: "Sales Enablement", Type: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, int64(1024), updated.Size)
	assert.Equal(t, "unknown", updated.UploadedBy)
	assert.Equal(t, 1, updated.Version)

	emptied, err := lib.UpdateDocument(ctx, doc.ID, DocumentRequest{Name: "Edge AI Playbook v2", Category: "Sales Enablement", Type: "pdf", Size: ptr(int64(0))})
	require.NoError(t, err)
	assert.Zero(t, emptied.Size)
	_, err = lib.UpdateDocument(ctx, doc.ID, DocumentRequest{Name: "x", Category: "x", Type: "pdf", Size: ptr(int64(-5))})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	cats := lib.Categories(ctx)
	assert.Equal(t, CategoryCount{Category: "Architecture", Count: 2}, cats[0])
	assert.Contains(t, cats, CategoryCount{Category: "Sales Enablement", Count: 2})

	require.NoError(t, lib.DeleteDocument(ctx, doc.ID))
	assert.ErrorIs(t, lib.DeleteDocument(ctx, doc.ID), ErrDocumentNotFound)
	_, err = lib.CreateDocument(ctx, DocumentRequest{Category: "x", Type: "pdf"})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}
