package knowledge

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

// Library is the in-memory document store.
type Library struct {
	mu    sync.RWMutex
	docs  []Document
	now   func() time.Time
	newID func() string
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{now: time.Now, newID: uuid.NewString}
}

// WithNow overrides the clock.
func (l *Library) WithNow(now func() time.Time) *Library {
	if now != nil {
		l.now = now
	}
	return l
}

var documentSortKeys = shared.SortKeys[Document]{
	"name":       shared.ByText(func(d Document) string { return d.Name }),
	"uploadedAt": func(a, b Document) int { return a.UploadedAt.Compare(b.UploadedAt) },
	"size":       shared.ByNumber(func(d Document) int64 { return d.Size }),
	"category":   shared.ByText(func(d Document) string { return d.Category }),
}

// ListDocuments filters by category, type and tag, and searches name,
// description and tags.
func (l *Library) ListDocuments(_ context.Context, f DocumentFilters) ([]Document, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Document, 0, len(l.docs))
	for _, d := range l.docs {
		if f.Category != "" && !strings.EqualFold(d.Category, f.Category) {
			continue
		}
		if f.Type != "" && !strings.EqualFold(d.Type, f.Type) {
			continue
		}
		if f.Tag != "" && !shared.ContainsFold(d.Tags, f.Tag) {
			continue
		}
		fields := append([]string{d.Name, d.Description}, d.Tags...)
		if shared.MatchesSearch(f.Search, fields...) {
			out = append(out, cloneDocument(d))
		}
	}
	shared.SortItems(out, documentSortKeys, f.SortBy, "name", f.Descending())
	return out, nil
}

// GetDocument returns one document.
func (l *Library) GetDocument(_ context.Context, id string) (Document, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := l.index(id)
	if i < 0 {
		return Document{}, ErrDocumentNotFound
	}
	return cloneDocument(l.docs[i]), nil
}

const unknownUploader = "unknown"

// CreateDocument adds a document at version 1.
func (l *Library) CreateDocument(_ context.Context, req DocumentRequest) (Document, error) {
	if err := httpx.Validate(req); err != nil {
		return Document{}, err
	}
	d := Document{
		ID:               l.newID(),
		UploadedAt:       l.now().UTC(),
		Version:          1,
		PreviousVersions: []DocumentVersion{},
	}
	applyRequest(&d, req)
	if d.UploadedBy == "" {
		d.UploadedBy = unknownUploader
	}
	l.mu.Lock()
	l.docs = append(l.docs, d)
	l.mu.Unlock()
	return cloneDocument(d), nil
}

// UpdateDocument edits metadata without creating a new version.
func (l *Library) UpdateDocument(_ context.Context, id string, req DocumentRequest) (Document, error) {
	if err := httpx.Validate(req); err != nil {
		return Document{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.index(id)
	if i < 0 {
		return Document{}, ErrDocumentNotFound
	}
	d := &l.docs[i]
	uploader := d.UploadedBy
	applyRequest(d, req)
	// Uploader and size belong to the current revision; metadata edits keep
	// them unless given.
	if d.UploadedBy == "" {
		d.UploadedBy = uploader
	}
	return cloneDocument(*d), nil
}

// AddVersion pushes the current revision into PreviousVersions and bumps
// Version.
func (l *Library) AddVersion(_ context.Context, id string, req VersionRequest) (Document, error) {
	if err := httpx.Validate(req); err != nil {
		return Document{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.index(id)
	if i < 0 {
		return Document{}, ErrDocumentNotFound
	}
	d := &l.docs[i]
	prev := DocumentVersion{
		Version:    d.Version,
		Size:       d.Size,
		UploadedBy: d.UploadedBy,
		UploadedAt: d.UploadedAt,
	}
	d.PreviousVersions = append([]DocumentVersion{prev}, d.PreviousVersions...)
	d.Version++
	d.Size = req.Size
	d.UploadedBy = strings.TrimSpace(req.UploadedBy)
	if d.UploadedBy == "" {
		d.UploadedBy = unknownUploader
	}
	d.UploadedAt = l.now().UTC()
	d.PreviousVersions[0].Note = strings.TrimSpace(req.Note)
	return cloneDocument(*d), nil
}

// DeleteDocument removes a document.
func (l *Library) DeleteDocument(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.index(id)
	if i < 0 {
		return ErrDocumentNotFound
	}
	l.docs = slices.Delete(l.docs, i, i+1)
	return nil
}

// Categories counts documents per category, sorted by category.
func (l *Library) Categories(_ context.Context) []CategoryCount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	counts := map[string]int{}
	for _, d := range l.docs {
		counts[d.Category]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CategoryCount{Category: c, Count: n})
	}
	slices.SortFunc(out, func(a, b CategoryCount) int { return shared.CompareText(a.Category, b.Category) })
	return out
}

func (l *Library) index(id string) int {
	return slices.IndexFunc(l.docs, func(d Document) bool { return d.ID == id })
}

func applyRequest(d *Document, req DocumentRequest) {
	d.Name = strings.TrimSpace(req.Name)
	d.Category = strings.TrimSpace(req.Category)
	d.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if req.Size != nil {
		d.Size = *req.Size
	}
	d.UploadedBy = strings.TrimSpace(req.UploadedBy)
	d.Description = strings.TrimSpace(req.Description)
	d.Tags = normalizeTags(req.Tags)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func cloneDocument(d Document) Document {
	d.Tags = slices.Clone(d.Tags)
	d.PreviousVersions = slices.Clone(d.PreviousVersions)
	return d
}

// seedDocument inserts a document with fixed identity and history.
func (l *Library) seedDocument(d Document) error {
	if d.ID == "" {
		return fmt.Errorf("knowledge: seed document %q has no id", d.Name)
	}
	if d.Version == 0 {
		d.Version = 1
	}
	if d.PreviousVersions == nil {
		d.PreviousVersions = []DocumentVersion{}
	}
	d.Tags = normalizeTags(d.Tags)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index(d.ID) >= 0 {
		return fmt.Errorf("knowledge: duplicate seed document %s", d.ID)
	}
	l.docs = append(l.docs, d)
	return nil
}
