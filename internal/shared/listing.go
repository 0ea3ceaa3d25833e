package shared

import (
	"cmp"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListFilters represents the standard list query: search, sort and page.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string
}

// ParseListFilters reads page, limit, search, sort and dir from the query string.
func ParseListFilters(r *http.Request) ListFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	dir := strings.ToLower(q.Get("dir"))
	if dir != SortDesc {
		dir = SortAsc
	}
	return ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  strings.TrimSpace(q.Get("search")),
		SortBy:  q.Get("sort"),
		SortDir: dir,
	}
}

// Descending reports whether the filters ask for reverse order.
func (f ListFilters) Descending() bool {
	return f.SortDir == SortDesc
}

// MatchesSearch is a case-insensitive substring match over any of fields.
// An empty query matches everything.
func MatchesSearch(query string, fields ...string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

// ContainsFold reports whether values holds want, ignoring case.
func ContainsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// CompareText orders strings case-insensitively, then by raw bytes for stability.
func CompareText(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// SortKeys maps a sort key to a comparator. The first key given to SortItems
// is used when the requested key is unknown.
type SortKeys[T any] map[string]func(a, b T) int

// SortItems sorts items in place by the requested key and direction.
func SortItems[T any](items []T, keys SortKeys[T], sortBy, fallback string, desc bool) {
	cmpFn, ok := keys[sortBy]
	if !ok {
		cmpFn, ok = keys[fallback]
		if !ok {
			return
		}
	}
	slices.SortStableFunc(items, func(a, b T) int {
		if desc {
			return cmpFn(b, a)
		}
		return cmpFn(a, b)
	})
}

// ByText builds a comparator over a string field.
func ByText[T any](field func(T) string) func(a, b T) int {
	return func(a, b T) int { return CompareText(field(a), field(b)) }
}

// ByNumber builds a comparator over an ordered field.
func ByNumber[T any, N cmp.Ordered](field func(T) N) func(a, b T) int {
	return func(a, b T) int { return cmp.Compare(field(a), field(b)) }
}
