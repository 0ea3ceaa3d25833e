package shared

import "math"

const (
	// DefaultLimit applies when a list request carries no limit.
	DefaultLimit = 20
	// MaxLimit caps page size.
	MaxLimit = 200
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultLimit
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Page is the envelope returned by list endpoints.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Paginate slices items for the requested page. Out of range pages are empty.
func Paginate[T any](items []T, page, limit int) Page[T] {
	meta := NewPagination(page, limit, len(items))
	start := (meta.Page - 1) * meta.PerPage
	if start >= len(items) {
		return Page[T]{Items: []T{}, Pagination: meta}
	}
	end := start + meta.PerPage
	if end > len(items) {
		end = len(items)
	}
	return Page[T]{Items: items[start:end], Pagination: meta}
}
