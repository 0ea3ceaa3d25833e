package httpx

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Int64Param reads a positive integer route parameter.
func Int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ValidationError{Fields: map[string]string{name: "must be a positive integer"}}
	}
	return id, nil
}

// StringParam reads a non-empty route parameter.
func StringParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return "", fmt.Errorf("%w: missing %s", ErrValidation, name)
	}
	return raw, nil
}
