package httputil

import (
	"net/http"
	"strconv"

	dErrors "tradegate/pkg/domain-errors"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Paged is the envelope for paginated list responses.
type Paged[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// NewPaged wraps items with pagination math. A nil items slice still
// serializes as an empty array.
func NewPaged[T any](items []T, page, pageSize, totalItems int) Paged[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = (totalItems + pageSize - 1) / pageSize
	}
	return Paged[T]{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

// PageParams reads `page` and `pageSize` query parameters, applying defaults
// and clamping the size.
func PageParams(r *http.Request) (page, pageSize int, err error) {
	page, err = positiveIntParam(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	pageSize, err = positiveIntParam(r, "pageSize", defaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize, nil
}

func positiveIntParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, dErrors.New(dErrors.CodeValidation, name+" must be a positive integer")
	}
	return v, nil
}
