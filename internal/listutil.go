package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"erp-asset-api/internal/lifecycle"
	"erp-asset-api/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// listParams holds common query parameters for list endpoints
type listParams struct {
	page   int
	size   int
	search string
	sort   string
}

// parseListParams parses page, size, search and sort from the request.
// Defaults: page=1, size=20; size is capped at 100.
func parseListParams(r *http.Request) (listParams, error) {
	values := r.URL.Query()
	p := listParams{
		page:   1,
		size:   defaultPageSize,
		search: strings.TrimSpace(values.Get("search")),
		sort:   strings.TrimSpace(values.Get("sort")),
	}

	if s := strings.TrimSpace(values.Get("page")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return p, fmt.Errorf("%w: page must be a positive integer", lifecycle.ErrInvalidArgument)
		}
		p.page = v
	}
	if s := strings.TrimSpace(values.Get("size")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return p, fmt.Errorf("%w: size must be a positive integer", lifecycle.ErrInvalidArgument)
		}
		p.size = min(v, maxPageSize)
	}
	// keeps (page-1)*size a valid SQL OFFSET
	if p.page-1 > math.MaxInt32/p.size {
		return p, fmt.Errorf("%w: page is out of range", lifecycle.ErrInvalidArgument)
	}
	return p, nil
}

func (p listParams) filter() models.AssetFilter {
	return models.AssetFilter{Page: p.page, Size: p.size, Search: p.search, Sort: p.sort}
}

// parseStatuses parses a comma-separated status filter.
func parseStatuses(raw string) ([]models.Status, error) {
	var out []models.Status
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		st, err := models.ParseStatus(part)
		if err != nil {
			return nil, fmt.Errorf("%w: Invalid status: %s", lifecycle.ErrInvalidArgument, part)
		}
		out = append(out, st)
	}
	return out, nil
}

// parseSkipLimit reads offset-style paging used by lookup endpoints.
func parseSkipLimit(r *http.Request) (skip, limit int, err error) {
	skip, limit = 0, maxPageSize
	values := r.URL.Query()
	if s := values.Get("skip"); s != "" {
		if skip, err = strconv.Atoi(s); err != nil || skip < 0 {
			return 0, 0, fmt.Errorf("%w: skip must be a non-negative integer", lifecycle.ErrInvalidArgument)
		}
	}
	if s := values.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("%w: limit must be a positive integer", lifecycle.ErrInvalidArgument)
		}
		limit = min(limit, maxPageSize)
	}
	return skip, limit, nil
}

// decodeJSON reads the request body into v. An empty body is accepted
// only when optional is true.
func decodeJSON(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: invalid JSON body", lifecycle.ErrInvalidArgument)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
