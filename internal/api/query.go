package api

import (
	"net/url"
	"strconv"
)

const (
	defaultRowLimit = 100
	maxRowLimit     = 1000
)

type ListParams struct {
	Limit  int
	Offset int
}

// parseListParams reads _limit/limit and _offset/offset. Out of range values
// fall back to the defaults.
func parseListParams(q url.Values) ListParams {
	limit := defaultRowLimit
	lv := q.Get("_limit")
	if lv == "" {
		lv = q.Get("limit")
	}
	if lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n > 0 && n <= maxRowLimit {
			limit = n
		}
	}

	offset := 0
	ov := q.Get("_offset")
	if ov == "" {
		ov = q.Get("offset")
	}
	if ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			offset = n
		}
	}
	return ListParams{Limit: limit, Offset: offset}
}
