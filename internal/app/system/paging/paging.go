// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows returned by paged lists.
const PageSize = 50

// MaxPageSize caps the ?limit= a caller may ask for.
const MaxPageSize = 500

// Request is a parsed page request. Start is a human-friendly 1-based index.
type Request struct {
	Start int
	Limit int
}

// Parse reads ?start= and ?limit=. Missing or invalid values fall back to
// the first page of PageSize rows; limit is clamped to MaxPageSize.
func Parse(r *http.Request) Request {
	return Request{
		Start: positive(query.Get(r, "start"), 1),
		Limit: min(positive(query.Get(r, "limit"), PageSize), MaxPageSize),
	}
}

func positive(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// Page describes the window returned to the caller.
type Page struct {
	Start     int  `json:"start"` // 1-based index of the first row (0 if no rows)
	End       int  `json:"end"`   // 1-based index of the last row (0 if no rows)
	Total     int  `json:"total"`
	HasPrev   bool `json:"has_prev"`
	HasNext   bool `json:"has_next"`
	PrevStart int  `json:"prev_start,omitempty"`
	NextStart int  `json:"next_start,omitempty"`
}

// Slice returns the rows inside req's window along with its description.
// A start past the end yields an empty window that still points back.
func Slice[T any](rows []T, req Request) ([]T, Page) {
	if req.Limit < 1 {
		req.Limit = PageSize
	}
	if req.Start < 1 {
		req.Start = 1
	}

	total := len(rows)
	from := min(req.Start-1, total)
	to := min(from+req.Limit, total)
	window := rows[from:to]

	p := Page{Total: total}
	if len(window) > 0 {
		p.Start = from + 1
		p.End = to
	}
	if req.Start > 1 {
		p.HasPrev = true
		p.PrevStart = max(req.Start-req.Limit, 1)
	}
	if to < total {
		p.HasNext = true
		p.NextStart = to + 1
	}
	return window, p
}
