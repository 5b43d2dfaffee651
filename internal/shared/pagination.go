package shared

import "strconv"

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// Page is a 1-based page request.
type Page struct {
	Page    int
	PerPage int
}

// NewPage clamps page and perPage to sane bounds.
func NewPage(page, perPage int) Page {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page <= 0 {
		page = 1
	}
	return Page{Page: page, PerPage: perPage}
}

// ParsePage reads page and per_page query values; malformed values fall back to defaults.
func ParsePage(page, perPage string) Page {
	p, _ := strconv.Atoi(page)
	pp, _ := strconv.Atoi(perPage)
	return NewPage(p, pp)
}

// Limit returns the SQL LIMIT.
func (p Page) Limit() int { return p.PerPage }

// Offset returns the SQL OFFSET.
func (p Page) Offset() int { return (p.Page - 1) * p.PerPage }
