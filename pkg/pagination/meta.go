package pagination

// Meta is the pagination metadata of one listed page.
type Meta struct {
	Page         int  `json:"page"`
	Limit        int  `json:"limit"`
	Total        int  `json:"total"`
	TotalPages   int  `json:"total_pages"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
	NextPage     int  `json:"next_page,omitempty"`
	PreviousPage int  `json:"previous_page,omitempty"`
}

// NewMeta builds Meta from the page number, page size, and total item count.
// The page is clamped to [1, TotalPages].
func NewMeta(page, limit, total int) Meta {
	totalPages := TotalPages(total, limit)
	page = min(max(page, 1), totalPages)

	m := Meta{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
	if m.HasNext {
		m.NextPage = page + 1
	}
	if m.HasPrevious {
		m.PreviousPage = page - 1
	}
	return m
}

// Offset returns the zero-based item offset of page for the given page size.
func Offset(page, pageSize int) int {
	if page < 1 || pageSize < 1 {
		return 0
	}
	return (page - 1) * pageSize
}

// Window generates the PageSet for this page with the given sibling count.
func (m Meta) Window(siblingCount int) (PageSet, error) {
	limit := m.Limit
	if limit <= 0 {
		limit = 1
	}
	return Generate(m.Total, limit, m.Page, siblingCount)
}
