package pagination

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// DefaultSiblingCount is the number of pages shown on each side of the current page.
const DefaultSiblingCount = 1

// GapLabel is how a gap marker is rendered.
const GapLabel = "…"

// ErrInvalidArgument is returned when window inputs violate their preconditions.
var ErrInvalidArgument = errors.New("pagination: invalid argument")

// Entry is one page control: either a page number or a gap marker.
type Entry struct {
	Page int  `json:"page,omitempty"`
	Gap  bool `json:"gap,omitempty"`
}

// Gap is the gap marker entry.
var Gap = Entry{Gap: true}

// Page returns the entry for page number n.
func Page(n int) Entry {
	return Entry{Page: n}
}

// String renders the entry as its page number or GapLabel.
func (e Entry) String() string {
	if e.Gap {
		return GapLabel
	}
	return strconv.Itoa(e.Page)
}

// PageSet is the ordered list of page controls for one render.
type PageSet []Entry

// Pages returns only the page numbers, in order.
func (s PageSet) Pages() []int {
	pages := make([]int, 0, len(s))
	for _, e := range s {
		if !e.Gap {
			pages = append(pages, e.Page)
		}
	}
	return pages
}

// Contains reports whether page n is a clickable entry of the set.
func (s PageSet) Contains(n int) bool {
	return slices.Contains(s.Pages(), n)
}

// String renders the set space-separated, e.g. "1 … 4 5 6 … 10".
func (s PageSet) String() string {
	parts := make([]string, len(s))
	for i, e := range s {
		parts[i] = e.String()
	}
	return strings.Join(parts, " ")
}

// TotalPages returns ceil(totalItems / pageSize), never less than 1.
// A non-positive pageSize yields 1.
func TotalPages(totalItems, pageSize int) int {
	if pageSize <= 0 || totalItems <= 0 {
		return 1
	}
	// Divide first; totalItems+pageSize-1 overflows near MaxInt.
	n := totalItems / pageSize
	if totalItems%pageSize != 0 {
		n++
	}
	return n
}

// Generate computes the page window for the given inputs.
//
// The first and last page are always present, as are currentPage and up to
// siblingCount neighbours on each side. Runs of skipped pages collapse into a
// single Gap, except that a run of exactly one page is shown as that page.
// That exception is what lets siblings that reach both ends yield every page
// with no Gap, e.g. 50 items, size 10, page 5, 2 siblings gives 1 2 3 4 5.
//
// currentPage is clamped to [1, totalPages]. A non-positive pageSize, or a
// negative totalItems or siblingCount, returns ErrInvalidArgument.
func Generate(totalItems, pageSize, currentPage, siblingCount int) (PageSet, error) {
	switch {
	case pageSize <= 0:
		return nil, fmt.Errorf("%w: page size must be positive (got %d)", ErrInvalidArgument, pageSize)
	case totalItems < 0:
		return nil, fmt.Errorf("%w: total items must not be negative (got %d)", ErrInvalidArgument, totalItems)
	case siblingCount < 0:
		return nil, fmt.Errorf("%w: sibling count must not be negative (got %d)", ErrInvalidArgument, siblingCount)
	}

	totalPages := TotalPages(totalItems, pageSize)
	current := min(max(currentPage, 1), totalPages)

	// Distances to the ends bound the siblings, so nothing here overflows.
	lo := current - min(siblingCount, current-1)
	hi := current + min(siblingCount, totalPages-current)

	pages := make([]int, 0, hi-lo+1)
	pages = append(pages, 1, totalPages)
	for i := range hi - lo + 1 {
		pages = append(pages, lo+i)
	}
	slices.Sort(pages)
	pages = slices.Compact(pages)

	set := make(PageSet, 0, len(pages)+2)
	for i, p := range pages {
		if i > 0 {
			switch prev := pages[i-1]; p - prev {
			case 1:
			case 2:
				set = append(set, Page(prev+1))
			default:
				set = append(set, Gap)
			}
		}
		set = append(set, Page(p))
	}
	return set, nil
}

// GenerateDefault is Generate with DefaultSiblingCount.
func GenerateDefault(totalItems, pageSize, currentPage int) (PageSet, error) {
	return Generate(totalItems, pageSize, currentPage, DefaultSiblingCount)
}
