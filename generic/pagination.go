package generic

// =============================================================================
// PAGINATION - page windows over an ordered collection
// =============================================================================

// MaxPageButtons is the width of the numbered page window.
const MaxPageButtons = 5

// DefaultPageSize is used when a caller passes a non-positive page size.
const DefaultPageSize = 10

// Page is one slice of an ordered collection plus what the pager controls need.
type Page[T any] struct {
	Items      []T
	Page       int // current page, 1-indexed, clamped into [1, TotalPages]
	PageSize   int
	Total      int // items in the whole collection
	TotalPages int // 0 when the collection is empty
	Window     []int
}

// Empty reports whether the collection had no items. Callers render a
// "no records" row instead of pager controls.
func (p Page[T]) Empty() bool { return p.Total == 0 }

func (p Page[T]) HasPrev() bool { return p.Page > 1 }
func (p Page[T]) HasNext() bool { return p.Page < p.TotalPages }

// TotalPages returns ceil(total / pageSize).
func TotalPages(total, pageSize int) int {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// ClampPage pulls page back into [1, totalPages]. With no pages it returns 1.
func ClampPage(page, totalPages int) int {
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}

// PageWindow returns up to MaxPageButtons page numbers centred on page and
// clamped to [1, totalPages].
func PageWindow(page, totalPages int) []int {
	if totalPages < 1 {
		return []int{}
	}
	start := page - MaxPageButtons/2
	if start < 1 {
		start = 1
	}
	end := start + MaxPageButtons - 1
	if end > totalPages {
		end = totalPages
		start = end - MaxPageButtons + 1
		if start < 1 {
			start = 1
		}
	}
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}

// Paginate slices items for the requested page. The page is clamped, so a
// request past the end yields the last page rather than nothing.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	total := len(items)
	totalPages := TotalPages(total, pageSize)
	page = ClampPage(page, totalPages)

	from := (page - 1) * pageSize
	to := from + pageSize
	if from > total {
		from = total
	}
	if to > total {
		to = total
	}
	return Page[T]{
		Items:      items[from:to],
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		Window:     PageWindow(page, totalPages),
	}
}

// =============================================================================
// PAGER - remembered page position for one table
// =============================================================================

// Pager remembers the current page of one table across filter changes.
// Whenever the item count changes the page is clamped, so it never points
// past the last page.
type Pager struct {
	page     int
	pageSize int
	total    int
}

// NewPager creates a pager on page 1.
func NewPager(pageSize int) *Pager {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Pager{page: 1, pageSize: pageSize}
}

// Page returns the current page.
func (p *Pager) Page() int { return p.page }

// PageSize returns the page size.
func (p *Pager) PageSize() int { return p.pageSize }

// SetTotal records a new item count and clamps the page.
func (p *Pager) SetTotal(total int) {
	p.total = total
	p.page = ClampPage(p.page, TotalPages(total, p.pageSize))
}

// GoTo moves to page n, clamped.
func (p *Pager) GoTo(n int) {
	p.page = ClampPage(n, TotalPages(p.total, p.pageSize))
}

func (p *Pager) Next() { p.GoTo(p.page + 1) }
func (p *Pager) Prev() { p.GoTo(p.page - 1) }

// Reset returns to page 1, as a new search does.
func (p *Pager) Reset() { p.page = 1 }

// Slice paginates items with the pager's position, updating the total first.
func Slice[T any](p *Pager, items []T) Page[T] {
	p.SetTotal(len(items))
	return Paginate(items, p.page, p.pageSize)
}
