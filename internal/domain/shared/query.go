package shared

// Filter selects, orders and pages the rows of one table. Filters maps a
// column to a required value; a nil value matches NULL. Columns a table does
// not declare filterable are ignored.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
	Filters  map[string]any
}

// DefaultFilter returns the first page of 20 rows in id order
func DefaultFilter() Filter {
	return Filter{Page: 1, PageSize: 20, OrderBy: "id", OrderDir: "asc"}
}

// Unpaged reports whether the filter asks for every matching row
func (f Filter) Unpaged() bool {
	return f.PageSize <= 0
}

// Offset returns the row offset for the filter's page
func (f Filter) Offset() int {
	if f.Page <= 1 || f.PageSize <= 0 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Paginated is one page of a query result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated wraps items as page of a result with total rows. An unpaged
// result reports zero pages.
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	p := Paginated[T]{Items: items, Total: total, Page: page, PageSize: pageSize}
	if pageSize > 0 {
		p.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return p
}

// HasNext reports whether a later page holds more rows
func (p Paginated[T]) HasNext() bool {
	return p.Page < p.TotalPages
}
