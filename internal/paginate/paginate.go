// Package paginate computes a page window over an already-counted result
// set, in the shape the web client renders its pager from.
package paginate

const (
	DefaultPageSize = 12
	DefaultMaxPages = 10
)

// Pages describes one page of a result set. StartIndex and EndIndex are
// inclusive offsets into the full result; EndIndex is -1 when there are no
// items. Pages lists the page numbers shown in the pager.
type Pages struct {
	TotalItems  int   `json:"totalItems"`
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
	TotalPages  int   `json:"totalPages"`
	StartPage   int   `json:"startPage"`
	EndPage     int   `json:"endPage"`
	StartIndex  int   `json:"startIndex"`
	EndIndex    int   `json:"endIndex"`
	Pages       []int `json:"pages"`
}

// New clamps currentPage into [1, totalPages] and centres a window of at
// most maxPages page links on it.
func New(totalItems, currentPage, pageSize, maxPages int) Pages {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if totalItems < 0 {
		totalItems = 0
	}

	totalPages := (totalItems + pageSize - 1) / pageSize
	if currentPage > totalPages {
		currentPage = totalPages
	}
	if currentPage < 1 {
		currentPage = 1
	}

	var startPage, endPage int
	switch {
	case totalPages <= maxPages:
		startPage, endPage = 1, totalPages
	default:
		before := maxPages / 2
		after := (maxPages+1)/2 - 1
		switch {
		case currentPage <= before:
			startPage, endPage = 1, maxPages
		case currentPage+after >= totalPages:
			startPage, endPage = totalPages-maxPages+1, totalPages
		default:
			startPage, endPage = currentPage-before, currentPage+after
		}
	}

	startIndex := (currentPage - 1) * pageSize
	endIndex := min(startIndex+pageSize-1, totalItems-1)

	pages := make([]int, 0, max(endPage-startPage+1, 0))
	for p := startPage; p <= endPage; p++ {
		pages = append(pages, p)
	}

	return Pages{
		TotalItems:  totalItems,
		CurrentPage: currentPage,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		StartPage:   startPage,
		EndPage:     endPage,
		StartIndex:  startIndex,
		EndIndex:    endIndex,
		Pages:       pages,
	}
}

// Slice returns the items of the current page.
func Slice[T any](items []T, p Pages) []T {
	if p.EndIndex < p.StartIndex || p.StartIndex >= len(items) {
		return []T{}
	}
	return items[p.StartIndex : min(p.EndIndex+1, len(items))]
}
