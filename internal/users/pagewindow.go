package users

const maxVisiblePages = 5

// PageLink is one slot of a pager: a page number or an ellipsis.
type PageLink struct {
	Page     int  `json:"page,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
}

// PageWindow lays out at most maxVisiblePages numbered slots around current,
// always keeping the first and last page reachable. It returns nil when there
// is nothing to page through.
func PageWindow(current, total int) []PageLink {
	if total <= 1 {
		return nil
	}
	current = max(1, min(current, total))

	var links []PageLink
	pages := func(from, to int) {
		for p := from; p <= to; p++ {
			links = append(links, PageLink{Page: p})
		}
	}
	ellipsis := func() { links = append(links, PageLink{Ellipsis: true}) }

	switch {
	case total <= maxVisiblePages:
		pages(1, total)
	case current <= 3:
		pages(1, 4)
		ellipsis()
		pages(total, total)
	case current >= total-2:
		pages(1, 1)
		ellipsis()
		pages(total-3, total)
	default:
		pages(1, 1)
		ellipsis()
		pages(current-1, current+1)
		ellipsis()
		pages(total, total)
	}
	return links
}
