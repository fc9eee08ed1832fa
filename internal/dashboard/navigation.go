package dashboard

// MaxPage is the last valid 1-based page for total rows at limit rows per page.
// It is 1 when there are no rows.
func MaxPage(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

// Navigator tracks the current page of an interactive session.
// It is not safe for concurrent use; callers serialize access per session.
type Navigator struct {
	page int
}

// NewNavigator starts at page 1.
func NewNavigator() *Navigator {
	return &Navigator{page: 1}
}

// Page returns the current 1-based page.
func (n *Navigator) Page() int {
	return n.page
}

// Offset is the number of rows skipped before the current page.
func (n *Navigator) Offset(limit int) int {
	return max((n.page-1)*limit, 0)
}

// HasPrevious reports whether Previous would move.
func (n *Navigator) HasPrevious() bool {
	return n.page > 1
}

// HasNext reports whether Next would move.
func (n *Navigator) HasNext(total, limit int) bool {
	return limit > 0 && n.Offset(limit)+limit < total
}

// Previous moves back one page. It returns false at page 1.
func (n *Navigator) Previous() bool {
	if !n.HasPrevious() {
		return false
	}
	n.page--
	return true
}

// Next moves forward one page. It returns false on the last page.
func (n *Navigator) Next(total, limit int) bool {
	if !n.HasNext(total, limit) {
		return false
	}
	n.page++
	return true
}

// Goto jumps to page p clamped into [1, MaxPage(total, limit)].
func (n *Navigator) Goto(p, total, limit int) {
	n.page = min(max(p, 1), MaxPage(total, limit))
}

// Clamp pulls the current page back into range after total or limit changed.
func (n *Navigator) Clamp(total, limit int) {
	n.Goto(n.page, total, limit)
}
