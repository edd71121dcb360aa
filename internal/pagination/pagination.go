package pagination

import (
	"strings"
)

const (
	DefaultPerPage = 6
	DefaultWindow  = 7
	minWindow      = 3
)

// Window is the set of page links shown around the current page.
type Window struct {
	Total         int
	Pages         []int
	ShowFirst     bool
	ShowLast      bool
	ShowLeftDots  bool
	ShowRightDots bool
	// LeftHidden and RightHidden are the pages collapsed behind each ellipsis.
	LeftHidden  []int
	RightHidden []int
}

// ComputeWindow returns the page numbers to show for current out of total.
// When total fits inside limit every page is listed. Otherwise the first and
// last page are pinned and a run of limit-2 pages is centered on current,
// kept within [2, total-1].
func ComputeWindow(current, total, limit int) Window {
	if total <= 0 {
		return Window{}
	}
	if limit < minWindow {
		limit = minWindow
	}
	current = Clamp(current, total)
	if total <= limit {
		return Window{Total: total, Pages: seq(1, total)}
	}

	inner := limit - 2
	start := current - inner/2
	if start < 2 {
		start = 2
	}
	if maxStart := total - inner; start > maxStart {
		start = maxStart
	}
	end := start + inner - 1

	return Window{
		Total:         total,
		Pages:         seq(start, end),
		ShowFirst:     true,
		ShowLast:      true,
		ShowLeftDots:  start > 2,
		ShowRightDots: end < total-1,
		LeftHidden:    seq(2, start-1),
		RightHidden:   seq(end+1, total-1),
	}
}

func TotalPages(n, perPage int) int {
	if n <= 0 {
		return 0
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return (n + perPage - 1) / perPage
}

// Clamp keeps page inside [1, total]. A zero total clamps to 1.
func Clamp(page, total int) int {
	if page > total {
		page = total
	}
	if page < 1 {
		page = 1
	}
	return page
}

// Visible reports whether pagination controls should render at all.
func Visible(total int) bool {
	return total > 1
}

// Slice returns the items on page. Pages are contiguous and disjoint.
func Slice[T any](items []T, page, perPage int) []T {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	page = Clamp(page, TotalPages(len(items), perPage))
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Expand holds the ellipsis toggle state. Both sides start collapsed.
type Expand struct {
	Left  bool
	Right bool
}

// ParseExpand reads a comma separated list such as "left,right".
func ParseExpand(raw string) Expand {
	var e Expand
	for _, part := range strings.Split(raw, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "left":
			e.Left = true
		case "right":
			e.Right = true
		}
	}
	return e
}

func (e Expand) String() string {
	switch {
	case e.Left && e.Right:
		return "left,right"
	case e.Left:
		return "left"
	case e.Right:
		return "right"
	}
	return ""
}

func (e Expand) ToggleLeft() Expand {
	e.Left = !e.Left
	return e
}

func (e Expand) ToggleRight() Expand {
	e.Right = !e.Right
	return e
}

type ItemKind int

const (
	PageItem ItemKind = iota
	LeftDots
	RightDots
)

// Item is one control in the rendered page strip. Expanded marks an ellipsis
// control whose hidden run is shown; toggling it collapses the run again.
type Item struct {
	Kind     ItemKind
	Page     int
	Current  bool
	Expanded bool
}

// Items flattens the window into render order. An expanded side shows its
// hidden pages next to its ellipsis control.
func (w Window) Items(current int, e Expand) []Item {
	var out []Item
	add := func(pages ...int) {
		for _, p := range pages {
			out = append(out, Item{Kind: PageItem, Page: p, Current: p == current})
		}
	}
	if w.ShowFirst {
		add(1)
	}
	if w.ShowLeftDots {
		out = append(out, Item{Kind: LeftDots, Expanded: e.Left})
		if e.Left {
			add(w.LeftHidden...)
		}
	}
	add(w.Pages...)
	if w.ShowRightDots {
		if e.Right {
			add(w.RightHidden...)
		}
		out = append(out, Item{Kind: RightDots, Expanded: e.Right})
	}
	if w.ShowLast {
		add(w.Total)
	}
	return out
}

func seq(from, to int) []int {
	if to < from {
		return nil
	}
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
