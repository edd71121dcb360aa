package render

import (
	"net/url"
	"strconv"

	"drumkits/internal/pagination"
)

// Pager is the navigation strip under a grid. Links carry the page number and
// the ellipsis state in the query string.
type Pager struct {
	Prev  string
	Next  string
	Items []PagerItem
}

type PagerItem struct {
	Page     int
	Href     string
	Current  bool
	Dots     bool
	Expanded bool
}

// NewPager returns nil when there is at most one page. Page links reset the
// ellipsis state; ellipsis links keep the page and toggle their side.
func NewPager(path string, base url.Values, page, totalPages, windowLimit int, expand pagination.Expand) *Pager {
	if !pagination.Visible(totalPages) {
		return nil
	}
	page = pagination.Clamp(page, totalPages)
	link := func(p int, e pagination.Expand) string {
		v := url.Values{}
		for k, vals := range base {
			v[k] = append([]string(nil), vals...)
		}
		if p > 1 {
			v.Set("page", strconv.Itoa(p))
		}
		if s := e.String(); s != "" {
			v.Set("expand", s)
		}
		if len(v) == 0 {
			return path
		}
		return path + "?" + v.Encode()
	}

	p := &Pager{}
	if page > 1 {
		p.Prev = link(page-1, pagination.Expand{})
	}
	if page < totalPages {
		p.Next = link(page+1, pagination.Expand{})
	}
	w := pagination.ComputeWindow(page, totalPages, windowLimit)
	for _, it := range w.Items(page, expand) {
		switch it.Kind {
		case pagination.LeftDots:
			p.Items = append(p.Items, PagerItem{Page: page, Dots: true, Expanded: it.Expanded, Href: link(page, expand.ToggleLeft())})
		case pagination.RightDots:
			p.Items = append(p.Items, PagerItem{Page: page, Dots: true, Expanded: it.Expanded, Href: link(page, expand.ToggleRight())})
		default:
			p.Items = append(p.Items, PagerItem{Page: it.Page, Current: it.Current, Href: link(it.Page, pagination.Expand{})})
		}
	}
	return p
}
