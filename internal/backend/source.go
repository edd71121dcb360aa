package backend

import (
	"context"
	"errors"
	"strings"

	"drumkits/internal/kit"
)

const (
	MaxLimit = 100

	listColumns   = "id,slug,title,description,file_size,update_date"
	detailColumns = listColumns + ",download"
)

// ErrNotConfigured is returned when the source has no endpoint or credentials.
var ErrNotConfigured = errors.New("backend not configured")

// Source lists catalog rows, newest first.
type Source interface {
	List(ctx context.Context, q Query) ([]kit.Row, error)
}

// Query narrows a catalog read. The zero value lists everything without the
// download column.
type Query struct {
	Slug   string
	Search string
	Limit  int
	Offset int
	// Detail selects the download column even without a slug filter.
	// Only internal tools set it.
	Detail bool
}

func (q Query) Normalize() Query {
	q.Slug = strings.TrimSpace(q.Slug)
	q.Search = strings.TrimSpace(q.Search)
	if q.Limit < 0 {
		q.Limit = 0
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 || q.Limit == 0 {
		q.Offset = 0
	}
	return q
}

// Columns is the select list; download links are only exposed for single
// kit lookups.
func (q Query) Columns() string {
	if q.Slug != "" || q.Detail {
		return detailColumns
	}
	return listColumns
}

// EscapePattern escapes the characters that are special inside a pattern
// filter: backslash, percent, underscore and comma.
func EscapePattern(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\', '%', '_', ',':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
