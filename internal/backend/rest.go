package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"drumkits/internal/kit"
)

// REST reads the catalog through the backend's PostgREST interface.
type REST struct {
	baseURL string
	key     string
	table   string
	client  *http.Client
}

func NewREST(baseURL, key, table string, timeout time.Duration) *REST {
	if table == "" {
		table = "drum_kits"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &REST{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		key:     strings.TrimSpace(key),
		table:   table,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *REST) Configured() bool {
	return s != nil && s.baseURL != "" && s.key != ""
}

// URL builds the upstream request URL for q.
func (s *REST) URL(q Query) string {
	q = q.Normalize()
	vals := url.Values{}
	vals.Set("select", q.Columns())
	vals.Set("order", "id.desc")
	if q.Slug != "" {
		vals.Set("slug", "eq."+q.Slug)
	}
	if q.Search != "" {
		p := "*" + EscapePattern(q.Search) + "*"
		vals.Set("or", fmt.Sprintf("(title.ilike.%s,description.ilike.%s,slug.ilike.%s)", p, p, p))
	}
	if q.Limit > 0 {
		vals.Set("limit", strconv.Itoa(q.Limit))
		vals.Set("offset", strconv.Itoa(q.Offset))
	}
	return s.baseURL + "/rest/v1/" + s.table + "?" + vals.Encode()
}

func (s *REST) List(ctx context.Context, q Query) ([]kit.Row, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(q), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("backend error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var rows []kit.Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if rows == nil {
		rows = []kit.Row{}
	}
	return rows, nil
}
