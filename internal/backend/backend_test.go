package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapePattern(t *testing.T) {
	assert.Equal(t, `a\\b\%c\_d\,e`, EscapePattern(`a\b%c_d,e`))
	assert.Equal(t, "plain", EscapePattern("plain"))
}

func TestQueryNormalize(t *testing.T) {
	q := Query{Limit: 500, Offset: 20}.Normalize()
	assert.Equal(t, MaxLimit, q.Limit)
	assert.Equal(t, 20, q.Offset)

	q = Query{Offset: 20}.Normalize()
	assert.Zero(t, q.Offset)
}

func TestColumns(t *testing.T) {
	assert.NotContains(t, Query{}.Columns(), "download")
	assert.NotContains(t, Query{Search: "x"}.Columns(), "download")
	assert.Contains(t, Query{Slug: "a"}.Columns(), "download")
	assert.Contains(t, Query{Detail: true}.Columns(), "download")
}

func TestRESTURL(t *testing.T) {
	s := NewREST("https://db.test/", "key", "", 0)
	raw := s.URL(Query{Slug: "trap-kit", Search: "50%_off", Limit: 10, Offset: 20})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/rest/v1/drum_kits", u.Path)
	vals := u.Query()
	assert.Equal(t, detailColumns, vals.Get("select"))
	assert.Equal(t, "id.desc", vals.Get("order"))
	assert.Equal(t, "eq.trap-kit", vals.Get("slug"))
	assert.Equal(t, `(title.ilike.*50\%\_off*,description.ilike.*50\%\_off*,slug.ilike.*50\%\_off*)`, vals.Get("or"))
	assert.Equal(t, "10", vals.Get("limit"))
	assert.Equal(t, "20", vals.Get("offset"))

	vals = mustQuery(t, s.URL(Query{}))
	assert.Equal(t, listColumns, vals.Get("select"))
	assert.Empty(t, vals.Get("limit"))
}

func mustQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query()
}

func TestRESTList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 2, "slug": "b", "title": "B"}, {"id": 1, "slug": "a", "fileSize": "1 MB"}]`))
	}))
	defer srv.Close()

	rows, err := NewREST(srv.URL, "secret", "drum_kits", 0).List(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", *rows[0].Slug)
	assert.Equal(t, "1 MB", *rows[1].FileSizeAlt)
}

func TestRESTListErrors(t *testing.T) {
	_, err := NewREST("", "", "", 0).List(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err = NewREST(srv.URL, "k", "", 0).List(context.Background(), Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestPostgresSQL(t *testing.T) {
	s := NewPostgres(nil, "")

	stmt, args := s.SQL(Query{})
	assert.Equal(t, `SELECT id::text, slug, title, description, file_size, update_date::text FROM "drum_kits" ORDER BY id DESC`, stmt)
	assert.Empty(t, args)

	stmt, args = s.SQL(Query{Slug: "a", Search: "x_y", Limit: 5, Offset: 10})
	assert.True(t, strings.Contains(stmt, ", download FROM"))
	assert.Contains(t, stmt, "slug = $1")
	assert.Contains(t, stmt, `title ILIKE $2 ESCAPE '\'`)
	assert.True(t, strings.HasSuffix(stmt, "LIMIT $3 OFFSET $4"))
	assert.Equal(t, []any{"a", `%x\_y%`, 5, 10}, args)

	_, err := s.List(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
