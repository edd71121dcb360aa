package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drumkits/internal/kit"
)

func TestFilePersister(t *testing.T) {
	dir := t.TempDir()
	p, err := NewFilePersister(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := p.Load(ctx, Key(1))
	require.NoError(t, err)
	assert.False(t, ok)

	e := Entry{Timestamp: 1700000000000, Data: []kit.Kit{{ID: "7", Slug: "a", Title: "A", FileSize: "1 MB"}}}
	require.NoError(t, p.Save(ctx, Key(1), e))
	require.NoError(t, p.Save(ctx, Key(2), e))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.json"), []byte("{}"), 0o644))

	got, ok, err := p.Load(ctx, Key(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, e, got)

	n, err := p.Prune(ctx, KeyPrefix, Key(2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, _ = p.Load(ctx, Key(1))
	assert.False(t, ok)
	_, ok, _ = p.Load(ctx, Key(2))
	assert.True(t, ok)
	_, err = os.Stat(filepath.Join(dir, "unrelated.json"))
	assert.NoError(t, err)
}

func TestFilePersisterCorruptIsMiss(t *testing.T) {
	dir := t.TempDir()
	p, err := NewFilePersister(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName(Key(1))), []byte("{nope"), 0o644))

	_, ok, err := p.Load(context.Background(), Key(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEndpointFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":1,"slug":"a","file_size":"3 MB"}]}`))
	}))
	defer srv.Close()

	rows, err := NewEndpointFetcher(srv.URL, 0).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "3 MB", kit.Normalize(rows[0]).FileSize)
}

func TestEndpointFetcherStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewEndpointFetcher(srv.URL, 0).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSnapshotFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dl-data.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"s1","slug":"snap"}]`), 0o644))

	primary := &fakeFetcher{err: assert.AnError}
	rows, err := WithSnapshotFallback(primary, path, zerolog.Nop()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "snap", *rows[0].Slug)

	_, err = WithSnapshotFallback(primary, filepath.Join(t.TempDir(), "missing.json"), zerolog.Nop()).Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestWriteSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dl-data.json")
	slug, title := "snap", "Snap Kit"
	require.NoError(t, WriteSnapshot(path, []kit.Row{{ID: "7", Slug: &slug, Title: &title}}))

	rows, err := SnapshotFile{Path: path}.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, kit.ID("7"), rows[0].ID)
	assert.Equal(t, "Snap Kit", *rows[0].Title)

	require.NoError(t, WriteSnapshot(path, nil))
	rows, err = SnapshotFile{Path: path}.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}
