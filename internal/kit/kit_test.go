package kit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaultsAndAliases(t *testing.T) {
	var rows []Row
	raw := `[
		{"id": 12, "slug": "trap-kit", "title": "Trap Kit", "description": "null", "fileSize": "120 MB", "updateDate": "2024-02-01"},
		{"id": "abc", "slug": "empty"},
		{"id": 3, "slug": "both", "title": "  ", "file_size": "1 GB", "fileSize": "2 GB", "download": "https://x.test/a.zip"}
	]`
	require.NoError(t, json.Unmarshal([]byte(raw), &rows))

	kits := NormalizeAll(rows)
	require.Len(t, kits, 3)

	assert.Equal(t, ID("12"), kits[0].ID)
	assert.Equal(t, "Trap Kit", kits[0].Title)
	assert.Equal(t, "", kits[0].Description)
	assert.Equal(t, "120 MB", kits[0].FileSize)
	assert.Equal(t, "2024-02-01", kits[0].UpdateDate)

	assert.Equal(t, ID("abc"), kits[1].ID)
	assert.Equal(t, DefaultTitle, kits[1].Title)
	assert.Equal(t, DefaultFileSize, kits[1].FileSize)
	assert.Empty(t, kits[1].UpdateDate)

	assert.Equal(t, DefaultTitle, kits[2].Title)
	assert.Equal(t, "1 GB", kits[2].FileSize)
	assert.Equal(t, "https://x.test/a.zip", kits[2].Download)
}

func TestIDKeepsNumericShape(t *testing.T) {
	out, err := json.Marshal(Kit{ID: "42", Slug: "a"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"id":42`)

	out, err = json.Marshal(Kit{ID: "k-1", Slug: "a"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"id":"k-1"`)
}

func TestFilter(t *testing.T) {
	kits := []Kit{
		{Slug: "lofi-drums", Title: "Lo-Fi Drums", Description: "dusty"},
		{Slug: "trap-808", Title: "808 Pack", Description: "Heavy TRAP bass"},
		{Slug: "house", Title: "House", Description: ""},
	}

	assert.Empty(t, Filter(kits, ""))
	assert.Empty(t, Filter(kits, "   "))
	assert.NotNil(t, Filter(kits, ""))

	got := Filter(kits, "TRAP")
	require.Len(t, got, 1)
	assert.Equal(t, "trap-808", got[0].Slug)

	got = Filter(kits, "lofi")
	require.Len(t, got, 1)
	assert.Equal(t, "lofi-drums", got[0].Slug)

	got = Filter(kits, "o")
	assert.Len(t, got, 2)
}

func TestFindBySlug(t *testing.T) {
	kits := []Kit{{Slug: "a"}, {Slug: "b", Title: "B"}}
	k, ok := FindBySlug(kits, " b ")
	require.True(t, ok)
	assert.Equal(t, "B", k.Title)

	_, ok = FindBySlug(kits, "")
	assert.False(t, ok)
	_, ok = FindBySlug(kits, "c")
	assert.False(t, ok)
}

func TestSafeDownloadURL(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"https://mega.nz/file/x", true},
		{"http://example.com/kit.zip", true},
		{"javascript:alert(1)", false},
		{"ftp://example.com/kit.zip", false},
		{"/relative/kit.zip", false},
		{"", false},
	}
	for _, tc := range cases {
		_, ok := SafeDownloadURL(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
	}
}

func TestImagesURL(t *testing.T) {
	im := Images{BaseURL: "https://img.test/", Version: "1"}
	assert.Equal(t, "https://img.test/42.jpg?v=1", im.URL("42"))
	assert.Equal(t, DefaultFallbackImage, im.URL(""))

	im.Version = ""
	assert.Equal(t, "https://img.test/a%20b.jpg", im.URL("a b"))
}
