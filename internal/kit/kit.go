package kit

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	DefaultTitle    = "Untitled"
	DefaultFileSize = "N/A"
)

// ID is the backend identifier of a kit. Numeric ids stay numeric on the wire.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string {
	return string(id)
}

type Kit struct {
	ID          ID     `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	FileSize    string `json:"file_size"`
	UpdateDate  string `json:"update_date,omitempty"`
	Download    string `json:"download,omitempty"`
}

// Row is a backend row as delivered by the REST interface or the snapshot
// file. Every field is optional; camelCase aliases come from older exports.
type Row struct {
	ID            ID      `json:"id"`
	Slug          *string `json:"slug,omitempty"`
	Title         *string `json:"title,omitempty"`
	Description   *string `json:"description,omitempty"`
	FileSize      *string `json:"file_size,omitempty"`
	FileSizeAlt   *string `json:"fileSize,omitempty"`
	UpdateDate    *string `json:"update_date,omitempty"`
	UpdateDateAlt *string `json:"updateDate,omitempty"`
	Download      *string `json:"download,omitempty"`
}

// Normalize maps a row onto a Kit, applying the display defaults.
func Normalize(r Row) Kit {
	k := Kit{
		ID:          r.ID,
		Slug:        strings.TrimSpace(deref(r.Slug)),
		Title:       strings.TrimSpace(deref(r.Title)),
		Description: strings.TrimSpace(deref(r.Description)),
		FileSize:    strings.TrimSpace(firstSet(r.FileSize, r.FileSizeAlt)),
		UpdateDate:  strings.TrimSpace(firstSet(r.UpdateDate, r.UpdateDateAlt)),
		Download:    strings.TrimSpace(deref(r.Download)),
	}
	if k.Title == "" {
		k.Title = DefaultTitle
	}
	// exports from the old admin wrote the literal string for empty descriptions
	if k.Description == "null" {
		k.Description = ""
	}
	if k.FileSize == "" {
		k.FileSize = DefaultFileSize
	}
	return k
}

func NormalizeAll(rows []Row) []Kit {
	out := make([]Kit, 0, len(rows))
	for _, r := range rows {
		out = append(out, Normalize(r))
	}
	return out
}

// Matches reports whether the lowered, trimmed query is a substring of the
// kit's title, description or slug.
func (k Kit) Matches(q string) bool {
	if q == "" {
		return false
	}
	return strings.Contains(strings.ToLower(k.Title), q) ||
		strings.Contains(strings.ToLower(k.Description), q) ||
		strings.Contains(strings.ToLower(k.Slug), q)
}

// Filter returns the kits matching query. A blank query matches nothing.
func Filter(kits []Kit, query string) []Kit {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []Kit{}
	if q == "" {
		return out
	}
	for _, k := range kits {
		if k.Matches(q) {
			out = append(out, k)
		}
	}
	return out
}

// FindBySlug returns the kit with the exact slug.
func FindBySlug(kits []Kit, slug string) (Kit, bool) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Kit{}, false
	}
	for _, k := range kits {
		if k.Slug == slug {
			return k, true
		}
	}
	return Kit{}, false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstSet(values ...*string) string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return *v
		}
	}
	return ""
}
