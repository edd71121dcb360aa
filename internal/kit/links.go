package kit

import (
	"net/url"
	"strings"
)

// Images resolves public image URLs for kits.
type Images struct {
	BaseURL  string
	Version  string
	Fallback string
}

const DefaultFallbackImage = "/errors/default.jpg"

func (im Images) URL(id ID) string {
	if id == "" {
		return im.FallbackPath()
	}
	base := strings.TrimRight(im.BaseURL, "/")
	u := base + "/" + url.PathEscape(id.String()) + ".jpg"
	if v := strings.TrimSpace(im.Version); v != "" {
		u += "?v=" + url.QueryEscape(v)
	}
	return u
}

func (im Images) FallbackPath() string {
	if strings.TrimSpace(im.Fallback) == "" {
		return DefaultFallbackImage
	}
	return im.Fallback
}

// SafeDownloadURL returns the download link when it is an absolute
// http(s) URL, so it can be rendered as a link.
func SafeDownloadURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	return u.String(), true
}

// Path is the site route for a kit detail page.
func Path(slug string) string {
	return "/" + url.PathEscape(slug)
}
