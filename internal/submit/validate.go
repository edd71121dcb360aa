package submit

import (
	"net/url"
	"strings"
)

var allowedHosts = []string{
	"drive.google.com",
	"mega.nz",
	"pixeldrain.com",
	"mediafire.com",
}

var fileIndicators = []string{
	".zip",
	".rar",
	".7z",
	".tar.gz",
	".tgz",
	"/download/",
}

// Validate checks a submitted download link and returns it trimmed. The link
// must be an absolute http(s) URL on a known file host, or look like a file
// download.
func Validate(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", ErrMissingLink
	}
	u, err := url.Parse(link)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", ErrInvalidLink
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", ErrInvalidLink
	}
	if knownHost(u.Hostname()) || hasIndicator(link) {
		return link, nil
	}
	return "", ErrInvalidLink
}

func knownHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, h := range allowedHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func hasIndicator(link string) bool {
	lower := strings.ToLower(link)
	for _, ind := range fileIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}
