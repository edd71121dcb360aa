package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"drumkits/internal/backend"
	"drumkits/internal/kit"
)

const (
	kitsCacheControl = "public, max-age=0, s-maxage=60, stale-while-revalidate=300"
	kitsLoadFailed   = "Failed to load kits."
)

func (s *Server) handleKits() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		if s.source == nil {
			s.log.Error().Msg("/api/kits: backend source not configured")
			errorJSON(w, http.StatusInternalServerError, kitsLoadFailed)
			return
		}

		q := kitsQuery(r)
		rows, err := s.source.List(r.Context(), q)
		if err != nil {
			if errors.Is(err, backend.ErrNotConfigured) {
				s.log.Error().Msg("/api/kits: backend config missing")
			} else {
				s.log.Error().Err(err).Msg("/api/kits failed")
			}
			errorJSON(w, http.StatusInternalServerError, kitsLoadFailed)
			return
		}

		body, err := json.Marshal(map[string][]kit.Kit{"data": kit.NormalizeAll(rows)})
		if err != nil {
			s.log.Error().Err(err).Msg("/api/kits encode")
			errorJSON(w, http.StatusInternalServerError, kitsLoadFailed)
			return
		}
		etag := bodyETag(body)
		w.Header().Set("Cache-Control", kitsCacheControl)
		w.Header().Set("ETag", etag)
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// kitsQuery reads slug, q, limit and page. page is 1-based and only applies
// with a limit.
func kitsQuery(r *http.Request) backend.Query {
	v := r.URL.Query()
	q := backend.Query{
		Slug:   v.Get("slug"),
		Search: v.Get("q"),
	}
	if n, err := strconv.Atoi(v.Get("limit")); err == nil && n > 0 {
		q.Limit = n
	}
	q = q.Normalize()
	if q.Limit > 0 {
		if p, err := strconv.Atoi(v.Get("page")); err == nil && p > 1 {
			q.Offset = (p - 1) * q.Limit
		}
	}
	return q
}

func bodyETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// etagMatches uses the weak comparison If-None-Match calls for, so a tag
// weakened by a proxy still matches.
func etagMatches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, part := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(part), "W/") == want {
			return true
		}
	}
	return false
}
