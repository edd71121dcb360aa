package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"drumkits/internal/backend"
	"drumkits/internal/kit"
	"drumkits/internal/pagination"
	"drumkits/internal/render"
)

const (
	listLoadFailed   = "Failed to load downloads. Please refresh the page."
	searchLoadFailed = "Failed to load search results. Please try again."
	detailLoadFailed = "Failed to load item data. Please try again."
)

func pageParams(r *http.Request) (int, pagination.Expand) {
	v := r.URL.Query()
	page, err := strconv.Atoi(v.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	return page, pagination.ParseExpand(v.Get("expand"))
}

func (s *Server) handleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, expand := pageParams(r)
		in := render.ListInput{Page: page, Expand: expand}
		status := http.StatusOK

		kits, err := s.store.All(r.Context(), pageRead)
		if err != nil {
			s.log.Error().Err(err).Msg("load catalog")
			in.Error = listLoadFailed
			status = http.StatusInternalServerError
		}
		in.Kits = kits

		var buf bytes.Buffer
		if err := s.pages.List(&buf, in); err != nil {
			s.renderFailure(w, err)
			return
		}
		writeHTML(w, status, &buf)
	}
}

func (s *Server) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, expand := pageParams(r)
		in := render.SearchInput{
			Query:  r.URL.Query().Get("q"),
			Page:   page,
			Expand: expand,
		}
		status := http.StatusOK

		results, err := s.store.Search(r.Context(), in.Query, pageRead)
		if err != nil {
			s.log.Error().Err(err).Str("q", in.Query).Msg("search catalog")
			in.Error = searchLoadFailed
			status = http.StatusInternalServerError
		}
		in.Results = results

		var buf bytes.Buffer
		if err := s.pages.Search(&buf, in); err != nil {
			s.renderFailure(w, err)
			return
		}
		writeHTML(w, status, &buf)
	}
}

func (s *Server) handleDetail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		if slug == "" {
			s.renderMessage(w, http.StatusNotFound, "Not found", "No item specified. Please return to the home page.")
			return
		}
		k, ok, err := s.lookup(r.Context(), slug)
		if err != nil {
			s.log.Error().Err(err).Str("slug", slug).Msg("load kit")
			s.renderMessage(w, http.StatusInternalServerError, "Error", detailLoadFailed)
			return
		}
		if !ok {
			s.renderMessage(w, http.StatusNotFound, "Not found", fmt.Sprintf("Item %q not found. Please return to the home page.", slug))
			return
		}
		if k.Download == "" {
			k.Download = s.downloadLink(r, k.Slug)
		}
		all, _ := s.store.CachedSync(true)

		var buf bytes.Buffer
		if err := s.pages.Detail(&buf, k, all); err != nil {
			s.renderFailure(w, err)
			return
		}
		writeHTML(w, http.StatusOK, &buf)
	}
}

// downloadLink loads the single row for slug, the only read that selects the
// download column. Failures leave the link empty.
func (s *Server) downloadLink(r *http.Request, slug string) string {
	if s.source == nil {
		return ""
	}
	rows, err := s.source.List(r.Context(), backend.Query{Slug: slug, Limit: 1})
	if err != nil {
		s.log.Warn().Err(err).Str("slug", slug).Msg("load download link")
		return ""
	}
	if len(rows) == 0 {
		return ""
	}
	return kit.Normalize(rows[0]).Download
}

func (s *Server) handleLegacyKit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := strings.TrimSpace(r.URL.Query().Get("slug"))
		if slug == "" {
			s.renderMessage(w, http.StatusNotFound, "Not found", "No item specified. Please return to the home page.")
			return
		}
		http.Redirect(w, r, kit.Path(slug), http.StatusMovedPermanently)
	}
}

func (s *Server) handlePlaceholder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		_, _ = w.Write(s.pages.Placeholder())
	}
}

func (s *Server) renderMessage(w http.ResponseWriter, status int, heading, msg string) {
	var buf bytes.Buffer
	if err := s.pages.Message(&buf, heading, msg); err != nil {
		s.renderFailure(w, err)
		return
	}
	writeHTML(w, status, &buf)
}

func (s *Server) renderFailure(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("render page")
	http.Error(w, "internal error", http.StatusInternalServerError)
}
