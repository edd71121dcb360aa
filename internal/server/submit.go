package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"drumkits/internal/render"
	"drumkits/internal/submit"
)

func (s *Server) handleSubmitAPI() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		var req struct {
			DownloadLink interface{} `json:"downloadLink"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
			errorJSON(w, http.StatusBadRequest, submit.UserMessage(submit.ErrMissingLink))
			return
		}
		link, _ := req.DownloadLink.(string)

		if _, err := s.submit.Submit(r.Context(), clientAddr(r), link); err != nil {
			status := submitStatus(err)
			if status >= http.StatusInternalServerError {
				s.log.Error().Err(err).Msg("/api/submit failed")
				body := map[string]string{"error": submit.UserMessage(err)}
				if s.cfg.IsDevelopment() {
					body["details"] = err.Error()
				}
				writeJSON(w, status, body)
				return
			}
			errorJSON(w, status, submit.UserMessage(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": submit.SuccessMessage,
		})
	}
}

func (s *Server) handleSubmitForm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			s.renderSubmit(w, http.StatusOK, render.SubmitInput{})
			return
		}
		if err := r.ParseForm(); err != nil {
			s.renderSubmit(w, http.StatusBadRequest, render.SubmitInput{Error: submit.UserMessage(submit.ErrMissingLink)})
			return
		}
		link := r.PostFormValue("downloadLink")
		if _, err := s.submit.Submit(r.Context(), clientAddr(r), link); err != nil {
			status := submitStatus(err)
			if status >= http.StatusInternalServerError {
				s.log.Error().Err(err).Msg("/submit failed")
			}
			s.renderSubmit(w, status, render.SubmitInput{Link: link, Error: submit.UserMessage(err)})
			return
		}
		s.renderSubmit(w, http.StatusOK, render.SubmitInput{Success: true, Message: submit.SuccessMessage})
	}
}

func (s *Server) renderSubmit(w http.ResponseWriter, status int, in render.SubmitInput) {
	var buf bytes.Buffer
	if err := s.pages.Submit(&buf, in); err != nil {
		s.log.Error().Err(err).Msg("render submit")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeHTML(w, status, &buf)
}

func submitStatus(err error) int {
	switch {
	case errors.Is(err, submit.ErrMissingLink), errors.Is(err, submit.ErrInvalidLink):
		return http.StatusBadRequest
	case errors.Is(err, submit.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
