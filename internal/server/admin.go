package server

import (
	"encoding/json"
	"net/http"
	"time"

	"drumkits/internal/auth"
)

func (s *Server) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid body")
			return
		}
		if err := s.admin.Verify(req.Username, req.Password); err != nil {
			s.log.Warn().Str("user", req.Username).Msg("admin login rejected")
			errorJSON(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		token, exp, err := s.auth.GenerateToken(req.Username, auth.RoleAdmin)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, "token error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_at":   exp.UTC().Format(time.RFC3339),
		})
	}
}

func (s *Server) handleCacheStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.store.Status())
	}
}

func (s *Server) handleRefresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kits, err := s.store.Refresh(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("admin refresh")
			errorJSON(w, http.StatusBadGateway, "refresh failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "refreshed",
			"count":  len(kits),
		})
	}
}
