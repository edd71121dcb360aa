package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"drumkits/internal/auth"
	"drumkits/internal/backend"
	"drumkits/internal/catalog"
	"drumkits/internal/config"
	"drumkits/internal/kit"
	"drumkits/internal/render"
	"drumkits/internal/submit"
)

type Deps struct {
	Config   config.Config
	Store    *catalog.Store
	Source   backend.Source
	Renderer *render.Renderer
	Submit   *submit.Service
	// Auth is nil when no signing secret is configured; admin routes are
	// not mounted then.
	Auth   *auth.Service
	Admin  auth.Admin
	Logger zerolog.Logger
}

type Server struct {
	cfg    config.Config
	store  *catalog.Store
	source backend.Source
	pages  *render.Renderer
	submit *submit.Service
	auth   *auth.Service
	admin  auth.Admin
	log    zerolog.Logger

	mu     sync.RWMutex
	bySlug map[string]kit.Kit
}

func New(d Deps) *Server {
	return &Server{
		cfg:    d.Config,
		store:  d.Store,
		source: d.Source,
		pages:  d.Renderer,
		submit: d.Submit,
		auth:   d.Auth,
		admin:  d.Admin,
		log:    d.Logger,
		bySlug: make(map[string]kit.Kit),
	}
}

// pageRead is how HTML pages read the catalog: serve what is resident and
// refresh in the background when it is stale.
var pageRead = catalog.Options{AllowStale: true, Revalidate: true}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.cfg.Submit.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(s.log), middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.HandleFunc("/api/kits", s.handleKits())
	r.HandleFunc("/api/submit", s.handleSubmitAPI())

	if s.auth != nil {
		r.Post("/auth/login", s.handleLogin())
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.auth.RequireRole(auth.RoleAdmin))
			r.Get("/cache", s.handleCacheStatus())
			r.Post("/refresh", s.handleRefresh())
		})
	}

	r.Get("/errors/default.jpg", s.handlePlaceholder())
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(s.pages.Static()))))

	r.Get("/", s.handleList())
	r.Get("/search", s.handleSearch())
	r.Get("/submit", s.handleSubmitForm())
	r.Post("/submit", s.handleSubmitForm())
	r.Get("/kit", s.handleLegacyKit())
	r.Get("/{slug}", s.handleDetail())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderMessage(w, http.StatusNotFound, "Not found", "This page does not exist. Please return to the home page.")
	})
	return r
}

// Watch keeps the slug index in step with catalog updates until ctx ends.
func (s *Server) Watch(ctx context.Context) {
	updates, cancel := s.store.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			s.reindex(u.Kits)
			s.log.Info().Int("kits", len(u.Kits)).Time("at", u.Timestamp).Msg("catalog updated")
		}
	}
}

func (s *Server) reindex(kits []kit.Kit) {
	idx := make(map[string]kit.Kit, len(kits))
	for _, k := range kits {
		idx[k.Slug] = k
	}
	s.mu.Lock()
	s.bySlug = idx
	s.mu.Unlock()
}

func (s *Server) lookup(ctx context.Context, slug string) (kit.Kit, bool, error) {
	slug = strings.TrimSpace(slug)
	s.mu.RLock()
	k, ok := s.bySlug[slug]
	s.mu.RUnlock()
	if ok {
		return k, true, nil
	}
	return s.store.BySlug(ctx, slug, pageRead)
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := log.Info()
			if status >= http.StatusInternalServerError {
				ev = log.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
