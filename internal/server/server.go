package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/planwatch/edge/internal/api/admin"
	"github.com/planwatch/edge/internal/auth"
	"github.com/planwatch/edge/internal/config"
	"github.com/planwatch/edge/internal/observability"
	"github.com/planwatch/edge/internal/plans"
	"github.com/planwatch/edge/internal/routing"
	"github.com/planwatch/edge/internal/server/middleware"
)

// Server is the HTTP server that wires the routing middleware and the
// internal endpoints it rewrites to.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	auth       *auth.Service
	directory  *plans.CachedDirectory
	cfg        *config.Config
}

// New creates a Server with all routes wired.
func New(ctx context.Context, cfg *config.Config, directory *plans.CachedDirectory, authSvc *auth.Service, reporter observability.Reporter) *Server {
	router := chi.NewRouter()

	// Global middleware stack. The routing middleware runs last so every
	// request it rewrites still resolves against the routes below.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler)

	rt := middleware.NewRouter(middleware.Options{
		Directory:       directory,
		Auth:            authSvc,
		Reporter:        reporter,
		HealthPath:      cfg.Routing.HealthPath,
		UnpublishedPath: cfg.Routing.UnpublishedPath,
		HostRedirects:   cfg.Routing.HostRedirects,
		LegacyRules:     routing.Rules{Prefixes: cfg.Routing.LegacyPrefixes},
	})
	router.Use(rt.Middleware)

	s := &Server{
		router:    router,
		auth:      authSvc,
		directory: directory,
		cfg:       cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	router.Get("/api/health", handleHealth)

	router.Route("/api/auth", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, 5, 10))
		r.Get("/", s.handleAuthForm)
		r.Post("/", s.handleAuthLogin)
	})

	// Ops API: real routes when a token is configured, nothing otherwise.
	if cfg.Auth.AdminToken != "" {
		router.Route("/api/admin", func(r chi.Router) {
			r.Use(adminAuth(cfg.Auth.AdminToken))
			adminConfig := huma.DefaultConfig("Edge Admin API", "1.0.0")
			adminConfig.Servers = []*huma.Server{
				{URL: "/api/admin"},
			}
			adminAPI := humachi.New(r, adminConfig)
			admin.Register(adminAPI, directory)
		})
		log.Info().Msg("admin API enabled")
	}

	router.Get("/404", handleNotFound)

	// Targets of the routing middleware's rewrites: the status page for
	// restricted/unpublished plans and the canonical content paths.
	router.Get("/{hostname}/{locale}"+cfg.Routing.UnpublishedPath, handleUnpublished)
	router.Handle("/{hostname}/{locale}/{plan}/*", contentHandler(cfg.Upstream.URL))

	router.NotFound(handleNotFound)

	return s
}

// Handler exposes the assembled handler chain for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
