// Package server is the composition root of the sharebin server: it opens
// the database, builds services and handlers, and mounts them on one chi
// router.
//
//	config → sqlite.DB → services → handlers → routes
//
// Keeping this out of main.go lets tests build a real server on an
// in-memory database.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/sharebin/internal/auth"
	"github.com/sakif/sharebin/internal/cache"
	"github.com/sakif/sharebin/internal/config"
	"github.com/sakif/sharebin/internal/handler"
	"github.com/sakif/sharebin/internal/middleware"
	sqliteRepo "github.com/sakif/sharebin/internal/repository/sqlite"
	"github.com/sakif/sharebin/internal/service"
)

const (
	sweepInterval   = 10 * time.Minute
	shutdownTimeout = 30 * time.Second
	cacheTTL        = 5 * time.Minute
)

// Server owns the database, the rate limiter and the expiry sweeper; Start
// releases all three on the way out.
type Server struct {
	router  *chi.Mux
	config  *config.Server
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.RateLimiter

	snippets *service.SnippetService

	sweepOnce sync.Once
	stopSweep context.CancelFunc
	sweepDone chan struct{}
}

// New wires the whole server. The caller owns nothing afterwards except the
// returned *Server.
func New(cfg *config.Server, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		limiter: middleware.NewRateLimiter(cfg.RateLimitRPM, cfg.RateLimitBurst, logger),
	}

	if err := s.setupRoutes(); err != nil {
		s.limiter.Stop()
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes mounts every endpoint.
//
//	GET    /healthz                         liveness + DB ping
//	GET    /metrics                         Prometheus
//	GET    /static/*                        CSS
//	GET    /files/{id}                      uploaded file bytes
//	GET    /api/snippets/{id}               read
//	PUT    /api/snippets/{id}               update           [limited, editing must be on]
//	POST   /api/snippets                    create           [auth, limited]
//	PATCH  /api/snippets/{id}/editing       toggle editing   [auth]
//	POST   /api/upload                      multipart upload [limited]
//	POST   /api/auth/{register,login}       password auth    [limited]
//	POST   /api/auth/oauth/google           Google auth      [limited]
//	POST   /api/auth/logout
//	GET    /api/me, /api/me/snippets        account          [auth]
//	GET    /, /*                            HTML shell
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Dependencies ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret.Value(), s.config.JWTTTL)
	if err != nil {
		return err
	}
	snippetCache, err := cache.NewSnippets(s.config.CacheSize, cacheTTL)
	if err != nil {
		return fmt.Errorf("creating snippet cache: %w", err)
	}

	s.snippets = service.NewSnippetService(s.db, snippetCache, service.SnippetConfig{
		BaseURL:    s.config.BaseURL,
		TTL:        s.config.SnippetTTL,
		MaxContent: s.config.MaxSnippetSize,
	}, s.logger)

	var google service.GoogleVerifier
	if s.config.GoogleUserInfoURL != "" {
		google = auth.NewGoogleVerifier(s.config.GoogleUserInfoURL, &http.Client{Timeout: 10 * time.Second})
	}
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), google, s.logger)
	uploadService := service.NewUploadService(s.db, s.config.BaseURL, s.config.MaxUploadSize, s.logger)

	snippetHandler := handler.NewSnippetHandler(s.snippets, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.config.JWTTTL, s.config.Production(), s.logger)
	uploadHandler := handler.NewUploadHandler(uploadService, s.config.MaxUploadSize, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)
	shellHandler, err := handler.NewShellHandler(s.config.TemplateDir, s.config.BaseURL, s.logger)
	if err != nil {
		return fmt.Errorf("creating shell handler: %w", err)
	}

	requireAuth := auth.RequireAuth(tokens)

	// === Operational ===
	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	s.router.Get("/files/{id}", uploadHandler.HandleDownload)

	// === API ===
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/snippets/{id}", snippetHandler.HandleGet)
		r.With(s.limiter.Limit("update")).Put("/snippets/{id}", snippetHandler.HandleUpdate)
		r.With(s.limiter.Limit("upload")).Post("/upload", uploadHandler.HandleUpload)

		r.Route("/auth", func(r chi.Router) {
			r.With(s.limiter.Limit("register")).Post("/register", authHandler.HandleRegister)
			r.With(s.limiter.Limit("login")).Post("/login", authHandler.HandleLogin)
			r.With(s.limiter.Limit("oauth")).Post("/oauth/google", authHandler.HandleGoogle)
			r.Post("/logout", authHandler.HandleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.With(s.limiter.Limit("create")).Post("/snippets", snippetHandler.HandleCreate)
			r.Patch("/snippets/{id}/editing", snippetHandler.HandleSetEditing)
			r.Get("/me", authHandler.HandleMe)
			r.Get("/me/snippets", snippetHandler.HandleListMine)
		})
	})

	// === Pages ===
	s.router.Get("/", shellHandler.HandleShell)
	s.router.Get("/*", shellHandler.HandleShell)

	return nil
}

// StartSweeper deletes expired snippets every interval until Close.
func (s *Server) StartSweeper(interval time.Duration) {
	s.sweepOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopSweep = cancel
		s.sweepDone = make(chan struct{})
		go func() {
			defer close(s.sweepDone)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if _, err := s.snippets.SweepExpired(ctx); err != nil && ctx.Err() == nil {
						s.logger.Error("expiry sweep failed", slog.String("error", err.Error()))
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	})
}

// Close stops background work and closes the database.
func (s *Server) Close() error {
	if s.stopSweep != nil {
		s.stopSweep()
		<-s.sweepDone
	}
	s.limiter.Stop()
	return s.db.Close()
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to shutdownTimeout and closes everything.
func (s *Server) Start() error {
	defer s.Close()
	s.StartSweeper(sweepInterval)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
