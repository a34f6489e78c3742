// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects storage, media processing,
// services, handlers, middleware and routes. Think of it as the control
// centre that decides:
//   - Which store and media runner the configuration selects
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → repository.Store (sqlite or mongo)
//	  → media.Runner (local or docker) → media.Processor → media.Dispatcher (pool or asynq)
//	  → events.Hub ← Processor and Sweeper publish media.status here
//	  → services → handlers → chi routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/watchme/internal/auth"
	"github.com/sakif/watchme/internal/config"
	"github.com/sakif/watchme/internal/events"
	"github.com/sakif/watchme/internal/handler"
	"github.com/sakif/watchme/internal/media"
	"github.com/sakif/watchme/internal/media/docker"
	"github.com/sakif/watchme/internal/middleware"
	"github.com/sakif/watchme/internal/repository"
	mongoRepo "github.com/sakif/watchme/internal/repository/mongo"
	sqliteRepo "github.com/sakif/watchme/internal/repository/sqlite"
	"github.com/sakif/watchme/internal/service"
)

// mediaQueueSize is how many tasks the in-process pool buffers before
// Dispatch blocks.
const mediaQueueSize = 64

// limiterIdle is how long a quiet client keeps its rate limit bucket.
const limiterIdle = 10 * time.Minute

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store, the media dispatcher, the sweep schedule, the
// websocket hub and, with MEDIA_RUNNER=docker, a pool of containers. Close
// releases them in dependency order: nothing that might still write to the
// store outlives it.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger

	store      repository.Store
	hub        *events.Hub
	dispatcher media.Dispatcher
	sweeper    *media.Sweeper
	docker     *docker.Runner // nil unless MEDIA_RUNNER=docker
	limiter    *middleware.RateLimiter
	stopGC     chan struct{}
}

// New creates a Server from the configuration.
//
// On any failure the parts already created are released before returning,
// so a half-built server never leaks a database handle or containers.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		hub:    events.NewHub(logger),
		stopGC: make(chan struct{}),
	}
	built := false
	defer func() {
		if !built {
			s.Close()
		}
	}()

	// === STORE ===
	var err error
	s.store, err = openStore(cfg)
	if err != nil {
		return nil, err
	}

	// === MEDIA PIPELINE ===
	files, err := media.NewFileStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	var runner media.Runner
	switch cfg.MediaRunner {
	case config.RunnerDocker:
		dcfg := docker.DefaultConfig(cfg.FFmpegImage, files.Dir())
		dcfg.Timeout = cfg.MediaTimeout
		dcfg.PoolSize = cfg.MediaWorkers
		s.docker, err = docker.New(dcfg, logger)
		if err != nil {
			return nil, fmt.Errorf("starting docker media runner: %w", err)
		}
		runner = s.docker
	default:
		runner = media.NewLocalRunner(files.Dir())
	}

	processor := media.NewProcessor(runner, s.store, s.hub, cfg.MediaTimeout, logger)

	switch cfg.MediaQueue {
	case config.QueueRedis:
		q := media.NewQueue(cfg.RedisAddr, cfg.MediaWorkers, cfg.MediaTimeout, processor, logger)
		s.dispatcher = q
		if err := q.Start(); err != nil {
			return nil, err
		}
	default:
		pool := media.NewWorkerPool(processor, cfg.MediaWorkers, mediaQueueSize, logger)
		pool.Start()
		s.dispatcher = pool
	}

	s.sweeper = media.NewSweeper(s.store, s.hub, cfg.MediaStaleAfter, logger)
	if err := s.sweeper.Start(cfg.MediaSweepSpec); err != nil {
		return nil, err
	}

	// === AUTH ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	// A nil *GitHubProvider stored in an interface is not a nil interface,
	// so both values are set only when GitHub is configured.
	var (
		githubClient service.GitHubClient
		githubAuth   handler.GitHubAuthenticator
	)
	if cfg.GitHubEnabled() {
		gh := auth.NewGitHubProvider(auth.GitHubConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			CallbackURL:  cfg.GitHubCallbackURL,
			APIURL:       cfg.GitHubAPIURL,
		})
		githubClient, githubAuth = gh, gh
	} else {
		logger.Warn("GitHub credentials not set: GitHub login and repository proxy are disabled")
	}

	// === SERVICES ===
	accounts := service.NewAccountService(s.store, tokens, auth.NewPasswordService(), githubClient, logger)
	videos := service.NewVideoService(s.store, files, s.dispatcher, logger)
	comments := service.NewCommentService(s.store, s.store, logger)
	playlists := service.NewPlaylistService(s.store, s.store, logger)

	s.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	go s.collectLimiter()

	s.setupRoutes(routes{
		tokens:    tokens,
		uploadDir: files.Dir(),
		auth:      handler.NewAuthHandler(accounts, githubAuth, tokens.TTL(), cfg.FrontendURL, logger),
		users:     handler.NewUserHandler(accounts, videos, comments, logger),
		videos:    handler.NewVideoHandler(videos, cfg.MaxUploadBytes(), logger),
		comments:  handler.NewCommentHandler(comments, logger),
		playlists: handler.NewPlaylistHandler(playlists, logger),
		events:    handler.NewEventsHandler(s.hub, tokens),
	})

	built = true
	return s, nil
}

// openStore connects to the configured store driver.
func openStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		store, err := mongoRepo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("opening mongo store: %w", err)
		}
		return store, nil
	default:
		if cfg.DBPath != ":memory:" {
			// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil
	}
}

// routes carries the handlers into setupRoutes.
type routes struct {
	tokens    *auth.TokenService
	uploadDir string
	auth      *handler.AuthHandler
	users     *handler.UserHandler
	videos    *handler.VideoHandler
	comments  *handler.CommentHandler
	playlists *handler.PlaylistHandler
	events    *handler.EventsHandler
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /uploads/*                          → stored videos, thumbnails, previews
//	GET  /ws                                 → media status events (websocket)
//	     /auth/...                           → register, login, GitHub OAuth, logout
//	     /api/videos (public reads)          → OptionalAuth
//	     /api/... (everything else)          → RequireAuth
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers (the rate limiter keys on it)
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info
func (s *Server) setupRoutes(h routes) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Static media ===
	// GET /uploads/abc_clip.png → serves {UPLOAD_DIR}/abc_clip.png
	fileServer := http.FileServer(http.Dir(h.uploadDir))
	s.router.Handle("/uploads/*", http.StripPrefix("/uploads/", fileServer))

	s.router.Get("/ws", h.events.HandleWS)

	s.router.Route("/auth", func(r chi.Router) {
		r.Use(s.limiter.Handler)

		r.Post("/register", h.auth.HandleRegister)
		r.Post("/login", h.auth.HandleLogin)
		r.Post("/check-credentials", h.auth.HandleCheckCredentials)
		r.Post("/logout", h.auth.HandleLogout)
		r.Get("/github", h.auth.HandleGitHubLogin)
		r.Get("/github/callback", h.auth.HandleGitHubCallback)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Handler)

		// --- Public video reads: an identity is used when present ---
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(h.tokens))

			r.Get("/videos", h.videos.HandleList)
			r.Get("/videos/search", h.videos.HandleSearch)
			r.Post("/videos/similar", h.videos.HandleSimilarByTags)
			r.Get("/videos/{id}", h.videos.HandleGet)
			r.Get("/videos/{id}/similar", h.videos.HandleSimilar)
			r.Get("/videos/{id}/status", h.videos.HandleStatus)
			r.Post("/videos/{id}/views", h.videos.HandleView)
		})

		// --- Everything else needs a signed-in caller ---
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(h.tokens))

			r.Get("/users", h.users.HandleList)
			r.Get("/users/me", h.users.HandleMe)
			r.Get("/users/me/videos", h.users.HandleMyVideos)
			r.Get("/users/me/comments", h.users.HandleMyComments)
			r.Get("/users/github/repos", h.users.HandleGitHubRepos)
			r.Post("/users/github/repos", h.users.HandleGitHubCreateRepo)
			r.Get("/users/github/repos/{repo}/commits", h.users.HandleGitHubCommits)

			r.Post("/videos", h.videos.HandleUpload)
			r.Patch("/videos/{id}", h.videos.HandleEdit)
			r.Post("/videos/{id}/stat", h.videos.HandleToggleStat)
			r.Delete("/videos/{id}", h.videos.HandleDelete)

			r.Get("/comments", h.comments.HandleList)
			r.Get("/comments/video/{videoId}", h.comments.HandleListByVideo)
			r.Post("/comments/video/{videoId}", h.comments.HandlePost)
			r.Patch("/comments/{id}", h.comments.HandleEdit)
			r.Delete("/comments/{id}", h.comments.HandleDelete)

			r.Get("/playlists", h.playlists.HandleListPublic)
			r.Get("/playlists/mine", h.playlists.HandleMine)
			r.Post("/playlists", h.playlists.HandleCreate)
			r.Post("/playlists/auto", h.playlists.HandleAuto)
			r.Get("/playlists/{id}", h.playlists.HandleGet)
			r.Patch("/playlists/{id}", h.playlists.HandleUpdate)
			r.Delete("/playlists/{id}", h.playlists.HandleDelete)
			r.Post("/playlists/{id}/videos", h.playlists.HandleAddVideo)
			r.Delete("/playlists/{id}/videos/{videoId}", h.playlists.HandleRemoveVideo)
		})
	})
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// collectLimiter drops idle rate limit buckets once a minute until Close.
func (s *Server) collectLimiter() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.limiter.Cleanup(limiterIdle); n > 0 {
				s.logger.Debug("rate limiter buckets dropped", slog.Int("count", n))
			}
		case <-s.stopGC:
			return
		}
	}
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close: cron sweep, media dispatcher, websocket hub, docker pool, store
//
// NO READ/WRITE TIMEOUTS:
// Uploads can take minutes and /ws connections stay open for hours, so only
// the header read and idle keep-alive are bounded.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("store", s.config.StoreDriver),
			slog.String("mediaRunner", s.config.MediaRunner),
			slog.String("mediaQueue", s.config.MediaQueue),
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

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases everything New created. It is safe on a partly built
// Server and logs rather than returns failures, since there is nothing
// left to do about them.
func (s *Server) Close() {
	select {
	case <-s.stopGC:
		return // already closed
	default:
		close(s.stopGC)
	}

	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.Close(); err != nil {
			s.logger.Error("closing media dispatcher", slog.String("error", err.Error()))
		}
	}
	s.hub.Close()
	if s.docker != nil {
		if err := s.docker.Close(); err != nil {
			s.logger.Error("closing docker runner", slog.String("error", err.Error()))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}
}
