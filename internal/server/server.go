// Package server is the composition root: it opens the store, builds the
// services and handlers, and routes requests to them.
//
// DEPENDENCY FLOW:
//
//	config.Config → changefeed (Redis or in-process) → sqlite.DB
//	sqlite.DB → repositories → services → handlers → chi routes
//
// Each layer only receives what it needs. Handlers never touch the store;
// services never touch HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/college-forum/internal/access"
	"github.com/sakif/college-forum/internal/auth"
	"github.com/sakif/college-forum/internal/changefeed"
	"github.com/sakif/college-forum/internal/config"
	"github.com/sakif/college-forum/internal/handler"
	"github.com/sakif/college-forum/internal/middleware"
	"github.com/sakif/college-forum/internal/repository"
	"github.com/sakif/college-forum/internal/service"
	"github.com/sakif/college-forum/internal/store/sqlite"
)

// Server owns the HTTP router and the resources behind it. The database
// and the Redis client are closed when Start returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqlite.DB
	redis  *redis.Client // nil when change notifications stay in-process
}

// New opens the store and wires every route.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}

	opts := []sqlite.Option{sqlite.WithLogger(logger)}
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rdb, err := changefeed.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		s.redis = rdb
		opts = append(opts, sqlite.WithFeed(changefeed.NewRedis(rdb, logger)))
		logger.Info("change feed: redis", slog.String("url", redactURL(cfg.RedisURL)))
	} else {
		logger.Info("change feed: in-process")
	}

	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.closeRedis()
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlite.New(cfg.DBPath, opts...)
	if err != nil {
		s.closeRedis()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	if err := s.setupRoutes(); err != nil {
		s.close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware and routes.
//
// ROUTES:
//
//	GET    /healthz                              → store liveness
//	GET    /metrics                              → Prometheus
//	GET    /auth/google/login                    → start Google sign-in
//	GET    /auth/google/callback                 → finish Google sign-in
//	POST   /auth/logout                          → clear session cookie
//	GET    /api/live                             → websocket live queries
//	GET    /api/me                               → signed-in principal (auth)
//	GET    /api/tags                             → tag vocabulary (?used=1: counts)
//	GET    /api/articles                         → feed
//	POST   /api/articles                         → publish
//	GET    /api/articles/{id}                    → one article
//	DELETE /api/articles/{id}                    → author or admin
//	POST   /api/articles/{id}/vote               → toggle vote
//	GET    /api/articles/{id}/comments           → thread
//	POST   /api/articles/{id}/comments           → reply
//	DELETE /api/articles/{id}/comments/{cid}     → author or admin
//	GET    /api/jobs, /api/jobs/{id}             → job board
//	POST   /api/jobs, DELETE /api/jobs/{id}      → admin only
//	GET    /api/profiles/{id}                    → profile
//	PATCH  /api/profiles/{id}                    → owner only
//
// Middleware runs in the order it is added: request ID, real IP, logging
// and metrics, panic recovery, then CORS.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.config.Origins()))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// === Repositories and services ===
	articleRepo := repository.NewArticleRepository(s.db)
	commentRepo := repository.NewCommentRepository(s.db)
	jobRepo := repository.NewJobRepository(s.db)
	profileRepo := repository.NewProfileRepository(s.db)
	policy := access.NewPolicy(s.config.AdminEmail, profileRepo)

	articles := service.NewArticleService(articleRepo, commentRepo, profileRepo, policy, s.logger)
	votes := service.NewVoteService(articleRepo, s.logger)
	comments := service.NewCommentService(commentRepo, articleRepo, policy, s.logger)
	jobs := service.NewJobService(jobRepo, policy, s.logger)
	profiles := service.NewProfileService(profileRepo, s.logger)

	// === Handlers ===
	articleH := handler.NewArticleHandler(articles, votes, s.logger)
	commentH := handler.NewCommentHandler(comments, s.logger)
	jobH := handler.NewJobHandler(jobs, s.logger)
	profileH := handler.NewProfileHandler(profiles, s.logger)
	liveH := handler.NewLiveHandler(articles, comments, jobs, votes, profiles, tokens, s.config.Origins(), s.logger)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	var authH *handler.AuthHandler
	if s.config.GoogleEnabled() {
		google := auth.NewGoogleProvider(s.config.GoogleClientID, s.config.GoogleClientSecret, s.config.GoogleCallbackURL)
		authService := service.NewAuthService(google, tokens, profiles, s.logger)
		authH = handler.NewAuthHandler(google, authService, profiles, policy, s.config.IsProduction(), s.logger)

		s.router.Get("/auth/google/login", authH.HandleGoogleLogin)
		s.router.Get("/auth/google/callback", authH.HandleGoogleCallback)
		s.router.Post("/auth/logout", authH.HandleLogout)
	} else {
		s.logger.Warn("GOOGLE_CLIENT_ID not set: sign-in routes are disabled")
	}

	s.router.Route("/api", func(r chi.Router) {
		// Reads are public; services reject anonymous mutations.
		r.Use(auth.OptionalAuth(tokens))

		r.Get("/live", liveH.HandleLive)
		r.Get("/tags", articleH.HandleTags)
		if authH != nil {
			r.With(auth.RequireAuth(tokens)).Get("/me", authH.HandleMe)
		}

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", articleH.HandleList)
			r.Post("/", articleH.HandleCreate)
			r.Get("/{id}", articleH.HandleGet)
			r.Delete("/{id}", articleH.HandleDelete)
			r.Post("/{id}/vote", articleH.HandleVote)
			r.Get("/{id}/comments", commentH.HandleList)
			r.Post("/{id}/comments", commentH.HandleCreate)
			r.Delete("/{id}/comments/{commentID}", commentH.HandleDelete)
		})

		r.Get("/jobs", jobH.HandleList)
		r.Post("/jobs", jobH.HandleCreate)
		r.Get("/jobs/{id}", jobH.HandleGet)
		r.Delete("/jobs/{id}", jobH.HandleDelete)

		r.Get("/profiles/{id}", profileH.HandleGet)
		r.Patch("/profiles/{id}", profileH.HandleUpdate)
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, body := http.StatusOK, "ok"
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", slog.String("error", err.Error()))
		status, body = http.StatusServiceUnavailable, "store unavailable"
	} else if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn("health check failed", slog.String("error", err.Error()))
			status, body = http.StatusServiceUnavailable, "change feed unavailable"
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests
// for up to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer s.close()

	srv := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("port", s.config.Port),
			slog.String("env", s.config.Env),
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

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// redactURL hides the password of a connection URL for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid"
	}
	return u.Redacted()
}

func (s *Server) close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("closing database", slog.String("error", err.Error()))
		}
	}
	s.closeRedis()
}

func (s *Server) closeRedis() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
}
