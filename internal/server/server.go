package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jobtracker/apiserver/config"
	"github.com/jobtracker/apiserver/internal/db"
	"github.com/jobtracker/apiserver/internal/handlers"
	"github.com/jobtracker/apiserver/internal/logging"
	"github.com/jobtracker/apiserver/internal/mq"
	"github.com/jobtracker/apiserver/internal/services"
	"github.com/jobtracker/apiserver/internal/storage"
	"github.com/jobtracker/apiserver/internal/store"
)

const requestTimeout = 60 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	logger     *slog.Logger
}

// RouterDeps are the services and settings the router is built from.
// Attachments may be nil, in which case attachment routes are not mounted.
type RouterDeps struct {
	Auth        *services.AuthService
	Jobs        *services.JobService
	Attachments *services.AttachmentService
	Logger      *slog.Logger
	RateLimit   config.RateLimitConfig
	CORSOrigins []string
}

// New connects to the database and the optional storage and broker
// backends, and wires the services into a router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	jobRepo := store.NewJobRepository(dbConn)

	var jobOpts []services.JobOption
	if broker != nil {
		jobOpts = append(jobOpts, services.WithEventPublisher(mq.NewJobEvents(broker, cfg.MQ.Channel)))
		logger.Info("job events enabled", "backend", cfg.MQ.Backend, "channel", cfg.MQ.Channel)
	}

	var attachmentService *services.AttachmentService
	if objects != nil {
		attachmentRepo := store.NewAttachmentRepository(dbConn)
		attachmentService = services.NewAttachmentService(attachmentRepo, jobRepo, objects, cfg.Storage.MaxAttachmentBytes)
		jobOpts = append(jobOpts, services.WithAttachmentPurger(attachmentService))
		logger.Info("attachments enabled", "backend", cfg.Storage.Backend, "bucket", objects.Bucket())
	}

	router := NewRouter(RouterDeps{
		Auth:        services.NewAuthService(userRepo, cfg.Auth),
		Jobs:        services.NewJobService(jobRepo, jobOpts...),
		Attachments: attachmentService,
		Logger:      logger,
		RateLimit:   cfg.RateLimit,
		CORSOrigins: cfg.CORSOrigins,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         broker,
		logger:     logger,
	}, nil
}

// NewRouter builds the HTTP routes. /health sits outside /api and is not
// rate limited.
func NewRouter(deps RouterDeps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if deps.RateLimit.TrustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(
		logging.RequestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)

	router.Get("/health", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		r.Use(rateLimiter(deps.RateLimit.GeneralRequests, deps.RateLimit.Window,
			"Too many requests from this IP, please try again later."))

		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, deps.Auth, rateLimiter(deps.RateLimit.AuthRequests, deps.RateLimit.Window,
				"Too many authentication attempts, please try again later."))
		})

		r.Group(func(r chi.Router) {
			r.Use(handlers.RequireAuth(deps.Auth))
			r.Route("/jobs", func(r chi.Router) {
				handlers.JobRouter(r, deps.Jobs, deps.Attachments)
			})
			r.Get("/stats", handlers.NewStatsHandler(deps.Jobs).GetStats)
		})
	})

	return router
}

// rateLimiter limits requests per client IP. A non-positive limit disables it.
func rateLimiter(limit int, window time.Duration, message string) func(http.Handler) http.Handler {
	if limit <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(handlers.RateLimited(message)),
	)
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker and the
// database pool.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if closeErr := s.mq.Close(); closeErr != nil {
			s.logger.Warn("close mq failed", "error", closeErr)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
