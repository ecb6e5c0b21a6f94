package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/bodysplice/internal/api/http"
	"github.com/GriffinCanCode/bodysplice/internal/api/middleware"
	"github.com/GriffinCanCode/bodysplice/internal/api/ws"
	"github.com/GriffinCanCode/bodysplice/internal/domain/stream"
	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/config"
	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/logging"
	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/bodysplice/internal/inject"
	"github.com/GriffinCanCode/bodysplice/internal/upstream"
)

// Version is reported by / and set at build time.
var Version = "dev"

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	streams  *stream.Manager
	upstream *upstream.Client
	tracer   *tracing.Tracer
	limiter  *middleware.RateLimiter
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics

	limiterCtx  context.Context
	stopLimiter context.CancelFunc
}

// Option customizes NewServer.
type Option func(*options)

type options struct {
	logger   *logging.Logger
	registry *prometheus.Registry
}

// WithLogger replaces the logger built from config.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry registers metrics with reg instead of the default registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.FromConfig(cfg.Logging))
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing bodysplice",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("upstream", cfg.Upstream.URL),
		zap.Int("chunk_size", cfg.Stream.ChunkSize),
		zap.Bool("pass_first_chunk", cfg.Stream.PassFirstChunk),
	)

	metrics := monitoring.NewMetrics(o.registry)
	tracer := tracing.New("bodysplice", logger.Component("tracing"))

	rules, err := inject.LoadRules(cfg.Inject.RulesFile)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to load inject rules: %w", err)
	}
	logger.Info("Inject rules loaded",
		zap.String("file", cfg.Inject.RulesFile),
		zap.Int("rules", rules.Len()),
	)

	client := upstream.NewClient(cfg.Upstream, logger.Component("upstream"), metrics)
	streams := stream.NewManager(logger.Component("streams"))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limiter = middleware.NewRateLimiter(middleware.RateLimitFromConfig(cfg.RateLimit))
		router.Use(limiter.Middleware())
	}

	handlers := apihttp.NewHandlers(apihttp.Deps{
		Fetcher:   client,
		Streams:   streams,
		Rules:     rules,
		Sanitizer: inject.NewSanitizer(cfg.Inject.Sanitize),
		Metrics:   metrics,
		Logger:    logger.Component("http"),
		Stream:    cfg.Stream,
		MaxQueue:  cfg.Inject.MaxQueue,
		Version:   Version,
	})
	handlers.Register(router)

	wsHandler := ws.NewHandler(streams, metrics, logger.Component("ws"))
	router.GET("/debug/stream", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/metrics/json", func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.Snapshot())
	})

	logger.Info("Server initialized successfully")

	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	return &Server{
		router:   router,
		streams:  streams,
		upstream: client,
		tracer:   tracer,
		limiter:  limiter,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		http: &http.Server{
			Addr:    cfg.Server.Addr(),
			Handler: router,
		},
		limiterCtx:  limiterCtx,
		stopLimiter: stopLimiter,
	}, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Streams returns the live stream registry.
func (s *Server) Streams() *stream.Manager {
	return s.streams
}

// Run starts the HTTP server and blocks until it stops. It returns nil after
// Shutdown.
func (s *Server) Run() error {
	if s.limiter != nil {
		go s.limiter.Run(s.limiterCtx)
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for open streams until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...",
		zap.Int("active_streams", s.streams.Stats().Active))

	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Graceful shutdown incomplete", zap.Error(err))
		err = fmt.Errorf("failed to shut down http server: %w", err)
	}

	s.stopLimiter()
	s.tracer.Close()

	// Sync logger before exit
	_ = s.logger.Sync()

	return err
}
