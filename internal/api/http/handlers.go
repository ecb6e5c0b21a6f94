package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/bodysplice/internal/domain/stream"
	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/config"
	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/bodysplice/internal/inject"
	"github.com/GriffinCanCode/bodysplice/internal/upstream"
)

// StreamHeader carries the stream ID of a proxied page.
const StreamHeader = "X-Stream-ID"

// Fetcher loads pages from the origin.
type Fetcher interface {
	Fetch(ctx context.Context, path string, header http.Header) (*upstream.Response, error)
}

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Fetcher   Fetcher
	Streams   *stream.Manager
	Rules     *inject.Rules
	Sanitizer *inject.Sanitizer
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
	Stream    config.StreamConfig
	MaxQueue  int
	Version   string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	fetcher   Fetcher
	streams   *stream.Manager
	rules     *inject.Rules
	sanitizer *inject.Sanitizer
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	cfg       config.StreamConfig
	maxQueue  int
	version   string
}

// NewHandlers creates a new handler set
func NewHandlers(d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Sanitizer == nil {
		d.Sanitizer = inject.NewSanitizer(true)
	}
	if d.Version == "" {
		d.Version = "dev"
	}
	return &Handlers{
		fetcher:   d.Fetcher,
		streams:   d.Streams,
		rules:     d.Rules,
		sanitizer: d.Sanitizer,
		metrics:   d.Metrics,
		logger:    d.Logger,
		cfg:       d.Stream,
		maxQueue:  d.MaxQueue,
		version:   d.Version,
	}
}

// Register mounts the handlers on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/proxy/*path", h.Proxy)

	r.GET("/streams", h.ListStreams)
	r.GET("/streams/:id", h.GetStream)
	r.POST("/streams/:id/inject", h.Inject)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "bodysplice",
		"version": h.version,
	})
}

// Health reports registry and upstream state.
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"streams": h.streams.Stats(),
		"rules":   h.rules.Len(),
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}

	status := http.StatusOK
	if b, ok := h.fetcher.(interface{ BreakerState() resilience.State }); ok {
		state := b.BreakerState()
		body["upstream"] = gin.H{"breaker": state.String()}
		if state == resilience.StateOpen {
			body["status"] = "degraded"
		}
	}

	c.JSON(status, body)
}
