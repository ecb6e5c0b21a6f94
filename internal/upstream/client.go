package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/config"
	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/tracing"
)

// ErrUnavailable wraps failures that never produced an upstream response.
var ErrUnavailable = errors.New("upstream unavailable")

// acceptEncoding is sent upstream so the transport never decompresses on our
// behalf; the body decoder handles both.
const acceptEncoding = "gzip, zstd"

// Headers that describe a single hop and are never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Accept-Encoding",
	"Host",
	"Content-Length",
}

// Response is an upstream response whose body has not been read.
type Response struct {
	Status int
	Header http.Header
	// Body yields decoded bytes. The caller must close it.
	Body io.ReadCloser
	// HTML reports whether the body is text/html and can be transformed.
	HTML bool
	// Decoded reports that Content-Encoding was removed while reading.
	Decoded bool
}

// Client fetches pages from the configured origin with rate limiting, retries
// and a circuit breaker.
type Client struct {
	resty   *resty.Client
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
	logger  *zap.Logger

	mu      sync.RWMutex
	limiter *rate.Limiter
}

// NewClient creates a client for cfg.URL. metrics may be nil.
func NewClient(cfg config.UpstreamConfig, logger *zap.Logger, metrics *monitoring.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = leveledLogger{logger.Sugar()}
	// 5xx responses are proxied as they are once retries run out.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	// Redirects are relayed to the browser rather than followed.
	retryClient.HTTPClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if tr, ok := retryClient.HTTPClient.Transport.(*http.Transport); ok {
		tr.DisableCompression = true
		tr.ResponseHeaderTimeout = cfg.Timeout
	}

	restyClient := resty.NewWithClient(retryClient.StandardClient())
	restyClient.
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetHeader("User-Agent", "bodysplice/1.0")

	c := &Client{
		resty:   restyClient,
		metrics: metrics,
		logger:  logger,
	}
	c.breaker = resilience.New("upstream", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.5)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	c.SetRateLimit(cfg.RPS)

	return c
}

// SetRateLimit limits upstream requests per second. Zero or less disables it.
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// Fetch requests path (including any query string) from the origin. Headers
// from the incoming request are forwarded except hop-by-hop ones. A response
// is returned for any status; 5xx statuses count as breaker failures.
func (c *Client) Fetch(ctx context.Context, path string, header http.Header) (*Response, error) {
	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %w", ErrUnavailable, err)
	}

	done, err := c.breaker.Allow()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var timer *monitoring.Timer
	if c.metrics != nil {
		timer = monitoring.NewTimer(c.metrics, "upstream")
	}

	req := c.resty.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeaderMultiValues(forwardHeaders(header)).
		SetHeader("Accept-Encoding", acceptEncoding)
	tracing.InjectTraceContext(ctx, req.Header)

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	resp, err := req.Get(path)
	if err != nil {
		done(false)
		if timer != nil {
			timer.Stop("error")
		}
		return nil, fmt.Errorf("%w: GET %s: %w", ErrUnavailable, path, err)
	}

	status := resp.StatusCode()
	done(status < http.StatusInternalServerError)
	if timer != nil {
		timer.Stop(statusClass(status))
	}

	c.logger.Debug("upstream response",
		zap.String("path", path),
		zap.Int("status", status),
		zap.String("content_type", resp.Header().Get("Content-Type")),
		zap.String("content_encoding", resp.Header().Get("Content-Encoding")))

	return newResponse(status, resp.Header().Clone(), resp.RawBody())
}

func forwardHeaders(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	for _, k := range hopHeaders {
		delete(out, http.CanonicalHeaderKey(k))
	}
	return out
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}
