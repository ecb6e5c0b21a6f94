// Package middleware provides the gin middleware in front of the proxy.
//
//   - CORS: gin-contrib/cors, exposing X-Stream-ID and the trace headers
//   - RateLimit: per-IP token buckets with idle-client cleanup
//   - GlobalRateLimit: a single bucket for the whole server
//
// Example Usage:
//
//	limiter := middleware.NewRateLimiter(middleware.RateLimitFromConfig(cfg.RateLimit))
//	go limiter.Run(ctx)
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(limiter.Middleware())
package middleware
