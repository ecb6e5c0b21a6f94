// Package config provides 12-factor configuration for the splicing proxy.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Server: HTTP listen address and shutdown grace period
//   - Upstream: origin URL, timeout, retries and request rate
//   - Stream: transform chunk size and incomplete-tag limit
//   - Inject: rules file and sanitizing of API fragments
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Proxying %s on %s\n", cfg.Upstream.URL, cfg.Server.Addr())
package config
