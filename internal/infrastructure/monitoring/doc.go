/*
Package monitoring provides Prometheus metrics for the splicing proxy.

# Overview

Metrics cover the HTTP surface, the life of every proxied stream (bytes in
and out, boundaries found, fragments injected, errors by stage) and the
debug WebSocket channel. A small snapshot of the same values backs the
JSON health endpoint.

# Usage

	metrics := monitoring.NewMetrics(nil)
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "upstream")
	resp, err := client.Fetch(ctx, path, header)
	timer.Stop(status)

Tests pass their own registry so collectors can be created repeatedly:

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
*/
package monitoring
