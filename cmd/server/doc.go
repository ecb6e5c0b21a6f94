// Package main is the entry point for the bodysplice proxy.
//
// The proxy sits in front of an origin, streams its HTML pages back to the
// browser unchanged, and splices extra markup in at direct children of body
// as the page goes by.
//
// Architecture:
//
//	Browser → bodysplice → Origin
//	             ↑
//	         rules file, POST /streams/:id/inject
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	UPSTREAM_URL=http://app:3000 ./server -port 8000 -rules inject.toml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
