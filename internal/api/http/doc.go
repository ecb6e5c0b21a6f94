// Package http provides the REST surface of the proxy.
//
// Endpoints:
//   - Banner and health: / and /health
//   - Proxy: /proxy/*path streams the origin page, splicing fragments at
//     direct children of body
//   - Streams: /streams, /streams/:id, /streams/:id/inject
//
// Example Usage:
//
//	h := http.NewHandlers(http.Deps{Fetcher: client, Streams: mgr, Rules: rules})
//	h.Register(router)
package http
