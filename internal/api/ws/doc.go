// Package ws provides the WebSocket debug channel.
//
// A client connecting to /debug/stream first receives a sync-state message
// with every live stream, then one JSON message per registry event:
// stream-open, boundary, inject and stream-close. Events are dropped rather
// than delaying a page when a client falls behind.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - sync-state: Live streams and registry totals
//   - stream-open, boundary, inject, stream-close: Stream events
//   - pong: Reply to ping
//   - error: Malformed or unknown message
//
// Example Usage:
//
//	handler := ws.NewHandler(streams, metrics, logger)
//	router.GET("/debug/stream", handler.HandleConnection)
package ws
