// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components take a *zap.Logger and attach the stream they work on with
// StreamFields, so every line of one proxied response can be grepped by
// stream_id.
//
// Example Usage:
//
//	logger, err := logging.New(logging.FromConfig(cfg.Logging))
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.Named("proxy").Info("stream closed", logging.StreamFields(id, path)...)
package logging
