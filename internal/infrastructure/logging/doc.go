// Package logging provides structured logging for Gray Logic Persist.
//
// This package wraps Go's standard log/slog package so every component
// (pool, runner, schema registry, admin API) logs with the same shape.
//
// # Features
//
//   - JSON output for production, text output for development
//   - Default fields (service, version) on all log entries
//   - Per-component child loggers via Component
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("schema").Warn("table version mismatch", "table", "audit_logs")
//
// # Security
//
// Never log DSNs, tokens or passwords.
package logging
