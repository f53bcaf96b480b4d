// Package logging provides structured logging for the MQTT samples.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - Text output for console samples (human-readable, the default)
//   - JSON output for log shipping (machine-parsable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0").Component("requestor")
//	logger.Info("connecting", "broker", "tcp://localhost:1883")
//	logger.Error("failed to connect", "error", err)
//
// # Security
//
// Never log broker passwords. Log the username and endpoint only.
package logging
