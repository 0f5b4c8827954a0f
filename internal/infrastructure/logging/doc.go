// Package logging provides structured logging for the NHC2 bus.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the bus, the command buffer,
// and the command-line tool.
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
//	logger.Info("controller connected", "host", cfg.Controller.Host)
//	logger.Error("flush failed", "error", err)
//
// # Security
//
// Never log the controller password (a long-lived JWT).
package logging
