// Package logging provides structured logging for Taskdesk.
//
// It wraps log/slog so every package logs the same way: JSON in production,
// text during development, with service and version attached to each record.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Attributes named password, password_hash, token, ticket, secret or
// authorization are redacted by the handler. Log user IDs instead.
package logging
