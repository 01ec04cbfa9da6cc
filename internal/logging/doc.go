// Package logging provides structured logging for ssdp-scan.
//
// This package wraps a global zap logger with convenience functions. The
// logger is silent by default so the discovery library can be embedded
// without writing to the console; the CLI enables it from a flag or the
// SSDPSCAN_LOG_LEVEL environment variable.
//
// # Log Levels
//
//   - Debug: Datagram hex/ascii dumps, filter decisions, full request payloads
//   - Info: Search requests sent, websocket connections, server lifecycle
//   - Warn: Non-fatal socket option failures
//   - Error: Server failures
//
// # Structured Logging
//
//	logging.Info("Scan finished",
//	    zap.String("search_target", "ssdp:all"),
//	    zap.Int("devices", 4),
//	)
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Logs go to stderr so they never mix with JSON written to stdout.
package logging
