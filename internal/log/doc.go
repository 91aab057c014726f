// Package log provides logging helpers built on the standard slog package,
// with automatic redaction of credential-bearing attributes.
//
// Site configurations may carry cookies and Authorization headers for
// archives that require a login. Those values flow through fetch-level
// debug logging, so the RedactingHandler masks them before they reach the
// underlying handler. Even in verbose mode, credentials are never written
// to logs that may be shared or stored.
//
// Usage:
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
