// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger writing to stderr in console or JSON format,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (InfoKV, WarnKV, etc.).
//
// The packager passes a context through every pipeline step and extracts
// the logger from it, so run-scoped fields such as run_id appear on every line.
package logger
