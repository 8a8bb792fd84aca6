// Package logger builds configured slog.Logger instances: JSON or text
// output, static attributes, and optional context-value injection for
// request-scoped fields such as request ids.
package logger
