package observability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
)

// Attribute keys that never reach the log in clear.
var (
	hashedKeys   = map[string]bool{"user_id": true, "session_id": true}
	redactedKeys = map[string]bool{"text": true, "message": true}
)

// basic global logger, JSON to stdout.
var logger = NewLogger(os.Stdout, "info")

// NewLogger builds the JSON logger. User and session IDs are hashed and
// message text is redacted before it is written.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: sanitize,
	}))
}

// SetLogger replaces the global logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func sanitize(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	key := strings.ToLower(a.Key)
	switch {
	case redactedKeys[key]:
		return slog.String(a.Key, "[REDACTED]")
	case hashedKeys[key]:
		return slog.String(a.Key, HashID(a.Value.String()))
	}
	return a
}

// HashID shortens an identifier to a stable, non-reversible token.
func HashID(id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:6])
}

func Logger() *slog.Logger {
	return logger
}

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return logger.With(kv...)
}

// WithRequestID stores a request_id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestID returns the request_id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	reqID, _ := ctx.Value(ctxKeyRequestID).(string)
	return reqID
}

// LoggerFromContext adds request_id if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	reqID := RequestID(ctx)
	if reqID == "" {
		return logger
	}
	return logger.With("request_id", reqID)
}
