package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for a single Storage
// Session / transaction.
type LogContext struct {
	TraceID       string    // OpenTelemetry trace ID
	SpanID        string    // OpenTelemetry span ID
	SessionID     string    // Storage Session / transaction id
	OCFLObjectID  string    // OCFL object the current operation targets
	OperationKind string    // Persist operation kind currently dispatched
	StartTime     time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for the given session id
func NewLogContext(sessionID string) *LogContext {
	return &LogContext{
		SessionID: sessionID,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:       lc.TraceID,
		SpanID:        lc.SpanID,
		SessionID:     lc.SessionID,
		OCFLObjectID:  lc.OCFLObjectID,
		OperationKind: lc.OperationKind,
		StartTime:     lc.StartTime,
	}
}

// WithSessionID returns a copy with the session id set
func (lc *LogContext) WithSessionID(sessionID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SessionID = sessionID
	}
	return clone
}

// WithOCFLObjectID returns a copy with the target OCFL object id set
func (lc *LogContext) WithOCFLObjectID(id string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.OCFLObjectID = id
	}
	return clone
}

// WithOperationKind returns a copy with the dispatched operation kind set
func (lc *LogContext) WithOperationKind(kind string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.OperationKind = kind
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
