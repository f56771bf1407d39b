package audit

import (
	"context"
	"fmt"
	"log/slog"

	"memberpass/pkg/platform/middleware/request"
	"memberpass/pkg/platform/middleware/requesttime"
)

// Emitter is satisfied by Publisher.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Logger writes an audit line to the structured log and, when an emitter is
// configured, records the same event in the audit store.
type Logger struct {
	textLogger *slog.Logger
	emitter    Emitter
}

// NewLogger accepts nil for either sink.
func NewLogger(textLogger *slog.Logger, emitter Emitter) *Logger {
	return &Logger{textLogger: textLogger, emitter: emitter}
}

// Log records event with alternating key/value attributes. The "principal"
// attribute, when present, becomes the event's principal.
//
//	l.Log(ctx, string(audit.EventPassMinted), "principal", p, "tier", "Gold")
func (l *Logger) Log(ctx context.Context, event string, attributes ...any) {
	if l == nil {
		return
	}
	requestID := request.GetRequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	l.logToText(ctx, event, attributes)
	l.emitToAudit(ctx, event, requestID, attributes)
}

func (l *Logger) logToText(ctx context.Context, event string, attributes []any) {
	if l.textLogger == nil {
		return
	}
	args := append(attributes, "event", event, "log_type", "audit")
	l.textLogger.InfoContext(ctx, event, args...)
}

func (l *Logger) emitToAudit(ctx context.Context, event, requestID string, attributes []any) {
	if l.emitter == nil {
		return
	}
	fields := toFields(attributes)
	principal := fields["principal"]
	delete(fields, "principal")
	delete(fields, "request_id")

	err := l.emitter.Emit(ctx, Event{
		Timestamp:  requesttime.Now(ctx),
		Principal:  principal,
		Action:     event,
		RequestID:  requestID,
		Attributes: fields,
	})
	if err != nil && l.textLogger != nil {
		l.textLogger.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"event", event,
		)
	}
}

func toFields(attributes []any) map[string]string {
	fields := make(map[string]string, len(attributes)/2)
	for i := 0; i+1 < len(attributes); i += 2 {
		key, ok := attributes[i].(string)
		if !ok {
			continue
		}
		fields[key] = fmt.Sprint(attributes[i+1])
	}
	return fields
}
