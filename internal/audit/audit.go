package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// Logger records structured audit events for operations that touch more than
// one collection or that reject a request on a concurrency precondition.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new audit logger from a zerolog.Logger.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger}
}

// FromContext returns an audit logger writing to the request-scoped logger in ctx.
// Without one attached, events go to zerolog's default context logger (disabled unless configured).
func FromContext(ctx context.Context) *Logger {
	return NewLogger(*zerolog.Ctx(ctx))
}

// LogCascadeDelete logs removal of a root entity and everything it owned.
// kind: "contributor" or "capsule"
func (l *Logger) LogCascadeDelete(kind string, id uint32, capsules, items int) {
	l.logger.Info().
		Str("event_type", "cascade_delete").
		Str("kind", kind).
		Uint32("id", id).
		Int("capsules_removed", capsules).
		Int("items_removed", items).
		Msg("Cascade delete")
}

// LogMerge logs a completed capsule merge.
func (l *Logger) LogMerge(recordID string, survivorID, removedID uint32, itemsMoved int) {
	l.logger.Info().
		Str("event_type", "merge").
		Str("record_id", recordID).
		Uint32("survivor_id", survivorID).
		Uint32("removed_id", removedID).
		Int("items_moved", itemsMoved).
		Msg("Capsules merged")
}

// LogDuplicateSubmission logs a creation request rejected by the idempotency ledger.
func (l *Logger) LogDuplicateSubmission(kind, fingerprint string, existingID uint32) {
	l.logger.Warn().
		Str("event_type", "duplicate_submission").
		Str("kind", kind).
		Str("fingerprint", fingerprint).
		Uint32("existing_id", existingID).
		Msg("Duplicate submission rejected")
}

// LogStaleVersion logs a conditional update rejected because the record moved on.
func (l *Logger) LogStaleVersion(entity string, id, expected, current uint32) {
	l.logger.Warn().
		Str("event_type", "stale_version").
		Str("entity", entity).
		Uint32("id", id).
		Uint32("expected_version", expected).
		Uint32("current_version", current).
		Msg("Stale version rejected")
}
