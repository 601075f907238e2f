package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogCascadeDelete(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(zerolog.New(&buf)).LogCascadeDelete("contributor", 1, 2, 5)

	entry := decodeEntry(t, &buf)
	if entry["event_type"] != "cascade_delete" {
		t.Errorf("event_type = %v, want cascade_delete", entry["event_type"])
	}
	if entry["kind"] != "contributor" {
		t.Errorf("kind = %v, want contributor", entry["kind"])
	}
	if entry["capsules_removed"] != float64(2) || entry["items_removed"] != float64(5) {
		t.Errorf("counts = %v/%v, want 2/5", entry["capsules_removed"], entry["items_removed"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
}

func TestLogMerge(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(zerolog.New(&buf)).LogMerge("01HXYZ", 1, 2, 3)

	entry := decodeEntry(t, &buf)
	if entry["event_type"] != "merge" {
		t.Errorf("event_type = %v, want merge", entry["event_type"])
	}
	if entry["survivor_id"] != float64(1) || entry["removed_id"] != float64(2) {
		t.Errorf("ids = %v/%v, want 1/2", entry["survivor_id"], entry["removed_id"])
	}
	if entry["record_id"] != "01HXYZ" {
		t.Errorf("record_id = %v", entry["record_id"])
	}
}

func TestRejectionsLogAtWarn(t *testing.T) {
	tests := []struct {
		name      string
		log       func(*Logger)
		eventType string
	}{
		{"duplicate", func(l *Logger) { l.LogDuplicateSubmission("item", "abc", 4) }, "duplicate_submission"},
		{"stale", func(l *Logger) { l.LogStaleVersion("capsule", 1, 99, 1) }, "stale_version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewLogger(zerolog.New(&buf)))

			entry := decodeEntry(t, &buf)
			if entry["event_type"] != tt.eventType {
				t.Errorf("event_type = %v, want %s", entry["event_type"], tt.eventType)
			}
			if entry["level"] != "warn" {
				t.Errorf("level = %v, want warn", entry["level"])
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).With().Str("request_id", "r-1").Logger().WithContext(context.Background())

	FromContext(ctx).LogMerge("id", 1, 2, 0)

	entry := decodeEntry(t, &buf)
	if entry["request_id"] != "r-1" {
		t.Errorf("request_id = %v, want r-1", entry["request_id"])
	}

	// A bare context must not panic.
	FromContext(context.Background()).LogMerge("id", 1, 2, 0)
}
