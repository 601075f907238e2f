package errors

import (
	"fmt"
	"testing"
)

func TestKeepsakeError_Error(t *testing.T) {
	err := &KeepsakeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "capsule not found: 7",
	}

	expected := "NOT_FOUND: capsule not found: 7"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("name is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "name is required" {
		t.Errorf("Message = %q, want %q", err.Message, "name is required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("capsule", 42)

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["entity"] != "capsule" {
		t.Errorf("Details[entity] = %v, want %q", err.Details["entity"], "capsule")
	}
	if err.Details["id"] != uint32(42) {
		t.Errorf("Details[id] = %v, want 42", err.Details["id"])
	}
}

func TestNewItemNotInCapsule(t *testing.T) {
	err := NewItemNotInCapsule(3, 9)

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Details["capsule_id"] != uint32(3) {
		t.Errorf("Details[capsule_id] = %v, want 3", err.Details["capsule_id"])
	}
	if err.Message != "no item with ID 9 found in capsule 3" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestReferenceNotFound(t *testing.T) {
	if err := NewContributorNotFound(5); err.Code != ErrContributorNotFound || err.Status != 404 {
		t.Errorf("NewContributorNotFound = %s/%d", err.Code, err.Status)
	}
	if err := NewCapsuleNotFound(5); err.Code != ErrCapsuleNotFound || err.Status != 404 {
		t.Errorf("NewCapsuleNotFound = %s/%d", err.Code, err.Status)
	}
}

func TestNewEmailInUse(t *testing.T) {
	err := NewEmailInUse("a@x.com")

	if err.Code != ErrEmailInUse {
		t.Errorf("Code = %q, want %q", err.Code, ErrEmailInUse)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
	if err.Details["email"] != "a@x.com" {
		t.Errorf("Details[email] = %v, want %q", err.Details["email"], "a@x.com")
	}
}

func TestNewDuplicateSubmission(t *testing.T) {
	err := NewDuplicateSubmission("item", "abc123", 11)

	if err.Code != ErrDuplicateSubmission {
		t.Errorf("Code = %q, want %q", err.Code, ErrDuplicateSubmission)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
	if err.Details["existing_id"] != uint32(11) {
		t.Errorf("Details[existing_id] = %v, want 11", err.Details["existing_id"])
	}
	if err.Details["fingerprint"] != "abc123" {
		t.Errorf("Details[fingerprint] = %v, want abc123", err.Details["fingerprint"])
	}
}

func TestVersionErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    *KeepsakeError
		code   ErrorCode
		status int
	}{
		{"conflict request", NewVersionConflictRequest(1, 2), ErrVersionConflictRequest, 409},
		{"stale", NewStaleVersion("capsule", 1, 99, 1), ErrStaleVersion, 409},
		{"required", NewVersionRequired(), ErrVersionRequired, 412},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
		})
	}

	stale := NewStaleVersion("item", 4, 2, 3)
	if stale.Details["expected_version"] != uint32(2) || stale.Details["current_version"] != uint32(3) {
		t.Errorf("stale details = %v", stale.Details)
	}
}

func TestPreconditionErrors(t *testing.T) {
	closed := NewModificationWindowClosed(8, "2024-01-08T00:00:00Z")
	if closed.Code != ErrModificationWindowClosed || closed.Status != 412 {
		t.Errorf("window closed = %s/%d", closed.Code, closed.Status)
	}
	if closed.Details["time_until_changed"] != "2024-01-08T00:00:00Z" {
		t.Errorf("Details[time_until_changed] = %v", closed.Details["time_until_changed"])
	}

	noop := NewNoOpUpdate()
	if noop.Code != ErrNoOpUpdate || noop.Status != 412 {
		t.Errorf("no-op = %s/%d", noop.Code, noop.Status)
	}
}

func TestNewDifferentOwners(t *testing.T) {
	err := NewDifferentOwners(1, 2)

	if err.Code != ErrDifferentOwners {
		t.Errorf("Code = %q, want %q", err.Code, ErrDifferentOwners)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
}

func TestNewIDSpaceExhausted(t *testing.T) {
	err := NewIDSpaceExhausted("items")

	if err.Code != ErrIDSpaceExhausted {
		t.Errorf("Code = %q, want %q", err.Code, ErrIDSpaceExhausted)
	}
	if err.Class() != ClassInternal {
		t.Errorf("Class() = %q, want %q", err.Class(), ClassInternal)
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		err := NewInternal(fmt.Errorf("lock poisoned"))

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Status != 500 {
			t.Errorf("Status = %d, want 500", err.Status)
		}
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details["internal_error"] != "lock poisoned" {
			t.Errorf("Details[internal_error] = %v, want %q", err.Details["internal_error"], "lock poisoned")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Details == nil {
			t.Error("Details should not be nil")
		}
		if _, ok := err.Details["internal_error"]; ok {
			t.Error("Details[internal_error] should be absent")
		}
	})
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"not found", NewNotFound("item", 1), ClassNotFound},
		{"conflict", NewEmailInUse("a@x.com"), ClassConflict},
		{"precondition", NewNoOpUpdate(), ClassPreconditionFailed},
		{"invalid", NewInvalidRequest("bad"), ClassInvalid},
		{"wrapped", fmt.Errorf("merge: %w", NewDifferentOwners(1, 2)), ClassConflict},
		{"foreign", fmt.Errorf("plain"), ClassInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.want {
				t.Errorf("ClassOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		err := NewNotFound("capsule", 1)
		if !Is(err, ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		err := NewNotFound("capsule", 1)
		if Is(err, ErrStaleVersion) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("non-KeepsakeError", func(t *testing.T) {
		err := fmt.Errorf("plain error")
		if Is(err, ErrNotFound) {
			t.Error("Is() = true, want false for non-KeepsakeError")
		}
	})

	t.Run("wrapped KeepsakeError", func(t *testing.T) {
		wrapped := fmt.Errorf("capsules[0]: %w", NewNotFound("capsule", 1))
		if !Is(wrapped, ErrNotFound) {
			t.Error("Is() = false, want true for wrapped KeepsakeError")
		}
		if CodeOf(wrapped) != ErrNotFound {
			t.Errorf("CodeOf() = %q, want %q", CodeOf(wrapped), ErrNotFound)
		}
	})

	t.Run("CodeOf foreign", func(t *testing.T) {
		if CodeOf(fmt.Errorf("boom")) != ErrInternal {
			t.Error("CodeOf() should default to INTERNAL")
		}
	})
}
