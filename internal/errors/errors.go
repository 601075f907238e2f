package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Keepsake error code.
type ErrorCode string

const (
	ErrInvalidRequest           ErrorCode = "INVALID_REQUEST"            // 400
	ErrNotFound                 ErrorCode = "NOT_FOUND"                  // 404
	ErrContributorNotFound      ErrorCode = "CONTRIBUTOR_NOT_FOUND"      // 404
	ErrCapsuleNotFound          ErrorCode = "CAPSULE_NOT_FOUND"          // 404
	ErrEmailInUse               ErrorCode = "EMAIL_IN_USE"               // 409
	ErrDuplicateSubmission      ErrorCode = "DUPLICATE_SUBMISSION"       // 409
	ErrVersionConflictRequest   ErrorCode = "VERSION_CONFLICT_REQUEST"   // 409
	ErrStaleVersion             ErrorCode = "STALE_VERSION"              // 409
	ErrDifferentOwners          ErrorCode = "DIFFERENT_OWNERS"           // 409
	ErrVersionRequired          ErrorCode = "VERSION_REQUIRED"           // 412
	ErrModificationWindowClosed ErrorCode = "MODIFICATION_WINDOW_CLOSED" // 412
	ErrNoOpUpdate               ErrorCode = "NO_OP_UPDATE"               // 412
	ErrIDSpaceExhausted         ErrorCode = "ID_SPACE_EXHAUSTED"         // 500
	ErrInternal                 ErrorCode = "INTERNAL"                   // 500
)

// Class groups error codes into the coarse taxonomy callers branch on.
type Class string

const (
	ClassNotFound           Class = "not_found"
	ClassConflict           Class = "conflict"
	ClassPreconditionFailed Class = "precondition_failed"
	ClassInvalid            Class = "invalid"
	ClassInternal           Class = "internal"
)

// KeepsakeError represents a structured error with code, status, and details.
type KeepsakeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *KeepsakeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Class returns the taxonomy class of the error, derived from its status.
func (e *KeepsakeError) Class() Class {
	switch e.Status {
	case 404:
		return ClassNotFound
	case 409:
		return ClassConflict
	case 412:
		return ClassPreconditionFailed
	case 400:
		return ClassInvalid
	default:
		return ClassInternal
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *KeepsakeError {
	return &KeepsakeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for an addressed entity that does not exist.
// entity is a lowercase noun such as "capsule" or "item".
func NewNotFound(entity string, id uint32) *KeepsakeError {
	return &KeepsakeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %d", entity, id),
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// NewItemNotInCapsule creates a 404 error for an item that is absent or not owned by the capsule.
func NewItemNotInCapsule(capsuleID, itemID uint32) *KeepsakeError {
	return &KeepsakeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("no item with ID %d found in capsule %d", itemID, capsuleID),
		Details: map[string]any{"entity": "item", "id": itemID, "capsule_id": capsuleID},
	}
}

// NewContributorNotFound creates a 404 error for a referenced owner that does not exist.
func NewContributorNotFound(id uint32) *KeepsakeError {
	return &KeepsakeError{
		Code:    ErrContributorNotFound,
		Status:  404,
		Message: fmt.Sprintf("contributor not found: %d", id),
		Details: map[string]any{"contributor_id": id},
	}
}

// NewCapsuleNotFound creates a 404 error for a referenced parent capsule that does not exist.
func NewCapsuleNotFound(id uint32) *KeepsakeError {
	return &KeepsakeError{
		Code:    ErrCapsuleNotFound,
		Status:  404,
		Message: fmt.Sprintf("capsule not found: %d", id),
		Details: map[string]any{"capsule_id": id},
	}
}

// NewEmailInUse creates a 409 error when an email already belongs to a live contributor.
func NewEmailInUse(email string) *KeepsakeError {
	return &KeepsakeError{
		Code:    ErrEmailInUse,
		Status:  409,
		Message: fmt.Sprintf("email already in use: %s", email),
		Details: map[string]any{"email": email},
	}
}

// NewDuplicateSubmission creates a 409 error for a creation request whose fingerprint was already recorded.
func NewDuplicateSubmission(kind, fingerprint string, existingID uint32) *KeepsakeError {
	return &KeepsakeError{
		Code:    ErrDuplicateSubmission,
		Status:  409,
		Message: fmt.Sprintf("duplicate %s submission detected", kind),
		Details: map[string]any{"kind": kind, "fingerprint": fingerprint, "existing_id": existingID},
	}
}

// NewVersionConflictRequest creates a 409 error when etag and body version disagree.
func NewVersionConflictRequest(etag, bodyVersion uint32) *KeepsakeError {
	return &KeepsakeError{
		Code:    ErrVersionConflictRequest,
		Status:  409,
		Message: fmt.Sprintf("etag %d and body version %d disagree", etag, bodyVersion),
		Details: map[string]any{"etag": etag, "body_version": bodyVersion},
	}
}

// NewStaleVersion creates a 409 error when the expected version no longer matches the record.
func NewStaleVersion(entity string, id, expected, current uint32) *KeepsakeError {
	return &KeepsakeError{
		Code:    ErrStaleVersion,
		Status:  409,
		Message: fmt.Sprintf("version mismatch for %s %d: expected %d, current %d", entity, id, expected, current),
		Details: map[string]any{
			"entity":           entity,
			"id":               id,
			"expected_version": expected,
			"current_version":  current,
		},
	}
}

// NewDifferentOwners creates a 409 error when merging capsules owned by different contributors.
func NewDifferentOwners(capsuleID1, capsuleID2 uint32) *KeepsakeError {
	return &KeepsakeError{
		Code:    ErrDifferentOwners,
		Status:  409,
		Message: fmt.Sprintf("capsules %d and %d belong to different contributors", capsuleID1, capsuleID2),
		Details: map[string]any{"capsule_id_1": capsuleID1, "capsule_id_2": capsuleID2},
	}
}

// NewVersionRequired creates a 412 error when neither etag nor body version was supplied.
func NewVersionRequired() *KeepsakeError {
	return &KeepsakeError{
		Code:    ErrVersionRequired,
		Status:  412,
		Message: "a version is required: pass etag or include version in the body",
	}
}

// NewModificationWindowClosed creates a 412 error once a capsule's modification deadline has passed.
func NewModificationWindowClosed(capsuleID uint32, deadline string) *KeepsakeError {
	return &KeepsakeError{
		Code:    ErrModificationWindowClosed,
		Status:  412,
		Message: fmt.Sprintf("the modification period for capsule %d has expired", capsuleID),
		Details: map[string]any{"capsule_id": capsuleID, "time_until_changed": deadline},
	}
}

// NewNoOpUpdate creates a 412 error when a patch carries no usable field.
func NewNoOpUpdate() *KeepsakeError {
	return &KeepsakeError{
		Code:    ErrNoOpUpdate,
		Status:  412,
		Message: "no valid fields provided for update",
	}
}

// NewIDSpaceExhausted creates a 500 error when a collection has allocated its last id.
func NewIDSpaceExhausted(collection string) *KeepsakeError {
	return &KeepsakeError{
		Code:    ErrIDSpaceExhausted,
		Status:  500,
		Message: fmt.Sprintf("%s id space exhausted", collection),
		Details: map[string]any{"collection": collection},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details for logging.
func NewInternal(err error) *KeepsakeError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &KeepsakeError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// As extracts a KeepsakeError from err, following wrap chains.
func As(err error) (*KeepsakeError, bool) {
	var kErr *KeepsakeError
	if stderrors.As(err, &kErr) {
		return kErr, true
	}
	return nil, false
}

// Is checks if an error is a KeepsakeError with the given code.
func Is(err error, code ErrorCode) bool {
	if kErr, ok := As(err); ok {
		return kErr.Code == code
	}
	return false
}

// ClassOf returns the taxonomy class of err. Non-Keepsake errors are internal.
func ClassOf(err error) Class {
	if kErr, ok := As(err); ok {
		return kErr.Class()
	}
	return ClassInternal
}

// CodeOf returns the error code of err, or ErrInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if kErr, ok := As(err); ok {
		return kErr.Code
	}
	return ErrInternal
}
