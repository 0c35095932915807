package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/babel/internal/ir"
)

// EngineError represents a failure detected while linking, synchronizing,
// reordering or duplicating replicas.
//
// Most engine failures are contained: they are logged and the affected unit
// (one sibling, one field, one link set) is skipped. EngineError is what gets
// logged, joined into returned errors, or surfaced when the failure is the
// caller's to handle (duplication, link conflicts).
type EngineError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ReplicaID identifies the affected replica, if any.
	ReplicaID int64

	// Namespace identifies the affected context, if any.
	Namespace string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a replica could not be loaded.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeMalformedLinkEntry indicates a corrupt persisted link string.
	ErrCodeMalformedLinkEntry ErrorCode = "MALFORMED_LINK_ENTRY"

	// ErrCodeCrossNamespaceMove indicates a reorder moved a replica to another context.
	ErrCodeCrossNamespaceMove ErrorCode = "UNSUPPORTED_CROSS_NAMESPACE_MOVE"

	// ErrCodeUnknownFieldKind indicates an attribute kind in neither policy set.
	ErrCodeUnknownFieldKind ErrorCode = "UNKNOWN_FIELD_KIND"

	// ErrCodePersistenceFailure indicates a replica or slot write failed.
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"

	// ErrCodeDuplicationFailed indicates a duplicate could not be created.
	ErrCodeDuplicationFailed ErrorCode = "DUPLICATION_FAILED"

	// ErrCodeNamespaceConflict indicates a group already holds a replica for the context.
	ErrCodeNamespaceConflict ErrorCode = "NAMESPACE_CONFLICT"

	// ErrCodeNamespaceNotInGroup indicates a context outside the configured group.
	ErrCodeNamespaceNotInGroup ErrorCode = "NAMESPACE_NOT_IN_GROUP"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.ReplicaID != 0 && e.Namespace != "":
		msg = fmt.Sprintf("%s (replica=%d, context=%s)", msg, e.ReplicaID, e.Namespace)
	case e.ReplicaID != 0:
		msg = fmt.Sprintf("%s (replica=%d)", msg, e.ReplicaID)
	case e.Namespace != "":
		msg = fmt.Sprintf("%s (context=%s)", msg, e.Namespace)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// IsNotFound returns true if err is, or wraps, a missing-replica error.
// Matches both EngineError codes and the ir.ErrNotFound sentinel.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound) || errors.Is(err, ir.ErrNotFound)
}

// IsMalformedLinkEntry returns true if err reports a corrupt link string.
func IsMalformedLinkEntry(err error) bool {
	return hasCode(err, ErrCodeMalformedLinkEntry) || errors.Is(err, ir.ErrMalformedLinkEntry)
}

// IsCrossNamespaceMove returns true if err reports a rejected cross-context move.
func IsCrossNamespaceMove(err error) bool {
	return hasCode(err, ErrCodeCrossNamespaceMove)
}

// IsUnknownFieldKind returns true if err reports schema drift.
func IsUnknownFieldKind(err error) bool {
	return hasCode(err, ErrCodeUnknownFieldKind)
}

// IsPersistenceFailure returns true if err reports a failed write.
func IsPersistenceFailure(err error) bool {
	return hasCode(err, ErrCodePersistenceFailure)
}

// IsDuplicationFailed returns true if err reports a failed duplication.
func IsDuplicationFailed(err error) bool {
	return hasCode(err, ErrCodeDuplicationFailed)
}

// IsNamespaceConflict returns true if err reports a context already taken.
func IsNamespaceConflict(err error) bool {
	return hasCode(err, ErrCodeNamespaceConflict)
}

// IsNamespaceNotInGroup returns true if err reports a context outside the group.
func IsNamespaceNotInGroup(err error) bool {
	return hasCode(err, ErrCodeNamespaceNotInGroup)
}

// NewNotFoundError creates an EngineError for a replica that failed to load.
func NewNotFoundError(id int64, err error) *EngineError {
	return &EngineError{
		Code:      ErrCodeNotFound,
		Message:   "replica could not be loaded",
		ReplicaID: id,
		Err:       err,
	}
}

// NewMalformedLinkError creates an EngineError for a corrupt link slot.
func NewMalformedLinkError(id int64, err error) *EngineError {
	return &EngineError{
		Code:      ErrCodeMalformedLinkEntry,
		Message:   "link slot could not be decoded",
		ReplicaID: id,
		Err:       err,
	}
}

// NewCrossNamespaceMoveError creates an EngineError for a rejected reorder.
func NewCrossNamespaceMoveError(id int64, from, to string) *EngineError {
	return &EngineError{
		Code:      ErrCodeCrossNamespaceMove,
		Message:   fmt.Sprintf("cannot reorder across contexts (%s -> %s)", from, to),
		ReplicaID: id,
		Namespace: to,
	}
}

// NewUnknownFieldKindError creates an EngineError for an unclassified attribute.
func NewUnknownFieldKindError(field string, kind ir.FieldKind) *EngineError {
	return &EngineError{
		Code:    ErrCodeUnknownFieldKind,
		Message: fmt.Sprintf("unknown field kind %q for field %q", kind, field),
	}
}

// NewPersistenceError creates an EngineError for a failed write.
func NewPersistenceError(id int64, err error) *EngineError {
	return &EngineError{
		Code:      ErrCodePersistenceFailure,
		Message:   "replica could not be saved",
		ReplicaID: id,
		Err:       err,
	}
}

// NewDuplicationError creates an EngineError for a failed duplication.
func NewDuplicationError(sourceID int64, ns string, err error) *EngineError {
	return &EngineError{
		Code:      ErrCodeDuplicationFailed,
		Message:   "could not duplicate replica",
		ReplicaID: sourceID,
		Namespace: ns,
		Err:       err,
	}
}
