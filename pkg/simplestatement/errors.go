package simplestatement

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrValidation indicates malformed or unacceptable input
	ErrValidation = errors.New("validation failed")

	// ErrStatementNotFound indicates a statement does not exist or is not visible to the caller
	ErrStatementNotFound = errors.New("statement not found")

	// ErrRateLimited indicates the caller exceeded its quota for the current window
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrVersionConflict indicates the row changed since it was read
	ErrVersionConflict = errors.New("statement version conflict")

	// ErrObjectNotFound indicates an object is missing from the object store
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidStatementStatus indicates an unknown statement status
	ErrInvalidStatementStatus = errors.New("invalid statement status")
)

// ValidationError carries a caller-facing message for a rejected request.
// errors.Is(err, ErrValidation) holds for every ValidationError.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StatementError represents an error related to statement operations
type StatementError struct {
	StatementID uuid.UUID
	Op          string
	Err         error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement operation %s failed for statement %s: %v", e.Op, e.StatementID, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to object store operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
