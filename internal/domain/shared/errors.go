package shared

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if !errors.As(target, &de) {
		return false
	}
	return de.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error carrying the given cause
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Error codes
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeDuplicateName     = "DUPLICATE_NAME"
	CodeConflict          = "CONCURRENCY_CONFLICT"
	CodeReferentNotFound  = "REFERENT_NOT_FOUND"
	CodeStoreIO           = "STORE_IO"
	CodeMigrationFailed   = "MIGRATION_FAILED"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeInvalidSelector   = "INVALID_SELECTOR"
	CodeStoreNotOpen      = "STORE_NOT_OPEN"
	CodeForbidden         = "FORBIDDEN"
)

// Common domain errors
var (
	ErrNotFound          = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput      = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrDuplicateName     = NewDomainError(CodeDuplicateName, "Name already exists in this workspace")
	ErrConflict          = NewDomainError(CodeConflict, "Resource was modified by another process")
	ErrReferentNotFound  = NewDomainError(CodeReferentNotFound, "Referenced entity does not exist")
	ErrStoreIO           = NewDomainError(CodeStoreIO, "Storage operation failed")
	ErrMigrationFailed   = NewDomainError(CodeMigrationFailed, "Schema migration failed")
	ErrInsufficientStock = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrInvalidSelector   = NewDomainError(CodeInvalidSelector, "Invalid workspace selector")
	ErrStoreNotOpen      = NewDomainError(CodeStoreNotOpen, "Store has not been opened")
	ErrForbidden         = NewDomainError(CodeForbidden, "Operation not permitted")
)

// ConflictError is returned when a guarded mutation carries a stale version.
// Callers are expected to refresh their state and retry.
type ConflictError struct {
	Entity   string
	EntityID int64
	Expected int
	Actual   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %d was modified by another process (expected version %d, current %d)",
		e.Entity, e.EntityID, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrConflict) hold for conflict errors
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// StatusCode is the status collaborating layers use to prompt a refresh
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Retryable always reports true; a conflict never leaves partial state behind.
func (e *ConflictError) Retryable() bool {
	return true
}

// NewConflictError creates a new ConflictError
func NewConflictError(entity string, id int64, expected, actual int) *ConflictError {
	return &ConflictError{Entity: entity, EntityID: id, Expected: expected, Actual: actual}
}

// IsRetryable reports whether err is a stale-state error the caller may retry
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}
