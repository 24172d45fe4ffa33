package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// ValidationError reports a missing or malformed input field. It is always
// returned before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AuthorizationError reports that the actor may not perform the operation.
// Status is 401 for missing capabilities and 403 for ownership failures.
type AuthorizationError struct {
	Code    string
	Message string
	Status  int
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

func missingCapability(message string) *AuthorizationError {
	return &AuthorizationError{Code: "UNAUTHORIZED", Message: message, Status: http.StatusUnauthorized}
}

func forbidden(message string) *AuthorizationError {
	return &AuthorizationError{Code: "FORBIDDEN", Message: message, Status: http.StatusForbidden}
}

// NotFoundError reports an unknown (or invisible to the actor) resource.
type NotFoundError struct {
	Resource string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Resource + " not found"
}

// Code is the machine readable error code, e.g. INTERVENTION_NOT_FOUND.
func (e *NotFoundError) Code() string {
	return strings.ToUpper(strings.ReplaceAll(e.Resource, " ", "_")) + "_NOT_FOUND"
}

func notFound(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// StateConflictError reports an operation that is well formed but not
// allowed in the resource's current state.
type StateConflictError struct {
	Code    string
	Message string
}

func (e *StateConflictError) Error() string {
	return e.Message
}

// isRecordNotFound reports whether err is a gorm missing-row error.
func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isDuplicateKey recognises unique violations from both PostgreSQL and
// SQLite, whether or not the driver error was translated by gorm.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
