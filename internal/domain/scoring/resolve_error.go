package scoring

import (
	"errors"
	"fmt"
)

// ErrReconciliation marks a double meta-scoring failure, the one hard
// failure the pipeline may propagate.
var ErrReconciliation = errors.New("reconciliation failed")

// ResolveCode classifies a task source resolution failure.
type ResolveCode string

// Resolve error codes. These are stable and surface in API responses.
const (
	CodeInvalidParameters ResolveCode = "INVALID_PARAMETERS"
	CodeRoleNotFound      ResolveCode = "ROLE_NOT_FOUND"
	CodeWorkflowNotFound  ResolveCode = "WORKFLOW_NOT_FOUND"
	CodeAPIError          ResolveCode = "API_ERROR"
	CodeTimeout           ResolveCode = "TIMEOUT"
	CodeDatabaseError     ResolveCode = "DATABASE_ERROR"
	CodeInternalError     ResolveCode = "INTERNAL_ERROR"
)

// ResolveError is the structured failure returned by the task source
// resolver. Callers decide whether to surface or degrade.
type ResolveError struct {
	Code    ResolveCode
	Message string
	Cause   error
}

func (e *ResolveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *ResolveError) Unwrap() error { return e.Cause }

// NewResolveError builds a ResolveError with an optional cause.
func NewResolveError(code ResolveCode, message string, cause error) *ResolveError {
	return &ResolveError{Code: code, Message: message, Cause: cause}
}
