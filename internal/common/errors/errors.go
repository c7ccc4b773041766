// Package errors provides the standardized error taxonomy for plan generation.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUpstreamGenerationFailed ErrorCode = "UPSTREAM_GENERATION_FAILED"
	ErrCodeUpstreamTimeout          ErrorCode = "UPSTREAM_TIMEOUT"

	ErrCodeInvalidSessionState ErrorCode = "INVALID_SESSION_STATE"
	ErrCodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeInvalidAnswer       ErrorCode = "INVALID_ANSWER"

	ErrCodeSchedulingFailed ErrorCode = "SCHEDULING_FAILED"
	ErrCodeQueueUnavailable ErrorCode = "QUEUE_UNAVAILABLE"
	ErrCodePipelineFatal    ErrorCode = "PIPELINE_FATAL"

	ErrCodePlanNotFound        ErrorCode = "PLAN_NOT_FOUND"
	ErrCodeDatabaseQueryFailed ErrorCode = "DATABASE_QUERY_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeIndexingFailed         ErrorCode = "INDEXING_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. Every StandardError unwraps to the
// sentinel of its code.
var (
	ErrUpstreamGeneration  = stderrors.New(string(ErrCodeUpstreamGenerationFailed))
	ErrUpstreamTimeout     = stderrors.New(string(ErrCodeUpstreamTimeout))
	ErrInvalidSessionState = stderrors.New(string(ErrCodeInvalidSessionState))
	ErrSessionNotFound     = stderrors.New(string(ErrCodeSessionNotFound))
	ErrInvalidAnswer       = stderrors.New(string(ErrCodeInvalidAnswer))
	ErrScheduling          = stderrors.New(string(ErrCodeSchedulingFailed))
	ErrQueueUnavailable    = stderrors.New(string(ErrCodeQueueUnavailable))
	ErrPipelineFatal       = stderrors.New(string(ErrCodePipelineFatal))
	ErrPlanNotFound        = stderrors.New(string(ErrCodePlanNotFound))
	ErrDatabaseQuery       = stderrors.New(string(ErrCodeDatabaseQueryFailed))
	ErrNotificationSend    = stderrors.New(string(ErrCodeNotificationSendFailed))
	ErrIndexing            = stderrors.New(string(ErrCodeIndexingFailed))
)

var sentinels = map[ErrorCode]error{
	ErrCodeUpstreamGenerationFailed: ErrUpstreamGeneration,
	ErrCodeUpstreamTimeout:          ErrUpstreamTimeout,
	ErrCodeInvalidSessionState:      ErrInvalidSessionState,
	ErrCodeSessionNotFound:          ErrSessionNotFound,
	ErrCodeInvalidAnswer:            ErrInvalidAnswer,
	ErrCodeSchedulingFailed:         ErrScheduling,
	ErrCodeQueueUnavailable:         ErrQueueUnavailable,
	ErrCodePipelineFatal:            ErrPipelineFatal,
	ErrCodePlanNotFound:             ErrPlanNotFound,
	ErrCodeDatabaseQueryFailed:      ErrDatabaseQuery,
	ErrCodeNotificationSendFailed:   ErrNotificationSend,
	ErrCodeIndexingFailed:           ErrIndexing,
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes both the code sentinel and the underlying cause.
func (e *StandardError) Unwrap() []error {
	out := make([]error, 0, 2)
	if s, ok := sentinels[e.Code]; ok {
		out = append(out, s)
	}
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return out
}

// WithMetadata attaches a metadata entry and returns the receiver.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 2. Error Constructors
// ==========================

// NewUpstreamGenerationError reports a failed or malformed AI backend call.
func NewUpstreamGenerationError(operation string, err error) *StandardError {
	return newError(ErrCodeUpstreamGenerationFailed, "AI backend call failed",
		fmt.Sprintf("operation: %s, error: %s", operation, detailsOf(err)), true, err).
		WithMetadata("operation", operation)
}

// NewUpstreamTimeoutError reports an AI backend call that exceeded its deadline.
func NewUpstreamTimeoutError(operation string) *StandardError {
	return newError(ErrCodeUpstreamTimeout, "AI backend call timed out",
		fmt.Sprintf("operation: %s", operation), true, ErrUpstreamGeneration).
		WithMetadata("operation", operation)
}

// NewInvalidSessionStateError reports a questioning protocol violation.
func NewInvalidSessionStateError(details string) *StandardError {
	return newError(ErrCodeInvalidSessionState, "Operation not allowed in current session state", details, false, nil)
}

func NewSessionNotFoundError(token string) *StandardError {
	return newError(ErrCodeSessionNotFound, "Questioning session not found",
		fmt.Sprintf("token: %s", token), false, nil)
}

func NewInvalidAnswerError(details string) *StandardError {
	return newError(ErrCodeInvalidAnswer, "Answer is not acceptable", details, false, nil)
}

// NewSchedulingError reports an execution strategy that could not schedule its task.
func NewSchedulingError(strategy string, err error) *StandardError {
	return newError(ErrCodeSchedulingFailed, "Generation task could not be scheduled",
		fmt.Sprintf("strategy: %s, error: %s", strategy, detailsOf(err)), true, err).
		WithMetadata("strategy", strategy)
}

func NewQueueUnavailableError(category string, err error) *StandardError {
	return newError(ErrCodeQueueUnavailable, "Task queue unavailable",
		fmt.Sprintf("category: %s, error: %s", category, detailsOf(err)), true, err)
}

// NewPipelineFatalError reports a failure outside any stage's own fallback scope.
func NewPipelineFatalError(planID string, err error) *StandardError {
	return newError(ErrCodePipelineFatal, "Plan generation failed",
		fmt.Sprintf("planId: %s, error: %s", planID, detailsOf(err)), false, err).
		WithMetadata("planId", planID)
}

func NewPlanNotFoundError(planID string) *StandardError {
	return newError(ErrCodePlanNotFound, "Plan not found", fmt.Sprintf("planId: %s", planID), false, nil)
}

func NewDatabaseQueryError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseQueryFailed, "Database operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, detailsOf(err)), true, err)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, detailsOf(err)), true, err)
}

func NewIndexingFailedError(planID string, err error) *StandardError {
	return newError(ErrCodeIndexingFailed, "Plan indexing failed",
		fmt.Sprintf("planId: %s, error: %s", planID, detailsOf(err)), true, err)
}

// ==========================
// 3. User-facing payloads
// ==========================

// FailurePayload is what gets persisted next to a failed plan. It never
// carries provider error text.
type FailurePayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// GenericFailurePayload returns the payload written with status failed.
func GenericFailurePayload() FailurePayload {
	return FailurePayload{
		Code:    ErrCodePipelineFatal,
		Message: "Plan generation failed. Please try again.",
	}
}

// ==========================
// 4. Helpers
// ==========================

// CodeOf returns the code of a StandardError anywhere in err's chain.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// Is and As re-export the standard helpers so callers importing this
// package under the name errors keep access to them.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }

func New(text string) error { return stderrors.New(text) }
