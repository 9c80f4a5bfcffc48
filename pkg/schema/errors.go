package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeUnknownAction = "UNKNOWN_ACTION"
	ErrCodeTemplate      = "TEMPLATE_ERROR"
	ErrCodeActionFailed  = "ACTION_FAILED"
	ErrCodeCycleDetected = "CYCLE_DETECTED"
	ErrCodeDepthExceeded = "DEPTH_EXCEEDED"
	ErrCodeTimeout       = "TIMEOUT_ERROR"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeStopped       = "STOPPED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeStore         = "STORE_ERROR"
	ErrCodeExecution     = "EXECUTION_ERROR"
)

// FlowtError is the structured error type for all engine operations.
type FlowtError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	StepID  string         `json:"step_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *FlowtError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *FlowtError) Unwrap() error {
	return e.Cause
}

// NewError creates a new FlowtError.
func NewError(code, message string) *FlowtError {
	return &FlowtError{Code: code, Message: message}
}

// NewErrorf creates a new FlowtError with a formatted message.
func NewErrorf(code, format string, args ...any) *FlowtError {
	return &FlowtError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a step ID to the error.
func (e *FlowtError) WithStep(stepID string) *FlowtError {
	e.StepID = stepID
	return e
}

// WithCause attaches an underlying cause.
func (e *FlowtError) WithCause(err error) *FlowtError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *FlowtError) WithDetails(details map[string]any) *FlowtError {
	e.Details = details
	return e
}
