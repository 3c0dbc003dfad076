package model

import "fmt"

// Standard error codes.
const (
	ErrConfigInvalid    = "CONFIG_INVALID"
	ErrNotFound         = "NOT_FOUND"
	ErrConflict         = "CONFLICT"
	ErrStoreUnavailable = "STORE_UNAVAILABLE"
	ErrChannelRejected  = "CHANNEL_REJECTED"
	ErrDispatchTimeout  = "DISPATCH_TIMEOUT"
	ErrInternalError    = "INTERNAL_ERROR"
)

// ErrorEnvelope is the engine's typed error. It carries a stable code so
// callers and logs can classify failures without string matching.
// It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewConfigInvalidError returns a CONFIG_INVALID error with field details.
func NewConfigInvalidError(msg string, details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConfigInvalid, Message: msg, Details: details}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewStoreUnavailableError returns a STORE_UNAVAILABLE error.
func NewStoreUnavailableError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrStoreUnavailable, Message: msg}
}

// NewChannelRejectedError returns a CHANNEL_REJECTED error.
func NewChannelRejectedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrChannelRejected, Message: msg}
}

// NewDispatchTimeoutError returns a DISPATCH_TIMEOUT error.
func NewDispatchTimeoutError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrDispatchTimeout, Message: msg}
}

// NewInternalError returns an INTERNAL_ERROR error.
func NewInternalError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrInternalError, Message: msg}
}

// CodeOf extracts the error code from err, or INTERNAL_ERROR for untyped
// errors. Nil returns the empty string.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if env, ok := err.(*ErrorEnvelope); ok {
		return env.Code
	}
	return ErrInternalError
}
