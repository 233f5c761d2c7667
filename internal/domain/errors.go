package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	// Status carries the upstream HTTP status for provider errors, 0 otherwise.
	Status int
	Err    error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeCredentialMissing = "CREDENTIAL_MISSING"
	ErrCodeProvider          = "PROVIDER_ERROR"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeNetwork           = "NETWORK_ERROR"
	ErrCodeMalformedFrame    = "MALFORMED_FRAME"
	ErrCodeDimensionMismatch = "DIMENSION_MISMATCH"
)

// Validation errors
var (
	ErrInvalidKnowledgeItemType = NewDomainError(ErrCodeValidation, "invalid knowledge item type")
	ErrEmptyText                = NewDomainError(ErrCodeValidation, "text cannot be empty")
	ErrMissingRequiredField     = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrKnowledgeItemNotFound = NewDomainError(ErrCodeNotFound, "knowledge item not found")
	ErrProjectNotFound       = NewDomainError(ErrCodeNotFound, "project not found")
)

// Provider errors. All of these are recoverable: the orchestrator degrades to
// a canned response instead of surfacing them to the end user.
var (
	ErrCredentialMissing = NewDomainError(ErrCodeCredentialMissing, "no provider API key configured")
	ErrRateLimited       = &DomainError{Code: ErrCodeRateLimited, Message: "provider rate limit exceeded", Status: 429}
)

// NewProviderError creates a DomainError for a non-2xx provider response,
// carrying the upstream status and message for logging.
func NewProviderError(status int, message string) *DomainError {
	if status == 429 {
		return &DomainError{Code: ErrCodeRateLimited, Message: message, Status: status}
	}
	return &DomainError{Code: ErrCodeProvider, Message: message, Status: status}
}

// NewNetworkError wraps a connection, DNS, or timeout failure.
func NewNetworkError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeNetwork, "provider unreachable", err)
}

// ErrorCode extracts the domain error code from err, walking the wrap chain.
// Returns empty string for non-domain errors.
func ErrorCode(err error) string {
	for err != nil {
		if de, ok := err.(*DomainError); ok {
			return de.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
