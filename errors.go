package schnorrkel

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of a signing error
type ErrorCategory string

const (
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryParticipant   ErrorCategory = "participant"
	ErrorCategoryCryptographic ErrorCategory = "cryptographic"
	ErrorCategoryKeyGeneration ErrorCategory = "key_generation"
	ErrorCategoryNonce         ErrorCategory = "nonce"
	ErrorCategorySigning       ErrorCategory = "signing"
	ErrorCategoryAggregation   ErrorCategory = "aggregation"
	ErrorCategoryVerification  ErrorCategory = "verification"
	ErrorCategoryInternal      ErrorCategory = "internal"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	ErrorSeverityLow      ErrorSeverity = "low"      // Non-critical, operation can continue
	ErrorSeverityMedium   ErrorSeverity = "medium"   // Caller mistake, retry with corrected input
	ErrorSeverityHigh     ErrorSeverity = "high"     // Operation must stop
	ErrorSeverityCritical ErrorSeverity = "critical" // Security fault; discard session state
)

// SchnorrError represents a structured error in the signing library
type SchnorrError struct {
	Category    ErrorCategory          `json:"category"`
	Severity    ErrorSeverity          `json:"severity"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Details     string                 `json:"details,omitempty"`
	Cause       error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Recoverable bool                   `json:"recoverable"`
}

// Error implements the error interface
func (e *SchnorrError) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *SchnorrError) Unwrap() error {
	return e.Cause
}

// Is matches on error code so copies made by WithContext, WithCause and
// WithDetails still satisfy errors.Is against the package sentinels.
func (e *SchnorrError) Is(target error) bool {
	t, ok := target.(*SchnorrError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *SchnorrError) clone() *SchnorrError {
	c := &SchnorrError{
		Category:    e.Category,
		Severity:    e.Severity,
		Code:        e.Code,
		Message:     e.Message,
		Details:     e.Details,
		Cause:       e.Cause,
		Recoverable: e.Recoverable,
		Context:     make(map[string]interface{}, len(e.Context)),
	}
	for k, v := range e.Context {
		c.Context[k] = v
	}
	return c
}

// WithContext returns a copy of the error carrying an extra context value
func (e *SchnorrError) WithContext(key string, value interface{}) *SchnorrError {
	c := e.clone()
	c.Context[key] = value
	return c
}

// WithCause returns a copy of the error wrapping cause
func (e *SchnorrError) WithCause(cause error) *SchnorrError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithDetails returns a copy of the error with a formatted detail string
func (e *SchnorrError) WithDetails(format string, args ...interface{}) *SchnorrError {
	c := e.clone()
	c.Details = fmt.Sprintf(format, args...)
	return c
}

// IsRecoverable returns whether the error is recoverable
func (e *SchnorrError) IsRecoverable() bool {
	return e.Recoverable
}

// NewSchnorrError creates a new structured error
func NewSchnorrError(category ErrorCategory, severity ErrorSeverity, code, message string) *SchnorrError {
	return &SchnorrError{
		Category:    category,
		Severity:    severity,
		Code:        code,
		Message:     message,
		Context:     make(map[string]interface{}),
		Recoverable: severity != ErrorSeverityCritical,
	}
}

// Key generation errors
var (
	ErrInvalidPrivateKey = NewSchnorrError(
		ErrorCategoryKeyGeneration, ErrorSeverityCritical, "INVALID_PRIVATE_KEY",
		"private key is outside the valid scalar range")

	ErrRandomnessGeneration = NewSchnorrError(
		ErrorCategoryCryptographic, ErrorSeverityCritical, "RANDOMNESS_GENERATION_FAILED",
		"failed to generate secure randomness")

	ErrKeyMismatch = NewSchnorrError(
		ErrorCategoryKeyGeneration, ErrorSeverityHigh, "KEY_MISMATCH",
		"public key does not match private key")
)

// Participant errors
var (
	ErrInvalidInputLength = NewSchnorrError(
		ErrorCategoryParticipant, ErrorSeverityMedium, "INVALID_INPUT_LENGTH",
		"public key and nonce sets are empty or of different lengths")

	ErrSignerNotInSet = NewSchnorrError(
		ErrorCategoryParticipant, ErrorSeverityMedium, "SIGNER_NOT_IN_SET",
		"signer public key or nonce is absent from the signer set")

	ErrDuplicateSigner = NewSchnorrError(
		ErrorCategoryParticipant, ErrorSeverityMedium, "DUPLICATE_SIGNER",
		"signer set contains a duplicate public key")

	ErrInvalidPublicKey = NewSchnorrError(
		ErrorCategoryValidation, ErrorSeverityMedium, "INVALID_PUBLIC_KEY",
		"public key is invalid")

	ErrInvalidMessage = NewSchnorrError(
		ErrorCategoryValidation, ErrorSeverityMedium, "INVALID_MESSAGE",
		"message hash must be 32 bytes")
)

// Nonce errors
var (
	ErrNonceReuse = NewSchnorrError(
		ErrorCategoryNonce, ErrorSeverityCritical, "NONCE_REUSE",
		"nonce commitment has already been consumed")

	ErrNonceNotFound = NewSchnorrError(
		ErrorCategoryNonce, ErrorSeverityHigh, "NONCE_NOT_FOUND",
		"no secret nonce is held for this commitment")
)

// Signing, aggregation and verification errors
var (
	ErrChallengeMismatch = NewSchnorrError(
		ErrorCategoryAggregation, ErrorSeverityHigh, "CHALLENGE_MISMATCH",
		"participants disagree on the session challenge")

	ErrVerificationFailure = NewSchnorrError(
		ErrorCategoryVerification, ErrorSeverityHigh, "VERIFICATION_FAILED",
		"signature verification failed")

	ErrInvalidSignatureEncoding = NewSchnorrError(
		ErrorCategoryVerification, ErrorSeverityMedium, "INVALID_SIGNATURE_ENCODING",
		"signature encoding is malformed")

	ErrIncompleteQuorum = NewSchnorrError(
		ErrorCategoryAggregation, ErrorSeverityMedium, "INCOMPLETE_QUORUM",
		"not every signer has contributed")
)

// Configuration and internal errors
var (
	ErrUnsupportedCurve = NewSchnorrError(
		ErrorCategoryConfiguration, ErrorSeverityHigh, "UNSUPPORTED_CURVE",
		"operation is not supported on this curve")

	ErrInvalidConfiguration = NewSchnorrError(
		ErrorCategoryConfiguration, ErrorSeverityHigh, "INVALID_CONFIGURATION",
		"configuration is invalid")

	ErrInvalidState = NewSchnorrError(
		ErrorCategoryInternal, ErrorSeverityHigh, "INVALID_STATE",
		"session is not in a state that allows this transition")

	ErrSessionAbandoned = NewSchnorrError(
		ErrorCategoryAggregation, ErrorSeverityHigh, "SESSION_ABANDONED",
		"signing session was abandoned")
)

// WrapError wraps an existing error with structured context
func WrapError(err error, category ErrorCategory, severity ErrorSeverity, code, message string) *SchnorrError {
	return NewSchnorrError(category, severity, code, message).WithCause(err)
}

// IsErrorCategory checks if an error belongs to a specific category
func IsErrorCategory(err error, category ErrorCategory) bool {
	var se *SchnorrError
	if errors.As(err, &se) {
		return se.Category == category
	}
	return false
}

// IsErrorSeverity checks if an error has a specific severity
func IsErrorSeverity(err error, severity ErrorSeverity) bool {
	var se *SchnorrError
	if errors.As(err, &se) {
		return se.Severity == severity
	}
	return false
}

// IsRecoverableError checks if an error is recoverable
func IsRecoverableError(err error) bool {
	var se *SchnorrError
	if errors.As(err, &se) {
		return se.IsRecoverable()
	}
	return true // Errors from outside the library are assumed recoverable
}

// GetErrorContext extracts context from a structured error
func GetErrorContext(err error) map[string]interface{} {
	var se *SchnorrError
	if errors.As(err, &se) {
		return se.Context
	}
	return nil
}
