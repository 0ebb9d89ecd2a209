package weburl

// Reason identifies why a URL failed validation.
type Reason string

// Validation failure reasons.
const (
	ReasonInvalidFormat      Reason = "invalid_format"
	ReasonDisallowedProtocol Reason = "disallowed_protocol"
	ReasonInternalNetwork    Reason = "internal_network_blocked"
	ReasonTooLong            Reason = "too_long"
)

// ValidationError reports a URL that failed security validation.
type ValidationError struct {
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error with a machine-readable reason.
func NewValidationError(reason Reason, message string) *ValidationError {
	return &ValidationError{Reason: reason, Message: message}
}
