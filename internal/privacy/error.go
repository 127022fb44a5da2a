package privacy

// SanitizedError wraps an error while exposing only a scrubbed message.
// The original stays reachable through Unwrap for errors.Is and errors.As.
type SanitizedError struct {
	original     error
	sanitizedMsg string
}

// Error returns the scrubbed message
func (e *SanitizedError) Error() string {
	return e.sanitizedMsg
}

// Unwrap returns the original error
func (e *SanitizedError) Unwrap() error {
	return e.original
}

// WrapError scrubs err's message with ScrubMessage. Returns nil for nil.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{
		original:     err,
		sanitizedMsg: ScrubMessage(err.Error()),
	}
}
