package domain

// ValidationError rejects a command input before any mutation happens. The
// field name scopes the message so callers can surface it next to the input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validationf builds a field-scoped validation error.
func Validationf(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
