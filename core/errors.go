package core

// FieldError carries a validation failure for one named field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a request-level validation failure. Fields is empty for
// failures that concern the request as a whole (an invalid reset token, say);
// the API error handler renders those as a single message instead of a field map.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}
