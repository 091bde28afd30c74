package student

type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindConflict
	KindNotFound
	KindUnavailable
)

// Error is the service-level error type. Kind drives the HTTP status, Field
// names the attribute(s) involved when known, and Err keeps the underlying
// cause for diagnostics.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

var ErrStudentNotFound = &Error{Kind: KindNotFound, Message: "student not found"}

func validationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func conflictError(field, message string, cause error) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: message, Err: cause}
}

func unavailableError(cause error) *Error {
	return &Error{Kind: KindUnavailable, Message: "database unavailable", Err: cause}
}
