package shared

// DomainError is a business rule violation identified by a stable code.
// The HTTP layer maps the code to a status and an ERR_ prefixed error code.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any domain error with the same code, so a specific
// "flower not found" still satisfies errors.Is(err, ErrNotFound)
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnavailable         = NewDomainError("SERVICE_UNAVAILABLE", "Service temporarily unavailable")
)
