package plugin

import "fmt"

// Stable error codes surfaced to invoke callers.
const (
	CodeBadRequest = "bad_request"
	CodeNotFound   = "not_found"
	CodeDenied     = "denied"
	CodeInternal   = "internal"
)

// Error is a command failure with a stable code. Handlers return it when
// the caller should be able to branch on the failure kind; plain errors
// are reported as CodeInternal.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Errorf builds an Error with a formatted message.
func Errorf(code, format string, a ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, a...)}
}
