package protocol

import "fmt"

// ErrorKind names a class of wire error.
type ErrorKind string

const (
	// KindServerError covers server-side failures.
	KindServerError ErrorKind = "ServerError"
	// KindUnhandledServerError signals a programmer error caught at the top
	// of the dispatch loop.
	KindUnhandledServerError ErrorKind = "UnhandledServerError"
	// KindClientError covers malformed frames, missing or unknown commands
	// and bad command-name types.
	KindClientError ErrorKind = "ClientError"
	// KindCommandError covers command-level semantic errors beyond
	// parameter parsing.
	KindCommandError ErrorKind = "CommandError"
	// KindParamError covers parameters that mismatch a command's schema or
	// fail semantic validation.
	KindParamError ErrorKind = "ParamError"
)

// Error is a wire-visible error. It serialises to
// {"error": Kind, "message": Message}.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ToObj returns the wire object form of the error.
func (e *Error) ToObj() map[string]any {
	return map[string]any{"error": string(e.Kind), "message": e.Message}
}

// ServerErrorf builds a ServerError.
func ServerErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindServerError, Message: fmt.Sprintf(format, args...)}
}

// UnhandledServerErrorf builds an UnhandledServerError.
func UnhandledServerErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindUnhandledServerError, Message: fmt.Sprintf(format, args...)}
}

// ClientErrorf builds a ClientError.
func ClientErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindClientError, Message: fmt.Sprintf(format, args...)}
}

// CommandErrorf builds a CommandError.
func CommandErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindCommandError, Message: fmt.Sprintf(format, args...)}
}

// ParamErrorf builds a ParamError.
func ParamErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindParamError, Message: fmt.Sprintf(format, args...)}
}
