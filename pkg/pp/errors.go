package pp

import (
	"errors"
	"fmt"
)

// ErrorKind tags the cause of a preprocessing failure.
type ErrorKind string

const (
	ErrInvalidCmd     ErrorKind = "INVALID_CMD"
	ErrSyntaxDef      ErrorKind = "SYNTAX_DEF"
	ErrSyntaxDefmeta  ErrorKind = "SYNTAX_DEFMETA"
	ErrInvalidVar     ErrorKind = "INVALID_VAR"
	ErrSyntax         ErrorKind = "SYNTAX_ERR"
	ErrUndefinedVar   ErrorKind = "UNDEFINED_VAR"
	ErrBadMacroInvoke ErrorKind = "BAD_MACRO_INVOKE"
	ErrFileNotFound   ErrorKind = "FILE_NOT_FOUND"
	ErrUser           ErrorKind = "ERROR"
	ErrMacroTooDeep   ErrorKind = "MACRO_TOO_DEEP"
	ErrIncludeTooDeep ErrorKind = "INCLUDE_TOO_DEEP"
	ErrIO             ErrorKind = "IO_ERROR"
)

// Error is a fatal preprocessing error. File and Line locate the input
// line that triggered it; Context is the offending text.
type Error struct {
	File    string
	Line    int
	Kind    ErrorKind
	Context string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Kind, e.Context)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
