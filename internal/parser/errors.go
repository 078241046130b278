package parser

import (
	"errors"
	"fmt"
)

// Parse error codes (E100-E109).
const (
	ErrUnexpectedEOF      = "E100" // input ended inside a form, string, or ref
	ErrUnexpectedToken    = "E101" // token not valid at this position
	ErrInvalidUUID        = "E102" // malformed UUID inside @attr{...}
	ErrUnterminatedString = "E103" // string literal missing closing quote
	ErrBadNumber          = "E104" // unparseable numeric literal
	ErrBadVerbName        = "E105" // verb name is not domain.verb
)

// ParseError is a positioned syntax error. Parsing is fatal on the first
// error: unlike compilation there is no meaningful way to continue past
// broken surface syntax.
type ParseError struct {
	Code    string
	Message string
	Line    int // 1-based
	Col     int // 1-based
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("[%s] %d:%d: %s", e.Code, e.Line, e.Col, e.Message)
}

// IsEOFError reports whether err is an unexpected-EOF parse error.
// Uses errors.As to handle wrapped errors.
func IsEOFError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Code == ErrUnexpectedEOF
}

func errAt(code string, line, col int, format string, args ...any) *ParseError {
	return &ParseError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
		Col:     col,
	}
}
