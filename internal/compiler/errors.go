package compiler

import "fmt"

// Compile error codes (E200-E219).
const (
	// Schema validation (E201-E209)
	ErrUnknownVerb      = "E201" // verb not in the registry
	ErrMissingRequired  = "E202" // required argument absent
	ErrInvalidEnumValue = "E203" // value not in the argument's enum
	ErrUnknownArg       = "E204" // argument not declared by the verb
	ErrArgTypeMismatch  = "E205" // value shape does not satisfy the declared type

	// Reference resolution (E210-E219)
	ErrUndefinedSymbol  = "E210" // @name not bound by an earlier statement
	ErrUnknownAttribute = "E211" // @attr{uuid} not in the dictionary
)

// CompileError is one schema or reference violation. All violations in a
// program are collected and returned together - batch reporting, never
// fail-fast - so authors can fix a whole sheet in one pass.
type CompileError struct {
	Code      string `json:"code"`
	StmtIndex int    `json:"stmt_index"` // 0-based statement position
	Line      int    `json:"line"`       // source line of the statement
	Verb      string `json:"verb"`
	Arg       string `json:"arg,omitempty"`
	Message   string `json:"message"`
}

// Error implements the error interface.
func (e CompileError) Error() string {
	if e.Arg != "" {
		return fmt.Sprintf("[%s] statement %d (%s) arg %q: %s", e.Code, e.StmtIndex+1, e.Verb, e.Arg, e.Message)
	}
	return fmt.Sprintf("[%s] statement %d (%s): %s", e.Code, e.StmtIndex+1, e.Verb, e.Message)
}
