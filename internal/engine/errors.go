package engine

import "fmt"

// Structural error codes. These mean the plan itself is unsound and the
// session aborts regardless of execution mode.
const (
	CodeUnknownVerb      = "E300" // verb not in the registry at execution time
	CodeNoHandler        = "E301" // custom behavior with no registered handler
	CodeMaxStepsExceeded = "E302" // plan longer than the session step budget
	CodeForwardInjection = "E303" // injection sourced from a later step
	CodeNilPlan          = "E304" // no plan to execute
)

// EngineError is a structural execution failure, distinct from a per-step
// failure recorded in the session report.
type EngineError struct {
	Code    string
	Step    int // -1 when not tied to a step
	Verb    string
	Message string
}

func (e *EngineError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] step %d (%s): %s", e.Code, e.Step, e.Verb, e.Message)
}

func structural(code string, step int, verb, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Step: step, Verb: verb, Message: fmt.Sprintf(format, args...)}
}
