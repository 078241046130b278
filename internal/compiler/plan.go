package compiler

import (
	"fmt"
	"strings"

	"github.com/halcyonfs/obdsl/internal/ast"
	"github.com/halcyonfs/obdsl/internal/vocab"
)

// ContextStep marks an injection sourced from pre-seeded external context
// rather than a prior step's result.
const ContextStep = -1

// Injection names where a symbolic argument's value comes from at runtime.
type Injection struct {
	// IntoArg is the argument key receiving the value.
	IntoArg string `json:"into_arg"`
	// FromStep is the producing step index, or ContextStep when the value
	// comes from the execution context's pre-seeded bindings.
	FromStep int `json:"from_step"`
	// ContextKey is the external binding name when FromStep == ContextStep.
	ContextKey string `json:"context_key,omitempty"`
	// Symbol is the referenced binding name (without '@').
	Symbol string `json:"symbol"`
}

// ExecutionStep is one compiled unit of work.
//
// INVARIANT: every injection's FromStep is strictly less than Index. The
// compiler rejects forward references; the engine re-checks at execution
// time and treats a violation as a structural EngineError.
type ExecutionStep struct {
	Index int `json:"index"`

	// Call is the originating verb call (arguments still symbolic).
	Call ast.VerbCall `json:"-"`

	Verb       string         `json:"verb"`
	Behavior   vocab.Behavior `json:"behavior"`
	HandlerID  string         `json:"handler_id,omitempty"`
	Injections []Injection    `json:"injections,omitempty"`

	// BindAs is the capture name for the step's produced value, "" if the
	// result is discarded.
	BindAs string `json:"bind_as,omitempty"`
}

// ExecutionPlan is the compiled, ordered, dependency-annotated step sequence.
// Immutable once built; rebuilding requires re-running the compiler. Session
// identity lives on the engine's report, so one plan can back any number of
// concurrent sessions.
type ExecutionPlan struct {
	Steps []ExecutionStep `json:"steps"`
}

// Len returns the number of steps.
func (p *ExecutionPlan) Len() int { return len(p.Steps) }

// DebugString renders the plan in a stable human-readable form. Covered by
// golden tests; keep the format append-only.
func (p *ExecutionPlan) DebugString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "plan: %d steps\n", len(p.Steps))
	for _, s := range p.Steps {
		fmt.Fprintf(&b, "  [%d] %s (%s", s.Index, s.Verb, s.Behavior)
		if s.HandlerID != "" {
			fmt.Fprintf(&b, " %s", s.HandlerID)
		}
		b.WriteString(")")
		if s.BindAs != "" {
			fmt.Fprintf(&b, " -> @%s", s.BindAs)
		}
		b.WriteByte('\n')

		inj := make(map[string]Injection, len(s.Injections))
		for _, in := range s.Injections {
			inj[in.IntoArg] = in
		}
		for _, a := range s.Call.Args {
			fmt.Fprintf(&b, "      :%s %s", a.Name, a.Value.Render())
			if in, ok := inj[a.Name]; ok {
				if in.FromStep == ContextStep {
					fmt.Fprintf(&b, "  <- context %q", in.ContextKey)
				} else {
					fmt.Fprintf(&b, "  <- step %d", in.FromStep)
				}
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}
