package ast

import "strings"

// Arg is one named argument of a verb call. Order within a VerbCall is the
// order the author wrote; the compiler relies on it for deterministic error
// reporting.
type Arg struct {
	Name  string
	Value Value
}

// VerbCall is one parsed invocation of a domain verb. Immutable once parsed.
type VerbCall struct {
	// Domain and Verb split the dotted verb name, e.g. "cbu" / "create".
	Domain string
	Verb   string

	// Args in source order.
	Args []Arg

	// Binding is the capture name (without "@") from a trailing
	// "-> @name" or ":as @name" clause. Empty means the result is discarded.
	Binding string

	// Line and Col locate the opening paren, 1-based.
	Line int
	Col  int
}

// FullVerb returns the dotted verb identifier, e.g. "cbu.create".
func (vc VerbCall) FullVerb() string {
	return vc.Domain + "." + vc.Verb
}

// Lookup returns the value of the named argument, if present.
func (vc VerbCall) Lookup(name string) (Value, bool) {
	for _, a := range vc.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// Render returns the canonical surface form of the call.
func (vc VerbCall) Render() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(vc.FullVerb())
	for _, a := range vc.Args {
		b.WriteString(" :")
		b.WriteString(a.Name)
		b.WriteByte(' ')
		b.WriteString(a.Value.Render())
	}
	if vc.Binding != "" {
		b.WriteString(" -> @")
		b.WriteString(vc.Binding)
	}
	b.WriteByte(')')
	return b.String()
}

// Program is an ordered sequence of verb calls. Source order is significant:
// the compiler resolves symbol references against textually earlier
// statements only.
type Program []VerbCall

// Render returns the canonical DSL text for the whole program, one call per
// line with a trailing newline. Parse(Render(p)) reproduces p.
func (p Program) Render() string {
	var b strings.Builder
	for _, vc := range p {
		b.WriteString(vc.Render())
		b.WriteByte('\n')
	}
	return b.String()
}

// EqualCall reports equality of two verb calls ignoring source position.
func EqualCall(a, b VerbCall) bool {
	if a.Domain != b.Domain || a.Verb != b.Verb || a.Binding != b.Binding {
		return false
	}
	if len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if a.Args[i].Name != b.Args[i].Name || !Equal(a.Args[i].Value, b.Args[i].Value) {
			return false
		}
	}
	return true
}

// EqualProgram reports equality of two programs ignoring source positions.
func EqualProgram(a, b Program) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualCall(a[i], b[i]) {
			return false
		}
	}
	return true
}
