package ast

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Value is a sealed interface over the constrained set of DSL value shapes.
// Only String, Number, Bool, List, Map, SymbolRef, AttrRef, and RawUUID
// implement it. Keeping the set closed lets the compiler validate argument
// shapes exhaustively instead of threading an open-ended dynamic type
// through the pipeline.
type Value interface {
	value() // Sealed - only these types implement it

	// Render returns the canonical DSL surface form of the value.
	Render() string
}

// String is a quoted string literal.
type String string

func (String) value() {}

// Render quotes and escapes the string.
func (s String) Render() string {
	return strconv.Quote(string(s))
}

// Number is a numeric literal. Stored as float64; Render uses the shortest
// representation that round-trips, so Parse(Render(v)) reproduces v exactly.
type Number float64

func (Number) value() {}

func (n Number) Render() string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

// Bool is a boolean literal.
type Bool bool

func (Bool) value() {}

func (b Bool) Render() string {
	if b {
		return "true"
	}
	return "false"
}

// List is an ordered sequence of values: [v1 v2 ...].
type List []Value

func (List) value() {}

func (l List) Render() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = v.Render()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Map is a string-keyed map: {:key value ...}. Render iterates keys in
// sorted order so rendering is deterministic.
type Map map[string]Value

func (Map) value() {}

func (m Map) Render() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, ":"+k+" "+m[k].Render())
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// SymbolRef is a reference to a binding captured by an earlier verb call:
// @name. Resolution is deferred to compile/execution time; the parser only
// records the name.
type SymbolRef string

func (SymbolRef) value() {}

func (r SymbolRef) Render() string {
	return "@" + string(r)
}

// AttrRef is a stable attribute reference by UUID: @attr{<uuid>}. The UUID
// decouples DSL authoring from internal semantic naming; the dictionary maps
// it to a dotted path at compile time.
type AttrRef uuid.UUID

func (AttrRef) value() {}

func (r AttrRef) Render() string {
	return "@attr{" + uuid.UUID(r).String() + "}"
}

// UUID returns the underlying attribute UUID.
func (r AttrRef) UUID() uuid.UUID {
	return uuid.UUID(r)
}

// RawUUID is a bare, unquoted UUID literal. Distinct from String so the
// compiler can type-check id-valued arguments.
type RawUUID uuid.UUID

func (RawUUID) value() {}

func (r RawUUID) Render() string {
	return uuid.UUID(r).String()
}

// UUID returns the literal UUID.
func (r RawUUID) UUID() uuid.UUID {
	return uuid.UUID(r)
}

// Equal reports structural equality of two values.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case SymbolRef:
		bv, ok := b.(SymbolRef)
		return ok && av == bv
	case AttrRef:
		bv, ok := b.(AttrRef)
		return ok && av == bv
	case RawUUID:
		bv, ok := b.(RawUUID)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			ov, present := bv[k]
			if !present || !Equal(v, ov) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	default:
		return false
	}
}

// GoString aids test failure output.
func GoString(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T(%s)", v, v.Render())
}
