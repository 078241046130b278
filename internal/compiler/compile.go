// Package compiler turns a parsed Program into an ExecutionPlan.
//
// Compilation runs three passes:
//  1. Schema validation - every verb call is checked against the verb
//     registry (required/optional args, value shapes, enum constraints).
//  2. Reference resolution - every @name must be captured by a textually
//     earlier statement or pre-seeded as external context; every @attr{uuid}
//     must resolve in the dictionary. Single pass, no reordering: dependency
//     order in this system is declared by source order, not inferred.
//  3. Plan assembly - one ExecutionStep per call in source order, with an
//     explicit injection descriptor for each symbolic argument.
//
// All violations are collected and returned together (batch reporting).
// The compiler is pure: the same program and registry snapshot always yield
// the same plan or the same, identically ordered, error set.
package compiler

import (
	"fmt"
	"sort"

	"github.com/halcyonfs/obdsl/internal/ast"
	"github.com/halcyonfs/obdsl/internal/dict"
	"github.com/halcyonfs/obdsl/internal/vocab"
)

// Option configures a compilation.
type Option func(*compiler)

// WithExternalContext pre-seeds binding names that exist before the program
// runs (e.g. a cbu-id injected by the calling session). References to them
// compile to context injections instead of step injections.
func WithExternalContext(keys ...string) Option {
	return func(c *compiler) {
		for _, k := range keys {
			c.external[k] = true
		}
	}
}

// Compile compiles a program against a verb registry and attribute
// dictionary. On any violation it returns a nil plan and the full error set.
func Compile(prog ast.Program, reg *vocab.Registry, d *dict.Dictionary, opts ...Option) (*ExecutionPlan, []CompileError) {
	c := &compiler{
		reg:      reg,
		dict:     d,
		external: map[string]bool{},
		bound:    map[string]int{},
	}
	for _, o := range opts {
		o(c)
	}

	plan := &ExecutionPlan{Steps: make([]ExecutionStep, 0, len(prog))}
	for idx, vc := range prog {
		step := c.compileCall(idx, vc)
		plan.Steps = append(plan.Steps, step)
		if vc.Binding != "" {
			// Last-write-wins: re-binding a name overwrites the earlier
			// step's capture for subsequent references.
			c.bound[vc.Binding] = idx
		}
	}

	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return plan, nil
}

type compiler struct {
	reg      *vocab.Registry
	dict     *dict.Dictionary
	external map[string]bool
	bound    map[string]int // binding name -> producing step index
	errs     []CompileError
}

func (c *compiler) errorf(code string, stmt int, vc ast.VerbCall, arg, format string, args ...any) {
	c.errs = append(c.errs, CompileError{
		Code:      code,
		StmtIndex: stmt,
		Line:      vc.Line,
		Verb:      vc.FullVerb(),
		Arg:       arg,
		Message:   fmt.Sprintf(format, args...),
	})
}

func (c *compiler) compileCall(idx int, vc ast.VerbCall) ExecutionStep {
	step := ExecutionStep{
		Index:  idx,
		Call:   vc,
		Verb:   vc.FullVerb(),
		BindAs: vc.Binding,
	}

	spec, ok := c.reg.Lookup(vc.Domain, vc.Verb)
	if !ok {
		c.errorf(ErrUnknownVerb, idx, vc, "", "unknown verb")
		// Reference resolution still runs so one unknown verb doesn't mask
		// undefined symbols elsewhere in the same statement.
		c.resolveRefs(idx, vc, &step)
		return step
	}
	step.Behavior = spec.Behavior
	step.HandlerID = spec.HandlerID

	// Pass 1: schema validation.
	for _, required := range spec.RequiredArgs() {
		if _, present := vc.Lookup(required); !present {
			c.errorf(ErrMissingRequired, idx, vc, required, "required argument missing")
		}
	}
	for _, a := range vc.Args {
		argSpec, declared := spec.Arg(a.Name)
		if !declared {
			c.errorf(ErrUnknownArg, idx, vc, a.Name, "argument not declared by verb")
			continue
		}
		c.checkType(idx, vc, a, argSpec)
	}

	// Pass 2: reference resolution. Pass 3 (injection descriptors) happens
	// in the same walk since both need the ref sites.
	c.resolveRefs(idx, vc, &step)
	return step
}

// checkType validates a value's shape against the declared argument type,
// then its enum constraint.
func (c *compiler) checkType(idx int, vc ast.VerbCall, a ast.Arg, spec *vocab.ArgSpec) {
	declared := spec.Type
	if declared == "" {
		declared = vocab.TypeAny
	}

	ok := true
	switch declared {
	case vocab.TypeAny:
	case vocab.TypeString:
		_, isStr := a.Value.(ast.String)
		_, isSym := a.Value.(ast.SymbolRef)
		ok = isStr || isSym
	case vocab.TypeNumber:
		_, ok = a.Value.(ast.Number)
	case vocab.TypeBool:
		_, ok = a.Value.(ast.Bool)
	case vocab.TypeUUID:
		switch a.Value.(type) {
		case ast.RawUUID, ast.SymbolRef:
		case ast.String:
			// Quoted UUIDs are accepted for compatibility with generated
			// sheets; the engine parses them at dispatch.
		default:
			ok = false
		}
	case vocab.TypeAttr:
		_, ok = a.Value.(ast.AttrRef)
	case vocab.TypeList:
		_, ok = a.Value.(ast.List)
	case vocab.TypeMap:
		_, ok = a.Value.(ast.Map)
	}
	if !ok {
		c.errorf(ErrArgTypeMismatch, idx, vc, a.Name, "expected %s, got %s", declared, shapeName(a.Value))
		return
	}

	if len(spec.Enum) > 0 {
		s, isStr := a.Value.(ast.String)
		if isStr {
			for _, allowed := range spec.Enum {
				if string(s) == allowed {
					return
				}
			}
			c.errorf(ErrInvalidEnumValue, idx, vc, a.Name, "value %q not in %v", string(s), spec.Enum)
		}
		// Symbolic values are checked at runtime; enums only constrain
		// literals here.
	}
}

// resolveRefs walks a call's arguments, validating every SymbolRef and
// AttrRef and emitting injection descriptors for top-level symbolic args.
func (c *compiler) resolveRefs(idx int, vc ast.VerbCall, step *ExecutionStep) {
	for _, a := range vc.Args {
		switch v := a.Value.(type) {
		case ast.SymbolRef:
			name := string(v)
			if from, ok := c.bound[name]; ok {
				step.Injections = append(step.Injections, Injection{
					IntoArg:  a.Name,
					FromStep: from,
					Symbol:   name,
				})
			} else if c.external[name] {
				step.Injections = append(step.Injections, Injection{
					IntoArg:    a.Name,
					FromStep:   ContextStep,
					ContextKey: name,
					Symbol:     name,
				})
			} else {
				c.errorf(ErrUndefinedSymbol, idx, vc, a.Name, "undefined symbol @%s", name)
			}
		case ast.AttrRef:
			if _, err := c.dict.UUIDToSemantic(v.UUID()); err != nil {
				c.errorf(ErrUnknownAttribute, idx, vc, a.Name, "unknown attribute %s", v.UUID())
			}
		default:
			c.resolveNested(idx, vc, a.Name, a.Value)
		}
	}
}

// resolveNested validates refs inside lists and maps. Nested refs do not get
// injection descriptors - the engine resolves them from the symbol table -
// but an undefined nested symbol is still a compile error, not a runtime one.
func (c *compiler) resolveNested(idx int, vc ast.VerbCall, argName string, v ast.Value) {
	switch val := v.(type) {
	case ast.SymbolRef:
		name := string(val)
		if _, ok := c.bound[name]; !ok && !c.external[name] {
			c.errorf(ErrUndefinedSymbol, idx, vc, argName, "undefined symbol @%s", name)
		}
	case ast.AttrRef:
		if _, err := c.dict.UUIDToSemantic(val.UUID()); err != nil {
			c.errorf(ErrUnknownAttribute, idx, vc, argName, "unknown attribute %s", val.UUID())
		}
	case ast.List:
		for _, elem := range val {
			c.resolveNested(idx, vc, argName, elem)
		}
	case ast.Map:
		for _, k := range sortedKeys(val) {
			c.resolveNested(idx, vc, argName, val[k])
		}
	}
}

// sortedKeys gives deterministic error ordering for map-nested violations.
func sortedKeys(m ast.Map) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func shapeName(v ast.Value) string {
	switch v.(type) {
	case ast.String:
		return "string"
	case ast.Number:
		return "number"
	case ast.Bool:
		return "bool"
	case ast.List:
		return "list"
	case ast.Map:
		return "map"
	case ast.SymbolRef:
		return "symbol-ref"
	case ast.AttrRef:
		return "attr-ref"
	case ast.RawUUID:
		return "uuid"
	default:
		return "unknown"
	}
}
