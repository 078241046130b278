package engine

import (
	"sort"

	"github.com/halcyonfs/obdsl/internal/ast"
)

// ExecutionContext is the session symbol table. Captures from earlier steps
// and pre-seeded external bindings share one namespace; Set overwrites, so
// rebinding is last-write-wins.
//
// Not safe for concurrent use. Steps execute sequentially in one goroutine.
type ExecutionContext struct {
	symbols map[string]ast.Value
}

// NewExecutionContext creates a context pre-seeded with external bindings.
func NewExecutionContext(external map[string]ast.Value) *ExecutionContext {
	symbols := make(map[string]ast.Value, len(external))
	for k, v := range external {
		symbols[k] = v
	}
	return &ExecutionContext{symbols: symbols}
}

// Set binds a symbol, overwriting any previous binding.
func (c *ExecutionContext) Set(name string, v ast.Value) {
	c.symbols[name] = v
}

// Get returns the symbol's current value.
func (c *ExecutionContext) Get(name string) (ast.Value, bool) {
	v, ok := c.symbols[name]
	return v, ok
}

// Symbols returns the bound names in sorted order, for reporting.
func (c *ExecutionContext) Symbols() []string {
	names := make([]string, 0, len(c.symbols))
	for k := range c.symbols {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
