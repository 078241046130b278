// Package vocab loads and serves the verb schema: per-verb argument
// definitions, enum constraints, and execution behavior.
//
// The schema is declarative YAML maintained outside this core. The registry
// is a read-only lookup table; reloading is the loader's caller's concern.
package vocab

import (
	"fmt"
	"sort"
)

// Behavior selects how a verb executes.
type Behavior string

const (
	// BehaviorCrud executes through the generic CRUD handler using the
	// verb's crud config.
	BehaviorCrud Behavior = "crud"
	// BehaviorCustom dispatches to a registered custom operation handler.
	BehaviorCustom Behavior = "custom"
)

// ArgType constrains an argument's value shape.
type ArgType string

const (
	TypeString  ArgType = "string"
	TypeNumber  ArgType = "number"
	TypeBool    ArgType = "bool"
	TypeUUID    ArgType = "uuid"    // RawUUID literal or SymbolRef to a captured id
	TypeAttr    ArgType = "attr"    // @attr{uuid} reference
	TypeList    ArgType = "list"
	TypeMap     ArgType = "map"
	TypeAny     ArgType = "any"
)

// ArgSpec defines one argument of a verb.
type ArgSpec struct {
	Name        string   `yaml:"name"`
	Type        ArgType  `yaml:"type"`
	Required    bool     `yaml:"required"`
	Enum        []string `yaml:"enum,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// CrudSpec maps a CRUD-behavior verb onto the backing store.
type CrudSpec struct {
	Operation  string `yaml:"operation"` // create | update | delete | link | lookup
	EntityType string `yaml:"entity_type"`
}

// VerbSpec is the schema for one verb.
type VerbSpec struct {
	Domain      string
	Verb        string
	Description string
	Behavior    Behavior
	Crud        *CrudSpec
	HandlerID   string // for custom behavior, the registered handler key
	Args        []ArgSpec
	// InvocationPhrases seed the search channels: they are embedded for the
	// semantic channel and indexed for the phonetic channel.
	InvocationPhrases []string
	// MacroPhrases are exact business-vocabulary patterns for the macro
	// channel (operator macros).
	MacroPhrases []string
}

// FullName returns "domain.verb".
func (v *VerbSpec) FullName() string {
	return v.Domain + "." + v.Verb
}

// Arg returns the named argument spec, if declared.
func (v *VerbSpec) Arg(name string) (*ArgSpec, bool) {
	for i := range v.Args {
		if v.Args[i].Name == name {
			return &v.Args[i], true
		}
	}
	return nil, false
}

// RequiredArgs returns the declared required argument names in order.
func (v *VerbSpec) RequiredArgs() []string {
	var out []string
	for _, a := range v.Args {
		if a.Required {
			out = append(out, a.Name)
		}
	}
	return out
}

// Registry is the read-only verb lookup table.
type Registry struct {
	verbs map[string]*VerbSpec // keyed by "domain.verb"
}

// NewRegistry builds a registry from specs. Duplicate verb names are an error.
func NewRegistry(specs []VerbSpec) (*Registry, error) {
	r := &Registry{verbs: make(map[string]*VerbSpec, len(specs))}
	for i := range specs {
		s := specs[i]
		key := s.FullName()
		if _, dup := r.verbs[key]; dup {
			return nil, fmt.Errorf("duplicate verb %q", key)
		}
		r.verbs[key] = &s
	}
	return r, nil
}

// Lookup returns the spec for domain.verb.
func (r *Registry) Lookup(domain, verb string) (*VerbSpec, bool) {
	s, ok := r.verbs[domain+"."+verb]
	return s, ok
}

// LookupFull returns the spec for a dotted verb name.
func (r *Registry) LookupFull(name string) (*VerbSpec, bool) {
	s, ok := r.verbs[name]
	return s, ok
}

// All returns every spec sorted by full name. Deterministic for rendering
// and warmup.
func (r *Registry) All() []*VerbSpec {
	out := make([]*VerbSpec, 0, len(r.verbs))
	for _, s := range r.verbs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out
}

// Domains returns the distinct domain names, sorted.
func (r *Registry) Domains() []string {
	seen := map[string]bool{}
	for _, s := range r.verbs {
		seen[s.Domain] = true
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered verbs.
func (r *Registry) Len() int { return len(r.verbs) }
