// Package dict maps stable attribute UUIDs to semantic dotted paths.
//
// DSL sheets reference attributes as @attr{<uuid>}; internal code and YAML
// config use dotted paths like "attr.identity.first_name". The mapping is a
// static, loaded-once bidirectional table, so resolution is an O(1) lookup.
//
// Attribute UUIDs are UUIDv5 of the semantic path in a fixed namespace, which
// makes hand-written dictionary files stable across environments and lets the
// UUID column be omitted entirely.
package dict

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/halcyonfs/obdsl/internal/ast"
)

// Namespace is the UUIDv5 namespace for attribute identifiers. Fixed forever;
// changing it would re-key every attribute reference in persisted DSL.
var Namespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8") // RFC 4122 DNS namespace

// Resolution error codes (E150-E159).
const (
	ErrUnknownUUID         = "E150" // uuid not present in the dictionary
	ErrUnknownSemanticPath = "E151" // dotted path not present in the dictionary
)

// ResolutionError reports a failed dictionary lookup. Unresolved references
// must surface as explicit errors and propagate to the compiler as validation
// failures - never substituted with a placeholder string.
type ResolutionError struct {
	Code string
	Ref  string // the uuid or path that failed to resolve
}

func (e *ResolutionError) Error() string {
	switch e.Code {
	case ErrUnknownUUID:
		return fmt.Sprintf("[%s] unknown attribute UUID %s", e.Code, e.Ref)
	default:
		return fmt.Sprintf("[%s] unknown semantic path %q", e.Code, e.Ref)
	}
}

// IsUnknownUUID reports whether err is an unknown-UUID resolution error.
func IsUnknownUUID(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re) && re.Code == ErrUnknownUUID
}

// Attribute is one dictionary entry.
type Attribute struct {
	ID          uuid.UUID
	Path        string    // dotted semantic path, e.g. "attr.identity.first_name"
	Type        string    // "string", "number", "bool", "date"
	Default     ast.Value // optional; consumed by the binder's default source
	Description string
}

// Dictionary is the loaded-once bidirectional attribute table. Read-only
// after construction; safe for concurrent readers.
type Dictionary struct {
	byUUID map[uuid.UUID]*Attribute
	byPath map[string]*Attribute
}

// PathUUID computes the deterministic UUIDv5 for a semantic path.
func PathUUID(path string) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte(path))
}

// New builds a dictionary from entries. Entries without an ID get the
// deterministic UUIDv5 of their path. Duplicate paths or UUIDs are an error.
func New(attrs []Attribute) (*Dictionary, error) {
	d := &Dictionary{
		byUUID: make(map[uuid.UUID]*Attribute, len(attrs)),
		byPath: make(map[string]*Attribute, len(attrs)),
	}
	for i := range attrs {
		a := attrs[i]
		if a.Path == "" {
			return nil, fmt.Errorf("dictionary entry %d: empty semantic path", i)
		}
		if a.ID == uuid.Nil {
			a.ID = PathUUID(a.Path)
		}
		if _, dup := d.byPath[a.Path]; dup {
			return nil, fmt.Errorf("duplicate semantic path %q", a.Path)
		}
		if _, dup := d.byUUID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate attribute UUID %s (path %q)", a.ID, a.Path)
		}
		entry := a
		d.byPath[a.Path] = &entry
		d.byUUID[a.ID] = &entry
	}
	return d, nil
}

// UUIDToSemantic resolves an attribute UUID to its dotted path.
func (d *Dictionary) UUIDToSemantic(id uuid.UUID) (string, error) {
	a, ok := d.byUUID[id]
	if !ok {
		return "", &ResolutionError{Code: ErrUnknownUUID, Ref: id.String()}
	}
	return a.Path, nil
}

// SemanticToUUID resolves a dotted path to its attribute UUID.
func (d *Dictionary) SemanticToUUID(path string) (uuid.UUID, error) {
	a, ok := d.byPath[path]
	if !ok {
		return uuid.Nil, &ResolutionError{Code: ErrUnknownSemanticPath, Ref: path}
	}
	return a.ID, nil
}

// Lookup returns the full entry for an attribute UUID.
func (d *Dictionary) Lookup(id uuid.UUID) (*Attribute, error) {
	a, ok := d.byUUID[id]
	if !ok {
		return nil, &ResolutionError{Code: ErrUnknownUUID, Ref: id.String()}
	}
	return a, nil
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	return len(d.byUUID)
}
