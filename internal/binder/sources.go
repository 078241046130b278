package binder

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/halcyonfs/obdsl/internal/ast"
	"github.com/halcyonfs/obdsl/internal/dict"
)

// Default priorities for the shipped sources. Document evidence outranks
// user input, which outranks static defaults.
const (
	PriorityDocument  = 10
	PriorityUserInput = 20
	PriorityDefault   = 90
)

// ExtractedValue is one document-extraction result for an attribute.
type ExtractedValue struct {
	Value      ast.Value
	DocumentID string
	Page       int
	Confidence float64
}

// DocumentValueReader is the narrow store surface the document source needs.
// *store.Store satisfies it.
type DocumentValueReader interface {
	ExtractedValue(ctx context.Context, attributeID uuid.UUID) (ExtractedValue, bool, error)
}

// DocumentSource serves values extracted from client documents.
type DocumentSource struct {
	Reader DocumentValueReader
}

func (s *DocumentSource) Name() string  { return "document-extraction" }
func (s *DocumentSource) Priority() int { return PriorityDocument }

// CanHandle is optimistic: whether a document value exists is only known at
// fetch time, and a miss falls through anyway.
func (s *DocumentSource) CanHandle(uuid.UUID) bool { return true }

func (s *DocumentSource) Fetch(ctx context.Context, id uuid.UUID) (ast.Value, Provenance, error) {
	ev, ok, err := s.Reader.ExtractedValue(ctx, id)
	if err != nil {
		return nil, Provenance{}, &SourceError{Code: ErrSourceFetch, AttributeID: id, Source: s.Name(), Err: err}
	}
	if !ok {
		return nil, Provenance{}, &SourceError{Code: ErrSourceFetch, AttributeID: id, Source: s.Name(),
			Err: fmt.Errorf("no extracted value")}
	}
	return ev.Value, Provenance{
		Kind:       SourceDocumentExtraction,
		DocumentID: ev.DocumentID,
		Page:       ev.Page,
		Confidence: ev.Confidence,
	}, nil
}

// UserInputSource serves values the operator supplied for this session.
type UserInputSource struct {
	Values map[uuid.UUID]ast.Value
}

func (s *UserInputSource) Name() string  { return "user-input" }
func (s *UserInputSource) Priority() int { return PriorityUserInput }

func (s *UserInputSource) CanHandle(id uuid.UUID) bool {
	_, ok := s.Values[id]
	return ok
}

func (s *UserInputSource) Fetch(_ context.Context, id uuid.UUID) (ast.Value, Provenance, error) {
	v, ok := s.Values[id]
	if !ok {
		return nil, Provenance{}, &SourceError{Code: ErrSourceFetch, AttributeID: id, Source: s.Name(),
			Err: fmt.Errorf("no user input")}
	}
	return v, Provenance{Kind: SourceUserInput}, nil
}

// DefaultSource serves static defaults from the attribute dictionary. Lowest
// priority: hardcoded fallback must never shadow observed evidence.
type DefaultSource struct {
	Dict *dict.Dictionary
}

func (s *DefaultSource) Name() string  { return "dictionary-default" }
func (s *DefaultSource) Priority() int { return PriorityDefault }

func (s *DefaultSource) CanHandle(id uuid.UUID) bool {
	a, err := s.Dict.Lookup(id)
	return err == nil && a.Default != nil
}

func (s *DefaultSource) Fetch(_ context.Context, id uuid.UUID) (ast.Value, Provenance, error) {
	a, err := s.Dict.Lookup(id)
	if err != nil || a.Default == nil {
		return nil, Provenance{}, &SourceError{Code: ErrSourceFetch, AttributeID: id, Source: s.Name(),
			Err: fmt.Errorf("no default")}
	}
	return a.Default, Provenance{Kind: SourceDefault}, nil
}
