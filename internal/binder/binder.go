// Package binder resolves attribute values through an ordered chain of
// pluggable value sources.
//
// Each source answers CanHandle for an attribute UUID and is tried in
// ascending priority order. The first source that both handles the attribute
// and fetches successfully wins; per-source failure is non-fatal and falls
// through to the next source. Document-extraction sources register at higher
// priority than static defaults so observed evidence overrides hardcoded
// fallback - that ordering is a registration decision, the binder itself is
// priority-agnostic.
package binder

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/halcyonfs/obdsl/internal/ast"
)

// Source error codes (E160-E169).
const (
	ErrNoValidSource = "E160" // every source declined or failed
	ErrSourceFetch   = "E161" // a single source's fetch failed
)

// SourceError reports a binding failure.
type SourceError struct {
	Code        string
	AttributeID uuid.UUID
	Source      string // source name for E161
	Err         error
}

func (e *SourceError) Error() string {
	switch e.Code {
	case ErrNoValidSource:
		return fmt.Sprintf("[%s] no valid source for attribute %s", e.Code, e.AttributeID)
	default:
		return fmt.Sprintf("[%s] source %q failed for attribute %s: %v", e.Code, e.Source, e.AttributeID, e.Err)
	}
}

func (e *SourceError) Unwrap() error { return e.Err }

// IsNoValidSource reports whether err is a source-exhaustion error.
func IsNoValidSource(err error) bool {
	var se *SourceError
	return errors.As(err, &se) && se.Code == ErrNoValidSource
}

// ProvenanceKind identifies where a bound value came from.
type ProvenanceKind string

const (
	SourceDefault            ProvenanceKind = "default"
	SourceUserInput          ProvenanceKind = "user_input"
	SourceDocumentExtraction ProvenanceKind = "document_extraction"
)

// Provenance records the origin of a bound value. For document extraction it
// carries the document, page, and extraction confidence.
type Provenance struct {
	Kind       ProvenanceKind
	DocumentID string
	Page       int
	Confidence float64
}

// AttributeBinding pairs an attribute UUID with its resolved value and
// provenance. Created here, consumed by persistence.
type AttributeBinding struct {
	AttributeID uuid.UUID
	Value       ast.Value
	Source      Provenance
}

// ValueSource is one pluggable value provider.
//
// Priority ordering: lower number = higher priority. Fetch should honor the
// context deadline; a timed-out fetch is treated as a per-source failure and
// the chain falls through.
type ValueSource interface {
	Name() string
	Priority() int
	CanHandle(id uuid.UUID) bool
	Fetch(ctx context.Context, id uuid.UUID) (ast.Value, Provenance, error)
}

// Binder walks the source chain. Sources are sorted once at construction;
// the binder performs no writes of its own.
type Binder struct {
	sources []ValueSource
	logger  *zap.Logger
}

// New creates a Binder over the given sources, sorted ascending by priority.
// Ties keep registration order (stable sort).
func New(logger *zap.Logger, sources ...ValueSource) *Binder {
	if logger == nil {
		logger = zap.NewNop()
	}
	sorted := make([]ValueSource, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Binder{sources: sorted, logger: logger}
}

// BindAttribute resolves one attribute through the chain.
func (b *Binder) BindAttribute(ctx context.Context, id uuid.UUID) (AttributeBinding, error) {
	for _, src := range b.sources {
		if err := ctx.Err(); err != nil {
			return AttributeBinding{}, err
		}
		if !src.CanHandle(id) {
			continue
		}
		val, prov, err := src.Fetch(ctx, id)
		if err != nil {
			// Non-fatal: log and fall through to the next source.
			b.logger.Debug("value source failed, falling through",
				zap.String("source", src.Name()),
				zap.String("attribute", id.String()),
				zap.Error(err))
			continue
		}
		return AttributeBinding{AttributeID: id, Value: val, Source: prov}, nil
	}
	return AttributeBinding{}, &SourceError{Code: ErrNoValidSource, AttributeID: id}
}

// BindAll resolves a set of attributes best-effort: every UUID is attempted,
// failures are collected alongside successes.
func (b *Binder) BindAll(ctx context.Context, ids []uuid.UUID) ([]AttributeBinding, []error) {
	var (
		bound []AttributeBinding
		errs  []error
	)
	for _, id := range ids {
		ab, err := b.BindAttribute(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		bound = append(bound, ab)
	}
	return bound, errs
}
