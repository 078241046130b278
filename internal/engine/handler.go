package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/halcyonfs/obdsl/internal/ast"
	"github.com/halcyonfs/obdsl/internal/compiler"
	"github.com/halcyonfs/obdsl/internal/store"
	"github.com/halcyonfs/obdsl/internal/vocab"
)

// Invocation is the resolved input to one step's handler. Args carry no
// symbolic values; injection and attribute resolution happen before dispatch.
type Invocation struct {
	SessionID string
	Step      compiler.ExecutionStep
	Spec      *vocab.VerbSpec
	Args      map[string]ast.Value

	// Exec is the write surface: the database in best-effort mode, the
	// session transaction in atomic mode.
	Exec store.Execer
}

// Handler executes one resolved step and returns the value captured under
// the step's binding, if any.
type Handler interface {
	Execute(ctx context.Context, inv *Invocation) (ast.Value, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, inv *Invocation) (ast.Value, error)

func (f HandlerFunc) Execute(ctx context.Context, inv *Invocation) (ast.Value, error) {
	return f(ctx, inv)
}

// crudHandler drives the entity store from a verb's CRUD mapping. One
// instance serves every crud-behavior verb; the operation and entity type
// come from the verb spec.
type crudHandler struct {
	store *store.Store
}

func (h *crudHandler) Execute(ctx context.Context, inv *Invocation) (ast.Value, error) {
	crud := inv.Spec.Crud
	if crud == nil {
		return nil, fmt.Errorf("verb %s has crud behavior but no crud mapping", inv.Spec.FullName())
	}
	switch crud.Operation {
	case "create":
		return h.create(ctx, inv, crud.EntityType)
	case "update":
		return h.update(ctx, inv)
	case "delete":
		return h.delete(ctx, inv)
	case "link":
		return h.link(ctx, inv)
	case "lookup":
		return h.lookup(ctx, inv)
	default:
		return nil, fmt.Errorf("unsupported crud operation %q", crud.Operation)
	}
}

func (h *crudHandler) create(ctx context.Context, inv *Invocation, entityType string) (ast.Value, error) {
	attrs := make(map[string]any, len(inv.Args))
	for name, v := range inv.Args {
		attrs[name] = valueToGo(v)
	}
	id, err := h.store.CreateEntity(ctx, inv.Exec, entityType, attrs)
	if err != nil {
		return nil, err
	}
	return ast.RawUUID(id), nil
}

func (h *crudHandler) update(ctx context.Context, inv *Invocation) (ast.Value, error) {
	id, err := requireUUIDArg(inv, "id")
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]any, len(inv.Args))
	for name, v := range inv.Args {
		if name == "id" {
			continue
		}
		attrs[name] = valueToGo(v)
	}
	if err := h.store.UpdateEntity(ctx, inv.Exec, id, attrs); err != nil {
		return nil, err
	}
	return ast.RawUUID(id), nil
}

func (h *crudHandler) delete(ctx context.Context, inv *Invocation) (ast.Value, error) {
	id, err := requireUUIDArg(inv, "id")
	if err != nil {
		return nil, err
	}
	if err := h.store.DeleteEntity(ctx, inv.Exec, id); err != nil {
		return nil, err
	}
	return ast.Bool(true), nil
}

// link reads its endpoints positionally from the verb spec: the first two
// uuid-typed arguments are the from and to entities, :role names the edge,
// and an optional :ownership number carries a percentage.
func (h *crudHandler) link(ctx context.Context, inv *Invocation) (ast.Value, error) {
	var ends []uuid.UUID
	for _, a := range inv.Spec.Args {
		if a.Type != vocab.TypeUUID {
			continue
		}
		id, err := requireUUIDArg(inv, a.Name)
		if err != nil {
			return nil, err
		}
		ends = append(ends, id)
		if len(ends) == 2 {
			break
		}
	}
	if len(ends) != 2 {
		return nil, fmt.Errorf("link verb %s needs two uuid arguments", inv.Spec.FullName())
	}
	l := store.Link{FromID: ends[0], ToID: ends[1]}
	if v, ok := inv.Args["role"]; ok {
		if s, ok := v.(ast.String); ok {
			l.Role = string(s)
		}
	}
	if v, ok := inv.Args["ownership"]; ok {
		if n, ok := v.(ast.Number); ok {
			pct := float64(n)
			l.Ownership = &pct
		}
	}
	if err := h.store.LinkEntities(ctx, inv.Exec, l); err != nil {
		return nil, err
	}
	return ast.Bool(true), nil
}

func (h *crudHandler) lookup(ctx context.Context, inv *Invocation) (ast.Value, error) {
	id, err := requireUUIDArg(inv, "id")
	if err != nil {
		return nil, err
	}
	ent, err := h.store.GetEntity(ctx, inv.Exec, id)
	if err != nil {
		return nil, err
	}
	out := ast.Map{"id": ast.RawUUID(ent.ID), "entity-type": ast.String(ent.EntityType)}
	for k, v := range ent.Attrs {
		out[k] = goToValue(v)
	}
	return out, nil
}

func requireUUIDArg(inv *Invocation, name string) (uuid.UUID, error) {
	v, ok := inv.Args[name]
	if !ok {
		return uuid.Nil, fmt.Errorf("missing :%s argument", name)
	}
	switch t := v.(type) {
	case ast.RawUUID:
		return t.UUID(), nil
	case ast.AttrRef:
		return t.UUID(), nil
	case ast.String:
		id, err := uuid.Parse(string(t))
		if err != nil {
			return uuid.Nil, fmt.Errorf(":%s is not a UUID: %w", name, err)
		}
		return id, nil
	default:
		return uuid.Nil, fmt.Errorf(":%s is not a UUID (got %T)", name, v)
	}
}

// valueToGo lowers an AST value to the plain Go shape stored in entity
// attribute JSON.
func valueToGo(v ast.Value) any {
	switch t := v.(type) {
	case ast.String:
		return string(t)
	case ast.Number:
		return float64(t)
	case ast.Bool:
		return bool(t)
	case ast.RawUUID:
		return t.UUID().String()
	case ast.AttrRef:
		return t.UUID().String()
	case ast.List:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = valueToGo(el)
		}
		return out
	case ast.Map:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = valueToGo(el)
		}
		return out
	default:
		return v.Render()
	}
}

func goToValue(v any) ast.Value {
	switch t := v.(type) {
	case string:
		return ast.String(t)
	case float64:
		return ast.Number(t)
	case bool:
		return ast.Bool(t)
	case []any:
		out := make(ast.List, len(t))
		for i, el := range t {
			out[i] = goToValue(el)
		}
		return out
	case map[string]any:
		out := make(ast.Map, len(t))
		for k, el := range t {
			out[k] = goToValue(el)
		}
		return out
	case nil:
		return ast.String("")
	default:
		return ast.String(fmt.Sprint(t))
	}
}
