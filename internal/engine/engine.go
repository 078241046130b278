package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/halcyonfs/obdsl/internal/ast"
	"github.com/halcyonfs/obdsl/internal/binder"
	"github.com/halcyonfs/obdsl/internal/compiler"
	"github.com/halcyonfs/obdsl/internal/store"
	"github.com/halcyonfs/obdsl/internal/vocab"
)

// Mode selects the session's failure semantics.
type Mode string

const (
	// ModeBestEffort records failed steps and keeps going.
	ModeBestEffort Mode = "best-effort"
	// ModeAtomic runs every store write in one transaction; the first
	// failure rolls the whole session back.
	ModeAtomic Mode = "atomic"
)

// DefaultMaxSteps bounds a session. Plans longer than this are rejected
// before any step runs.
const DefaultMaxSteps = 1000

// StepStatus is the outcome of one step.
type StepStatus string

const (
	StepOK     StepStatus = "ok"
	StepFailed StepStatus = "failed"
)

// StepResult records one step's outcome for the session report.
type StepResult struct {
	Index  int
	Verb   string
	Status StepStatus
	// Result is the captured value for successful steps that bind one.
	Result ast.Value
	Err    string
}

// SessionReport summarizes a plan execution.
type SessionReport struct {
	SessionID string
	Mode      Mode
	Steps     []StepResult
	// Resolved counts injections resolved from captures or context.
	Resolved int
	// Stored counts steps that completed and wrote to the store.
	Stored int
	// Failed counts steps that did not complete.
	Failed int
}

// Engine executes compiled plans. Construct once, execute many plans; each
// ExecutePlan call is an independent session.
type Engine struct {
	store    *store.Store
	registry *vocab.Registry
	binder   *binder.Binder
	logger   *zap.Logger
	handlers map[string]Handler
	crud     Handler
	mode     Mode
	maxSteps int
}

// Option configures the engine.
type Option func(*Engine)

// WithMode sets the failure semantics. Default best-effort.
func WithMode(m Mode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithMaxSteps sets the per-session step budget.
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// WithBinder attaches the value binder used to resolve attribute references
// at execution time. Without one, plans containing attribute references fail
// at the step that uses them.
func WithBinder(b *binder.Binder) Option {
	return func(e *Engine) { e.binder = b }
}

// New creates an Engine over the store and verb registry.
func New(s *store.Store, reg *vocab.Registry, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:    s,
		registry: reg,
		logger:   logger,
		handlers: make(map[string]Handler),
		crud:     &crudHandler{store: s},
		mode:     ModeBestEffort,
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterHandler registers a custom operation handler under its id, the key
// verb schemas name in their handler field.
func (e *Engine) RegisterHandler(id string, h Handler) error {
	if _, dup := e.handlers[id]; dup {
		return fmt.Errorf("handler %q already registered", id)
	}
	e.handlers[id] = h
	return nil
}

// ExecutePlan runs a compiled plan as one session. The external map pre-seeds
// the symbol table (context-sourced injections resolve against it).
//
// The returned report is non-nil whenever execution started; in atomic mode a
// failed session returns both the report and the error that aborted it.
func (e *Engine) ExecutePlan(ctx context.Context, plan *compiler.ExecutionPlan, external map[string]ast.Value) (*SessionReport, error) {
	if plan == nil {
		return nil, structural(CodeNilPlan, -1, "", "nil execution plan")
	}
	if len(plan.Steps) > e.maxSteps {
		return nil, structural(CodeMaxStepsExceeded, -1, "",
			"plan has %d steps, budget is %d", len(plan.Steps), e.maxSteps)
	}

	// The plan is shared and immutable; the session id lives in the report
	// and invocations, never on the plan.
	sessionID := uuid.NewString()
	report := &SessionReport{SessionID: sessionID, Mode: e.mode}
	ectx := NewExecutionContext(external)

	e.logger.Info("session starting",
		zap.String("session_id", sessionID),
		zap.String("mode", string(e.mode)),
		zap.Int("steps", len(plan.Steps)))

	var err error
	if e.mode == ModeAtomic {
		err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
			return e.runSteps(ctx, sessionID, plan, ectx, report, tx)
		})
	} else {
		err = e.runSteps(ctx, sessionID, plan, ectx, report, e.store.Exec())
	}

	e.logger.Info("session finished",
		zap.String("session_id", sessionID),
		zap.Int("stored", report.Stored),
		zap.Int("failed", report.Failed),
		zap.Error(err))
	return report, err
}

// runSteps walks the plan in order. A returned error is either structural or,
// in atomic mode, the first step failure (which aborts the transaction).
func (e *Engine) runSteps(ctx context.Context, sessionID string, plan *compiler.ExecutionPlan, ectx *ExecutionContext, report *SessionReport, exec store.Execer) error {
	for i := range plan.Steps {
		step := plan.Steps[i]

		spec, ok := e.registry.LookupFull(step.Verb)
		if !ok {
			return structural(CodeUnknownVerb, step.Index, step.Verb, "verb not in registry")
		}
		handler, err := e.handlerFor(step, spec)
		if err != nil {
			return err
		}

		args, stepErr := e.resolveArgs(ctx, &step, ectx, report)
		if stepErr == nil {
			inv := &Invocation{
				SessionID: sessionID,
				Step:      step,
				Spec:      spec,
				Args:      args,
				Exec:      exec,
			}
			var result ast.Value
			result, stepErr = handler.Execute(ctx, inv)
			if stepErr == nil {
				report.Stored++
				if step.BindAs != "" {
					ectx.Set(step.BindAs, result)
				}
				report.Steps = append(report.Steps, StepResult{
					Index: step.Index, Verb: step.Verb, Status: StepOK, Result: result,
				})
				e.logger.Debug("step ok",
					zap.Int("step", step.Index), zap.String("verb", step.Verb))
				continue
			}
		}

		// A structural error escapes even in best-effort mode.
		var ee *EngineError
		if errors.As(stepErr, &ee) {
			return ee
		}

		report.Failed++
		report.Steps = append(report.Steps, StepResult{
			Index: step.Index, Verb: step.Verb, Status: StepFailed, Err: stepErr.Error(),
		})
		e.logger.Warn("step failed",
			zap.Int("step", step.Index),
			zap.String("verb", step.Verb),
			zap.Error(stepErr))
		if e.mode == ModeAtomic {
			return fmt.Errorf("step %d (%s): %w", step.Index, step.Verb, stepErr)
		}
	}
	return nil
}

func (e *Engine) handlerFor(step compiler.ExecutionStep, spec *vocab.VerbSpec) (Handler, error) {
	switch spec.Behavior {
	case vocab.BehaviorCrud:
		return e.crud, nil
	case vocab.BehaviorCustom:
		h, ok := e.handlers[step.HandlerID]
		if !ok {
			return nil, structural(CodeNoHandler, step.Index, step.Verb,
				"no handler registered for %q", step.HandlerID)
		}
		return h, nil
	default:
		return nil, structural(CodeNoHandler, step.Index, step.Verb,
			"unknown behavior %q", spec.Behavior)
	}
}

// resolveArgs materializes a step's arguments: injected symbols come from the
// session context, attribute references go through the binder, and nested
// symbolic values inside lists and maps are substituted in place.
func (e *Engine) resolveArgs(ctx context.Context, step *compiler.ExecutionStep, ectx *ExecutionContext, report *SessionReport) (map[string]ast.Value, error) {
	injections := make(map[string]compiler.Injection, len(step.Injections))
	for _, in := range step.Injections {
		if in.FromStep != compiler.ContextStep && in.FromStep >= step.Index {
			return nil, structural(CodeForwardInjection, step.Index, step.Verb,
				":%s sourced from step %d", in.IntoArg, in.FromStep)
		}
		injections[in.IntoArg] = in
	}

	args := make(map[string]ast.Value, len(step.Call.Args))
	for _, a := range step.Call.Args {
		if in, ok := injections[a.Name]; ok {
			v, ok := ectx.Get(in.Symbol)
			if !ok {
				// The producing step failed (or a context key is absent);
				// this step cannot run.
				return nil, fmt.Errorf("symbol @%s has no value", in.Symbol)
			}
			report.Resolved++
			args[a.Name] = v
			continue
		}
		v, err := e.resolveValue(ctx, a.Value, ectx)
		if err != nil {
			return nil, fmt.Errorf("argument :%s: %w", a.Name, err)
		}
		args[a.Name] = v
	}
	return args, nil
}

func (e *Engine) resolveValue(ctx context.Context, v ast.Value, ectx *ExecutionContext) (ast.Value, error) {
	switch t := v.(type) {
	case ast.SymbolRef:
		bound, ok := ectx.Get(string(t))
		if !ok {
			return nil, fmt.Errorf("symbol @%s has no value", string(t))
		}
		return bound, nil
	case ast.AttrRef:
		if e.binder == nil {
			return nil, fmt.Errorf("attribute %s: no value binder configured", t.UUID())
		}
		ab, err := e.binder.BindAttribute(ctx, t.UUID())
		if err != nil {
			return nil, err
		}
		return ab.Value, nil
	case ast.List:
		out := make(ast.List, len(t))
		for i, el := range t {
			r, err := e.resolveValue(ctx, el, ectx)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case ast.Map:
		out := make(ast.Map, len(t))
		for k, el := range t {
			r, err := e.resolveValue(ctx, el, ectx)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return v, nil
	}
}
