// Package engine executes compiled plans against the entity store.
//
// The engine walks an ExecutionPlan's steps in order inside a single
// session. Symbolic arguments are resolved through the session's symbol
// table: captures from earlier steps and pre-seeded external context, with
// last write winning on rebinding. Attribute references resolve through the
// value binder's source chain.
//
// Two execution modes:
//
//   - best-effort (default): a failed step is recorded and execution
//     continues; later steps that depend on its capture fail in turn.
//   - atomic: all store writes run in one transaction; the first failure
//     rolls everything back.
//
// Structural problems - an unknown verb, a missing handler, a forward
// injection - abort the session in both modes; they indicate a plan the
// compiler should never have produced.
package engine
