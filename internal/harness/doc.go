// Package harness runs declarative end-to-end scenarios: a DSL program plus
// expectations about the compiled plan and the session outcome, loaded from
// YAML. Test suites point it at testdata scenarios instead of hand-wiring
// parse/compile/execute in every test.
package harness
