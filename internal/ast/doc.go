// Package ast provides the parsed representation of the onboarding DSL.
//
// This package contains type definitions only. All other internal packages
// import ast; ast imports nothing internal. This keeps the AST the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Value is a sealed union; the compiler type-checks argument shapes
//     exhaustively against it
//   - SymbolRef and AttrRef are distinct from literals - distinguishing them
//     is what enables deferred resolution
//   - Programs and VerbCalls are immutable once parsed
//   - Render produces canonical surface text; Parse(Render(p)) == p
package ast
