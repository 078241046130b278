// Package search maps free-text operator phrases to DSL verbs.
//
// Five evidence channels run over a normalized query: operator macros
// (exact business vocabulary), globally learned phrases, per-user learned
// phrases, semantic nearest-neighbor over embedded invocation patterns, and
// a phonetic channel that survives misspellings. Per-verb evidence fuses by
// taking the maximum raw channel score; no channel weighting.
//
// Two modes: fast short-circuits on a macro hit, ensemble always runs every
// channel and fuses. Both are deterministic for a given index snapshot -
// candidates accumulate completely before ranking, and ties break on verb
// name.
//
// The learned index is an immutable snapshot behind an atomic pointer.
// Warmup and feedback build a fresh snapshot and swap it in; searches never
// block on writes.
package search
