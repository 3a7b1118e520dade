// Package ir provides the data model shared by every stage of the pipeline
// compiler.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps ir the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Mapping remembers insertion order; merge precedence and output order
//     depend on it, never on Go map iteration
//   - Diagnostics are values: every stage collects them instead of failing fast
//   - CompileResult is either jobs+warnings or errors, never both
//   - All JSON tags use snake_case
package ir
