// Package bundler is the public entry point of livebundle: it turns one
// source string into one self-contained script.
//
// [Bundler.Bundle] initializes the engine on first use, runs a build with the
// resolver and loader wired in as callbacks, and post-processes the output so
// it runs as a classic script:
//
//   - module export syntax is stripped, keeping the declarations
//   - the user's component is located by name and published on globalThis
//     under its own name and under "default"
//
// Bundle never returns an error value: every failure, including a panic in
// the engine, is reported through [Result.Error].
//
// # Initialization
//
// Engine initialization is guarded by a small state machine (see
// [InitState]). Concurrent first callers share one initialization attempt;
// a failed attempt resets the state so a later call retries.
//
// # Component detection
//
// The component is the capitalized binding of the default export when there
// is one. Otherwise the first capitalized top-level function declaration or
// const/let/var binding wins, in source order. Modules with several such
// bindings and no default export therefore expose whichever comes first.
package bundler
