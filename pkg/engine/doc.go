// Package engine defines the boundary to the transform/bundle engine and
// provides its esbuild implementation.
//
// The engine owns parsing, syntax transformation and artifact emission. It
// knows nothing about registries or caches: every import it meets is handed
// to a [ResolveFunc], and every address it needs content for is handed to a
// [LoadFunc]. The [Request] carries both callbacks together with the entry
// source.
//
// # Resolution bases
//
// Relative imports are resolved against the base of the module that contains
// them. [Esbuild] attaches a [module.Context] to every loaded module through
// esbuild's plugin data, so the resolve callback sees the importer's base
// without any shared state between builds.
//
// # Content kinds
//
// Each [module.Kind] maps to an esbuild loader. Stylesheets become a small
// script that injects a style element, so the bundle stays a single script.
package engine
