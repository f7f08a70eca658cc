package engine

import (
	"context"
	"maps"

	"github.com/matzehuels/livebundle/pkg/module"
)

// ResolveFunc maps an import specifier found in the module described by from
// to the address the engine should load next.
type ResolveFunc func(specifier string, from module.Context) module.Resolution

// LoadFunc returns the content of a resolved address. Entry addresses are
// never passed to it; the engine reads the entry from [Request.Source].
type LoadFunc func(ctx context.Context, res module.Resolution) (module.Record, error)

// Engine transforms and bundles one entry module and everything it imports.
type Engine interface {
	// Init prepares the engine. It is called once before the first Build and
	// again only after a failed Init.
	Init(ctx context.Context) error

	// Build bundles req into a single script.
	Build(ctx context.Context, req Request) (Output, error)
}

// Request describes one build.
type Request struct {
	// Source is the content of the entry module.
	Source string

	// Entry is the entry specifier. Empty selects [module.EntryName].
	Entry string

	Resolve ResolveFunc
	Load    LoadFunc
	Options Options
}

// Output is the artifact of a successful build.
type Output struct {
	Code     string
	Warnings []string

	// Metafile is the engine's JSON description of inputs and imports,
	// when the engine produces one.
	Metafile []byte
}

// Options configures code generation.
type Options struct {
	// Target is the language level of the output, e.g. "es2015".
	Target string

	JSXFactory  string
	JSXFragment string

	// EntryKind selects how the entry source is parsed. Empty means JSX.
	EntryKind module.Kind

	// Define replaces global identifiers with constant expressions.
	Define map[string]string
}

// DefaultOptions returns the preview configuration: ES2015 output with the
// classic React JSX runtime and a development NODE_ENV.
func DefaultOptions() Options {
	return Options{
		Target:      "es2015",
		JSXFactory:  "React.createElement",
		JSXFragment: "React.Fragment",
		EntryKind:   module.KindJSX,
		Define:      map[string]string{"process.env.NODE_ENV": `"development"`},
	}
}

// WithDefaults fills unset fields from [DefaultOptions].
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Target == "" {
		o.Target = d.Target
	}
	if o.JSXFactory == "" {
		o.JSXFactory = d.JSXFactory
	}
	if o.JSXFragment == "" {
		o.JSXFragment = d.JSXFragment
	}
	if o.EntryKind == "" {
		o.EntryKind = d.EntryKind
	}
	if o.Define == nil {
		o.Define = d.Define
	} else {
		o.Define = maps.Clone(o.Define)
	}
	return o
}
