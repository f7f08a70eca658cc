package bundler

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/livebundle/pkg/engine"
	lberrors "github.com/matzehuels/livebundle/pkg/errors"
	"github.com/matzehuels/livebundle/pkg/modgraph"
	"github.com/matzehuels/livebundle/pkg/module"
	"github.com/matzehuels/livebundle/pkg/observability"
)

// Result is the outcome of one build. Exactly one of Code and Error is set.
type Result struct {
	// ID identifies the build in logs and live-reload messages.
	ID string `json:"id,omitempty"`

	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`

	// Component is the name published on globalThis, if one was found.
	Component string `json:"component,omitempty"`
}

// OK reports whether the build succeeded.
func (r Result) OK() bool { return r.Error == "" }

// Resolver maps import specifiers to addresses. *resolve.Resolver
// implements it.
type Resolver interface {
	Resolve(specifier string, from module.Context) module.Resolution
}

// Loader returns module records. *loader.Loader implements it.
type Loader interface {
	Load(ctx context.Context, res module.Resolution) (module.Record, error)
}

// Option configures a Bundler.
type Option func(*Bundler)

// WithEngineOptions sets the code generation options passed to every build.
func WithEngineOptions(o engine.Options) Option {
	return func(b *Bundler) { b.options = o }
}

// Bundler orchestrates builds. It is safe for concurrent use; builds run in
// parallel once the engine is ready.
type Bundler struct {
	engine   engine.Engine
	resolver Resolver
	loader   Loader
	logger   *log.Logger
	options  engine.Options
	barrier  *barrier
}

// New creates a Bundler. A nil logger selects log.Default().
func New(eng engine.Engine, resolver Resolver, loader Loader, logger *log.Logger, opts ...Option) *Bundler {
	if logger == nil {
		logger = log.Default()
	}
	b := &Bundler{
		engine:   eng,
		resolver: resolver,
		loader:   loader,
		logger:   logger,
		options:  engine.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.barrier = newBarrier(b.initEngine)
	return b
}

// State returns the engine readiness state.
func (b *Bundler) State() InitState { return b.barrier.State() }

// Bundle builds source into a self-contained script.
func (b *Bundler) Bundle(ctx context.Context, source string) Result {
	res, _ := b.build(ctx, source, false)
	return res
}

// BundleGraph builds source like [Bundler.Bundle] and also returns the import
// graph of the build. The graph is nil when the build failed.
func (b *Bundler) BundleGraph(ctx context.Context, source string) (Result, *modgraph.Graph) {
	return b.build(ctx, source, true)
}

func (b *Bundler) initEngine(ctx context.Context) error {
	hooks := observability.Build()
	start := time.Now()
	hooks.OnInitStart(ctx)
	b.logger.Debug("initializing engine")

	err := b.engine.Init(ctx)
	hooks.OnInitComplete(ctx, time.Since(start), err)
	if err != nil {
		b.logger.Error("engine init failed", "err", err)
		return err
	}
	b.logger.Debug("engine ready", "took", time.Since(start).Round(time.Millisecond))
	return nil
}

func (b *Bundler) build(ctx context.Context, source string, withGraph bool) (Result, *modgraph.Graph) {
	id := uuid.NewString()
	logger := b.logger.With("build", id[:8])
	hooks := observability.Build()
	start := time.Now()
	hooks.OnBuildStart(ctx, id, len(source))

	out, err := b.compile(ctx, source)
	res := Result{ID: id}
	if err != nil {
		res.Error = lberrors.UserMessage(err)
		hooks.OnBuildComplete(ctx, id, 0, time.Since(start), err)
		logger.Warn("build failed", "code", lberrors.GetCode(err), "err", res.Error)
		return res, nil
	}

	for _, w := range out.Warnings {
		logger.Debug("engine warning", "msg", w)
	}
	res.Code, res.Component = Expose(out.Code)
	hooks.OnBuildComplete(ctx, id, len(res.Code), time.Since(start), nil)
	logger.Info("build complete",
		"component", res.Component,
		"bytes", len(res.Code),
		"took", time.Since(start).Round(time.Millisecond))

	if !withGraph {
		return res, nil
	}
	g, err := modgraph.FromMetafile(out.Metafile)
	if err != nil {
		logger.Warn("import graph unavailable", "err", err)
		return res, modgraph.New()
	}
	return res, g
}

// compile runs the engine. Panics in the engine or its callbacks are
// converted to errors.
func (b *Bundler) compile(ctx context.Context, source string) (out engine.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = lberrors.New(lberrors.ErrCodeInternal, "engine panicked: %v", r)
		}
	}()

	if err := lberrors.ValidateSource(source); err != nil {
		return engine.Output{}, err
	}
	if err := b.barrier.Wait(ctx); err != nil {
		return engine.Output{}, err
	}
	out, err = b.engine.Build(ctx, engine.Request{
		Source:  source,
		Entry:   module.EntryName,
		Resolve: b.resolver.Resolve,
		Load:    b.loader.Load,
		Options: b.options,
	})
	if err == nil && blank(out.Code) {
		return engine.Output{}, lberrors.New(lberrors.ErrCodeBuildFailed, "build produced no output")
	}
	return out, err
}

// blank reports whether code holds nothing but whitespace and line comments.
func blank(code string) bool {
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "//") {
			return false
		}
	}
	return true
}
