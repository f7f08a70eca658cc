package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/matzehuels/livebundle/pkg/bundler"
	"github.com/matzehuels/livebundle/pkg/cache"
	"github.com/matzehuels/livebundle/pkg/config"
	"github.com/matzehuels/livebundle/pkg/engine"
	"github.com/matzehuels/livebundle/pkg/loader"
	"github.com/matzehuels/livebundle/pkg/module"
	"github.com/matzehuels/livebundle/pkg/observability"
	"github.com/matzehuels/livebundle/pkg/registry"
	"github.com/matzehuels/livebundle/pkg/resolve"
)

// stack is the wired bundling pipeline for one command invocation.
type stack struct {
	cfg      config.Config
	counters *observability.Counters
	resolver *resolve.Resolver
	store    *cache.ModuleStore
	bundler  *bundler.Bundler
}

// newStack connects the configured cache and assembles resolver, loader and
// bundler for the entry file at path. An unreachable cache backend is logged
// and replaced by no cache.
func (c *CLI) newStack(ctx context.Context, cfg config.Config, path string) (*stack, error) {
	r, err := resolve.New(cfg.Registry.BaseURL)
	if err != nil {
		return nil, err
	}

	backend, err := cfg.OpenCache(ctx)
	if err != nil {
		c.Logger.Warn("cache unavailable, continuing without it", "backend", cfg.Cache.Backend, "err", err)
		backend = cache.NewNullCache()
	}
	store := cache.NewModuleStore(backend, cfg.Keyer())

	counters := &observability.Counters{}
	observability.SetBuildHooks(counters)
	observability.SetCacheHooks(counters)
	observability.SetHTTPHooks(counters)

	client := registry.NewClient(registry.Options{Timeout: cfg.Registry.Timeout})
	l := loader.New(r, store, client, c.Logger)

	opts := cfg.EngineOptions()
	opts.EntryKind = entryKind(path)
	b := bundler.New(engine.NewEsbuild(), r, l, c.Logger, bundler.WithEngineOptions(opts))

	return &stack{cfg: cfg, counters: counters, resolver: r, store: store, bundler: b}, nil
}

func (s *stack) Close() error {
	observability.Reset()
	return s.store.Close()
}

// entryKind selects the parser for the entry file. Plain .js files may
// contain JSX.
func entryKind(path string) module.Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts":
		return module.KindTypedScript
	case ".tsx":
		return module.KindTypedJSX
	default:
		return module.KindJSX
	}
}
