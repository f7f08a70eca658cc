package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/livebundle/pkg/cache"
	lberrors "github.com/matzehuels/livebundle/pkg/errors"
	"github.com/matzehuels/livebundle/pkg/module"
	"github.com/matzehuels/livebundle/pkg/observability"
	"github.com/matzehuels/livebundle/pkg/registry"
)

// moduleQuery is the query modifier that selects a package's ESM variant.
const moduleQuery = "module"

// stubContent replaces platform built-ins. Named imports from a CommonJS
// module are looked up at runtime, so any import shape links.
const stubContent = "module.exports = {};\n"

// Fetcher retrieves one registry file.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*registry.Response, error)
}

// RegistryMatcher reports whether an address lives under the registry base.
// *resolve.Resolver implements it.
type RegistryMatcher interface {
	IsRegistryAddress(addr module.Address) bool
}

// Loader loads module records through the cache and the network.
// A Loader is safe for concurrent use.
type Loader struct {
	registry RegistryMatcher
	store    *cache.ModuleStore
	fetcher  Fetcher
	logger   *log.Logger
	group    singleflight.Group
}

// New creates a Loader. A nil store disables caching; a nil logger selects
// log.Default().
func New(reg RegistryMatcher, store *cache.ModuleStore, fetcher Fetcher, logger *log.Logger) *Loader {
	if store == nil {
		store = cache.NewModuleStore(nil, nil)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{registry: reg, store: store, fetcher: fetcher, logger: logger}
}

// Load returns the record for res. Remote failures degrade instead of
// returning an error. Concurrent loads of one address share a single fetch
// that outlives any one caller; a caller whose ctx ends first gets ctx.Err()
// while the others still receive the fetched record. The only other error is
// a request for the entry namespace, whose content the caller owns.
func (l *Loader) Load(ctx context.Context, res module.Resolution) (module.Record, error) {
	switch res.Namespace {
	case module.NamespaceStub:
		observability.Build().OnModuleLoad(ctx, string(res.Address), observability.LoadStub)
		return StubRecord(), nil
	case module.NamespaceRemote:
	default:
		return module.Record{}, lberrors.New(lberrors.ErrCodeInternal, "loader cannot load %s in namespace %q", res.Address, res.Namespace)
	}

	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(string(res.Address), func() (any, error) {
		return l.loadRemote(shared, res.Address), nil
	})
	select {
	case <-ctx.Done():
		return module.Record{}, ctx.Err()
	case r := <-ch:
		return r.Val.(module.Record), nil
	}
}

func (l *Loader) loadRemote(ctx context.Context, addr module.Address) module.Record {
	hooks := observability.Build()

	rec, ok, err := l.store.Get(ctx, addr)
	if err != nil {
		l.logger.Warn("cache read failed", "address", addr, "err", err)
	}
	if ok {
		l.logger.Debug("cache hit", "address", addr)
		hooks.OnModuleLoad(ctx, string(addr), observability.LoadCached)
		return rec
	}

	rec, err = l.fetch(ctx, string(addr))
	outcome := observability.LoadFetched
	if err != nil && l.retryable(addr) {
		l.logger.Debug("fetch failed, retrying with module modifier", "address", addr, "err", err)
		var retryErr error
		if rec, retryErr = l.fetch(ctx, withModuleQuery(string(addr))); retryErr == nil {
			err = nil
			outcome = observability.LoadRetried
		}
	}
	if err != nil {
		l.logger.Warn("dependency unavailable, substituting empty module", "address", addr, "err", lberrors.UserMessage(err))
		hooks.OnModuleLoad(ctx, string(addr), observability.LoadDegraded)
		return DegradedRecord(addr, err)
	}

	if err := l.store.Put(ctx, addr, rec); err != nil {
		l.logger.Warn("cache write failed", "address", addr, "err", err)
	}
	l.logger.Debug("fetched", "address", addr, "kind", rec.Kind, "bytes", len(rec.Content))
	hooks.OnModuleLoad(ctx, string(addr), outcome)
	return rec
}

func (l *Loader) fetch(ctx context.Context, rawURL string) (module.Record, error) {
	resp, err := l.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return module.Record{}, err
	}
	return module.Record{
		Content: string(resp.Body),
		Kind:    classify(resp.URL, rawURL),
		Base:    baseOf(resp.URL),
	}, nil
}

// retryable reports whether a failed fetch of addr gets a second attempt.
func (l *Loader) retryable(addr module.Address) bool {
	if l.registry == nil || !l.registry.IsRegistryAddress(addr) {
		return false
	}
	u, err := url.Parse(string(addr))
	if err != nil {
		return false
	}
	return !u.Query().Has(moduleQuery)
}

// StubRecord is the record returned for stub addresses.
func StubRecord() module.Record {
	return module.Record{Content: stubContent, Kind: module.KindScript}
}

// DegradedRecord is the record substituted for an address that could not be
// fetched. It warns when executed and exports an empty default.
func DegradedRecord(addr module.Address, cause error) module.Record {
	msg := fmt.Sprintf("[livebundle] could not load %s: %s", addr, lberrors.UserMessage(cause))
	quoted, _ := json.Marshal(msg)
	return module.Record{
		Content: fmt.Sprintf("console.warn(%s);\nmodule.exports = {};\n", quoted),
		Kind:    module.KindScript,
		Base:    baseOf(string(addr)),
	}
}

func withModuleQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL + "?" + moduleQuery
	}
	u.RawQuery += "&" + moduleQuery
	return u.String()
}

// classify sniffs the kind from the final URL, falling back to the requested
// one when the final path has no recognized extension.
func classify(finalURL, requested string) module.Kind {
	for _, raw := range []string{finalURL, requested} {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if k, ok := module.KindForPath(u.Path); ok {
			return k
		}
	}
	return module.KindScript
}

// baseOf returns the directory URL of rawURL, without query or fragment.
func baseOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.ResolveReference(&url.URL{Path: "./"}).String()
}
