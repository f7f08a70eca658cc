package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// Counters implements every hook interface by counting events.
// The zero value is ready to use and safe for concurrent use.
type Counters struct {
	Inits     atomic.Int64
	Builds    atomic.Int64
	Failures  atomic.Int64
	Requests  atomic.Int64
	HTTPErrs  atomic.Int64
	CacheHits atomic.Int64
	CacheMiss atomic.Int64
	CacheSets atomic.Int64

	Stubbed  atomic.Int64
	Cached   atomic.Int64
	Fetched  atomic.Int64
	Retried  atomic.Int64
	Degraded atomic.Int64
}

// Snapshot is a point-in-time copy of module load counts.
type Snapshot struct {
	Stubbed  int64 `json:"stubbed"`
	Cached   int64 `json:"cached"`
	Fetched  int64 `json:"fetched"`
	Retried  int64 `json:"retried"`
	Degraded int64 `json:"degraded"`
	Requests int64 `json:"requests"`
}

// Snapshot returns the current module load counts.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Stubbed:  c.Stubbed.Load(),
		Cached:   c.Cached.Load(),
		Fetched:  c.Fetched.Load(),
		Retried:  c.Retried.Load(),
		Degraded: c.Degraded.Load(),
		Requests: c.Requests.Load(),
	}
}

// Sub returns the difference s - prev.
func (s Snapshot) Sub(prev Snapshot) Snapshot {
	return Snapshot{
		Stubbed:  s.Stubbed - prev.Stubbed,
		Cached:   s.Cached - prev.Cached,
		Fetched:  s.Fetched - prev.Fetched,
		Retried:  s.Retried - prev.Retried,
		Degraded: s.Degraded - prev.Degraded,
		Requests: s.Requests - prev.Requests,
	}
}

func (c *Counters) OnInitStart(context.Context)                          {}
func (c *Counters) OnInitComplete(context.Context, time.Duration, error) { c.Inits.Add(1) }
func (c *Counters) OnBuildStart(context.Context, string, int)            {}

func (c *Counters) OnBuildComplete(_ context.Context, _ string, _ int, _ time.Duration, err error) {
	c.Builds.Add(1)
	if err != nil {
		c.Failures.Add(1)
	}
}

func (c *Counters) OnModuleLoad(_ context.Context, _ string, outcome LoadOutcome) {
	switch outcome {
	case LoadStub:
		c.Stubbed.Add(1)
	case LoadCached:
		c.Cached.Add(1)
	case LoadFetched:
		c.Fetched.Add(1)
	case LoadRetried:
		c.Retried.Add(1)
	case LoadDegraded:
		c.Degraded.Add(1)
	}
}

func (c *Counters) OnCacheHit(context.Context, string)      { c.CacheHits.Add(1) }
func (c *Counters) OnCacheMiss(context.Context, string)     { c.CacheMiss.Add(1) }
func (c *Counters) OnCacheSet(context.Context, string, int) { c.CacheSets.Add(1) }

func (c *Counters) OnRequest(context.Context, string, string, string) { c.Requests.Add(1) }
func (c *Counters) OnResponse(context.Context, string, string, string, int, time.Duration) {
}
func (c *Counters) OnError(context.Context, string, string, string, error) { c.HTTPErrs.Add(1) }

var (
	_ BuildHooks = (*Counters)(nil)
	_ CacheHooks = (*Counters)(nil)
	_ HTTPHooks  = (*Counters)(nil)
)
