package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	b := NoopBuildHooks{}
	b.OnInitStart(ctx)
	b.OnInitComplete(ctx, time.Second, nil)
	b.OnBuildStart(ctx, "id", 42)
	b.OnBuildComplete(ctx, "id", 1024, time.Second, nil)
	b.OnModuleLoad(ctx, "https://unpkg.com/react", LoadFetched)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "module")
	c.OnCacheMiss(ctx, "module")
	c.OnCacheSet(ctx, "module", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "unpkg.com", "/react")
	h.OnResponse(ctx, "GET", "unpkg.com", "/react", 200, time.Second)
	h.OnError(ctx, "GET", "unpkg.com", "/react", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Build().(NoopBuildHooks); !ok {
		t.Error("Build() should return NoopBuildHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customBuild := &testBuildHooks{}
	SetBuildHooks(customBuild)
	if Build() != customBuild {
		t.Error("SetBuildHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Build().(NoopBuildHooks); !ok {
		t.Error("Reset() should restore NoopBuildHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testBuildHooks{}
	SetBuildHooks(custom)
	SetBuildHooks(nil)

	if Build() != custom {
		t.Error("SetBuildHooks(nil) should be ignored")
	}

	Reset()
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	c := &Counters{}

	before := c.Snapshot()
	c.OnModuleLoad(ctx, "fs", LoadStub)
	c.OnModuleLoad(ctx, "a", LoadFetched)
	c.OnModuleLoad(ctx, "b", LoadFetched)
	c.OnModuleLoad(ctx, "c", LoadCached)
	c.OnModuleLoad(ctx, "d", LoadRetried)
	c.OnModuleLoad(ctx, "e", LoadDegraded)
	c.OnRequest(ctx, "GET", "h", "/a")
	c.OnBuildComplete(ctx, "id", 0, time.Millisecond, errors.New("boom"))
	c.OnInitComplete(ctx, time.Millisecond, nil)

	d := c.Snapshot().Sub(before)
	want := Snapshot{Stubbed: 1, Cached: 1, Fetched: 2, Retried: 1, Degraded: 1, Requests: 1}
	if d != want {
		t.Errorf("Snapshot diff = %+v, want %+v", d, want)
	}
	if c.Builds.Load() != 1 || c.Failures.Load() != 1 || c.Inits.Load() != 1 {
		t.Errorf("builds=%d failures=%d inits=%d", c.Builds.Load(), c.Failures.Load(), c.Inits.Load())
	}
}

// Test implementations
type testBuildHooks struct{ NoopBuildHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
