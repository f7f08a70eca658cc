package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/livebundle/pkg/bundler"
	"github.com/matzehuels/livebundle/pkg/observability"
)

// stubBundler fails for sources containing "broken" and echoes the rest.
type stubBundler struct {
	mu    sync.Mutex
	calls int
}

func (b *stubBundler) Bundle(_ context.Context, source string) bundler.Result {
	b.mu.Lock()
	b.calls++
	n := b.calls
	b.mu.Unlock()

	id := "build-" + string(rune('0'+n))
	if strings.Contains(source, "broken") {
		return bundler.Result{ID: id, Error: "Unexpected token"}
	}
	return bundler.Result{ID: id, Code: "/* " + source + " */", Component: "App"}
}

func (b *stubBundler) State() bundler.InitState { return bundler.Ready }

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
	s := New(&stubBundler{}, logger, Options{RegistryBase: "https://cdn.test/", Counters: &observability.Counters{}})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestIndex(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, `src="https://cdn.test/react@18/umd/react.development.js"`)
	assert.Contains(t, body, `src="/bundle.js"`)
}

func TestBundleJS_KeepsLastGoodBuild(t *testing.T) {
	s, ts := newTestServer(t)
	ctx := context.Background()

	resp, body := get(t, ts.URL+"/bundle.js")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "console.error(")

	s.Rebuild(ctx, "first")
	resp, body = get(t, ts.URL+"/bundle.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/* first */", body)
	assert.Equal(t, "build-1", resp.Header.Get("X-Build-Id"))

	res := s.Rebuild(ctx, "broken")
	assert.False(t, res.OK())
	_, body = get(t, ts.URL+"/bundle.js")
	assert.Equal(t, "/* first */", body, "failed rebuild must not replace the served bundle")

	_, body = get(t, ts.URL+"/api/status")
	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.Equal(t, "ready", st["state"])
	assert.Equal(t, "build-1", st["build_id"])
	assert.Equal(t, "Unexpected token", st["error"])
	assert.Contains(t, st, "modules")
}

func TestAPIBundle(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		body   string
		status int
		check  func(t *testing.T, r bundler.Result)
	}{
		{"export default function App(){}", http.StatusOK, func(t *testing.T, r bundler.Result) {
			assert.NotEmpty(t, r.Code)
			assert.Empty(t, r.Error)
		}},
		{"broken(", http.StatusUnprocessableEntity, func(t *testing.T, r bundler.Result) {
			assert.Empty(t, r.Code)
			assert.Equal(t, "Unexpected token", r.Error)
		}},
	}
	for _, tt := range tests {
		resp, err := http.Post(ts.URL+"/api/bundle", "text/plain", strings.NewReader(tt.body))
		require.NoError(t, err)
		var res bundler.Result
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		resp.Body.Close()
		assert.Equal(t, tt.status, resp.StatusCode)
		tt.check(t, res)
	}
}

func TestAPIBundle_TooLarge(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/bundle", "text/plain", strings.NewReader(strings.Repeat("a", 1<<20+1)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestWebSocket_ReceivesRebuilds(t *testing.T) {
	s, ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return s.hub.count() == 1 }, time.Second, 5*time.Millisecond)

	read := func() Message {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var m Message
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	}

	s.Rebuild(ctx, "ok")
	assert.Equal(t, Message{Type: "reload", ID: "build-1"}, read())

	s.Rebuild(ctx, "broken")
	assert.Equal(t, Message{Type: "error", ID: "build-2", Error: "Unexpected token"}, read())

	conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return s.hub.count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestHub_SlowClientDroppedWithoutHoldingLock(t *testing.T) {
	h := newHub(log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel}))
	release := make(chan struct{})
	accepted := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		// An unbuffered send channel with no reader is always full.
		h.add(&client{conn: conn, send: make(chan []byte)})
		close(accepted)
		<-release
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	peer, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer peer.CloseNow()
	<-accepted

	// The peer never reads, so closing its connection stalls on the handshake.
	done := make(chan struct{})
	go func() {
		h.broadcast(Message{Type: "reload", ID: "b1"})
		close(done)
	}()

	counted := make(chan int, 1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		counted <- h.count()
	}()
	select {
	case n := <-counted:
		assert.Zero(t, n)
	case <-time.After(time.Second):
		t.Fatal("count blocked behind a slow client's close")
	}
	peer.CloseNow()
	<-done
}
