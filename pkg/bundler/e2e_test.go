package bundler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/livebundle/pkg/cache"
	"github.com/matzehuels/livebundle/pkg/engine"
	"github.com/matzehuels/livebundle/pkg/loader"
	"github.com/matzehuels/livebundle/pkg/registry"
	"github.com/matzehuels/livebundle/pkg/resolve"
)

// testRegistry serves a fixed set of files and counts every request. A body
// of the form "redirect:<path>" answers with a redirect, the way a registry
// resolves a bare package name to a versioned file.
type testRegistry struct {
	*httptest.Server
	hits atomic.Int32
}

func newTestRegistry(t *testing.T, files map[string]string) *testRegistry {
	t.Helper()
	reg := &testRegistry{}
	reg.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.hits.Add(1)
		body, ok := files[r.URL.RequestURI()]
		switch {
		case !ok:
			http.NotFound(w, r)
		case strings.HasPrefix(body, "redirect:"):
			http.Redirect(w, r, strings.TrimPrefix(body, "redirect:"), http.StatusFound)
		default:
			w.Write([]byte(body))
		}
	}))
	t.Cleanup(reg.Close)
	return reg
}

func newStack(t *testing.T, reg *testRegistry, c cache.Cache) *Bundler {
	t.Helper()
	r, err := resolve.New(reg.URL)
	require.NoError(t, err)
	client := registry.NewClient(registry.Options{HTTPClient: reg.Client()})
	l := loader.New(r, cache.NewModuleStore(c, nil), client, quietLogger())
	return New(engine.NewEsbuild(), r, l, quietLogger())
}

var exportKeyword = regexp.MustCompile(`(?m)^\s*export\b`)

func TestEndToEnd_DefaultExportedComponent(t *testing.T) {
	reg := newTestRegistry(t, nil)
	b := newStack(t, reg, cache.NewMemoryCache())

	res := b.Bundle(context.Background(), `export default function Greeting(){ return <div>Hi</div>; }`)
	require.Empty(t, res.Error)
	assert.Contains(t, res.Code, "function Greeting()")
	assert.False(t, exportKeyword.MatchString(res.Code), "residual export syntax:\n%s", res.Code)
	assert.Equal(t, "Greeting", res.Component)

	tail := res.Code[strings.LastIndex(res.Code, "if (typeof Greeting"):]
	assert.Contains(t, tail, "globalThis.Greeting = Greeting;")
	assert.Zero(t, reg.hits.Load())
}

func TestEndToEnd_MissingSiblingDegrades(t *testing.T) {
	reg := newTestRegistry(t, nil)
	b := newStack(t, reg, cache.NewMemoryCache())

	res := b.Bundle(context.Background(), `import Sibling from "./Sibling";
export default function App(){ return <section><Sibling/></section>; }`)
	require.Empty(t, res.Error)
	assert.NotEmpty(t, res.Code)
	assert.Contains(t, res.Code, "console.warn(")
	assert.Contains(t, res.Code, "/Sibling")
	assert.Equal(t, int32(2), reg.hits.Load(), "one attempt and one module retry")
}

func TestEndToEnd_SecondBuildIsServedFromCache(t *testing.T) {
	reg := newTestRegistry(t, map[string]string{
		"/tiny-lib":                "redirect:/tiny-lib@1.0.0/index.js",
		"/tiny-lib@1.0.0/index.js": `import { shout } from "./shout.js"; export const greet = (n) => shout("hi " + n);`,
		"/tiny-lib@1.0.0/shout.js": `export function shout(s) { return s.toUpperCase(); }`,
		"/legacy?module":           `export default "esm build";`,
		"/tiny-lib/style.css":      `.card { padding: 4px; }`,
		"/tiny-lib/data.json":      `{"label": "from json"}`,
	})
	source := `import { greet } from "tiny-lib";
import legacy from "legacy";
import "tiny-lib/style.css";
import data from "tiny-lib/data.json";
import { readFileSync } from "fs";
export default function Card() { return <p>{greet(data.label)} {legacy} {typeof readFileSync}</p>; }`

	dir := t.TempDir()
	fc, err := cache.NewFileCache(dir)
	require.NoError(t, err)
	b := newStack(t, reg, fc)

	first := b.Bundle(context.Background(), source)
	require.Empty(t, first.Error)
	assert.Contains(t, first.Code, "toUpperCase")
	assert.Contains(t, first.Code, "esm build")
	assert.Contains(t, first.Code, ".card { padding: 4px; }")
	assert.Contains(t, first.Code, "from json")
	fetched := reg.hits.Load()
	assert.Equal(t, int32(7), fetched, "tiny-lib and its redirect, shout.js, legacy twice, style.css, data.json")

	second := b.Bundle(context.Background(), source)
	require.Empty(t, second.Error)
	assert.Equal(t, fetched, reg.hits.Load(), "second build must not touch the network")
	assert.Equal(t, first.Code, second.Code)

	fc2, err := cache.NewFileCache(dir)
	require.NoError(t, err)
	third := newStack(t, reg, fc2).Bundle(context.Background(), source)
	require.Empty(t, third.Error)
	assert.Equal(t, fetched, reg.hits.Load(), "cache persists across processes")
}

func TestEndToEnd_SyntaxErrorIsReported(t *testing.T) {
	reg := newTestRegistry(t, nil)
	b := newStack(t, reg, cache.NewMemoryCache())

	res := b.Bundle(context.Background(), `export default function App( { return <div/>; }`)
	assert.Empty(t, res.Code)
	assert.NotEmpty(t, res.Error)
}

func TestEndToEnd_Graph(t *testing.T) {
	reg := newTestRegistry(t, map[string]string{
		"/a":                "redirect:/a@1.0.0/index.js",
		"/a@1.0.0/index.js": `import "./b.js"; export const a = 1;`,
		"/a@1.0.0/b.js":     `export const b = 2;`,
	})
	b := newStack(t, reg, cache.NewMemoryCache())

	res, g := b.BundleGraph(context.Background(), `import { a } from "a"; import "os"; export const App = () => a;`)
	require.Empty(t, res.Error)
	require.NotNil(t, g)
	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 3, g.EdgeCount())
}

func TestEndToEnd_DependencyTemplateLiteralKeepsEntryComponent(t *testing.T) {
	reg := newTestRegistry(t, map[string]string{
		"/docs": "export const snippet = `\nexport default function Demo() {}\n`;\n",
	})
	b := newStack(t, reg, cache.NewMemoryCache())

	res := b.Bundle(context.Background(), "import { snippet } from 'docs';\nexport default function App() { return <pre>{snippet}</pre>; }")
	require.Empty(t, res.Error)
	assert.Equal(t, "App", res.Component)
	assert.Contains(t, res.Code, "\nexport default function Demo() {}\n")
	assert.Contains(t, res.Code, `globalThis["default"] = App;`)
	assert.NotContains(t, res.Code, "globalThis.Demo")
}
