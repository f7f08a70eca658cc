package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lberrors "github.com/matzehuels/livebundle/pkg/errors"
	"github.com/matzehuels/livebundle/pkg/module"
	"github.com/matzehuels/livebundle/pkg/resolve"
)

// memoryModules serves records from a map and remembers what was loaded.
type memoryModules struct {
	mu      sync.Mutex
	records map[module.Address]module.Record
	loaded  []module.Resolution
}

func (m *memoryModules) load(_ context.Context, res module.Resolution) (module.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = append(m.loaded, res)
	if res.Namespace == module.NamespaceStub {
		return module.Record{Content: "module.exports = {};", Kind: module.KindScript}, nil
	}
	if rec, ok := m.records[res.Address]; ok {
		return rec, nil
	}
	return module.Record{}, errors.New("no such module: " + string(res.Address))
}

func (m *memoryModules) addresses() []module.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []module.Address
	for _, r := range m.loaded {
		out = append(out, r.Address)
	}
	return out
}

func newRequest(t *testing.T, source string, records map[module.Address]module.Record) (Request, *memoryModules) {
	t.Helper()
	r, err := resolve.New("https://cdn.test/")
	require.NoError(t, err)
	mods := &memoryModules{records: records}
	return Request{Source: source, Resolve: r.Resolve, Load: mods.load}, mods
}

func TestEsbuild_Init(t *testing.T) {
	e := NewEsbuild()
	require.NoError(t, e.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Init(ctx)
	assert.True(t, lberrors.Is(err, lberrors.ErrCodeEngineInit))
}

func TestEsbuild_BuildsJSXEntry(t *testing.T) {
	req, _ := newRequest(t, `export default function Greeting(){ return <div>Hi</div>; }`, nil)

	out, err := NewEsbuild().Build(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, out.Code, "function Greeting()")
	assert.Contains(t, out.Code, `React.createElement("div"`)
	assert.NotContains(t, out.Code, "<div>")
}

func TestEsbuild_EmitsModuleFormat(t *testing.T) {
	req, _ := newRequest(t, `export default function App(){ return null; }`, nil)

	out, err := NewEsbuild().Build(context.Background(), req)
	require.NoError(t, err)
	assert.Regexp(t, `export\s*\{\s*App as default\s*\}`, out.Code)
	assert.Contains(t, out.Code, "// entry:"+string(module.EntryAddress)+"\n")
}

func TestEsbuild_TypedEntry(t *testing.T) {
	req, _ := newRequest(t, `const n: number = 1; export const Badge = () => <b>{n}</b>;`, nil)
	req.Options.EntryKind = module.KindTypedJSX

	out, err := NewEsbuild().Build(context.Background(), req)
	require.NoError(t, err)
	assert.NotContains(t, out.Code, ": number")
}

func TestEsbuild_RelativeImportsUseImporterBase(t *testing.T) {
	req, mods := newRequest(t, `import { helper } from "lib"; export const App = () => helper();`,
		map[module.Address]module.Record{
			"https://cdn.test/lib": {
				Content: `export { helper } from "./util.js";`,
				Kind:    module.KindScript,
				Base:    "https://cdn.test/lib@1.0.0/dist/",
			},
			"https://cdn.test/lib@1.0.0/dist/util.js": {
				Content: `export const helper = () => "helped";`,
				Kind:    module.KindScript,
				Base:    "https://cdn.test/lib@1.0.0/dist/",
			},
		})

	out, err := NewEsbuild().Build(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, out.Code, `"helped"`)
	assert.Equal(t, []module.Address{
		"https://cdn.test/lib",
		"https://cdn.test/lib@1.0.0/dist/util.js",
	}, mods.addresses())
}

func TestEsbuild_StubsBuiltins(t *testing.T) {
	req, mods := newRequest(t, `import { readFile } from "fs"; export const Reader = () => typeof readFile;`, nil)

	_, err := NewEsbuild().Build(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, mods.loaded, 1)
	assert.Equal(t, module.NamespaceStub, mods.loaded[0].Namespace)
}

func TestEsbuild_InjectsStylesheets(t *testing.T) {
	req, _ := newRequest(t, `import "./theme.css"; export const Themed = () => null;`,
		map[module.Address]module.Record{
			"https://cdn.test/theme.css": {Content: "body { color: red; }", Kind: module.KindStylesheet, Base: "https://cdn.test/"},
		})

	out, err := NewEsbuild().Build(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, out.Code, "body { color: red; }")
	assert.Contains(t, out.Code, "appendChild")
}

func TestEsbuild_DefinesNodeEnv(t *testing.T) {
	req, _ := newRequest(t, `export const mode = process.env.NODE_ENV;`, nil)

	out, err := NewEsbuild().Build(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, out.Code, `"development"`)
	assert.NotContains(t, out.Code, "process.env")
}

func TestEsbuild_Metafile(t *testing.T) {
	req, _ := newRequest(t, `import "fs"; export const A = 1;`, nil)

	out, err := NewEsbuild().Build(context.Background(), req)
	require.NoError(t, err)

	var meta struct {
		Inputs map[string]any `json:"inputs"`
	}
	require.NoError(t, json.Unmarshal(out.Metafile, &meta))
	assert.Len(t, meta.Inputs, 2)
}

func TestEsbuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) Request
		code lberrors.Code
	}{
		{
			name: "syntax",
			req: func(t *testing.T) Request {
				r, _ := newRequest(t, `export default function (`, nil)
				return r
			},
			code: lberrors.ErrCodeBuildFailed,
		},
		{
			name: "loadFailure",
			req: func(t *testing.T) Request {
				r, _ := newRequest(t, `import "nowhere";`, nil)
				return r
			},
			code: lberrors.ErrCodeBuildFailed,
		},
		{
			name: "missingCallbacks",
			req: func(t *testing.T) Request {
				return Request{Source: "1"}
			},
			code: lberrors.ErrCodeInternal,
		},
		{
			name: "unknownTarget",
			req: func(t *testing.T) Request {
				r, _ := newRequest(t, `export const A = 1;`, nil)
				r.Options.Target = "es1999"
				return r
			},
			code: lberrors.ErrCodeInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEsbuild().Build(context.Background(), tt.req(t))
			require.Error(t, err)
			assert.Equal(t, tt.code, lberrors.GetCode(err))
		})
	}
}

func TestEsbuild_CanceledContextStopsLoads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, mods := newRequest(t, `import "react";`, map[module.Address]module.Record{
		"https://cdn.test/react": {Content: "module.exports = {};", Kind: module.KindScript},
	})

	_, err := NewEsbuild().Build(ctx, req)
	require.Error(t, err)
	assert.Empty(t, mods.loaded)
}

func TestLoaderFor(t *testing.T) {
	tests := []struct {
		kind   module.Kind
		loader api.Loader
		direct bool
	}{
		{module.KindScript, api.LoaderJS, true},
		{module.KindTypedScript, api.LoaderTS, true},
		{module.KindJSX, api.LoaderJSX, true},
		{module.KindTypedJSX, api.LoaderTSX, true},
		{module.KindJSON, api.LoaderJSON, true},
		{module.KindBinary, api.LoaderDataURL, true},
		{module.KindStylesheet, api.LoaderJS, false},
		{"", api.LoaderJS, true},
	}
	for _, tt := range tests {
		loader, direct := loaderFor(tt.kind)
		assert.Equal(t, tt.loader, loader, tt.kind)
		assert.Equal(t, tt.direct, direct, tt.kind)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{Target: "es2020", Define: map[string]string{"DEBUG": "true"}}.WithDefaults()
	assert.Equal(t, "es2020", o.Target)
	assert.Equal(t, "React.createElement", o.JSXFactory)
	assert.Equal(t, "React.Fragment", o.JSXFragment)
	assert.Equal(t, module.KindJSX, o.EntryKind)
	assert.Equal(t, map[string]string{"DEBUG": "true"}, o.Define)
}
