package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	lberrors "github.com/matzehuels/livebundle/pkg/errors"
	"github.com/matzehuels/livebundle/pkg/module"
)

const pluginName = "livebundle"

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// Esbuild is an [Engine] backed by esbuild's Go API. The output is a single
// ESM-formatted script with every dependency inlined; no module loader is
// needed at runtime once export syntax is stripped.
type Esbuild struct{}

// NewEsbuild returns an esbuild engine.
func NewEsbuild() *Esbuild { return &Esbuild{} }

// Init runs a tiny transform to confirm the engine works in this process.
func (e *Esbuild) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return lberrors.Wrap(lberrors.ErrCodeEngineInit, err, "engine init")
	}
	res := api.Transform("export default () => null", api.TransformOptions{
		Loader: api.LoaderJSX,
		Format: api.FormatESModule,
		Target: api.ES2015,
	})
	if len(res.Errors) > 0 {
		return lberrors.New(lberrors.ErrCodeEngineInit, "engine self-check failed: %s", formatMessage(res.Errors[0]))
	}
	return nil
}

// Build bundles req. Engine diagnostics are returned as a BUILD_FAILED error
// listing every message.
func (e *Esbuild) Build(ctx context.Context, req Request) (Output, error) {
	if req.Resolve == nil || req.Load == nil {
		return Output{}, lberrors.New(lberrors.ErrCodeInternal, "build request needs resolve and load callbacks")
	}
	opts := req.Options.WithDefaults()
	target, ok := targets[strings.ToLower(opts.Target)]
	if !ok {
		return Output{}, lberrors.New(lberrors.ErrCodeInvalidConfig, "unknown target %q", opts.Target)
	}
	entryLoader, _ := loaderFor(opts.EntryKind)

	entry := req.Entry
	if entry == "" {
		entry = module.EntryName
	}

	result := api.Build(api.BuildOptions{
		EntryPoints: []string{entry},
		Bundle:      true,
		Write:       false,
		Metafile:    true,
		Format:      api.FormatESModule,
		Platform:    api.PlatformBrowser,
		Target:      target,
		JSX:         api.JSXTransform,
		JSXFactory:  opts.JSXFactory,
		JSXFragment: opts.JSXFragment,
		Define:      opts.Define,
		LogLevel:    api.LogLevelSilent,
		Plugins:     []api.Plugin{newPlugin(ctx, req, entryLoader)},
	})

	if len(result.Errors) > 0 {
		return Output{}, lberrors.New(lberrors.ErrCodeBuildFailed, "%s", formatMessages(result.Errors))
	}
	if len(result.OutputFiles) == 0 {
		return Output{}, lberrors.New(lberrors.ErrCodeInternal, "engine produced no output")
	}

	out := Output{
		Code:     string(result.OutputFiles[0].Contents),
		Metafile: []byte(result.Metafile),
	}
	for _, w := range result.Warnings {
		out.Warnings = append(out.Warnings, formatMessage(w))
	}
	return out, nil
}

// newPlugin routes every import through req.Resolve and every non-entry
// address through req.Load. Loaded modules carry their module.Context as
// plugin data; esbuild hands it back as the importer's data on resolve.
func newPlugin(ctx context.Context, req Request, entryLoader api.Loader) api.Plugin {
	return api.Plugin{
		Name: pluginName,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					res := req.Resolve(args.Path, importer(args))
					return api.OnResolveResult{
						Path:      string(res.Address),
						Namespace: string(res.Namespace),
					}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: string(module.NamespaceEntry)},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					src := req.Source
					return api.OnLoadResult{
						Contents:   &src,
						Loader:     entryLoader,
						PluginData: module.EntryContext,
					}, nil
				})

			for _, ns := range []module.Namespace{module.NamespaceRemote, module.NamespaceStub} {
				build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: string(ns)},
					func(args api.OnLoadArgs) (api.OnLoadResult, error) {
						if err := ctx.Err(); err != nil {
							return api.OnLoadResult{}, err
						}
						res := module.Resolution{Address: module.Address(args.Path), Namespace: ns}
						rec, err := req.Load(ctx, res)
						if err != nil {
							return api.OnLoadResult{}, err
						}
						contents, loader := contentsFor(rec)
						return api.OnLoadResult{
							Contents: &contents,
							Loader:   loader,
							PluginData: module.Context{
								Address:   res.Address,
								Namespace: res.Namespace,
								Base:      rec.Base,
							},
						}, nil
					})
			}
		},
	}
}

func importer(args api.OnResolveArgs) module.Context {
	if c, ok := args.PluginData.(module.Context); ok {
		return c
	}
	return module.EntryContext
}

// loaderFor maps a content kind to an esbuild loader. The second result is
// false for kinds that need their content rewritten first.
func loaderFor(k module.Kind) (api.Loader, bool) {
	switch k {
	case module.KindTypedScript:
		return api.LoaderTS, true
	case module.KindJSX:
		return api.LoaderJSX, true
	case module.KindTypedJSX:
		return api.LoaderTSX, true
	case module.KindJSON:
		return api.LoaderJSON, true
	case module.KindBinary:
		return api.LoaderDataURL, true
	case module.KindStylesheet:
		return api.LoaderJS, false
	default:
		return api.LoaderJS, true
	}
}

func contentsFor(rec module.Record) (string, api.Loader) {
	loader, direct := loaderFor(rec.Kind)
	if direct {
		return rec.Content, loader
	}
	return styleModule(rec.Content), loader
}

// styleModule wraps CSS in a script that appends it to the document head.
func styleModule(css string) string {
	quoted, _ := json.Marshal(css)
	return fmt.Sprintf(`if (typeof document !== "undefined") {
  var style = document.createElement("style");
  style.textContent = %s;
  document.head.appendChild(style);
}
module.exports = {};
`, quoted)
}

func formatMessages(msgs []api.Message) string {
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = formatMessage(m)
	}
	return strings.Join(lines, "\n")
}

func formatMessage(m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
}
