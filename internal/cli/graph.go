package cli

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	lberrors "github.com/matzehuels/livebundle/pkg/errors"
	"github.com/matzehuels/livebundle/pkg/modgraph"
)

type graphOpts struct {
	format string
	output string
	sizes  bool
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var opts graphOpts

	cmd := &cobra.Command{
		Use:   "graph <file>",
		Short: "Print the import graph of a component",
		Long: `Bundle a component and print the modules it pulled in.

The default output is Graphviz DOT. Use --format svg to render it directly
or --format json for the raw nodes and edges.`,
		Example: `  livebundle graph Button.jsx | dot -Tpng > graph.png
  livebundle graph App.tsx --format svg -o graph.svg --sizes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "dot", "output format: dot, svg or json")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.sizes, "sizes", false, "show module sizes")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, path string, opts graphOpts) error {
	format := strings.ToLower(opts.format)
	if format != "dot" && format != "svg" && format != "json" {
		return lberrors.New(lberrors.ErrCodeInvalidInput, "unknown format %q (want dot, svg or json)", opts.format)
	}
	if err := lberrors.ValidateEntryPath(path); err != nil {
		return err
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	st, err := c.newStack(ctx, cfg, path)
	if err != nil {
		return err
	}
	defer st.Close()

	src, err := os.ReadFile(path)
	if err != nil {
		return lberrors.Wrap(lberrors.ErrCodeInvalidPath, err, "read %s", path)
	}

	prog := newProgress(c.Logger)
	res, g := st.bundler.BundleGraph(ctx, string(src))
	if !res.OK() {
		return lberrors.New(lberrors.ErrCodeBuildFailed, "%s", res.Error)
	}
	prog.done("graph built", "modules", g.NodeCount(), "imports", g.EdgeCount())

	out, err := encodeGraph(ctx, g, format, modgraph.Options{
		TrimPrefix: st.resolver.RegistryBase(),
		Sizes:      opts.sizes,
	})
	if err != nil {
		return err
	}

	if opts.output == "" {
		_, err := c.Out.Write(out)
		return err
	}
	if err := os.WriteFile(opts.output, out, 0o644); err != nil {
		return lberrors.Wrap(lberrors.ErrCodeInvalidPath, err, "write %s", opts.output)
	}
	printSuccess("Wrote import graph")
	printFile(opts.output)
	return nil
}

func encodeGraph(ctx context.Context, g *modgraph.Graph, format string, opts modgraph.Options) ([]byte, error) {
	switch format {
	case "json":
		var buf bytes.Buffer
		if err := modgraph.WriteJSON(g, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "svg":
		return modgraph.RenderSVG(ctx, modgraph.ToDOT(g, opts))
	default:
		return []byte(modgraph.ToDOT(g, opts)), nil
	}
}
