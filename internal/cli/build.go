package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/livebundle/internal/watch"
	lberrors "github.com/matzehuels/livebundle/pkg/errors"
)

type buildOpts struct {
	output string
	watch  bool
}

// buildCommand creates the build command.
func (c *CLI) buildCommand() *cobra.Command {
	var opts buildOpts

	cmd := &cobra.Command{
		Use:   "build <file>",
		Short: "Bundle a component file into a single script",
		Long: `Bundle a component file into a single self-contained script.

Bare imports are fetched from the configured registry and cached. The
component is published on globalThis under its own name and as "default".`,
		Example: `  livebundle build Button.jsx > button.js
  livebundle build App.tsx -o dist/app.js --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the bundle to this file instead of stdout")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "rebuild when the file changes")

	return cmd
}

func (c *CLI) runBuild(ctx context.Context, path string, opts buildOpts) error {
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

	if !opts.watch {
		return c.buildOnce(ctx, st, path, opts.output)
	}

	w, err := watch.New(cfg.Watch.Debounce, c.Logger)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(path); err != nil {
		return err
	}

	if err := c.buildOnce(ctx, st, path, opts.output); err != nil {
		c.Logger.Error("build failed", "err", lberrors.UserMessage(err))
	}
	c.Logger.Info("watching for changes", "file", path)

	return w.Run(ctx, func([]string) {
		if err := c.buildOnce(ctx, st, path, opts.output); err != nil {
			c.Logger.Error("build failed", "err", lberrors.UserMessage(err))
		}
	})
}

// buildOnce bundles path and writes the result. Status lines go to the
// terminal only when the bundle itself goes to a file.
func (c *CLI) buildOnce(ctx context.Context, st *stack, path, output string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return lberrors.Wrap(lberrors.ErrCodeInvalidPath, err, "read %s", path)
	}

	before := st.counters.Snapshot()
	prog := newProgress(c.Logger)

	var spin *Spinner
	if output != "" {
		spin = newSpinner(ctx, os.Stderr, "Bundling "+path)
		spin.Start()
	}
	res := st.bundler.Bundle(ctx, string(src))
	if spin != nil {
		spin.Stop()
	}

	stats := st.counters.Snapshot().Sub(before)
	if !res.OK() {
		prog.failed("build failed", res.Error)
		return lberrors.New(lberrors.ErrCodeBuildFailed, "%s", res.Error)
	}

	if output == "" {
		prog.done("bundled", "id", res.ID[:8], "component", res.Component, "fetched", stats.Fetched, "cached", stats.Cached)
		return writeBundle(c.Out, res.Code)
	}

	if err := os.WriteFile(output, []byte(res.Code), 0o644); err != nil {
		return lberrors.Wrap(lberrors.ErrCodeInvalidPath, err, "write %s", output)
	}
	printSuccess("Bundled %s (%s)", componentLabel(res.Component), prog.elapsed())
	printFile(output)
	printStats(stats)
	if stats.Degraded > 0 {
		printWarning("%d module(s) could not be fetched; see the browser console", stats.Degraded)
	}
	return nil
}

func writeBundle(w io.Writer, code string) error {
	_, err := io.WriteString(w, code)
	return err
}

func componentLabel(name string) string {
	if name == "" {
		return StyleDim.Render("(no component)")
	}
	return StyleHighlight.Render(name)
}
