package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/livebundle/internal/server"
	"github.com/matzehuels/livebundle/internal/watch"
	lberrors "github.com/matzehuels/livebundle/pkg/errors"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve <file>",
		Short: "Preview a component in the browser with live reload",
		Long: `Serve a preview page for a component file.

The file is rebuilt on every save and connected browsers reload. A failed
build keeps the last good bundle on the page and shows the error.`,
		Example: `  livebundle serve Button.jsx
  livebundle serve App.tsx --addr :8080`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), args[0], addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:5173)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, path, addr string) error {
	if err := lberrors.ValidateEntryPath(path); err != nil {
		return err
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	st, err := c.newStack(ctx, cfg, path)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.New(st.bundler, c.Logger, server.Options{
		RegistryBase: st.resolver.RegistryBase(),
		Counters:     st.counters,
	})

	w, err := watch.New(cfg.Watch.Debounce, c.Logger)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(path); err != nil {
		return err
	}

	rebuild := func() {
		src, err := os.ReadFile(path)
		if err != nil {
			c.Logger.Warn("read failed", "file", path, "err", err)
			return
		}
		prog := newProgress(c.Logger)
		res := srv.Rebuild(ctx, string(src))
		if res.OK() {
			prog.done("rebuilt", "id", res.ID[:8], "component", res.Component)
		} else {
			prog.failed("rebuild failed", res.Error)
		}
	}
	rebuild()

	go func() {
		_ = w.Run(ctx, func([]string) { rebuild() })
	}()

	printInfo("Previewing %s at %s", StyleHighlight.Render(path), StyleLink.Render("http://"+cfg.Server.Addr))
	return srv.Serve(ctx, cfg.Server.Addr)
}
