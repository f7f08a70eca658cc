// Package cli implements the livebundle command-line interface.
//
// The commands bundle a single component file the same way the preview
// service does: bare imports are fetched from the package registry, cached,
// and inlined into one script that publishes the component on globalThis.
//
// # Commands
//
//   - build: bundle a file to stdout or --output, optionally --watch
//   - serve: live preview server with reload on save
//   - graph: print the import graph as DOT, SVG or JSON
//   - cache: inspect and clear the module cache
//   - version: print build information
//
// # Configuration
//
// Settings come from $XDG_CONFIG_HOME/livebundle/config.toml or --config
// (see package config). Flags override file values.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which shows
// every module fetch, cache hit and retry.
package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/livebundle/pkg/buildinfo"
	"github.com/matzehuels/livebundle/pkg/config"
)

const appName = "livebundle"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Out receives bundles and graphs written to stdout.
	Out io.Writer

	configPath string
	noCache    bool
}

// New creates a CLI that logs to w at level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "livebundle bundles React components against a package CDN",
		Long:         `livebundle turns a single component file into one self-contained script. Imports are resolved against a package registry such as unpkg, cached locally and inlined, so the result runs in a page without a module loader.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/livebundle/config.toml)")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "disable the module cache")

	root.AddCommand(c.buildCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the configuration and applies global flags.
func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if c.noCache {
		cfg.Cache.Backend = config.BackendNone
	}
	return cfg, nil
}
