package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/livebundle/pkg/cache"
	"github.com/matzehuels/livebundle/pkg/config"
	lberrors "github.com/matzehuels/livebundle/pkg/errors"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the module cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand. Only the file
// backend can be cleared from here; shared backends are left to their
// owners.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			switch cfg.Cache.Backend {
			case config.BackendFile:
			case config.BackendMemory, config.BackendNone:
				printInfo("Nothing to clear for the %s cache", cfg.Cache.Backend)
				return nil
			default:
				return lberrors.New(lberrors.ErrCodeUnsupported, "cannot clear the %s cache from the CLI", cfg.Cache.Backend)
			}

			fc, err := cache.NewFileCache(cfg.Cache.Dir)
			if err != nil {
				return err
			}
			count, err := fc.Clear()
			if err != nil {
				return err
			}
			if count == 0 {
				printInfo("Cache is empty")
				return nil
			}
			printSuccess("Cleared %d cached modules", count)
			printDetail("Directory: %s", cfg.Cache.Dir)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Cache.Backend != config.BackendFile {
				return lberrors.New(lberrors.ErrCodeUnsupported, "the %s cache has no directory", cfg.Cache.Backend)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.Cache.Dir)
			return nil
		},
	}
}
