package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/livebundle/pkg/buildinfo"
)

// versionCommand creates the version command.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := buildinfo.Get()
			printKeyValue("Version", info.Version)
			printKeyValue("Commit", info.Commit)
			printKeyValue("Built", info.Date)
			printKeyValue("Go", info.GoVersion)
		},
	}
}
