package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/menulens/internal/buildinfo"
)

// Command creates a new cobra.Command to print build information.
func Command(build buildinfo.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "MenuLens %s\n", build.GetVersion())
			fmt.Fprintf(out, "Build date: %s\n", build.GetBuildDate())
			fmt.Fprintf(out, "System ID:  %s\n", build.GetSystemID())
			return nil
		},
	}
}
