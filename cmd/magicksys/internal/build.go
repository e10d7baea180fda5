package internal

import "github.com/spf13/cobra"

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the vendored ImageMagick source",
	Long:  `Build compiles the vendored ImageMagick tree into a private prefix without probing for an installation.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, modeSource)
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
