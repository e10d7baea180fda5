package internal

import "github.com/spf13/cobra"

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Look for an existing MagickWand installation",
	Long:  `Probe resolves an installed MagickWand without ever falling back to a source build.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, modeProbe)
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
